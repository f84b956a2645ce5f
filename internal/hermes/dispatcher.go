package hermes

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
)

// PlaybackController plays audio and owns the output state
type PlaybackController interface {
	Play(ctx context.Context, req entities.PlaybackRequest, emit func(entities.PlaybackResult))
	SetVolume(volume float64)
	SetEnabled(enabled bool)
}

// DeviceEnumerator lists output devices
type DeviceEnumerator interface {
	Enumerate(ctx context.Context, modes []entities.DeviceMode) ([]entities.AudioDevice, error)
}

// Publisher sends a JSON payload to a bus topic
type Publisher interface {
	Publish(topic string, payload interface{}) error
}

// Dispatcher routes inbound bus messages to the playback controller and
// device enumerator and publishes their results. It is not safe for
// concurrent use; the transport calls it from a single goroutine.
type Dispatcher struct {
	playback  PlaybackController
	devices   DeviceEnumerator
	publisher Publisher
	siteIDs   map[string]struct{}
	logger    *zap.Logger
}

// NewDispatcher creates a new dispatcher. An empty siteIDs list accepts
// messages for every site.
func NewDispatcher(
	playback PlaybackController,
	devices DeviceEnumerator,
	publisher Publisher,
	siteIDs []string,
	logger *zap.Logger,
) *Dispatcher {
	sites := make(map[string]struct{}, len(siteIDs))
	for _, id := range siteIDs {
		sites[id] = struct{}{}
	}

	return &Dispatcher{
		playback:  playback,
		devices:   devices,
		publisher: publisher,
		siteIDs:   sites,
		logger:    logger,
	}
}

// HandleEnvelope decodes and dispatches one bus message. Malformed messages
// are logged and dropped.
func (d *Dispatcher) HandleEnvelope(ctx context.Context, env domain.Envelope) {
	msg, err := Decode(env)
	if err != nil {
		d.logger.Warn("Dropping malformed message",
			zap.String("topic", env.Topic),
			zap.Error(err))
		return
	}

	d.Handle(ctx, msg)
}

// Handle dispatches a decoded message
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	if !d.handlesSite(msg.SiteID) {
		d.logger.Debug("Ignoring message for other site",
			zap.String("kind", msg.Kind.String()),
			zap.String("siteID", msg.SiteID))
		return
	}

	switch msg.Kind {
	case KindPlayBytes:
		d.handlePlayBytes(ctx, msg)
	case KindGetDevices:
		d.handleGetDevices(ctx, msg)
	case KindToggleOff:
		d.playback.SetEnabled(false)
	case KindToggleOn:
		d.playback.SetEnabled(true)
	case KindSetVolume:
		d.playback.SetVolume(msg.Volume)
	default:
		d.logger.Warn("Unexpected message",
			zap.String("kind", msg.Kind.String()),
			zap.String("topic", msg.Topic))
	}
}

func (d *Dispatcher) handlesSite(siteID string) bool {
	if len(d.siteIDs) == 0 {
		return true
	}
	_, ok := d.siteIDs[siteID]
	return ok
}

func (d *Dispatcher) handlePlayBytes(ctx context.Context, msg Message) {
	req := entities.PlaybackRequest{
		RequestID: msg.RequestID,
		SiteID:    msg.SiteID,
		SessionID: msg.SessionID,
		Audio:     msg.Audio,
	}
	if err := req.Validate(); err != nil {
		d.logger.Warn("Dropping playBytes without correlation ids",
			zap.String("topic", msg.Topic),
			zap.Error(err))
		return
	}

	d.playback.Play(ctx, req, d.publishResult)
}

func (d *Dispatcher) publishResult(result entities.PlaybackResult) {
	switch result.Kind {
	case entities.PlaybackFinished:
		d.publish(domain.PlayFinishedTopic(result.SiteID), domain.AudioPlayFinished{
			ID:        result.RequestID,
			SessionID: result.SessionID,
		})
	case entities.PlaybackFailed:
		d.publish(domain.TopicPlayError, domain.AudioServerError{
			Error:     result.Error,
			Context:   result.RequestID,
			SiteID:    result.SiteID,
			SessionID: result.SessionID,
		})
	default:
		d.logger.Warn("Unexpected playback result", zap.String("kind", string(result.Kind)))
	}
}

func (d *Dispatcher) handleGetDevices(ctx context.Context, msg Message) {
	// another audio service answers queries for input devices only
	if !entities.IncludesOutput(msg.Modes) {
		return
	}

	devices, err := d.devices.Enumerate(ctx, msg.Modes)
	if err != nil {
		d.logger.Error("Failed to list devices",
			zap.String("queryID", msg.QueryID),
			zap.Bool("configuration", errors.Is(err, domain.ErrConfiguration)),
			zap.Error(err))
		d.publish(domain.TopicDevicesError, domain.AudioServerError{
			Error:     err.Error(),
			Context:   msg.QueryID,
			SiteID:    msg.SiteID,
			SessionID: msg.SessionID,
		})
	}

	response := domain.AudioDevices{
		Devices: make([]domain.AudioDeviceMessage, 0, len(devices)),
		ID:      msg.QueryID,
		SiteID:  msg.SiteID,
	}
	for _, device := range devices {
		response.Devices = append(response.Devices, domain.AudioDeviceMessage{
			Mode:        string(device.Mode),
			ID:          device.ID,
			Name:        device.Name,
			Description: device.Description,
			IsDefault:   device.IsDefault,
		})
	}

	d.publish(domain.TopicDevices, response)
}

func (d *Dispatcher) publish(topic string, payload interface{}) {
	if err := d.publisher.Publish(topic, payload); err != nil {
		d.logger.Error("Failed to publish message",
			zap.String("topic", topic),
			zap.Error(err))
	}
}
