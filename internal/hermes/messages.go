package hermes

import (
	"encoding/json"
	"fmt"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
)

// Kind identifies an inbound bus message
type Kind int

// Supported message kinds
const (
	KindUnknown Kind = iota
	KindPlayBytes
	KindGetDevices
	KindToggleOff
	KindToggleOn
	KindSetVolume
)

func (k Kind) String() string {
	switch k {
	case KindPlayBytes:
		return "playBytes"
	case KindGetDevices:
		return "getDevices"
	case KindToggleOff:
		return "toggleOff"
	case KindToggleOn:
		return "toggleOn"
	case KindSetVolume:
		return "setVolume"
	default:
		return "unknown"
	}
}

// Message is a decoded inbound bus message. Only the fields relevant to
// Kind are set.
type Message struct {
	Kind      Kind
	Topic     string
	SiteID    string
	RequestID string
	SessionID string

	// playBytes
	Audio []byte

	// getDevices
	QueryID string
	Modes   []entities.DeviceMode

	// setVolume
	Volume float64
}

// Decode turns an envelope into a Message. Unknown topics and payloads
// missing required fields yield domain.ErrProtocol.
func Decode(env domain.Envelope) (Message, error) {
	msg := Message{
		Topic:     env.Topic,
		SessionID: env.SessionID,
	}

	switch {
	case domain.IsPlayBytesTopic(env.Topic):
		msg.Kind = KindPlayBytes
		siteID, requestID, err := domain.ParsePlayBytesTopic(env.Topic)
		if err != nil {
			return msg, err
		}
		msg.SiteID = siteID
		msg.RequestID = requestID
		msg.Audio = env.Payload

	case env.Topic == domain.TopicGetDevices:
		msg.Kind = KindGetDevices
		var payload domain.AudioGetDevices
		if err := unmarshalPayload(env, &payload); err != nil {
			return msg, err
		}
		msg.SiteID = siteOrDefault(payload.SiteID)
		msg.QueryID = payload.ID
		for _, mode := range payload.Modes {
			msg.Modes = append(msg.Modes, entities.DeviceMode(mode))
		}

	case env.Topic == domain.TopicToggleOff, env.Topic == domain.TopicToggleOn:
		msg.Kind = KindToggleOn
		if env.Topic == domain.TopicToggleOff {
			msg.Kind = KindToggleOff
		}
		var payload domain.AudioToggle
		if err := unmarshalPayload(env, &payload); err != nil {
			return msg, err
		}
		msg.SiteID = siteOrDefault(payload.SiteID)

	case env.Topic == domain.TopicSetVolume:
		msg.Kind = KindSetVolume
		var payload domain.AudioSetVolume
		if err := unmarshalPayload(env, &payload); err != nil {
			return msg, err
		}
		if payload.Volume == nil {
			return msg, fmt.Errorf("%w: setVolume without volume", domain.ErrProtocol)
		}
		msg.SiteID = siteOrDefault(payload.SiteID)
		msg.Volume = *payload.Volume

	default:
		return msg, fmt.Errorf("%w: unsupported topic: %s", domain.ErrProtocol, env.Topic)
	}

	return msg, nil
}

func unmarshalPayload(env domain.Envelope, v interface{}) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%w: invalid %s payload: %v", domain.ErrProtocol, env.Topic, err)
	}
	return nil
}

func siteOrDefault(siteID string) string {
	if siteID == "" {
		return domain.DefaultSiteID
	}
	return siteID
}
