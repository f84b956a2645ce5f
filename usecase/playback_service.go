package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/repositories"
)

// VolumeNormalizer rescales a WAV container by a global volume
type VolumeNormalizer interface {
	Normalize(container []byte, globalVolume float64) []byte
}

// PlaybackService owns the output state and plays requests through the
// external player.
type PlaybackService struct {
	player     repositories.AudioPlayer
	normalizer VolumeNormalizer
	history    repositories.PlaybackRepository
	logger     *zap.Logger

	mu    sync.Mutex
	state entities.VolumeState
}

// NewPlaybackService creates a new playback service. Output starts enabled.
// history may be nil.
func NewPlaybackService(
	player repositories.AudioPlayer,
	normalizer VolumeNormalizer,
	history repositories.PlaybackRepository,
	initialVolume float64,
	logger *zap.Logger,
) *PlaybackService {
	return &PlaybackService{
		player:     player,
		normalizer: normalizer,
		history:    history,
		logger:     logger,
		state: entities.VolumeState{
			Volume:  initialVolume,
			Enabled: true,
		},
	}
}

// Play plays req and reports its results through emit, in order. A Failed
// result is emitted when the player cannot run to completion; a Finished
// result is always emitted last. While output is disabled the player is
// not invoked and only Finished is emitted.
func (s *PlaybackService) Play(ctx context.Context, req entities.PlaybackRequest, emit func(entities.PlaybackResult)) {
	state := s.State()
	record := entities.NewPlaybackRecord(req, state.Volume)

	defer func() {
		emit(entities.Finished(req))
		s.saveRecord(record)
	}()

	if !state.Enabled {
		s.logger.Debug("Audio output disabled, skipping playback",
			zap.String("requestID", req.RequestID),
			zap.String("siteID", req.SiteID))
		record.Complete(entities.PlaybackStatusSuppressed, nil)
		return
	}

	audio := s.normalizer.Normalize(req.Audio, state.Volume)

	s.logger.Info("Playing audio",
		zap.String("requestID", req.RequestID),
		zap.String("siteID", req.SiteID),
		zap.String("sessionID", req.SessionID),
		zap.Int("bytes", len(audio)))

	if err := s.player.Play(ctx, audio); err != nil {
		s.logger.Error("Playback failed",
			zap.String("requestID", req.RequestID),
			zap.String("siteID", req.SiteID),
			zap.Error(err))
		record.Complete(entities.PlaybackStatusFailed, err)
		emit(entities.Failed(req, err))
		return
	}

	record.Complete(entities.PlaybackStatusPlayed, nil)
}

// SetVolume replaces the global volume. Out-of-range values are kept as
// given; the normalizer clamps them when applying.
func (s *PlaybackService) SetVolume(volume float64) {
	s.mu.Lock()
	old := s.state.Volume
	s.state.Volume = volume
	s.mu.Unlock()

	s.logger.Info("Volume changed",
		zap.Float64("old", old),
		zap.Float64("new", volume))
}

// SetEnabled turns audio output on or off
func (s *PlaybackService) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.state.Enabled = enabled
	s.mu.Unlock()

	s.logger.Info("Audio output toggled", zap.Bool("enabled", enabled))
}

// State returns a snapshot of the output state
func (s *PlaybackService) State() entities.VolumeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *PlaybackService) saveRecord(record *entities.PlaybackRecord) {
	if s.history == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.history.Create(ctx, record); err != nil {
		s.logger.Warn("Failed to record playback",
			zap.String("requestID", record.RequestID),
			zap.Error(err))
	}
}
