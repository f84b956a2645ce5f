package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/repositories"
)

// HistoryCleanupService prunes old playback records in the background
type HistoryCleanupService struct {
	history   repositories.PlaybackRepository
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewHistoryCleanupService creates a new cleanup service. Records older
// than retention are removed every interval.
func NewHistoryCleanupService(
	history repositories.PlaybackRepository,
	retention time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) *HistoryCleanupService {
	return &HistoryCleanupService{
		history:   history,
		retention: retention,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *HistoryCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("History cleanup service started",
		zap.Duration("retention", s.retention),
		zap.Duration("interval", s.interval))
}

// Stop stops the cleanup loop and waits for it to exit
func (s *HistoryCleanupService) Stop() {
	close(s.stopChan)
	<-s.doneChan
	s.logger.Info("History cleanup service stopped")
}

func (s *HistoryCleanupService) cleanupLoop() {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunCleanup(context.Background())
		}
	}
}

// RunCleanup removes records older than the retention period once
func (s *HistoryCleanupService) RunCleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.retention)
	removed, err := s.history.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune playback history", zap.Error(err))
		return
	}

	s.logger.Debug("Playback history pruned",
		zap.Time("cutoff", cutoff),
		zap.Int64("removed", removed))
}
