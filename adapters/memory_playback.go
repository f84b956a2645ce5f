package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
)

const defaultPlaybackLimit = 20

// MemoryPlaybackRepository keeps the most recent playback records in memory.
// Once full, the oldest record is dropped for each new one.
type MemoryPlaybackRepository struct {
	mu         sync.RWMutex
	records    []*entities.PlaybackRecord // oldest first
	maxRecords int
}

// NewMemoryPlaybackRepository creates a new in-memory playback repository
func NewMemoryPlaybackRepository(maxRecords int) *MemoryPlaybackRepository {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &MemoryPlaybackRepository{maxRecords: maxRecords}
}

// Create implements PlaybackRepository interface
func (m *MemoryPlaybackRepository) Create(ctx context.Context, record *entities.PlaybackRecord) error {
	if record == nil {
		return errors.New("playback record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	// Generate ID if not provided
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	stored := *record

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) >= m.maxRecords {
		copy(m.records, m.records[1:])
		m.records = m.records[:len(m.records)-1]
	}
	m.records = append(m.records, &stored)
	return nil
}

// ListRecent implements PlaybackRepository interface
func (m *MemoryPlaybackRepository) ListRecent(ctx context.Context, siteID string, limit int) ([]*entities.PlaybackRecord, error) {
	if limit <= 0 {
		limit = defaultPlaybackLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*entities.PlaybackRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(result) < limit; i-- {
		record := m.records[i]
		if siteID != "" && record.SiteID != siteID {
			continue
		}
		copied := *record
		result = append(result, &copied)
	}
	return result, nil
}

// DeleteBefore implements PlaybackRepository interface
func (m *MemoryPlaybackRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	for _, record := range m.records {
		if !record.StartedAt.Before(cutoff) {
			kept = append(kept, record)
		}
	}
	removed := int64(len(m.records) - len(kept))
	for i := len(kept); i < len(m.records); i++ {
		m.records[i] = nil
	}
	m.records = kept
	return removed, nil
}
