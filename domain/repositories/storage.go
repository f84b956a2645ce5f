package repositories

import (
	"context"
	"time"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
)

// PlaybackRepository defines data access methods for playback history
type PlaybackRepository interface {
	Create(ctx context.Context, record *entities.PlaybackRecord) error
	// ListRecent returns the newest records first. An empty siteID matches
	// every site; limit <= 0 applies the repository default.
	ListRecent(ctx context.Context, siteID string, limit int) ([]*entities.PlaybackRecord, error)
	// DeleteBefore removes records that started before cutoff and reports
	// how many were removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
