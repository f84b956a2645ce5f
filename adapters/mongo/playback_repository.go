package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
)

const (
	playbackCollection   = "playbacks"
	defaultPlaybackLimit = 20
)

// PlaybackRepository stores playback history in MongoDB
type PlaybackRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewPlaybackRepository creates a new MongoDB playback repository and
// ensures its indexes
func NewPlaybackRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*PlaybackRepository, error) {
	collection := db.Collection(playbackCollection)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// newest records per site
			Keys: bson.D{
				{Key: "site_id", Value: 1},
				{Key: "started_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "started_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "request_id", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create playback indexes: %w", err)
	}

	logger.Info("Playback indexes created successfully")

	return &PlaybackRepository{
		collection: collection,
		logger:     logger,
	}, nil
}

// Create inserts a completed playback record
func (r *PlaybackRepository) Create(ctx context.Context, record *entities.PlaybackRecord) error {
	if record == nil {
		return errors.New("playback record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		r.logger.Error("Failed to create playback record",
			zap.String("requestID", record.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to create playback record: %w", err)
	}

	r.logger.Debug("Playback record created",
		zap.String("id", record.ID),
		zap.String("requestID", record.RequestID))
	return nil
}

// ListRecent returns the newest records first
func (r *PlaybackRepository) ListRecent(ctx context.Context, siteID string, limit int) ([]*entities.PlaybackRecord, error) {
	if limit <= 0 {
		limit = defaultPlaybackLimit
	}

	filter := bson.M{}
	if siteID != "" {
		filter["site_id"] = siteID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}). // Most recent first
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list playbacks: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*entities.PlaybackRecord, 0, limit)
	for cursor.Next(ctx) {
		var record entities.PlaybackRecord
		if err := cursor.Decode(&record); err != nil {
			r.logger.Error("Failed to decode playback record", zap.Error(err))
			continue
		}
		records = append(records, &record)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("playback cursor error: %w", err)
	}

	return records, nil
}

// DeleteBefore removes records that started before cutoff
func (r *PlaybackRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"started_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete playbacks: %w", err)
	}
	return result.DeletedCount, nil
}
