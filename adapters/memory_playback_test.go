package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
)

func newRecord(requestID, siteID string) *entities.PlaybackRecord {
	record := entities.NewPlaybackRecord(entities.PlaybackRequest{
		RequestID: requestID,
		SiteID:    siteID,
	}, 1.0)
	record.Complete(entities.PlaybackStatusPlayed, nil)
	return record
}

func TestMemoryPlaybackRepository_CreateAndList(t *testing.T) {
	repo := NewMemoryPlaybackRepository(10)
	ctx := context.Background()

	for _, r := range []*entities.PlaybackRecord{
		newRecord("req-1", "kitchen"),
		newRecord("req-2", "bedroom"),
		newRecord("req-3", "kitchen"),
	} {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if r.ID == "" {
			t.Error("Expected generated id")
		}
	}

	records, err := repo.ListRecent(ctx, "kitchen", 0)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 kitchen records, got %d", len(records))
	}
	if records[0].RequestID != "req-3" || records[1].RequestID != "req-1" {
		t.Errorf("Expected newest first, got %s, %s", records[0].RequestID, records[1].RequestID)
	}

	all, _ := repo.ListRecent(ctx, "", 2)
	if len(all) != 2 || all[0].RequestID != "req-3" {
		t.Errorf("Unexpected limited list: %+v", all)
	}
}

func TestMemoryPlaybackRepository_Bounded(t *testing.T) {
	repo := NewMemoryPlaybackRepository(2)
	ctx := context.Background()

	for _, id := range []string{"req-1", "req-2", "req-3"} {
		if err := repo.Create(ctx, newRecord(id, "default")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	records, _ := repo.ListRecent(ctx, "", 10)
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[1].RequestID != "req-2" {
		t.Errorf("Expected oldest record to be dropped, got %+v", records)
	}
}

func TestMemoryPlaybackRepository_Validation(t *testing.T) {
	repo := NewMemoryPlaybackRepository(0)

	if err := repo.Create(context.Background(), nil); err == nil {
		t.Error("Expected error for nil record")
	}
	if err := repo.Create(context.Background(), &entities.PlaybackRecord{SiteID: "default"}); err == nil {
		t.Error("Expected error for record without request id")
	}
}

func TestMemoryPlaybackRepository_DeleteBefore(t *testing.T) {
	repo := NewMemoryPlaybackRepository(10)
	ctx := context.Background()

	old := newRecord("old", "default")
	old.StartedAt = time.Now().Add(-2 * time.Hour)
	repo.Create(ctx, old)
	repo.Create(ctx, newRecord("new", "default"))

	removed, err := repo.DeleteBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed record, got %d", removed)
	}

	records, _ := repo.ListRecent(ctx, "", 10)
	if len(records) != 1 || records[0].RequestID != "new" {
		t.Errorf("Unexpected remaining records: %+v", records)
	}
}
