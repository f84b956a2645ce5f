package usecase

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
)

func TestHistoryCleanupService_RunCleanup(t *testing.T) {
	now := time.Now()
	history := &mockHistory{records: []*entities.PlaybackRecord{
		{RequestID: "old", SiteID: "default", StartedAt: now.Add(-48 * time.Hour)},
		{RequestID: "new", SiteID: "default", StartedAt: now.Add(-time.Minute)},
	}}

	service := NewHistoryCleanupService(history, 24*time.Hour, time.Hour, zaptest.NewLogger(t))
	service.RunCleanup(context.Background())

	if len(history.records) != 1 || history.records[0].RequestID != "new" {
		t.Errorf("Expected only the recent record to remain, got %+v", history.records)
	}
}

func TestHistoryCleanupService_StartStop(t *testing.T) {
	history := &mockHistory{records: []*entities.PlaybackRecord{
		{RequestID: "old", SiteID: "default", StartedAt: time.Now().Add(-time.Hour)},
	}}

	service := NewHistoryCleanupService(history, time.Minute, 10*time.Millisecond, zaptest.NewLogger(t))
	service.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		history.mu.Lock()
		remaining := len(history.records)
		history.mu.Unlock()
		if remaining == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Cleanup loop did not prune the old record")
		}
		time.Sleep(10 * time.Millisecond)
	}

	service.Stop()
}
