package entities

import (
	"errors"
	"time"
)

// PlaybackRequest is a single play attempt. The request and site ids come
// from the bus topic, not from the audio payload.
type PlaybackRequest struct {
	RequestID string
	SiteID    string
	SessionID string
	Audio     []byte
}

// Validate checks the correlation fields required to answer the request
func (r PlaybackRequest) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.SiteID == "" {
		return errors.New("site_id is required")
	}
	return nil
}

// PlaybackResultKind tags a PlaybackResult
type PlaybackResultKind string

const (
	PlaybackFinished PlaybackResultKind = "finished"
	PlaybackFailed   PlaybackResultKind = "failed"
)

// PlaybackResult is one event produced by a play request. Every request
// produces exactly one Finished result, preceded by a Failed result when the
// player could not run to completion.
type PlaybackResult struct {
	Kind      PlaybackResultKind
	RequestID string
	SessionID string
	SiteID    string
	Error     string
}

// Finished builds the terminal result for a request
func Finished(req PlaybackRequest) PlaybackResult {
	return PlaybackResult{
		Kind:      PlaybackFinished,
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		SiteID:    req.SiteID,
	}
}

// Failed builds the error result for a request
func Failed(req PlaybackRequest, err error) PlaybackResult {
	return PlaybackResult{
		Kind:      PlaybackFailed,
		RequestID: req.RequestID,
		SessionID: req.SessionID,
		SiteID:    req.SiteID,
		Error:     err.Error(),
	}
}

// VolumeState is the process-wide output state
type VolumeState struct {
	Volume  float64 `json:"volume"`
	Enabled bool    `json:"enabled"`
}

// PlaybackStatus represents the outcome recorded for a request
type PlaybackStatus string

const (
	PlaybackStatusPlayed     PlaybackStatus = "played"
	PlaybackStatusFailed     PlaybackStatus = "failed"
	PlaybackStatusSuppressed PlaybackStatus = "suppressed"
)

// PlaybackRecord is the history entry kept for each play request
type PlaybackRecord struct {
	ID         string         `json:"id" bson:"_id"`
	RequestID  string         `json:"request_id" bson:"request_id"`
	SiteID     string         `json:"site_id" bson:"site_id"`
	SessionID  string         `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Status     PlaybackStatus `json:"status" bson:"status"`
	Error      string         `json:"error,omitempty" bson:"error,omitempty"`
	Bytes      int            `json:"bytes" bson:"bytes"`
	Volume     float64        `json:"volume" bson:"volume"`
	StartedAt  time.Time      `json:"started_at" bson:"started_at"`
	FinishedAt time.Time      `json:"finished_at" bson:"finished_at"`
}

// NewPlaybackRecord starts a history entry for req
func NewPlaybackRecord(req PlaybackRequest, volume float64) *PlaybackRecord {
	return &PlaybackRecord{
		RequestID: req.RequestID,
		SiteID:    req.SiteID,
		SessionID: req.SessionID,
		Bytes:     len(req.Audio),
		Volume:    volume,
		StartedAt: time.Now(),
	}
}

// Complete stamps the outcome and finish time
func (r *PlaybackRecord) Complete(status PlaybackStatus, err error) {
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = time.Now()
}

// Duration is the wall time spent on the request
func (r *PlaybackRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Validate validates the record data
func (r *PlaybackRecord) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.SiteID == "" {
		return errors.New("site_id is required")
	}

	switch r.Status {
	case PlaybackStatusPlayed, PlaybackStatusFailed, PlaybackStatusSuppressed:
	default:
		return errors.New("invalid playback status")
	}

	return nil
}
