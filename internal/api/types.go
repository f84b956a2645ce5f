package api

import "github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"

// StateResponse reports the audio output state
type StateResponse struct {
	Volume  float64  `json:"volume"`
	Enabled bool     `json:"enabled"`
	SiteIDs []string `json:"site_ids"`
	Clients int      `json:"clients"`
}

// PlayResponse acknowledges a queued playback request
type PlayResponse struct {
	RequestID string `json:"request_id"`
	SiteID    string `json:"site_id"`
	SessionID string `json:"session_id,omitempty"`
	Topic     string `json:"topic"`
}

// PlaybacksResponse lists recent playback history
type PlaybacksResponse struct {
	Playbacks []*entities.PlaybackRecord `json:"playbacks"`
	Count     int                        `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
