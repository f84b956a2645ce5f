package domain

import "errors"

// Error taxonomy shared by the adapter. Callers wrap these with
// fmt.Errorf("...: %w", Err...) and match them with errors.Is.
var (
	// ErrConfiguration reports a missing or invalid external command.
	ErrConfiguration = errors.New("configuration error")

	// ErrExternalProcess reports a spawn failure or a non-zero exit status.
	ErrExternalProcess = errors.New("external process error")

	// ErrPlaybackTimeout reports a player killed after the configured timeout.
	ErrPlaybackTimeout = errors.New("playback timed out")

	// ErrFormat reports a malformed audio container or metadata chunk.
	ErrFormat = errors.New("format error")

	// ErrProtocol reports a bus message with an unknown kind or missing
	// correlation fields.
	ErrProtocol = errors.New("protocol error")
)
