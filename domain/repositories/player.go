package repositories

import "context"

// AudioPlayer plays a WAV container on the local output device.
// Play blocks until playback has finished.
type AudioPlayer interface {
	Play(ctx context.Context, wav []byte) error
}

// DeviceLister returns the raw text listing of available output devices
type DeviceLister interface {
	ListDevices(ctx context.Context) (string, error)
}
