package entities

// DeviceMode is the direction of an audio device
type DeviceMode string

const (
	DeviceModeInput  DeviceMode = "input"
	DeviceModeOutput DeviceMode = "output"
)

// AudioDevice describes one output device reported by the list command.
// Devices are built fresh per query and never persisted.
type AudioDevice struct {
	Mode        DeviceMode `json:"mode"`
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsDefault   bool       `json:"is_default"`
}

// IncludesOutput reports whether a mode filter lets output devices through.
// An empty filter means all modes.
func IncludesOutput(modes []DeviceMode) bool {
	if len(modes) == 0 {
		return true
	}
	for _, mode := range modes {
		if mode == DeviceModeOutput {
			return true
		}
	}
	return false
}
