package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/entities"
	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain/repositories"
)

// defaultDeviceMarker is appended to the description of the first device
const defaultDeviceMarker = "*"

// DeviceService enumerates output devices
type DeviceService struct {
	lister repositories.DeviceLister
	logger *zap.Logger
}

// NewDeviceService creates a new device service. lister may be nil when no
// list command is configured.
func NewDeviceService(lister repositories.DeviceLister, logger *zap.Logger) *DeviceService {
	return &DeviceService{lister: lister, logger: logger}
}

// Enumerate lists output devices. A mode filter that excludes output
// yields no devices without running the lister. When the lister fails, the
// devices parsed from its partial output are returned with the error.
func (s *DeviceService) Enumerate(ctx context.Context, modes []entities.DeviceMode) ([]entities.AudioDevice, error) {
	if !entities.IncludesOutput(modes) {
		return nil, nil
	}

	if s.lister == nil {
		return nil, fmt.Errorf("%w: list command is required to get devices", domain.ErrConfiguration)
	}

	output, err := s.lister.ListDevices(ctx)
	devices := ParseDeviceList(output)
	if err != nil {
		return devices, err
	}

	s.logger.Debug("Listed output devices", zap.Int("count", len(devices)))
	return devices, nil
}

// ParseDeviceList parses arecord/aplay -L style output. An unindented line
// names a device; indented lines that follow describe it, the last one
// winning. The first device is reported as the system default.
func ParseDeviceList(output string) []entities.AudioDevice {
	var (
		devices []entities.AudioDevice
		current *entities.AudioDevice
	)

	finalize := func() {
		if current == nil {
			return
		}
		if len(devices) == 0 {
			current.IsDefault = true
			current.Description += defaultDeviceMarker
		}
		devices = append(devices, *current)
		current = nil
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}

		if line[0] == ' ' || line[0] == '\t' {
			if current != nil {
				current.Description = strings.TrimSpace(line)
			}
			continue
		}

		finalize()
		name := strings.TrimSpace(line)
		current = &entities.AudioDevice{
			Mode: entities.DeviceModeOutput,
			ID:   name,
			Name: name,
		}
	}
	finalize()

	return devices
}
