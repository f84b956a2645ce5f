package wav

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
)

// Metadata is the JSON document stored in the metadata chunk
type Metadata struct {
	Volume *float64 `json:"volume,omitempty"`
}

// ClipVolume reads the volume hint from a metadata chunk body.
// A missing field yields 1.0.
func ClipVolume(body []byte) (float64, error) {
	var meta Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return 1.0, fmt.Errorf("%w: invalid metadata chunk: %v", domain.ErrFormat, err)
	}
	if meta.Volume == nil {
		return 1.0, nil
	}
	return *meta.Volume, nil
}

// EffectiveFactor combines clip and global volume. Negative and NaN inputs
// count as zero.
func EffectiveFactor(clipVolume, globalVolume float64) float64 {
	return nonNegative(clipVolume) * nonNegative(globalVolume)
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

// Scale multiplies every sample in data by factor, rounding to the nearest
// integer and saturating at the limits of the sample width. 8-bit samples
// are unsigned with a 128 offset, wider samples are little-endian signed.
// Trailing bytes that do not form a whole sample are copied unchanged.
func Scale(data []byte, bitsPerSample int, factor float64) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)

	switch bitsPerSample {
	case 8:
		for i := range out {
			v := scaleSample(int64(out[i])-128, factor, math.MinInt8, math.MaxInt8)
			out[i] = byte(v + 128)
		}
	case 16:
		for i := 0; i+2 <= len(out); i += 2 {
			s := int16(binary.LittleEndian.Uint16(out[i:]))
			v := scaleSample(int64(s), factor, math.MinInt16, math.MaxInt16)
			binary.LittleEndian.PutUint16(out[i:], uint16(int16(v)))
		}
	case 24:
		const min24, max24 = -1 << 23, 1<<23 - 1
		for i := 0; i+3 <= len(out); i += 3 {
			u := uint32(out[i]) | uint32(out[i+1])<<8 | uint32(out[i+2])<<16
			s := int32(u<<8) >> 8
			v := uint32(int32(scaleSample(int64(s), factor, min24, max24)))
			out[i], out[i+1], out[i+2] = byte(v), byte(v>>8), byte(v>>16)
		}
	case 32:
		for i := 0; i+4 <= len(out); i += 4 {
			s := int32(binary.LittleEndian.Uint32(out[i:]))
			v := scaleSample(int64(s), factor, math.MinInt32, math.MaxInt32)
			binary.LittleEndian.PutUint32(out[i:], uint32(int32(v)))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported sample width %d bits", domain.ErrFormat, bitsPerSample)
	}

	return out, nil
}

func scaleSample(sample int64, factor float64, min, max int64) int64 {
	v := math.Round(float64(sample) * factor)
	if v >= float64(max) {
		return max
	}
	if v <= float64(min) {
		return min
	}
	return int64(v)
}

// Normalizer applies clip and global volume to WAV payloads
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a new volume normalizer
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize rescales the samples of container by the clip volume found in
// its metadata chunk times globalVolume. The input is returned unchanged
// when the combined factor is exactly 1.0 or when the container cannot be
// processed; failures are logged and never returned.
func (n *Normalizer) Normalize(container []byte, globalVolume float64) []byte {
	parsed, parseErr := Parse(container)

	clipVolume := 1.0
	if parseErr == nil && parsed.HasMetadata() {
		volume, err := ClipVolume(parsed.Metadata)
		if err != nil {
			n.logger.Warn("Ignoring audio metadata", zap.Error(err))
		} else {
			clipVolume = volume
		}
	}

	factor := EffectiveFactor(clipVolume, globalVolume)
	if factor == 1.0 {
		return container
	}

	if parseErr != nil {
		n.logger.Warn("Cannot adjust volume, playing audio unchanged",
			zap.Float64("factor", factor),
			zap.Error(parseErr))
		return container
	}

	scaled, err := Scale(parsed.Data, int(parsed.Format.BitsPerSample), factor)
	if err != nil {
		n.logger.Warn("Cannot adjust volume, playing audio unchanged",
			zap.Float64("factor", factor),
			zap.Error(err))
		return container
	}

	n.logger.Debug("Adjusted audio volume",
		zap.Float64("clipVolume", clipVolume),
		zap.Float64("globalVolume", globalVolume),
		zap.Float64("factor", factor),
		zap.Int("bytes", len(parsed.Data)))

	return Encode(parsed.Format, scaled)
}
