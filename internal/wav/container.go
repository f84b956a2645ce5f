package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
)

// MetadataChunkID tags the RIFF chunk carrying per-clip JSON metadata
const MetadataChunkID = "meta"

const (
	formatPCM        = 0x0001
	formatExtensible = 0xFFFE

	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkMinSize = 16
	// streaming writers leave the data size unset
	unknownDataSize = 0xFFFFFFFF
)

// Format is the decoded fmt chunk
type Format struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// SampleWidth is the size of one sample in bytes
func (f Format) SampleWidth() int {
	return int(f.BitsPerSample) / 8
}

// Container is a parsed RIFF/WAVE file. Data and Metadata alias the
// buffer passed to Parse.
type Container struct {
	Format   Format
	Data     []byte
	Metadata []byte

	hasMetadata bool
}

// HasMetadata reports whether the metadata chunk was present
func (c *Container) HasMetadata() bool {
	return c.hasMetadata
}

// Parse decodes a RIFF/WAVE container holding integer PCM samples.
func Parse(b []byte) (*Container, error) {
	if len(b) < riffHeaderSize {
		return nil, fmt.Errorf("%w: container too short (%d bytes)", domain.ErrFormat, len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE container", domain.ErrFormat)
	}

	var (
		c        Container
		haveFmt  bool
		haveData bool
	)

	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(b) {
		id := string(b[offset : offset+4])
		size := binary.LittleEndian.Uint32(b[offset+4 : offset+8])
		start := offset + chunkHeaderSize

		end := start + int(size)
		if size == unknownDataSize || end > len(b) || end < start {
			if id != "data" {
				return nil, fmt.Errorf("%w: chunk %q overruns container", domain.ErrFormat, id)
			}
			// tolerate truncated or unsized data
			end = len(b)
		}
		body := b[start:end]

		switch id {
		case "fmt ":
			format, err := parseFormat(body)
			if err != nil {
				return nil, err
			}
			c.Format = format
			haveFmt = true
		case "data":
			c.Data = body
			haveData = true
		case MetadataChunkID:
			c.Metadata = body
			c.hasMetadata = true
		}

		offset = end
		if size%2 == 1 {
			offset++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", domain.ErrFormat)
	}
	if !haveData {
		return nil, fmt.Errorf("%w: missing data chunk", domain.ErrFormat)
	}

	return &c, nil
}

func parseFormat(body []byte) (Format, error) {
	if len(body) < fmtChunkMinSize {
		return Format{}, fmt.Errorf("%w: fmt chunk too short (%d bytes)", domain.ErrFormat, len(body))
	}

	f := Format{
		AudioFormat:   binary.LittleEndian.Uint16(body[0:2]),
		Channels:      binary.LittleEndian.Uint16(body[2:4]),
		SampleRate:    binary.LittleEndian.Uint32(body[4:8]),
		BitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
	}

	switch f.AudioFormat {
	case formatPCM:
	case formatExtensible:
		// cbSize(2) validBits(2) channelMask(4) then the sub-format GUID
		if len(body) < 26 || binary.LittleEndian.Uint16(body[24:26]) != formatPCM {
			return Format{}, fmt.Errorf("%w: unsupported extensible sub-format", domain.ErrFormat)
		}
	default:
		return Format{}, fmt.Errorf("%w: unsupported audio format 0x%04x", domain.ErrFormat, f.AudioFormat)
	}

	if f.Channels == 0 {
		return Format{}, fmt.Errorf("%w: zero channels", domain.ErrFormat)
	}
	switch f.BitsPerSample {
	case 8, 16, 24, 32:
	default:
		return Format{}, fmt.Errorf("%w: unsupported sample width %d bits", domain.ErrFormat, f.BitsPerSample)
	}

	return f, nil
}

// Encode writes a canonical PCM WAV with only fmt and data chunks.
func Encode(f Format, data []byte) []byte {
	width := uint32(f.SampleWidth())
	blockAlign := uint32(f.Channels) * width

	pad := len(data) % 2
	riffSize := 4 + (chunkHeaderSize + fmtChunkMinSize) + (chunkHeaderSize + len(data) + pad)

	var buf bytes.Buffer
	buf.Grow(riffHeaderSize + riffSize - 4)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(riffSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(fmtChunkMinSize))
	binary.Write(&buf, binary.LittleEndian, uint16(formatPCM))
	binary.Write(&buf, binary.LittleEndian, f.Channels)
	binary.Write(&buf, binary.LittleEndian, f.SampleRate)
	binary.Write(&buf, binary.LittleEndian, f.SampleRate*blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, f.BitsPerSample)

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)
	if pad == 1 {
		buf.WriteByte(0)
	}

	return buf.Bytes()
}
