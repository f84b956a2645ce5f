package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
)

// buildWAV assembles a RIFF/WAVE file with an optional metadata chunk placed
// between fmt and data.
func buildWAV(f Format, data []byte, meta []byte) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")

	width := uint32(f.BitsPerSample / 8)
	body.WriteString("fmt ")
	binary.Write(&body, binary.LittleEndian, uint32(16))
	binary.Write(&body, binary.LittleEndian, uint16(formatPCM))
	binary.Write(&body, binary.LittleEndian, f.Channels)
	binary.Write(&body, binary.LittleEndian, f.SampleRate)
	binary.Write(&body, binary.LittleEndian, f.SampleRate*uint32(f.Channels)*width)
	binary.Write(&body, binary.LittleEndian, uint16(uint32(f.Channels)*width))
	binary.Write(&body, binary.LittleEndian, f.BitsPerSample)

	if meta != nil {
		body.WriteString(MetadataChunkID)
		binary.Write(&body, binary.LittleEndian, uint32(len(meta)))
		body.Write(meta)
		if len(meta)%2 == 1 {
			body.WriteByte(0)
		}
	}

	body.WriteString("data")
	binary.Write(&body, binary.LittleEndian, uint32(len(data)))
	body.Write(data)

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func pcm16(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

func samples16(t *testing.T, container []byte) []int16 {
	t.Helper()
	parsed, err := Parse(container)
	if err != nil {
		t.Fatalf("Failed to parse output: %v", err)
	}
	out := make([]int16, len(parsed.Data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(parsed.Data[2*i:]))
	}
	return out
}

var mono16 = Format{AudioFormat: formatPCM, Channels: 1, SampleRate: 16000, BitsPerSample: 16}

func TestNormalize_UnityFactorIsByteIdentical(t *testing.T) {
	n := NewNormalizer(zaptest.NewLogger(t))

	tests := []struct {
		name   string
		input  []byte
		volume float64
	}{
		{"no metadata", buildWAV(mono16, pcm16(100, -100, 3), nil), 1.0},
		{"metadata without volume", buildWAV(mono16, pcm16(1, 2), []byte(`{"other":true}`)), 1.0},
		{"clip and global cancel out", buildWAV(mono16, pcm16(1, 2), []byte(`{"volume":2}`)), 0.5},
		{"not a wav", []byte("definitely not audio"), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(tt.input, tt.volume)
			if !bytes.Equal(got, tt.input) {
				t.Errorf("Expected byte-identical output")
			}
		})
	}
}

func TestNormalize_ScalesSamples(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	input := buildWAV(mono16, pcm16(1000, -1000, 3, -3, 0), nil)

	got := samples16(t, n.Normalize(input, 0.5))
	want := []int16{500, -500, 2, -2, 0}

	if len(got) != len(want) {
		t.Fatalf("Expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestNormalize_ZeroVolumeSilences(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	input := buildWAV(mono16, pcm16(32767, -32768, 1234), nil)

	for i, s := range samples16(t, n.Normalize(input, 0)) {
		if s != 0 {
			t.Errorf("Sample %d: expected silence, got %d", i, s)
		}
	}
}

func TestNormalize_UsesClipVolume(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	tests := []struct {
		name string
		meta string
		want int16
	}{
		{"half", `{"volume":0.5}`, 25},
		{"negative clip volume is zero", `{"volume":-2}`, 0},
		{"malformed metadata defaults to one", `{"volume":`, 50},
		{"non-numeric volume defaults to one", `{"volume":"loud"}`, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := buildWAV(mono16, pcm16(100), []byte(tt.meta))
			got := samples16(t, n.Normalize(input, 0.5))
			if got[0] != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got[0])
			}
		})
	}
}

func TestNormalize_DropsMetadataAndPreservesFormat(t *testing.T) {
	n := NewNormalizer(zap.NewNop())
	stereo := Format{AudioFormat: formatPCM, Channels: 2, SampleRate: 22050, BitsPerSample: 16}
	input := buildWAV(stereo, pcm16(10, 20, 30, 40), []byte(`{"volume":0.5}`))

	parsed, err := Parse(n.Normalize(input, 1.0))
	if err != nil {
		t.Fatalf("Failed to parse output: %v", err)
	}

	if parsed.Format != stereo {
		t.Errorf("Expected format %+v, got %+v", stereo, parsed.Format)
	}
	if parsed.HasMetadata() {
		t.Error("Rewritten container should not carry the metadata chunk")
	}
	if len(parsed.Data) != 8 {
		t.Errorf("Expected 8 data bytes, got %d", len(parsed.Data))
	}
}

func TestNormalize_CorruptContainerReturnedUnchanged(t *testing.T) {
	n := NewNormalizer(zaptest.NewLogger(t))

	truncated := buildWAV(mono16, pcm16(1, 2, 3), nil)[:20]
	noData := []byte("RIFF\x04\x00\x00\x00WAVE")

	for _, input := range [][]byte{truncated, noData, nil} {
		got := n.Normalize(input, 0.25)
		if !bytes.Equal(got, input) {
			t.Errorf("Expected corrupt input to be returned unchanged")
		}
	}
}

func TestScale_SampleWidths(t *testing.T) {
	tests := []struct {
		name   string
		bits   int
		input  []byte
		factor float64
		want   []byte
	}{
		{
			name:   "8-bit unsigned halves around midpoint",
			bits:   8,
			input:  []byte{228, 28, 128},
			factor: 0.5,
			want:   []byte{178, 78, 128},
		},
		{
			name:   "8-bit clamps",
			bits:   8,
			input:  []byte{255, 0},
			factor: 4,
			want:   []byte{255, 0},
		},
		{
			name:   "16-bit clamps instead of wrapping",
			bits:   16,
			input:  pcm16(20000, -20000),
			factor: 2,
			want:   pcm16(math.MaxInt16, math.MinInt16),
		},
		{
			name:   "24-bit negative sample",
			bits:   24,
			input:  []byte{0x00, 0x00, 0xFF, 0x10, 0x00, 0x00}, // -65536, 16
			factor: 0.5,
			want:   []byte{0x00, 0x80, 0xFF, 0x08, 0x00, 0x00}, // -32768, 8
		},
		{
			name:   "32-bit doubles",
			bits:   32,
			input:  []byte{0x10, 0x00, 0x00, 0x00, 0xF0, 0xFF, 0xFF, 0xFF}, // 16, -16
			factor: 2,
			want:   []byte{0x20, 0x00, 0x00, 0x00, 0xE0, 0xFF, 0xFF, 0xFF}, // 32, -32
		},
		{
			name:   "trailing partial sample copied",
			bits:   16,
			input:  append(pcm16(100), 0x7F),
			factor: 0.5,
			want:   append(pcm16(50), 0x7F),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Scale(tt.input, tt.bits, tt.factor)
			if err != nil {
				t.Fatalf("Scale() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Scale() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScale_UnsupportedWidth(t *testing.T) {
	_, err := Scale([]byte{1, 2, 3}, 12, 0.5)
	if !errors.Is(err, domain.ErrFormat) {
		t.Errorf("Expected ErrFormat, got %v", err)
	}
}

func TestEffectiveFactor(t *testing.T) {
	tests := []struct {
		clip, global, want float64
	}{
		{1, 1, 1},
		{0.5, 2, 1},
		{-1, 1, 0},
		{1, -1, 0},
		{math.NaN(), 1, 0},
		{0.25, 0.5, 0.125},
	}

	for _, tt := range tests {
		if got := EffectiveFactor(tt.clip, tt.global); got != tt.want {
			t.Errorf("EffectiveFactor(%v, %v) = %v, want %v", tt.clip, tt.global, got, tt.want)
		}
	}
}

func TestParse_Extensible(t *testing.T) {
	input := buildWAV(mono16, pcm16(1), nil)

	// rewrite as WAVE_FORMAT_EXTENSIBLE with a PCM sub-format
	var fmtBody bytes.Buffer
	fmtBody.Write(input[20:36])
	binary.Write(&fmtBody, binary.LittleEndian, uint16(22)) // cbSize
	binary.Write(&fmtBody, binary.LittleEndian, uint16(16)) // valid bits
	binary.Write(&fmtBody, binary.LittleEndian, uint32(4))  // channel mask
	binary.Write(&fmtBody, binary.LittleEndian, uint16(formatPCM))
	fmtBody.Write(make([]byte, 14))
	fmtBytes := fmtBody.Bytes()
	binary.LittleEndian.PutUint16(fmtBytes[0:2], formatExtensible)

	var body bytes.Buffer
	body.WriteString("WAVE")
	body.WriteString("fmt ")
	binary.Write(&body, binary.LittleEndian, uint32(len(fmtBytes)))
	body.Write(fmtBytes)
	body.Write(input[36:])

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())

	parsed, err := Parse(out.Bytes())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Format.AudioFormat != formatExtensible || parsed.Format.BitsPerSample != 16 {
		t.Errorf("Unexpected format %+v", parsed.Format)
	}
}

func TestParse_RejectsCompressedFormats(t *testing.T) {
	input := buildWAV(mono16, pcm16(1), nil)
	binary.LittleEndian.PutUint16(input[20:22], 0x0055) // MP3

	if _, err := Parse(input); !errors.Is(err, domain.ErrFormat) {
		t.Errorf("Expected ErrFormat, got %v", err)
	}
}
