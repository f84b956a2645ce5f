package websocket

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
)

func TestBinaryFrame(t *testing.T) {
	audio := []byte("RIFF\x00\x00\x00\x00WAVE")
	env := domain.Envelope{
		Topic:     domain.PlayBytesTopic("kitchen", "req-1"),
		SessionID: "session-1",
		Payload:   audio,
	}

	frame, err := EncodeBinaryFrame(env)
	if err != nil {
		t.Fatalf("EncodeBinaryFrame() error = %v", err)
	}

	decoded, err := DecodeBinaryFrame(frame)
	if err != nil {
		t.Fatalf("DecodeBinaryFrame() error = %v", err)
	}
	if decoded.Topic != env.Topic || decoded.SessionID != "session-1" {
		t.Errorf("Unexpected header: %+v", decoded)
	}
	if !bytes.Equal(decoded.Payload, audio) {
		t.Errorf("Payload changed: %q", decoded.Payload)
	}
}

func TestDecodeBinaryFrame_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{name: "empty", frame: nil},
		{name: "one byte", frame: []byte{0}},
		{name: "truncated header", frame: []byte{0, 10, '{'}},
		{name: "bad json", frame: []byte{0, 1, '{'}},
		{name: "missing topic", frame: append([]byte{0, 2}, []byte("{}")...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBinaryFrame(tt.frame)
			if !errors.Is(err, domain.ErrProtocol) {
				t.Errorf("Expected ErrProtocol, got %v", err)
			}
		})
	}
}

func TestTextFrame(t *testing.T) {
	frame, err := EncodeTextFrame(domain.PlayFinishedTopic("kitchen"), "session-1",
		domain.AudioPlayFinished{ID: "req-1", SessionID: "session-1"})
	if err != nil {
		t.Fatalf("EncodeTextFrame() error = %v", err)
	}

	env, err := DecodeTextFrame(frame)
	if err != nil {
		t.Fatalf("DecodeTextFrame() error = %v", err)
	}
	if env.Topic != "hermes/audioServer/kitchen/playFinished" {
		t.Errorf("Unexpected topic %s", env.Topic)
	}

	var finished domain.AudioPlayFinished
	if err := json.Unmarshal(env.Payload, &finished); err != nil {
		t.Fatalf("Payload is not JSON: %v", err)
	}
	if finished.ID != "req-1" {
		t.Errorf("Unexpected payload %+v", finished)
	}
}

func TestDecodeTextFrame_NullPayload(t *testing.T) {
	env, err := DecodeTextFrame([]byte(`{"topic":"hermes/audioServer/toggleOff","payload":null}`))
	if err != nil {
		t.Fatalf("DecodeTextFrame() error = %v", err)
	}
	if env.Payload != nil {
		t.Errorf("Expected nil payload, got %q", env.Payload)
	}

	if _, err := DecodeTextFrame([]byte(`{"payload":{}}`)); !errors.Is(err, domain.ErrProtocol) {
		t.Errorf("Expected ErrProtocol for missing topic, got %v", err)
	}
}
