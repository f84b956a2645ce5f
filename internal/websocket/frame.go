package websocket

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
)

// frameHeader precedes the raw payload of a binary frame
type frameHeader struct {
	Topic     string `json:"topic"`
	SessionID string `json:"sessionId,omitempty"`
}

// EncodeTextFrame builds a text frame carrying a JSON payload
func EncodeTextFrame(topic, sessionID string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}

	frame, err := json.Marshal(domain.TextEnvelope{
		Topic:     topic,
		SessionID: sessionID,
		Payload:   raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return frame, nil
}

// DecodeTextFrame parses a text frame into an envelope. The envelope
// payload is the raw JSON of the payload field.
func DecodeTextFrame(frame []byte) (domain.Envelope, error) {
	var text domain.TextEnvelope
	if err := json.Unmarshal(frame, &text); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: invalid text frame: %v", domain.ErrProtocol, err)
	}
	if text.Topic == "" {
		return domain.Envelope{}, fmt.Errorf("%w: text frame without topic", domain.ErrProtocol)
	}

	env := domain.Envelope{Topic: text.Topic, SessionID: text.SessionID}
	if len(text.Payload) > 0 && string(text.Payload) != "null" {
		env.Payload = []byte(text.Payload)
	}
	return env, nil
}

// EncodeBinaryFrame builds a binary frame: a big-endian uint16 header
// length, the JSON header, then the raw payload.
func EncodeBinaryFrame(env domain.Envelope) ([]byte, error) {
	header, err := json.Marshal(frameHeader{Topic: env.Topic, SessionID: env.SessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame header: %w", err)
	}
	if len(header) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: frame header too large: %d bytes", domain.ErrProtocol, len(header))
	}

	frame := make([]byte, 2+len(header)+len(env.Payload))
	binary.BigEndian.PutUint16(frame, uint16(len(header)))
	copy(frame[2:], header)
	copy(frame[2+len(header):], env.Payload)
	return frame, nil
}

// DecodeBinaryFrame parses a frame built by EncodeBinaryFrame
func DecodeBinaryFrame(frame []byte) (domain.Envelope, error) {
	if len(frame) < 2 {
		return domain.Envelope{}, fmt.Errorf("%w: binary frame too short", domain.ErrProtocol)
	}

	size := int(binary.BigEndian.Uint16(frame))
	if len(frame) < 2+size {
		return domain.Envelope{}, fmt.Errorf("%w: binary frame header truncated", domain.ErrProtocol)
	}

	var header frameHeader
	if err := json.Unmarshal(frame[2:2+size], &header); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: invalid frame header: %v", domain.ErrProtocol, err)
	}
	if header.Topic == "" {
		return domain.Envelope{}, fmt.Errorf("%w: binary frame without topic", domain.ErrProtocol)
	}

	return domain.Envelope{
		Topic:     header.Topic,
		SessionID: header.SessionID,
		Payload:   frame[2+size:],
	}, nil
}
