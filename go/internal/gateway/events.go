package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/casino/go/internal/game"
)

// Envelope is the wire form of every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode serializes an outbound event.
func Encode(ev game.Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", ev.Type, err)
	}
	return json.Marshal(Envelope{Type: string(ev.Type), Payload: payload})
}

// DecodeEnvelope parses an inbound message.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, game.Invalid("message is not a valid envelope")
	}
	if env.Type == "" {
		return Envelope{}, game.Invalid("message type is required")
	}
	return env, nil
}
