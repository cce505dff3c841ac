// Package ipc implements the local control channel: a newline-delimited
// JSON stream over a Unix socket carrying state and intensity updates.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gogpu/sentinel/anim"
)

// TypeState is the only message type understood today.
const TypeState = "state"

// Message is a decoded control message.
type Message struct {
	Type      string
	State     anim.EntityState
	Intensity float32 // clamped to [0,1]
	Timestamp uint64  // sender clock in milliseconds, 0 if absent
}

// wireMessage is the JSON shape of one line.
type wireMessage struct {
	Type      string   `json:"type"`
	State     string   `json:"state"`
	Intensity *float64 `json:"intensity"`
	Timestamp uint64   `json:"timestamp,omitempty"`
}

var (
	errUnknownType      = errors.New("ipc: unknown message type")
	errMissingIntensity = errors.New("ipc: missing intensity")
)

func parseMessage(line []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(line, &w); err != nil {
		return Message{}, fmt.Errorf("ipc: malformed message: %w", err)
	}
	if w.Type != TypeState {
		return Message{}, fmt.Errorf("%w %q", errUnknownType, w.Type)
	}
	state, err := anim.ParseEntityState(w.State)
	if err != nil {
		return Message{}, err
	}
	if w.Intensity == nil {
		return Message{}, errMissingIntensity
	}
	return Message{
		Type:      TypeState,
		State:     state,
		Intensity: float32(max(0, min(1, *w.Intensity))),
		Timestamp: w.Timestamp,
	}, nil
}

// MarshalLine encodes m as one newline-terminated wire record.
func (m Message) MarshalLine() ([]byte, error) {
	typ := m.Type
	if typ == "" {
		typ = TypeState
	}
	in := float64(m.Intensity)
	b, err := json.Marshal(wireMessage{
		Type:      typ,
		State:     m.State.String(),
		Intensity: &in,
		Timestamp: m.Timestamp,
	})
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
