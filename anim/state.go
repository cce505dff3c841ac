package anim

import (
	"fmt"
	"strings"
)

// EntityState is the activity state of the entity. Ordinals are stable and
// shared with the GPU stage programs.
type EntityState uint32

const (
	Idle EntityState = iota
	Curious
	Focused
	Amused
	Alert
	Sleepy
)

// NumStates is the number of defined entity states.
const NumStates = 6

var stateNames = [NumStates]string{
	Idle:    "idle",
	Curious: "curious",
	Focused: "focused",
	Amused:  "amused",
	Alert:   "alert",
	Sleepy:  "sleepy",
}

// String returns the lower-case wire name of the state.
func (s EntityState) String() string {
	if s.Valid() {
		return stateNames[s]
	}
	return fmt.Sprintf("EntityState(%d)", uint32(s))
}

// Valid reports whether s is one of the defined states.
func (s EntityState) Valid() bool { return s < NumStates }

// Ordinal returns the ordinal passed to the GPU, clamped to the last state.
func (s EntityState) Ordinal() uint32 { return min(uint32(s), NumStates-1) }

// StateFromOrdinal converts an ordinal to a state, clamping out-of-range
// values to Sleepy.
func StateFromOrdinal(v uint32) EntityState {
	return EntityState(min(v, NumStates-1))
}

// ParseEntityState parses a wire name. Matching is case-insensitive and
// ignores surrounding whitespace.
func ParseEntityState(name string) (EntityState, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range stateNames {
		if s == n {
			return EntityState(i), nil
		}
	}
	return Idle, fmt.Errorf("anim: unknown entity state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s EntityState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("anim: invalid entity state %d", uint32(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *EntityState) UnmarshalText(text []byte) error {
	v, err := ParseEntityState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
