package anim

import "time"

// CommitThreshold is the blend progress at or above which a transition in
// flight is treated as arrived when the target changes again.
const CommitThreshold = 0.5

// StateBlend models a transition between two discrete states as a 0..1
// progress scalar. Only one transition is in flight at a time.
type StateBlend struct {
	current EntityState
	target  EntityState
	blend   SmoothValue
}

// NewStateBlend returns an idle machine resting in state.
func NewStateBlend(state EntityState, now time.Time) StateBlend {
	return StateBlend{
		current: state,
		target:  state,
		blend:   NewSmoothValue(0, now),
	}
}

// SetTarget retargets the machine.
//
// A transition that is at least CommitThreshold complete is committed first,
// so current may advance to the old target before the new one is adopted.
// A rapid burst of retargets can therefore move current more than one step
// between two Update calls.
func (b *StateBlend) SetTarget(next EntityState, now time.Time) {
	if next == b.target {
		return
	}
	if b.current != b.target && b.blend.Current() >= CommitThreshold {
		b.current = b.target
	}
	b.target = next
	b.blend.Reset(0, now)
	if b.current != next {
		b.blend.SetTarget(1, now)
	}
}

// Update advances the blend and lands on the target when it completes.
func (b *StateBlend) Update(now time.Time, duration time.Duration) {
	if b.current == b.target {
		return
	}
	b.blend.Update(now, duration)
	if b.blend.Current() >= 1 {
		b.current = b.target
		b.blend.Reset(0, now)
	}
}

// BlendFactor returns transition progress in [0,1]. It is 0 when idle.
func (b *StateBlend) BlendFactor() float32 {
	if b.current == b.target {
		return 0
	}
	return clamp(b.blend.Current(), 0, 1)
}

// Current returns the state being left, or the resting state when idle.
func (b *StateBlend) Current() EntityState { return b.current }

// Target returns the state being approached.
func (b *StateBlend) Target() EntityState { return b.target }

// Transitioning reports whether a transition is in flight.
func (b *StateBlend) Transitioning() bool { return b.current != b.target }
