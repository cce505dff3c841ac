package anim

import (
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// SnapDuration is the longest duration treated as instantaneous by
// [SmoothValue.Update].
const SnapDuration = 100 * time.Microsecond

// Smoothstep is the cubic ease 3t²-2t³ in gween's TweenFunc form.
var Smoothstep ease.TweenFunc = func(t, b, c, d float32) float32 {
	x := t / d
	return b + c*x*x*(3-2*x)
}

// SmoothValue is a scalar interpolated toward its target with smoothstep.
//
// The interpolation is keyed on wall-clock time rather than accumulated
// frame deltas: Update computes progress from the time SetTarget was called,
// so dropped or late frames never change the curve.
//
// The zero value is a settled value of 0 and is ready to use.
type SmoothValue struct {
	current   float32
	target    float32
	startedAt time.Time

	// tween holds the transition in flight, normalized to a unit duration.
	// It is nil once the value has settled.
	tween *gween.Tween
}

// NewSmoothValue returns a settled value.
func NewSmoothValue(value float32, now time.Time) SmoothValue {
	return SmoothValue{
		current:   value,
		target:    value,
		startedAt: now,
	}
}

// SetTarget starts a transition from the current value toward target.
// Setting the target it already has is a no-op, so redundant input never
// restarts a transition in flight.
func (v *SmoothValue) SetTarget(target float32, now time.Time) {
	if math.Float32bits(target) == math.Float32bits(v.target) {
		return
	}
	v.target = target
	v.startedAt = now
	v.tween = gween.New(v.current, target, 1, Smoothstep)
}

// Update advances the value to now. A duration of SnapDuration or less
// jumps straight to the target.
func (v *SmoothValue) Update(now time.Time, duration time.Duration) {
	if v.tween == nil {
		return
	}
	if duration <= SnapDuration {
		v.current = v.target
		v.tween = nil
		return
	}

	// The tween clamps progress and returns its end value exactly once
	// finished.
	var done bool
	v.current, done = v.tween.Set(float32(now.Sub(v.startedAt).Seconds() / duration.Seconds()))
	if done {
		v.tween = nil
	}
}

// Reset jumps to value with no transition in flight.
func (v *SmoothValue) Reset(value float32, now time.Time) {
	*v = NewSmoothValue(value, now)
}

// Current returns the interpolated value.
func (v *SmoothValue) Current() float32 { return v.current }

// Target returns the value being approached.
func (v *SmoothValue) Target() float32 { return v.target }

// Settled reports whether the value has reached its target.
func (v *SmoothValue) Settled() bool { return v.current == v.target }

func clamp(x, lo, hi float32) float32 {
	return max(lo, min(hi, x))
}
