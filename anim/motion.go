package anim

import (
	"math"
	"time"
)

// Screen-space bounds for the entity. Targets never leave these.
const (
	MinPosition = 0.05
	MaxPosition = 0.95
	MinScale    = 0.35
	MaxScale    = 2.5

	// MinSmoothTime is the shortest smoothing duration, in seconds.
	MinSmoothTime = 0.05
)

// MotionParams is the procedural-motion constant set for one state at one
// intensity. Values are combined only through Lerp.
type MotionParams struct {
	BaseScale   float32
	ScalePulse  float32
	PulseSpeed  float32
	DriftAmp    float32
	DriftSpeed  float32
	BounceMix   float32
	BounceSpeed float32
	BaseOffset  [2]float32
	SmoothTime  float32 // seconds
}

// motionTable is indexed by state ordinal.
var motionTable = [NumStates]MotionParams{
	Idle: {
		BaseScale: 1.0, ScalePulse: 0.05, PulseSpeed: 1.2,
		DriftAmp: 0.04, DriftSpeed: 0.25,
		BounceMix: 0.0, BounceSpeed: 0.1,
		BaseOffset: [2]float32{0.5, 0.5}, SmoothTime: 1.2,
	},
	Curious: {
		BaseScale: 1.05, ScalePulse: 0.08, PulseSpeed: 2.0,
		DriftAmp: 0.10, DriftSpeed: 0.45,
		BounceMix: 0.15, BounceSpeed: 0.18,
		BaseOffset: [2]float32{0.55, 0.45}, SmoothTime: 0.6,
	},
	Focused: {
		BaseScale: 0.9, ScalePulse: 0.03, PulseSpeed: 3.0,
		DriftAmp: 0.02, DriftSpeed: 0.15,
		BounceMix: 0.0, BounceSpeed: 0.1,
		BaseOffset: [2]float32{0.5, 0.5}, SmoothTime: 0.4,
	},
	Amused: {
		BaseScale: 1.15, ScalePulse: 0.12, PulseSpeed: 3.5,
		DriftAmp: 0.12, DriftSpeed: 0.6,
		BounceMix: 0.45, BounceSpeed: 0.35,
		BaseOffset: [2]float32{0.5, 0.55}, SmoothTime: 0.35,
	},
	Alert: {
		BaseScale: 1.25, ScalePulse: 0.10, PulseSpeed: 6.0,
		DriftAmp: 0.06, DriftSpeed: 0.9,
		BounceMix: 0.25, BounceSpeed: 0.5,
		BaseOffset: [2]float32{0.5, 0.45}, SmoothTime: 0.2,
	},
	Sleepy: {
		BaseScale: 0.8, ScalePulse: 0.06, PulseSpeed: 0.6,
		DriftAmp: 0.03, DriftSpeed: 0.1,
		BounceMix: 0.0, BounceSpeed: 0.05,
		BaseOffset: [2]float32{0.5, 0.6}, SmoothTime: 1.8,
	},
}

// ParamsFor returns the motion constants for state scaled by intensity.
// Unknown states use the Idle row. Intensity is clamped to [0,1].
func ParamsFor(state EntityState, intensity float32) MotionParams {
	p := motionTable[Idle]
	if state.Valid() {
		p = motionTable[state]
	}

	i := clamp(intensity, 0, 1)
	if math.IsNaN(float64(i)) {
		i = 0
	}
	// Each factor is lo + (1-lo)·i, written so that i == 1 is exactly 1.
	rest := 1 - i
	energy := 1 - 0.65*rest // 0.35 + 0.65·i
	p.DriftAmp *= energy
	p.ScalePulse *= 1 - 0.7*rest
	speed := 1 - 0.6*rest
	p.DriftSpeed *= speed
	p.BounceSpeed *= speed
	p.BounceMix *= 1 - 0.8*rest
	p.PulseSpeed *= 1 - 0.5*rest
	return p
}

// Lerp blends a and b field-wise. Lerp(a, b, 0) is a and Lerp(a, b, 1) is b
// exactly.
func Lerp(a, b MotionParams, t float32) MotionParams {
	return MotionParams{
		BaseScale:   lerp(a.BaseScale, b.BaseScale, t),
		ScalePulse:  lerp(a.ScalePulse, b.ScalePulse, t),
		PulseSpeed:  lerp(a.PulseSpeed, b.PulseSpeed, t),
		DriftAmp:    lerp(a.DriftAmp, b.DriftAmp, t),
		DriftSpeed:  lerp(a.DriftSpeed, b.DriftSpeed, t),
		BounceMix:   lerp(a.BounceMix, b.BounceMix, t),
		BounceSpeed: lerp(a.BounceSpeed, b.BounceSpeed, t),
		BaseOffset: [2]float32{
			lerp(a.BaseOffset[0], b.BaseOffset[0], t),
			lerp(a.BaseOffset[1], b.BaseOffset[1], t),
		},
		SmoothTime: lerp(a.SmoothTime, b.SmoothTime, t),
	}
}

func lerp(a, b, t float32) float32 {
	return a*(1-t) + b*t
}

// SmoothDuration returns the smoothing duration for p.
func (p MotionParams) SmoothDuration() time.Duration {
	s := max(float64(p.SmoothTime), MinSmoothTime)
	return time.Duration(s * float64(time.Second))
}

// TargetScale evaluates the pulsing scale at time t seconds.
func TargetScale(p MotionParams, t float32) float32 {
	tt := float64(t)
	ps := float64(p.PulseSpeed)
	pulse := float64(p.ScalePulse)
	s := float64(p.BaseScale) +
		pulse*math.Sin(tt*ps) +
		0.35*pulse*math.Sin(tt*(0.4*ps+0.7))
	return clamp(float32(s), MinScale, MaxScale)
}

// TargetPosition evaluates the normalized on-screen position at time t
// seconds: drift around the base offset, mixed toward a triangle-wave
// bounce path, clamped to [MinPosition, MaxPosition] on both axes.
func TargetPosition(p MotionParams, t float32) [2]float32 {
	tt := float64(t)
	ds := float64(p.DriftSpeed)
	amp := float64(p.DriftAmp)
	bs := float64(p.BounceSpeed)
	mix := float64(clamp(p.BounceMix, 0, 1))

	bx := float64(clamp(p.BaseOffset[0], 0.1, 0.9))
	by := float64(clamp(p.BaseOffset[1], 0.1, 0.9))

	dx := bx + amp*math.Sin(tt*ds)
	dy := by + 0.8*amp*math.Cos(tt*ds*1.13+1.7)

	px := 0.1 + 0.8*triangle(tt*bs)
	py := 0.1 + 0.8*triangle(tt*bs*0.87+0.37)

	x := dx*(1-mix) + px*mix
	y := dy*(1-mix) + py*mix
	return [2]float32{
		clampPosition(x),
		clampPosition(y),
	}
}

func clampPosition(v float64) float32 {
	if math.IsNaN(v) {
		return 0.5
	}
	return float32(max(MinPosition, min(MaxPosition, v)))
}

// triangle maps x to a 0..1..0 wave with period 1.
func triangle(x float64) float64 {
	f := x - math.Floor(x)
	return 1 - math.Abs(2*f-1)
}

// MotionModel smooths evaluated motion targets into the entity's position
// and scale.
//
// The procedural curve is followed as a chain of waypoints: whenever a
// smoothed channel settles, it is retargeted at the curve's value one
// smoothing duration ahead, so every segment is a full smoothstep.
type MotionModel struct {
	x, y, scale SmoothValue
	lastTick    time.Time
	ticked      bool
}

// NewMotionModel returns a model resting on the curve of p at time t.
func NewMotionModel(p MotionParams, t float32, now time.Time) MotionModel {
	pos := TargetPosition(p, t)
	return MotionModel{
		x:     NewSmoothValue(pos[0], now),
		y:     NewSmoothValue(pos[1], now),
		scale: NewSmoothValue(TargetScale(p, t), now),
	}
}

// Update advances the model to now, where t is the elapsed animation time
// in seconds. Calling Update again with the same now is a no-op.
func (m *MotionModel) Update(now time.Time, t float32, p MotionParams) {
	if m.ticked && now.Equal(m.lastTick) {
		return
	}
	m.ticked = true
	m.lastTick = now

	d := p.SmoothDuration()
	ahead := t + float32(d.Seconds())
	if m.x.Settled() && m.y.Settled() {
		pos := TargetPosition(p, ahead)
		m.x.SetTarget(pos[0], now)
		m.y.SetTarget(pos[1], now)
	}
	if m.scale.Settled() {
		m.scale.SetTarget(TargetScale(p, ahead), now)
	}
	m.x.Update(now, d)
	m.y.Update(now, d)
	m.scale.Update(now, d)
}

// Position returns the smoothed normalized position.
func (m *MotionModel) Position() [2]float32 {
	return [2]float32{m.x.Current(), m.y.Current()}
}

// Scale returns the smoothed scale.
func (m *MotionModel) Scale() float32 { return m.scale.Current() }
