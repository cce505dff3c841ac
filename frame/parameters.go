// Package frame builds the per-frame parameter block consumed by the
// feedback pipeline's stage programs.
//
// A [Parameters] value is an immutable snapshot: it is built fresh every
// frame with every field clamped to its legal range, encoded to the 80-byte
// uniform layout with [Parameters.Bytes], and then discarded.
package frame

import (
	"encoding/binary"
	"math"
)

// ParametersSize is the size in bytes of the encoded uniform block.
const ParametersSize = 80

// MaxStateOrdinal is the highest state ordinal the stage programs accept.
const MaxStateOrdinal = 5

// Parameters is the uniform block for one frame. Field order matches the
// binary layout.
type Parameters struct {
	Time         float32
	Intensity    float32
	BlendFactor  float32
	Scale        float32
	CurrentState uint32
	TargetState  uint32
	FrameCount   uint32
	Resolution   [2]float32
	Position     [2]float32
	Tuning
}

// Input carries the unclamped values for Build.
type Input struct {
	Time         float32
	Intensity    float32
	BlendFactor  float32
	Scale        float32
	CurrentState uint32
	TargetState  uint32
	FrameCount   uint32
	Width        uint32
	Height       uint32
	Position     [2]float32
	Tuning       Tuning
}

// Build clamps in into a Parameters snapshot.
func Build(in Input) Parameters {
	return Parameters{
		Time:         in.Time,
		Intensity:    clamp(in.Intensity, 0, 1),
		BlendFactor:  clamp(in.BlendFactor, 0, 1),
		Scale:        clamp(in.Scale, 0.35, 2.5),
		CurrentState: min(in.CurrentState, MaxStateOrdinal),
		TargetState:  min(in.TargetState, MaxStateOrdinal),
		FrameCount:   in.FrameCount,
		Resolution:   [2]float32{float32(in.Width), float32(in.Height)},
		Position: [2]float32{
			clamp(in.Position[0], 0, 1),
			clamp(in.Position[1], 0, 1),
		},
		Tuning: in.Tuning.Clamp(),
	}
}

// Bytes encodes p in the uniform layout.
func (p *Parameters) Bytes() []byte {
	return p.AppendBytes(make([]byte, 0, ParametersSize))
}

// AppendBytes appends the encoded uniform block to b.
func (p *Parameters) AppendBytes(b []byte) []byte {
	le := binary.LittleEndian
	f := func(b []byte, v float32) []byte { return le.AppendUint32(b, math.Float32bits(v)) }

	b = f(b, p.Time)
	b = f(b, p.Intensity)
	b = f(b, p.BlendFactor)
	b = f(b, p.Scale)
	b = le.AppendUint32(b, p.CurrentState)
	b = le.AppendUint32(b, p.TargetState)
	b = le.AppendUint32(b, p.FrameCount)
	b = le.AppendUint32(b, 0) // pad to 8-byte alignment for resolution
	b = f(b, p.Resolution[0])
	b = f(b, p.Resolution[1])
	b = f(b, p.Position[0])
	b = f(b, p.Position[1])
	b = f(b, p.Damping)
	b = f(b, p.NoiseStrength)
	b = f(b, p.Attraction)
	b = f(b, p.Speed)
	b = f(b, p.TrailFade)
	b = f(b, p.GlowIntensity)
	b = f(b, p.ColorShift)
	b = f(b, 0) // pad to 16-byte struct size
	return b
}

func clamp(x, lo, hi float32) float32 {
	if math.IsNaN(float64(x)) {
		return lo
	}
	return max(lo, min(hi, x))
}
