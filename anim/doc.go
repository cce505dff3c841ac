// Package anim turns discrete entity states and numeric targets into
// continuous, interruption-safe motion.
//
// The package is built from three layers:
//
//   - [SmoothValue]: a scalar eased toward its target with smoothstep over a
//     caller-supplied duration.
//   - [StateBlend]: a discrete current/target state pair plus a 0..1 blend
//     progress driven by a SmoothValue.
//   - [MotionModel]: per-state procedural motion ([MotionParams]) evaluated
//     in the time domain and smoothed into an on-screen position and scale.
//
// All types are plain values owned by a single goroutine. Time is passed in
// explicitly so callers can drive the package from a fake clock.
package anim
