// Package gpu implements the overlay's feedback render pipeline on the
// gogpu WebGPU HAL.
//
// # Frame structure
//
// Each frame encodes three render passes into one command buffer:
//
//  1. Simulation: reads the previous state texture and writes the next one.
//     The state pair is 256x128 RGBA32Float, one particle per texel, and is
//     never resized.
//  2. Render: reads the state written this frame and the previous render
//     output, and writes the next render output. The render pair is
//     RGBA32Float at surface size.
//  3. Present: draws the render output onto the acquired surface texture
//     with alpha blending.
//
// All passes clear to black and draw a single fullscreen triangle. Which
// texture of each pair is written is selected by the parity of the frame
// counter, so a pass never samples the texture it writes.
//
// # Errors
//
// Surface acquisition failures are classified with errors.Is against the
// hal sentinels. Outdated and lost surfaces are reconfigured and the frame
// is skipped; timeouts skip the frame; device loss and out-of-memory are
// returned wrapped in ErrFatal.
//
// # Shaders
//
// The WGSL stage programs are embedded with go:embed. ValidateShaders
// compiles them with naga as a startup self-check.
package gpu
