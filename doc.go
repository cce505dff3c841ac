// Package sentinel drives an animated overlay entity whose appearance
// follows an externally supplied activity state and intensity.
//
// # Overview
//
// An Overlay ties three pieces together on one goroutine:
//
//   - the control channel (package ipc), which streams newline-delimited
//     JSON state messages over a local Unix socket and reconnects at 1 Hz;
//   - the animation model (package anim), which turns discrete state
//     changes into smooth, interruption-safe transitions and procedural
//     motion;
//   - a Renderer, normally the three-stage feedback pipeline from
//     internal/gpu, which consumes one frame.Parameters block per frame.
//
// # Quick Start
//
//	cfg, err := config.Load(os.Getenv)
//	if err != nil {
//	    return err
//	}
//	o := sentinel.New(cfg, pipeline)
//	defer o.Close()
//
//	events := make(chan sentinel.Event, 4)
//	events <- sentinel.SurfaceReady{W: 256, H: 256}
//	err = o.Run(ctx, events)
//
// The host window integration is an external collaborator: it reports
// SurfaceReady, Resized and Closed events and owns the surface the renderer
// draws into.
//
// # Scheduling
//
// Run ticks at 60 Hz once the surface is ready. A control message that
// changes the target state or intensity renders immediately instead of
// waiting for the next tick. A fatal render error stops Run and is
// returned; disconnects and malformed control lines are logged and
// absorbed.
//
// # Logging
//
// Nothing is logged by default. Call SetLogger to route every package's
// log output to a slog.Logger.
package sentinel
