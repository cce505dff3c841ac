package sentinel

import "fmt"

// Event is a host window notification. The set is closed: SurfaceReady,
// Resized and Closed.
type Event interface {
	event()
}

// SurfaceReady reports that the surface can be drawn to at the given size.
// Nothing is drawn before the first SurfaceReady or Resized.
type SurfaceReady struct {
	W, H uint32
}

// Resized reports a new surface size.
type Resized struct {
	W, H uint32
}

// Closed reports that the surface is gone. Run returns after it.
type Closed struct{}

func (SurfaceReady) event() {}
func (Resized) event()      {}
func (Closed) event()       {}

func (e SurfaceReady) String() string { return fmt.Sprintf("SurfaceReady(%dx%d)", e.W, e.H) }
func (e Resized) String() string      { return fmt.Sprintf("Resized(%dx%d)", e.W, e.H) }
func (Closed) String() string         { return "Closed" }
