package sentinel

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/sentinel/anim"
	"github.com/gogpu/sentinel/config"
	"github.com/gogpu/sentinel/frame"
	"github.com/gogpu/sentinel/internal/gpu"
	"github.com/gogpu/sentinel/ipc"
)

// manualClock is advanced explicitly by tests.
type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time          { return c.now }
func (c *manualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
func newClock() *manualClock                   { return &manualClock{now: time.Unix(1_700_000_000, 0)} }

// fakeRenderer records every frame it is asked to draw.
type fakeRenderer struct {
	frames  []frame.Parameters
	resizes [][2]uint32
	count   uint32
	err     error
}

func (r *fakeRenderer) Render(p *frame.Parameters) (gpu.FrameStatus, error) {
	if r.err != nil {
		return gpu.FrameSkipped, r.err
	}
	p.FrameCount = r.count
	r.count++
	r.frames = append(r.frames, *p)
	return gpu.FramePresented, nil
}

func (r *fakeRenderer) Resize(w, h uint32) (bool, error) {
	r.resizes = append(r.resizes, [2]uint32{w, h})
	return true, nil
}

func (r *fakeRenderer) FrameCount() uint32 { return r.count }

func newOverlay(t *testing.T, cfg config.Config) (*Overlay, *fakeRenderer, *manualClock) {
	t.Helper()
	r := &fakeRenderer{}
	clock := newClock()
	cfg.SocketPath = filepath.Join(t.TempDir(), "none.sock")
	o := New(cfg, r, WithClock(clock))
	t.Cleanup(func() { o.Close() })
	return o, r, clock
}

func TestNoDrawBeforeSurfaceReady(t *testing.T) {
	o, r, clock := newOverlay(t, config.Default())
	clock.Advance(time.Second)
	if err := o.Tick(clock.Now()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if err := o.HandleMessage(ipc.Message{Type: ipc.TypeState, State: anim.Alert, Intensity: 0.3}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(r.frames) != 0 {
		t.Fatalf("drew %d frames before the surface was ready", len(r.frames))
	}

	if err := o.Dispatch(SurfaceReady{W: 640, H: 480}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(r.frames) != 1 {
		t.Fatalf("SurfaceReady drew %d frames, want 1", len(r.frames))
	}
	if got := r.frames[0].Resolution; got != [2]float32{640, 480} {
		t.Errorf("Resolution = %v, want [640 480]", got)
	}
	if len(r.resizes) != 1 || r.resizes[0] != [2]uint32{640, 480} {
		t.Errorf("resizes = %v", r.resizes)
	}
}

func TestResizeRedrawsImmediately(t *testing.T) {
	o, r, _ := newOverlay(t, config.Default())
	o.Dispatch(SurfaceReady{W: 256, H: 256})
	o.Dispatch(Resized{W: 1024, H: 768})

	if len(r.frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(r.frames))
	}
	if w, h := o.Size(); w != 1024 || h != 768 {
		t.Errorf("Size() = %dx%d", w, h)
	}

	// A zero size keeps the previous one but still redraws.
	o.Dispatch(Resized{W: 0, H: 768})
	if len(r.resizes) != 2 {
		t.Errorf("zero-size resize reached the renderer")
	}
	if w, h := o.Size(); w != 1024 || h != 768 {
		t.Errorf("Size() after zero resize = %dx%d", w, h)
	}
}

func TestHandleMessageRedrawsOnlyOnChange(t *testing.T) {
	o, r, clock := newOverlay(t, config.Default())
	o.Dispatch(SurfaceReady{W: 256, H: 256})
	n := len(r.frames)

	clock.Advance(10 * time.Millisecond)
	if err := o.HandleMessage(ipc.Message{Type: ipc.TypeState, State: anim.Idle, Intensity: 1}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(r.frames) != n {
		t.Errorf("unchanged message drew a frame")
	}

	if err := o.HandleMessage(ipc.Message{Type: ipc.TypeState, State: anim.Idle, Intensity: 0.2}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(r.frames) != n+1 {
		t.Errorf("intensity change drew %d frames, want 1", len(r.frames)-n)
	}

	if err := o.HandleMessage(ipc.Message{Type: ipc.TypeState, State: anim.Amused, Intensity: 0.2}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(r.frames) != n+2 {
		t.Errorf("state change drew %d frames, want 2 total", len(r.frames)-n)
	}
	if o.TargetState() != anim.Amused {
		t.Errorf("TargetState() = %v, want amused", o.TargetState())
	}
}

func TestTransitionEndToEnd(t *testing.T) {
	o, r, clock := newOverlay(t, config.Default())
	o.Dispatch(SurfaceReady{W: 256, H: 256})

	if err := o.HandleMessage(ipc.Message{Type: ipc.TypeState, State: anim.Focused, Intensity: 0.5}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	intermediate := false
	for elapsed := time.Duration(0); elapsed <= config.DefaultTransitionDuration+FrameInterval; elapsed += FrameInterval {
		clock.Advance(FrameInterval)
		if err := o.Tick(clock.Now()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		last := r.frames[len(r.frames)-1]
		if last.BlendFactor < 0 || last.BlendFactor > 1 {
			t.Fatalf("blend factor %v out of range", last.BlendFactor)
		}
		if last.BlendFactor > 0 && last.BlendFactor < 1 {
			intermediate = true
		}
	}

	if !intermediate {
		t.Error("blend factor never took an intermediate value")
	}
	if o.CurrentState() != anim.Focused {
		t.Errorf("CurrentState() = %v, want focused", o.CurrentState())
	}
	if o.Intensity() != 0.5 {
		t.Errorf("Intensity() = %v, want 0.5", o.Intensity())
	}
	if o.BlendFactor() != 0 {
		t.Errorf("BlendFactor() = %v, want 0 once settled", o.BlendFactor())
	}
	last := r.frames[len(r.frames)-1]
	if last.CurrentState != uint32(anim.Focused) || last.TargetState != uint32(anim.Focused) {
		t.Errorf("last frame states %d -> %d, want focused", last.CurrentState, last.TargetState)
	}
}

func TestFrameParametersStayInRange(t *testing.T) {
	o, r, clock := newOverlay(t, config.Default())
	o.Dispatch(SurfaceReady{W: 256, H: 256})
	states := []anim.EntityState{anim.Alert, anim.Sleepy, anim.Curious}
	for i := 0; i < 600; i++ {
		if i%50 == 0 {
			o.HandleMessage(ipc.Message{Type: ipc.TypeState, State: states[(i/50)%len(states)], Intensity: float32(i%7) / 6})
		}
		clock.Advance(FrameInterval)
		if err := o.Tick(clock.Now()); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	for i, p := range r.frames {
		if p.Scale < anim.MinScale || p.Scale > anim.MaxScale {
			t.Fatalf("frame %d: scale %v out of range", i, p.Scale)
		}
		for _, v := range p.Position {
			if v < 0 || v > 1 {
				t.Fatalf("frame %d: position %v out of range", i, p.Position)
			}
		}
	}
}

func TestCycleMode(t *testing.T) {
	cfg := config.Default()
	cfg.Cycle = true
	cfg.InitialState = anim.Alert
	o, _, clock := newOverlay(t, cfg)
	o.Dispatch(SurfaceReady{W: 256, H: 256})

	if o.TargetState() != anim.Idle {
		t.Fatalf("cycle starts at %v, want idle", o.TargetState())
	}

	clock.Advance(CyclePeriod + time.Millisecond)
	o.Tick(clock.Now())
	if o.TargetState() != anim.Curious {
		t.Errorf("after one period TargetState() = %v, want curious", o.TargetState())
	}

	// The control channel cannot override the cycled state.
	o.HandleMessage(ipc.Message{Type: ipc.TypeState, State: anim.Sleepy, Intensity: 0.4})
	if o.TargetState() != anim.Curious {
		t.Errorf("message overrode cycle state: %v", o.TargetState())
	}

	clock.Advance(5 * CyclePeriod)
	o.Tick(clock.Now())
	if o.TargetState() != anim.Idle {
		t.Errorf("after six periods TargetState() = %v, want idle", o.TargetState())
	}
}

func TestSetTuningClamps(t *testing.T) {
	o, r, _ := newOverlay(t, config.Default())
	tu := frame.DefaultTuning()
	tu.Speed = 100
	o.SetTuning(tu)
	o.Dispatch(SurfaceReady{W: 256, H: 256})
	if got := r.frames[0].Speed; got != 4 {
		t.Errorf("Speed = %v, want clamped 4", got)
	}
}

func TestRenderErrorIsFatal(t *testing.T) {
	o, r, _ := newOverlay(t, config.Default())
	r.err = gpu.ErrFatal

	events := make(chan Event, 1)
	events <- SurfaceReady{W: 256, H: 256}
	err := o.Run(context.Background(), events)
	if !errors.Is(err, gpu.ErrFatal) {
		t.Fatalf("Run() = %v, want ErrFatal", err)
	}
}

func TestRunStopsOnClosed(t *testing.T) {
	o, r, _ := newOverlay(t, config.Default())

	events := make(chan Event, 2)
	events <- SurfaceReady{W: 320, H: 200}
	events <- Closed{}

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background(), events) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Closed")
	}
	if len(r.frames) == 0 {
		t.Error("no frame drawn after SurfaceReady")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	o, _, _ := newOverlay(t, config.Default())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx, nil) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunAppliesControlMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctl.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer ln.Close()

	cfg := config.Default()
	cfg.SocketPath = path
	r := &fakeRenderer{}
	o := New(cfg, r)
	defer o.Close()

	events := make(chan Event, 2)
	events <- SurfaceReady{W: 256, H: 256}

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background(), events) }()

	conn, err := ln.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte(`{"type":"state","state":"alert","intensity":0.8}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Give the loop time to pick the message up, then stop it. The
	// overlay is only inspected after Run returns.
	time.Sleep(200 * time.Millisecond)
	events <- Closed{}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if o.TargetState() != anim.Alert {
		t.Errorf("TargetState() = %v, want alert", o.TargetState())
	}
}

func TestReconnectFitsInFrame(t *testing.T) {
	// Reconnect attempts run on the loop goroutine between frames.
	if ipc.DialTimeout >= FrameInterval {
		t.Errorf("ipc.DialTimeout = %v, want under FrameInterval %v", ipc.DialTimeout, FrameInterval)
	}
}
