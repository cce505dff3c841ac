package sentinel

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/sentinel/anim"
	"github.com/gogpu/sentinel/config"
	"github.com/gogpu/sentinel/frame"
	"github.com/gogpu/sentinel/internal/gpu"
	"github.com/gogpu/sentinel/ipc"
)

// Scheduling constants.
const (
	// FrameInterval is the render tick period (about 60 Hz).
	FrameInterval = 16 * time.Millisecond

	// ReconnectInterval is the control socket retry period.
	ReconnectInterval = time.Second

	// CyclePeriod is how long each state is shown in cycle mode.
	CyclePeriod = 8 * time.Second
)

// Initial surface size until the host reports one.
const (
	DefaultWidth  = 256
	DefaultHeight = 256
)

// Renderer draws one frame per call. *gpu.FeedbackPipeline implements it.
type Renderer interface {
	// Render draws a frame. The renderer may stamp its own frame counter
	// into p. An error is fatal.
	Render(p *frame.Parameters) (gpu.FrameStatus, error)

	// Resize adapts to a new surface size and reports whether anything
	// was recreated.
	Resize(w, h uint32) (bool, error)

	// FrameCount returns the number of frames rendered.
	FrameCount() uint32
}

// Overlay is the loop-resident context: it owns the animation state, the
// control channel client and the renderer. All methods must be called from
// the goroutine running Run, or before Run starts.
type Overlay struct {
	cfg      config.Config
	renderer Renderer
	clock    Clock
	client   *ipc.Client
	tuningCh <-chan frame.Tuning

	start     time.Time
	blend     anim.StateBlend
	intensity anim.SmoothValue
	motion    anim.MotionModel
	tuning    frame.Tuning

	width, height uint32
	configured    bool
	closed        bool
}

// New creates an overlay starting in cfg's initial state and intensity.
func New(cfg config.Config, r Renderer, opts ...Option) *Overlay {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = ipc.NewClient(cfg.SocketPath)
	}

	now := o.clock.Now()
	state := cfg.InitialState
	if cfg.Cycle {
		state = anim.Idle
	}
	return &Overlay{
		cfg:       cfg,
		renderer:  r,
		clock:     o.clock,
		client:    o.client,
		tuningCh:  o.tuning,
		start:     now,
		blend:     anim.NewStateBlend(state, now),
		intensity: anim.NewSmoothValue(cfg.InitialIntensity, now),
		motion:    anim.NewMotionModel(anim.ParamsFor(state, cfg.InitialIntensity), 0, now),
		tuning:    cfg.Tuning.Clamp(),
		width:     DefaultWidth,
		height:    DefaultHeight,
	}
}

// Run drives the overlay until ctx is cancelled, a Closed event arrives or
// a render fails. It connects to the control socket eagerly and retries
// every ReconnectInterval while disconnected. Only a render failure is
// returned as an error.
func (o *Overlay) Run(ctx context.Context, events <-chan Event) error {
	o.connect(ctx)

	frameTicker := time.NewTicker(FrameInterval)
	defer frameTicker.Stop()
	reconnectTicker := time.NewTicker(ReconnectInterval)
	defer reconnectTicker.Stop()

	for !o.closed {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := o.Dispatch(ev); err != nil {
				return err
			}

		case <-frameTicker.C:
			if err := o.Tick(o.clock.Now()); err != nil {
				return err
			}

		case <-reconnectTicker.C:
			if !o.client.Connected() {
				o.connect(ctx)
			}

		case ch := <-o.client.Chunks():
			for _, msg := range o.client.Handle(ch) {
				if err := o.HandleMessage(msg); err != nil {
					return err
				}
			}

		case t := <-o.tuningCh:
			o.SetTuning(t)
		}
	}
	return nil
}

func (o *Overlay) connect(ctx context.Context) {
	if err := o.client.TryConnect(ctx); err != nil {
		slogger().Debug("sentinel: control socket unavailable", "path", o.client.Path(), "err", err)
	}
}

// Dispatch applies one host event. A size change is applied to the
// renderer synchronously and followed by an immediate draw.
func (o *Overlay) Dispatch(ev Event) error {
	switch e := ev.(type) {
	case SurfaceReady:
		return o.configure(e.W, e.H)
	case Resized:
		return o.configure(e.W, e.H)
	case Closed:
		slogger().Info("sentinel: surface closed")
		o.closed = true
		return nil
	default:
		return fmt.Errorf("sentinel: unknown event %T", ev)
	}
}

func (o *Overlay) configure(w, h uint32) error {
	if w > 0 && h > 0 {
		if _, err := o.renderer.Resize(w, h); err != nil {
			return fmt.Errorf("sentinel: resize %dx%d: %w", w, h, err)
		}
		o.width, o.height = w, h
	}
	o.configured = true
	return o.Tick(o.clock.Now())
}

// HandleMessage retargets the state and intensity. If either target
// changed, a frame is drawn immediately. In cycle mode the message's state
// is ignored; its intensity still applies.
func (o *Overlay) HandleMessage(msg ipc.Message) error {
	now := o.clock.Now()
	changed := false
	if !o.cfg.Cycle && msg.State != o.blend.Target() {
		o.blend.SetTarget(msg.State, now)
		changed = true
	}
	if msg.Intensity != o.intensity.Target() {
		o.intensity.SetTarget(msg.Intensity, now)
		changed = true
	}
	if !changed {
		return nil
	}
	slogger().Debug("sentinel: retarget",
		"state", o.blend.Target().String(), "intensity", o.intensity.Target())
	return o.Tick(now)
}

// SetTuning replaces the simulation constants from the next frame on.
func (o *Overlay) SetTuning(t frame.Tuning) {
	o.tuning = t.Clamp()
}

// Tick advances the animation to now and renders one frame. It does
// nothing until the surface is ready.
func (o *Overlay) Tick(now time.Time) error {
	if !o.configured || o.closed {
		return nil
	}
	elapsed := now.Sub(o.start)
	t := float32(elapsed.Seconds())

	if o.cfg.Cycle && elapsed >= 0 {
		n := uint32(elapsed/CyclePeriod) % anim.NumStates
		o.blend.SetTarget(anim.StateFromOrdinal(n), now)
	}

	d := o.cfg.TransitionDuration
	o.blend.Update(now, d)
	o.intensity.Update(now, d)

	intensity := o.intensity.Current()
	bf := o.blend.BlendFactor()
	mp := anim.Lerp(
		anim.ParamsFor(o.blend.Current(), intensity),
		anim.ParamsFor(o.blend.Target(), intensity),
		bf,
	)
	o.motion.Update(now, t, mp)

	p := frame.Build(frame.Input{
		Time:         t,
		Intensity:    intensity,
		BlendFactor:  bf,
		Scale:        o.motion.Scale(),
		CurrentState: o.blend.Current().Ordinal(),
		TargetState:  o.blend.Target().Ordinal(),
		FrameCount:   o.renderer.FrameCount(),
		Width:        o.width,
		Height:       o.height,
		Position:     o.motion.Position(),
		Tuning:       o.tuning,
	})
	status, err := o.renderer.Render(&p)
	if err != nil {
		slogger().Error("sentinel: render failed", "err", err)
		return fmt.Errorf("sentinel: render: %w", err)
	}
	if status == gpu.FrameSkipped {
		slogger().Debug("sentinel: frame skipped", "frame", p.FrameCount)
	}
	return nil
}

// CurrentState returns the state being shown, or transitioned from.
func (o *Overlay) CurrentState() anim.EntityState { return o.blend.Current() }

// TargetState returns the state being transitioned to.
func (o *Overlay) TargetState() anim.EntityState { return o.blend.Target() }

// BlendFactor returns the transition progress in [0, 1].
func (o *Overlay) BlendFactor() float32 { return o.blend.BlendFactor() }

// Intensity returns the smoothed intensity.
func (o *Overlay) Intensity() float32 { return o.intensity.Current() }

// Size returns the surface size last reported by the host.
func (o *Overlay) Size() (w, h uint32) { return o.width, o.height }

// Close drops the control connection.
func (o *Overlay) Close() error {
	return o.client.Close()
}
