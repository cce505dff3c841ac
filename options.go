package sentinel

import (
	"github.com/gogpu/sentinel/frame"
	"github.com/gogpu/sentinel/ipc"
)

// Option configures an Overlay during creation.
//
// Example:
//
//	o := sentinel.New(cfg, pipeline,
//	    sentinel.WithClock(clock),
//	    sentinel.WithTuningUpdates(watcher.Updates()))
type Option func(*overlayOptions)

// overlayOptions holds optional configuration for Overlay creation.
type overlayOptions struct {
	clock  Clock
	client *ipc.Client
	tuning <-chan frame.Tuning
}

// defaultOptions returns the default overlay options.
func defaultOptions() overlayOptions {
	return overlayOptions{
		clock: SystemClock{},
	}
}

// WithClock sets the time source used for animation. Tests use a manual
// clock; the frame and reconnect timers always run on wall time.
func WithClock(c Clock) Option {
	return func(o *overlayOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithClient sets the control channel client. By default a client is
// created for the configured socket path.
func WithClient(c *ipc.Client) Option {
	return func(o *overlayOptions) {
		o.client = c
	}
}

// WithTuningUpdates makes Run apply tuning values received on ch, such as
// those delivered by config.Watcher.
func WithTuningUpdates(ch <-chan frame.Tuning) Option {
	return func(o *overlayOptions) {
		o.tuning = ch
	}
}
