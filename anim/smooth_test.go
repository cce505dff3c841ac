package anim

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(seconds float64) time.Time {
	return epoch.Add(time.Duration(seconds * float64(time.Second)))
}

func TestSmoothValueNewIsSettled(t *testing.T) {
	v := NewSmoothValue(0.25, epoch)
	if v.Current() != 0.25 || v.Target() != 0.25 || !v.Settled() {
		t.Fatalf("NewSmoothValue = current %v target %v, want settled at 0.25", v.Current(), v.Target())
	}
}

func TestSmoothValueConvergesExactly(t *testing.T) {
	tests := []struct {
		name     string
		from, to float32
		elapsed  float64
		duration time.Duration
	}{
		{"exact duration", 0, 1, 0.75, 750 * time.Millisecond},
		{"past duration", 0.1, 0.7, 10, 750 * time.Millisecond},
		{"negative direction", 2.5, 0.35, 1, time.Second},
		{"awkward floats", 0.1, 0.3, 0.3, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewSmoothValue(tt.from, epoch)
			v.SetTarget(tt.to, epoch)
			v.Update(at(tt.elapsed/3), tt.duration)
			v.Update(at(tt.elapsed), tt.duration)
			if v.Current() != tt.to {
				t.Errorf("Current() = %v, want exactly %v", v.Current(), tt.to)
			}
		})
	}
}

func TestSmoothValueSnapsOnTinyDuration(t *testing.T) {
	for _, d := range []time.Duration{0, 50 * time.Microsecond, SnapDuration} {
		v := NewSmoothValue(0, epoch)
		v.SetTarget(1, epoch)
		// No time has elapsed; the snap must not depend on it.
		v.Update(epoch, d)
		if v.Current() != 1 {
			t.Errorf("duration %v: Current() = %v, want 1", d, v.Current())
		}
	}
}

func TestSmoothValueStaysBetweenFromAndTarget(t *testing.T) {
	v := NewSmoothValue(0.2, epoch)
	v.SetTarget(0.8, epoch)
	prev := v.Current()
	for i := 1; i <= 60; i++ {
		v.Update(at(float64(i)/60), time.Second)
		c := v.Current()
		if c < 0.2 || c > 0.8 {
			t.Fatalf("step %d: Current() = %v outside [0.2, 0.8]", i, c)
		}
		if c < prev {
			t.Fatalf("step %d: Current() decreased from %v to %v", i, prev, c)
		}
		prev = c
	}
}

func TestSmoothValueSmoothstepMidpoint(t *testing.T) {
	v := NewSmoothValue(0, epoch)
	v.SetTarget(1, epoch)
	v.Update(at(0.5), time.Second)
	if got := v.Current(); got < 0.4999 || got > 0.5001 {
		t.Errorf("Current() at t=0.5 = %v, want 0.5", got)
	}
	v.Update(at(0.25), time.Second)
	// smoothstep(0.25) = 0.15625
	if got := v.Current(); got < 0.1562 || got > 0.1563 {
		t.Errorf("Current() at t=0.25 = %v, want 0.15625", got)
	}
}

func TestSmoothValueSameTargetDoesNotRestart(t *testing.T) {
	v := NewSmoothValue(0, epoch)
	v.SetTarget(1, epoch)
	v.Update(at(0.5), time.Second)
	mid := v.Current()

	v.SetTarget(1, at(0.5))
	v.Update(at(0.5), time.Second)
	if v.Current() != mid {
		t.Errorf("redundant SetTarget moved value: %v -> %v", mid, v.Current())
	}
	v.Update(at(1), time.Second)
	if v.Current() != 1 {
		t.Errorf("Current() = %v, want 1 (transition restarted?)", v.Current())
	}
}

func TestSmoothValueRetargetStartsFromCurrent(t *testing.T) {
	v := NewSmoothValue(0, epoch)
	v.SetTarget(1, epoch)
	v.Update(at(0.5), time.Second)
	mid := v.Current()

	v.SetTarget(0, at(0.5))
	v.Update(at(0.5), time.Second)
	if v.Current() != mid {
		t.Errorf("retarget jumped: %v -> %v", mid, v.Current())
	}
	v.Update(at(1.5), time.Second)
	if v.Current() != 0 {
		t.Errorf("Current() = %v, want 0", v.Current())
	}
}

func TestSmoothValueZeroValue(t *testing.T) {
	var v SmoothValue
	v.Update(epoch, time.Second)
	if v.Current() != 0 {
		t.Fatalf("zero value Current() = %v", v.Current())
	}
	v.SetTarget(2, epoch)
	v.Update(at(1), time.Second)
	if v.Current() != 2 {
		t.Errorf("Current() = %v, want 2", v.Current())
	}
}

func TestSmoothstepEndpoints(t *testing.T) {
	if got := Smoothstep(0, 3, 4, 1); got != 3 {
		t.Errorf("Smoothstep(0) = %v, want 3", got)
	}
	if got := Smoothstep(1, 3, 4, 1); got != 7 {
		t.Errorf("Smoothstep(1) = %v, want 7", got)
	}
}

func TestSmoothValueReleasesTweenWhenSettled(t *testing.T) {
	v := NewSmoothValue(0, epoch)
	v.SetTarget(1, epoch)
	if v.tween == nil {
		t.Fatal("SetTarget did not start a tween")
	}
	v.Update(at(0.5), time.Second)
	if v.tween == nil {
		t.Fatal("tween released mid-transition")
	}
	v.Update(at(1), time.Second)
	if v.tween != nil || v.Current() != 1 || !v.Settled() {
		t.Errorf("after completion: tween %v, Current() = %v; want nil, 1", v.tween, v.Current())
	}

	// Settled values ignore later updates.
	v.Update(at(0.5), time.Second)
	if v.Current() != 1 {
		t.Errorf("Update after settling moved value to %v", v.Current())
	}
}
