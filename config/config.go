// Package config resolves the overlay's startup configuration from
// defaults, an optional TOML file and the environment, and watches the file
// for tuning changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/sentinel/anim"
	"github.com/gogpu/sentinel/frame"
	"github.com/gogpu/sentinel/ipc"
)

// Environment variables read by Load.
const (
	EnvSocketPath         = "SENTINEL_SOCKET_PATH"
	EnvState              = "SENTINEL_ENTITY_STATE"
	EnvIntensity          = "SENTINEL_ENTITY_INTENSITY"
	EnvCycle              = "SENTINEL_ENTITY_CYCLE"
	EnvTransitionDuration = "SENTINEL_TRANSITION_DURATION"
	EnvConfigFile         = "SENTINEL_CONFIG"
	EnvRuntimeDir         = "XDG_RUNTIME_DIR"
)

// DefaultTransitionDuration is the state and intensity transition time.
const DefaultTransitionDuration = 750 * time.Millisecond

// ErrInvalid reports a configuration value outside its legal range.
var ErrInvalid = errors.New("config: invalid value")

// Config is the resolved overlay configuration.
type Config struct {
	// SocketPath is the resolved control socket location.
	SocketPath string

	InitialState     anim.EntityState
	InitialIntensity float32

	// Cycle steps through every state, 8 seconds each, ignoring the
	// control channel's state (intensity still applies).
	Cycle bool

	TransitionDuration time.Duration
	Tuning             frame.Tuning

	// File is the TOML file that was loaded, empty if none.
	File string
}

// Default returns the built-in configuration with the fallback socket path.
func Default() Config {
	return Config{
		SocketPath:         ipc.FallbackSocketPath,
		InitialState:       anim.Idle,
		InitialIntensity:   1.0,
		TransitionDuration: DefaultTransitionDuration,
		Tuning:             frame.DefaultTuning(),
	}
}

// File is the on-disk TOML form. Absent keys leave the defaults in place.
type File struct {
	SocketPath         string       `toml:"socket_path"`
	State              string       `toml:"state"` // name or ordinal
	Intensity          *float32     `toml:"intensity"`
	Cycle              *bool        `toml:"cycle"`
	TransitionDuration *float64     `toml:"transition_duration"` // seconds
	Tuning             frame.Tuning `toml:"tuning"`
}

// LoadFile reads and decodes the TOML file at path. Unknown keys are an
// error. Tuning keys absent from the file keep their default values.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parseFile(data, path)
}

func parseFile(data []byte, name string) (File, error) {
	f := File{Tuning: frame.DefaultTuning()}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", name, err)
	}
	if f.TransitionDuration != nil && (*f.TransitionDuration < 0 || math.IsNaN(*f.TransitionDuration)) {
		return File{}, fmt.Errorf("%w: %s: transition_duration %v", ErrInvalid, name, *f.TransitionDuration)
	}
	if f.State != "" {
		if _, err := parseState(f.State); err != nil {
			return File{}, fmt.Errorf("%w: %s: %w", ErrInvalid, name, err)
		}
	}
	return f, nil
}

// apply layers f over c. The socket path is resolved separately by Load.
func (f File) apply(c *Config) {
	if f.State != "" {
		if s, err := parseState(f.State); err == nil {
			c.InitialState = s
		}
	}
	if f.Intensity != nil {
		c.InitialIntensity = clampIntensity(*f.Intensity, c.InitialIntensity)
	}
	if f.Cycle != nil {
		c.Cycle = *f.Cycle
	}
	if f.TransitionDuration != nil {
		c.TransitionDuration = seconds(*f.TransitionDuration)
	}
	c.Tuning = f.Tuning.Clamp()
}

// Load resolves the configuration. Precedence, lowest first: defaults, the
// TOML file named by SENTINEL_CONFIG, the environment. Unparseable
// environment values are logged and ignored; a broken file is an error.
func Load(getenv func(string) string) (Config, error) {
	c := Default()
	socketOverride := ""

	if path := getenv(EnvConfigFile); path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		f.apply(&c)
		socketOverride = f.SocketPath
		c.File = path
	}

	if v := getenv(EnvSocketPath); v != "" {
		socketOverride = v
	}
	c.SocketPath = ipc.ResolveSocketPath(socketOverride, getenv(EnvRuntimeDir))

	if v := getenv(EnvState); v != "" {
		if s, err := parseState(v); err == nil {
			c.InitialState = s
		} else {
			slogger().Warn("config: ignoring "+EnvState, "value", v, "err", err)
		}
	}
	if v := getenv(EnvIntensity); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil && !math.IsNaN(f) {
			c.InitialIntensity = clampIntensity(float32(f), c.InitialIntensity)
		} else {
			slogger().Warn("config: ignoring "+EnvIntensity, "value", v)
		}
	}
	if v := getenv(EnvCycle); v != "" {
		c.Cycle = parseBool(v)
	}
	if v := getenv(EnvTransitionDuration); v != "" {
		if d, err := parseDuration(v); err == nil {
			c.TransitionDuration = d
		} else {
			slogger().Warn("config: ignoring "+EnvTransitionDuration, "value", v, "err", err)
		}
	}
	return c, nil
}

// parseState accepts an ordinal (clamped to the last state) or a name.
func parseState(v string) (anim.EntityState, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.ParseUint(v, 10, 32); err == nil {
		return anim.StateFromOrdinal(uint32(n)), nil
	}
	return anim.ParseEntityState(v)
}

func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}

// parseDuration accepts seconds ("0.75") or a Go duration ("750ms").
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: duration %q", ErrInvalid, v)
		}
		return seconds(f), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: duration %q", ErrInvalid, v)
	}
	return d, nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func clampIntensity(v, fallback float32) float32 {
	if math.IsNaN(float64(v)) {
		return fallback
	}
	return max(0, min(1, v))
}
