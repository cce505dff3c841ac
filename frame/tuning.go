package frame

// Tuning holds the simulation constants passed through to the stage
// programs. The zero value is not useful; start from DefaultTuning.
type Tuning struct {
	Damping       float32 `toml:"damping"`
	NoiseStrength float32 `toml:"noise_strength"`
	Attraction    float32 `toml:"attraction"`
	Speed         float32 `toml:"speed"`
	TrailFade     float32 `toml:"trail_fade"`
	GlowIntensity float32 `toml:"glow_intensity"`
	ColorShift    float32 `toml:"color_shift"`
}

// DefaultTuning returns the stock simulation constants.
func DefaultTuning() Tuning {
	return Tuning{
		Damping:       0.998,
		NoiseStrength: 5.0,
		Attraction:    0.5,
		Speed:         1.0,
		TrailFade:     0.995,
		GlowIntensity: 1.0,
		ColorShift:    0.0,
	}
}

// Clamp returns t with every constant limited to the range the stage
// programs are stable in.
func (t Tuning) Clamp() Tuning {
	return Tuning{
		Damping:       clamp(t.Damping, 0.95, 0.99999),
		NoiseStrength: clamp(t.NoiseStrength, 0, 25),
		Attraction:    clamp(t.Attraction, 0, 2),
		Speed:         clamp(t.Speed, 0, 4),
		TrailFade:     clamp(t.TrailFade, 0.9, 0.99999),
		GlowIntensity: clamp(t.GlowIntensity, 0, 4),
		ColorShift:    clamp(t.ColorShift, -1, 1),
	}
}
