package path

import (
	"fmt"

	"github.com/ayusman/cursorflow/internal/noise"
)

// Style selects how waypoints are laid between start and end.
type Style string

const (
	StyleLinear      Style = "linear"
	StyleExponential Style = "exponential"
	StyleBezier      Style = "bezier"
	StyleAdaptive    Style = "adaptive"
	StyleOrganic     Style = "organic"
)

// Valid reports whether s names a known style.
func (s Style) Valid() bool {
	switch s {
	case StyleLinear, StyleExponential, StyleBezier, StyleAdaptive, StyleOrganic:
		return true
	}
	return false
}

// NoiseKind selects the noise backend for organic paths.
type NoiseKind string

const (
	NoiseValue  NoiseKind = "value"
	NoisePerlin NoiseKind = "perlin"
)

// RecoilConfig controls the vertical jitter added to Bézier points when the
// path heads downward or level.
type RecoilConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	Margin      int     `yaml:"margin" json:"margin"`
	Base        int     `yaml:"base" json:"base"`
	Probability float64 `yaml:"probability" json:"probability"`
}

// Config tunes the synthesizer.
type Config struct {
	Style             Style        `yaml:"style" json:"style"`
	Segments          int          `yaml:"segments" json:"segments"`
	Exponent          float64      `yaml:"exponent" json:"exponent"`
	AdaptiveThreshold float64      `yaml:"adaptive_threshold" json:"adaptive_threshold"`
	OrganicAmplitude  float64      `yaml:"organic_amplitude" json:"organic_amplitude"`
	OrganicFrequency  float64      `yaml:"organic_frequency" json:"organic_frequency"`
	Noise             NoiseKind    `yaml:"noise" json:"noise"`
	Seed              uint64       `yaml:"seed" json:"seed"`
	Recoil            RecoilConfig `yaml:"recoil" json:"recoil"`
}

// DefaultConfig returns the stock synthesizer tuning.
func DefaultConfig() Config {
	return Config{
		Style:             StyleOrganic,
		Segments:          20,
		Exponent:          2,
		AdaptiveThreshold: 100,
		OrganicAmplitude:  10,
		OrganicFrequency:  0.1,
		Noise:             NoiseValue,
		Seed:              1,
		Recoil: RecoilConfig{
			Enabled:     true,
			Margin:      6,
			Base:        5,
			Probability: 0.55,
		},
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	switch {
	case !c.Style.Valid():
		return fmt.Errorf("unknown path style %q", c.Style)
	case c.Segments < 1:
		return fmt.Errorf("segments must be at least 1, got %d", c.Segments)
	case c.Exponent <= 0:
		return fmt.Errorf("exponent must be positive, got %v", c.Exponent)
	case c.AdaptiveThreshold < 0:
		return fmt.Errorf("adaptive_threshold must not be negative, got %v", c.AdaptiveThreshold)
	case c.OrganicAmplitude < 0:
		return fmt.Errorf("organic_amplitude must not be negative, got %v", c.OrganicAmplitude)
	case c.Noise != NoiseValue && c.Noise != NoisePerlin:
		return fmt.Errorf("unknown noise backend %q", c.Noise)
	case c.Recoil.Probability < 0 || c.Recoil.Probability > 1:
		return fmt.Errorf("recoil probability must be in [0, 1], got %v", c.Recoil.Probability)
	}
	return nil
}

// NewNoiseSource builds the noise backend named by c.Noise from c.Seed.
func NewNoiseSource(c Config) (noise.Source, error) {
	switch c.Noise {
	case NoiseValue, "":
		return noise.NewField(c.Seed), nil
	case NoisePerlin:
		return noise.NewPerlin(noise.DefaultPerlinAlpha, noise.DefaultPerlinBeta,
			noise.DefaultPerlinOctaves, int64(c.Seed)), nil
	default:
		return nil, fmt.Errorf("unknown noise backend %q", c.Noise)
	}
}

// PolicyConfig tunes smooth and flick trajectories.
type PolicyConfig struct {
	// DeadzoneRadius is the distance at or below which a flick is used.
	DeadzoneRadius float64 `yaml:"deadzone_radius" json:"deadzone_radius"`
	// SegmentLength is the pixels per smooth-path segment before clamping.
	SegmentLength  float64 `yaml:"segment_length" json:"segment_length"`
	MinSegments    int     `yaml:"min_segments" json:"min_segments"`
	MaxSegments    int     `yaml:"max_segments" json:"max_segments"`
	LongAmplitude  float64 `yaml:"long_amplitude" json:"long_amplitude"`
	ShortAmplitude float64 `yaml:"short_amplitude" json:"short_amplitude"`
	// LongDistance separates the long and short amplitudes.
	LongDistance float64 `yaml:"long_distance" json:"long_distance"`
	Frequency    float64 `yaml:"frequency" json:"frequency"`

	OvershootMin      float64 `yaml:"overshoot_min" json:"overshoot_min"`
	OvershootMax      float64 `yaml:"overshoot_max" json:"overshoot_max"`
	FlickSegmentsMin  int     `yaml:"flick_segments_min" json:"flick_segments_min"`
	FlickSegmentsMax  int     `yaml:"flick_segments_max" json:"flick_segments_max"`
	CenterSegmentsMin int     `yaml:"center_segments_min" json:"center_segments_min"`
	CenterSegmentsMax int     `yaml:"center_segments_max" json:"center_segments_max"`
}

// DefaultPolicyConfig returns the stock trajectory tuning.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		DeadzoneRadius:    100,
		SegmentLength:     10,
		MinSegments:       5,
		MaxSegments:       30,
		LongAmplitude:     8,
		ShortAmplitude:    3,
		LongDistance:      100,
		Frequency:         0.08,
		OvershootMin:      1.05,
		OvershootMax:      1.15,
		FlickSegmentsMin:  2,
		FlickSegmentsMax:  4,
		CenterSegmentsMin: 2,
		CenterSegmentsMax: 4,
	}
}

// Validate checks ranges and orderings.
func (c PolicyConfig) Validate() error {
	switch {
	case c.DeadzoneRadius < 0:
		return fmt.Errorf("deadzone_radius must not be negative, got %v", c.DeadzoneRadius)
	case c.SegmentLength <= 0:
		return fmt.Errorf("segment_length must be positive, got %v", c.SegmentLength)
	case c.MinSegments < 1 || c.MaxSegments < c.MinSegments:
		return fmt.Errorf("segments must satisfy 1 <= min <= max, got %d..%d", c.MinSegments, c.MaxSegments)
	case c.OvershootMin < 1 || c.OvershootMax < c.OvershootMin:
		return fmt.Errorf("overshoot must satisfy 1 <= min <= max, got %v..%v", c.OvershootMin, c.OvershootMax)
	case c.FlickSegmentsMin < 1 || c.FlickSegmentsMax < c.FlickSegmentsMin:
		return fmt.Errorf("flick segments must satisfy 1 <= min <= max, got %d..%d", c.FlickSegmentsMin, c.FlickSegmentsMax)
	case c.CenterSegmentsMin < 1 || c.CenterSegmentsMax < c.CenterSegmentsMin:
		return fmt.Errorf("center segments must satisfy 1 <= min <= max, got %d..%d", c.CenterSegmentsMin, c.CenterSegmentsMax)
	}
	return nil
}
