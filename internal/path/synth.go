// Package path synthesizes human-looking cursor trajectories between two
// points: eased and curved interpolation, noise-perturbed organic paths and
// short overshooting flicks.
package path

import (
	"fmt"
	"math"

	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/noise"
)

const (
	organicDistanceScale = 100.0
	organicAmplitudeGain = 0.4
	organicDeadzone      = 15.0
	organicDeadzoneFloor = 0.1
	organicLateralRange  = 150.0
	organicLateralFloor  = 0.3
	organicAlongWeight   = 0.1
	organicSecondRow     = 100.0
)

// Synthesizer evaluates single waypoints of the continuous path styles.
// It is safe for concurrent use when its Rand is.
type Synthesizer struct {
	noise  noise.Source
	rand   Rand
	config Config
}

// NewSynthesizer creates a synthesizer. A nil source uses a value-noise
// field seeded from config.Seed; a nil rng uses SharedRand.
func NewSynthesizer(src noise.Source, rng Rand, config Config) *Synthesizer {
	if src == nil {
		src = noise.NewField(config.Seed)
	}
	if rng == nil {
		rng = SharedRand()
	}
	return &Synthesizer{noise: src, rand: rng, config: config}
}

// Config returns the synthesizer's configuration.
func (s *Synthesizer) Config() Config {
	return s.config
}

// Linear interpolates straight from start to end.
func (s *Synthesizer) Linear(start, end geom.Point, t float64) geom.Point {
	return geom.Lerp(start, end, t)
}

// Exponential interpolates with weight t^exponent.
func (s *Synthesizer) Exponential(start, end geom.Point, t, exponent float64) geom.Point {
	return geom.Lerp(start, end, math.Pow(t, exponent))
}

// CubicBezier evaluates the Bézier curve through c1 and c2. When recoil
// compensation is enabled and the path does not climb by more than the
// margin, a small downward jitter is added to Y.
func (s *Synthesizer) CubicBezier(start, end, c1, c2 geom.Point, t float64) geom.Point {
	u := 1 - t
	uu := u * u
	tt := t * t

	x := uu*u*float64(start.X) + 3*uu*t*float64(c1.X) + 3*u*tt*float64(c2.X) + tt*t*float64(end.X)
	y := uu*u*float64(start.Y) + 3*uu*t*float64(c1.Y) + 3*u*tt*float64(c2.Y) + tt*t*float64(end.Y)

	rc := s.config.Recoil
	if rc.Enabled && start.Y < end.Y+rc.Margin {
		y += float64(s.recoilJitter())
	}

	return geom.FromFloat(x, y)
}

// recoilJitter returns Base with probability Probability, otherwise Base±1.
func (s *Synthesizer) recoilJitter() int {
	rc := s.config.Recoil
	if s.rand.Float64() < rc.Probability {
		return rc.Base
	}
	if s.rand.IntN(2) == 0 {
		return rc.Base - 1
	}
	return rc.Base + 1
}

// Adaptive interpolates linearly below threshold and along a Bézier curve
// with control points at a third and two thirds of the way otherwise.
func (s *Synthesizer) Adaptive(start, end geom.Point, t, threshold float64) geom.Point {
	if geom.Distance(start, end) < threshold {
		return s.Linear(start, end, t)
	}
	c1, c2 := thirds(start, end)
	return s.CubicBezier(start, end, c1, c2, t)
}

func thirds(start, end geom.Point) (geom.Point, geom.Point) {
	dx, dy := end.X-start.X, end.Y-start.Y
	return geom.Pt(start.X+dx/3, start.Y+dy/3), geom.Pt(start.X+2*dx/3, start.Y+2*dy/3)
}

// Organic follows a smoothstep-eased straight line perturbed sideways by
// noise. The perturbation fades in from the start, fades out towards the
// end and shrinks further inside the last few pixels.
func (s *Synthesizer) Organic(start, end geom.Point, t, amplitude, frequency float64) geom.Point {
	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)
	distance := math.Hypot(dx, dy)

	easeT := geom.Smoothstep(t)
	baseX := float64(start.X) + dx*easeT
	baseY := float64(start.Y) + dy*easeT
	toEnd := math.Hypot(float64(end.X)-baseX, float64(end.Y)-baseY)

	amp := amplitude * math.Min(1, distance/organicDistanceScale) * organicAmplitudeGain
	amp *= geom.Clamp(2*t, 0, 1) * geom.Clamp(2*(1-t), 0, 1)
	if toEnd < organicDeadzone {
		amp *= geom.Clamp(toEnd/organicDeadzone, organicDeadzoneFloor, 1)
	}

	lateral := s.noise.Noise(t*frequency, 0) * amp
	along := s.noise.Noise(t*frequency, organicSecondRow) * amp

	// Unit perpendicular; zero for a zero-length move.
	px, py := -dy, dx
	if l := math.Hypot(px, py); l > 0 {
		px /= l
		py /= l
	}

	damp := geom.Clamp(toEnd/organicLateralRange, organicLateralFloor, 1)
	lateral *= damp
	along *= organicAlongWeight * damp

	return geom.FromFloat(baseX+px*lateral+along, baseY+py*lateral+along)
}

// At evaluates style at t using the configured parameters.
func (s *Synthesizer) At(style Style, start, end geom.Point, t float64) (geom.Point, error) {
	switch style {
	case StyleLinear:
		return s.Linear(start, end, t), nil
	case StyleExponential:
		return s.Exponential(start, end, t, s.config.Exponent), nil
	case StyleBezier:
		c1, c2 := thirds(start, end)
		return s.CubicBezier(start, end, c1, c2, t), nil
	case StyleAdaptive:
		return s.Adaptive(start, end, t, s.config.AdaptiveThreshold), nil
	case StyleOrganic:
		return s.Organic(start, end, t, s.config.OrganicAmplitude, s.config.OrganicFrequency), nil
	default:
		return geom.Point{}, fmt.Errorf("unknown path style %q", style)
	}
}

// Path samples style at t = i/segments for i = 0..segments.
func (s *Synthesizer) Path(start, end geom.Point, style Style, segments int) ([]geom.Point, error) {
	if segments < 1 {
		return nil, fmt.Errorf("segments must be at least 1, got %d", segments)
	}

	points := make([]geom.Point, 0, segments+1)
	for i := 0; i <= segments; i++ {
		p, err := s.At(style, start, end, float64(i)/float64(segments))
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}
