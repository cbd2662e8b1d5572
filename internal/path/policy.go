package path

import (
	"math"

	"github.com/ayusman/cursorflow/internal/geom"
)

// Policy picks a trajectory shape by distance: a quick overshooting flick
// inside the deadzone, an eased organic path beyond it.
type Policy struct {
	synth  *Synthesizer
	config PolicyConfig
}

// NewPolicy creates a policy drawing points and randomness from synth.
func NewPolicy(synth *Synthesizer, config PolicyConfig) *Policy {
	return &Policy{synth: synth, config: config}
}

// Synthesizer returns the underlying synthesizer.
func (p *Policy) Synthesizer() *Synthesizer {
	return p.synth
}

// Config returns the policy configuration.
func (p *Policy) Config() PolicyConfig {
	return p.config
}

// SmoothSegments is the segment count GenerateSmoothPath uses for distance.
func (p *Policy) SmoothSegments(distance float64) int {
	return geom.ClampInt(int(distance/p.config.SegmentLength), p.config.MinSegments, p.config.MaxSegments)
}

// GenerateSmoothPath returns a flick when end is within the deadzone and an
// ease-out organic path of SmoothSegments+1 points otherwise.
func (p *Policy) GenerateSmoothPath(start, end geom.Point) []geom.Point {
	distance := geom.Distance(start, end)
	if distance <= p.config.DeadzoneRadius {
		return p.GenerateFlickPath(start, end)
	}

	amplitude := p.config.ShortAmplitude
	if distance > p.config.LongDistance {
		amplitude = p.config.LongAmplitude
	}

	segments := p.SmoothSegments(distance)
	points := make([]geom.Point, 0, segments+1)
	for i := 0; i <= segments; i++ {
		t := geom.EaseOutQuad(float64(i) / float64(segments))
		points = append(points, p.synth.Organic(start, end, t, amplitude, p.config.Frequency))
	}
	return points
}

// GenerateFlickPath accelerates past end by a random overshoot, then eases
// back onto end. The last point is always end.
func (p *Policy) GenerateFlickPath(start, end geom.Point) []geom.Point {
	rng := p.synth.rand
	cfg := p.config

	factor := cfg.OvershootMin + rng.Float64()*(cfg.OvershootMax-cfg.OvershootMin)
	overshoot := geom.Lerp(start, end, factor)

	flicks := intBetween(rng, cfg.FlickSegmentsMin, cfg.FlickSegmentsMax)
	centers := intBetween(rng, cfg.CenterSegmentsMin, cfg.CenterSegmentsMax)

	points := make([]geom.Point, 0, flicks+centers+1)
	for i := 0; i <= flicks; i++ {
		t := geom.EaseInQuad(float64(i) / float64(flicks))
		points = append(points, geom.Lerp(start, overshoot, t))
	}

	from := points[len(points)-1]
	for i := 1; i <= centers; i++ {
		t := geom.EaseOutQuad(float64(i) / float64(centers))
		points = append(points, geom.Lerp(from, end, t))
	}
	return points
}

// Generate builds a full trajectory in the configured style. The organic
// style goes through GenerateSmoothPath; other styles are sampled evenly.
func (p *Policy) Generate(start, end geom.Point) ([]geom.Point, error) {
	sc := p.synth.config
	if sc.Style == StyleOrganic {
		return p.GenerateSmoothPath(start, end), nil
	}
	return p.synth.Path(start, end, sc.Style, sc.Segments)
}

// Overshoot reports how far past end a path travelled along the start→end
// direction, as a multiple of the start→end distance. Zero-length moves
// report 1.
func Overshoot(start, end geom.Point, points []geom.Point) float64 {
	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)
	d2 := dx*dx + dy*dy
	if d2 == 0 {
		return 1
	}

	best := math.Inf(-1)
	for _, pt := range points {
		proj := (float64(pt.X-start.X)*dx + float64(pt.Y-start.Y)*dy) / d2
		best = math.Max(best, proj)
	}
	return best
}
