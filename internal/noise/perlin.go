package noise

import perlin "github.com/aquilax/go-perlin"

// Perlin adapts github.com/aquilax/go-perlin to Source. It sums n octaves;
// alpha is the per-octave amplitude divisor and beta the frequency multiplier.
type Perlin struct {
	p *perlin.Perlin
}

// Default octave settings for NewPerlin callers that have no preference.
const (
	DefaultPerlinAlpha   = 2.0
	DefaultPerlinBeta    = 2.0
	DefaultPerlinOctaves = 3
)

// NewPerlin creates a seeded multi-octave Perlin source.
func NewPerlin(alpha, beta float64, octaves int32, seed int64) *Perlin {
	return &Perlin{p: perlin.NewPerlin(alpha, beta, octaves, seed)}
}

// Noise samples the field at (x, y).
func (p *Perlin) Noise(x, y float64) float64 {
	return p.p.Noise2D(x, y)
}
