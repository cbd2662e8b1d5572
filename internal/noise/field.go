// Package noise implements the lattice noise used to perturb synthesized
// cursor paths.
package noise

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

// TableSize is the number of distinct lattice hashes.
const TableSize = 256

// ErrInvalidTable is returned when a permutation table is not a permutation
// of 0..TableSize-1.
var ErrInvalidTable = errors.New("invalid permutation table")

// Source produces a smooth scalar field over the plane.
type Source interface {
	Noise(x, y float64) float64
}

// Field is 2D gradient noise over a fixed permutation table. The table is
// mirrored past TableSize so corner lookups never wrap. A Field is immutable
// after construction and safe for concurrent use.
type Field struct {
	perm [2 * TableSize]int
}

// NewField builds a Field whose table is a shuffle of 0..255 drawn from seed.
// Equal seeds yield equal fields.
func NewField(seed uint64) *Field {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	table := make([]int, TableSize)
	for i := range table {
		table[i] = i
	}
	r.Shuffle(len(table), func(i, j int) {
		table[i], table[j] = table[j], table[i]
	})

	f := &Field{}
	f.fill(table)
	return f
}

// NewFieldFromTable builds a Field from an explicit permutation of 0..255.
func NewFieldFromTable(table []int) (*Field, error) {
	if len(table) != TableSize {
		return nil, fmt.Errorf("%w: got %d entries, want %d", ErrInvalidTable, len(table), TableSize)
	}

	var seen [TableSize]bool
	for i, v := range table {
		if v < 0 || v >= TableSize {
			return nil, fmt.Errorf("%w: entry %d is %d", ErrInvalidTable, i, v)
		}
		if seen[v] {
			return nil, fmt.Errorf("%w: value %d repeated", ErrInvalidTable, v)
		}
		seen[v] = true
	}

	f := &Field{}
	f.fill(table)
	return f, nil
}

func (f *Field) fill(table []int) {
	for i := 0; i < TableSize; i++ {
		f.perm[i] = table[i]
		f.perm[i+TableSize] = table[i]
	}
}

// Noise samples the field at (x, y). Integer lattice points map to zero.
func (f *Field) Noise(x, y float64) float64 {
	fx := math.Floor(x)
	fy := math.Floor(y)
	xi := int(fx) & (TableSize - 1)
	yi := int(fy) & (TableSize - 1)

	x -= fx
	y -= fy

	u := fade(x)
	v := fade(y)

	p := &f.perm
	a := p[xi] + yi
	aa := p[a]
	ab := p[a+1]
	b := p[xi+1] + yi
	ba := p[b]
	bb := p[b+1]

	return lerp(
		lerp(grad(p[aa], x, y), grad(p[ba], x-1, y), u),
		lerp(grad(p[ab], x, y-1), grad(p[bb], x-1, y-1), u),
		v,
	)
}

// fade is 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// grad picks one of the 16 gradient directions from the low bits of hash.
func grad(hash int, x, y float64) float64 {
	h := hash & 15
	u := y
	if h < 8 {
		u = x
	}

	var v float64
	switch {
	case h < 4:
		v = y
	case h == 12 || h == 14:
		v = x
	}

	if h&1 != 0 {
		u = -u
	}
	if h&2 != 0 {
		v = -v
	}
	return u + v
}
