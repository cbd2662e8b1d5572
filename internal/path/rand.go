package path

import (
	"math/rand/v2"
	"sync"
)

// Rand is the random source shared by every path generator. Implementations
// must be safe for concurrent use.
type Rand interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a seeded, mutex-guarded generator. Equal seeds replay the
// same sequence.
func NewRand(seed uint64) Rand {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

type sharedRand struct{}

// SharedRand returns the process-wide generator from math/rand/v2.
func SharedRand() Rand {
	return sharedRand{}
}

func (sharedRand) Float64() float64 { return rand.Float64() }
func (sharedRand) IntN(n int) int   { return rand.IntN(n) }

// intBetween returns a value in [lo, hi].
func intBetween(r Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}
