package detector

import (
	"sync"

	"github.com/ayusman/cursorflow/internal/timeutil"
)

// Replay plays back recorded positions, one per Detect call. Each emitted
// detection is stamped with the replay clock so update intervals follow the
// caller's tick rate rather than the recording's.
type Replay struct {
	mu     sync.Mutex
	trace  []Detection
	index  int
	loop   bool
	clock  timeutil.Clock
	closed bool
}

// NewReplay creates a Replay over trace. A nil clock uses the system clock.
func NewReplay(trace []Detection, loop bool, clock timeutil.Clock) *Replay {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &Replay{
		trace: trace,
		loop:  loop,
		clock: clock,
	}
}

// Detect returns the next recorded position, or nothing once a non-looping
// replay is exhausted.
func (r *Replay) Detect() ([]Detection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || len(r.trace) == 0 {
		return nil, nil
	}

	if r.index >= len(r.trace) {
		if !r.loop {
			return nil, nil
		}
		r.index = 0
	}

	d := r.trace[r.index]
	d.Timestamp = r.clock.Now()
	r.index++

	return []Detection{d}, nil
}

// Done reports whether a non-looping replay has emitted every detection.
func (r *Replay) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.loop && r.index >= len(r.trace)
}

// Reset restarts playback from the beginning.
func (r *Replay) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = 0
	r.closed = false
}

// Close stops playback.
func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
