// Package cursor defines the boundary to the external pointer: where the
// cursor is now, and what happens when a waypoint sequence is applied.
package cursor

import (
	"errors"
	"sync"

	"github.com/ayusman/cursorflow/internal/geom"
)

// ErrUnknownPosition is returned when a provider has no position yet.
var ErrUnknownPosition = errors.New("cursor position unknown")

// Provider reports the current cursor position.
type Provider interface {
	Position() (geom.Point, error)
}

// Static always reports the same position.
type Static struct {
	Point geom.Point
}

// Position returns the fixed point.
func (s Static) Position() (geom.Point, error) {
	return s.Point, nil
}

// Virtual is an in-process cursor that follows applied waypoint sequences:
// after Apply, its position is the last waypoint. It stands in for a real
// pointer in dry runs, replays and tests.
type Virtual struct {
	mu      sync.RWMutex
	pos     geom.Point
	known   bool
	applied int
}

// NewVirtual creates a Virtual cursor at start.
func NewVirtual(start geom.Point) *Virtual {
	return &Virtual{pos: start, known: true}
}

// Position returns the last applied waypoint.
func (v *Virtual) Position() (geom.Point, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.known {
		return geom.Point{}, ErrUnknownPosition
	}
	return v.pos, nil
}

// MoveTo places the cursor at p.
func (v *Virtual) MoveTo(p geom.Point) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pos = p
	v.known = true
}

// Apply moves the cursor along path. Empty paths are ignored.
func (v *Virtual) Apply(path []geom.Point) {
	if len(path) == 0 {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.pos = path[len(path)-1]
	v.known = true
	v.applied++
}

// Applied returns how many non-empty paths have been applied.
func (v *Virtual) Applied() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.applied
}
