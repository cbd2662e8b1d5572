package predict

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/cursorflow/internal/cursor"
	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/geom"
)

// WindowConfig tunes the windowed offset predictor.
type WindowConfig struct {
	Size int `yaml:"size" json:"size"`
}

// DefaultWindowConfig returns a window of two samples.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{Size: 2}
}

// Validate requires a positive window.
func (c WindowConfig) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("size must be at least 1, got %d", c.Size)
	}
	return nil
}

// Windowed keeps the last N offsets per axis and predicts the cursor
// position plus the mean offset scaled by N.
type Windowed struct {
	size   int
	cursor cursor.Provider
	xs, ys []float64
}

// NewWindowed creates a predictor reading the cursor from cur.
func NewWindowed(config WindowConfig, cur cursor.Provider) *Windowed {
	size := config.Size
	if size < 1 {
		size = 1
	}
	return &Windowed{
		size:   size,
		cursor: cur,
		xs:     make([]float64, 0, size),
		ys:     make([]float64, 0, size),
	}
}

// AddSample appends an offset, evicting the oldest once the window is full.
func (w *Windowed) AddSample(x, y int) {
	if len(w.xs) >= w.size {
		w.xs = append(w.xs[:0], w.xs[1:]...)
	}
	if len(w.ys) >= w.size {
		w.ys = append(w.ys[:0], w.ys[1:]...)
	}
	w.xs = append(w.xs, float64(x))
	w.ys = append(w.ys, float64(y))
}

// Update adds the detection's offset from the current cursor position.
// Detections arriving while the cursor is unknown are dropped.
func (w *Windowed) Update(d detector.Detection) {
	pos, err := w.cursor.Position()
	if err != nil {
		return
	}
	w.AddSample(d.X-pos.X, d.Y-pos.Y)
}

// PredictedX returns cursor.X + mean(x window)·N.
func (w *Windowed) PredictedX() (int, error) {
	pos, err := w.anchor()
	if err != nil {
		return 0, err
	}
	return int(stat.Mean(w.xs, nil)*float64(w.size) + float64(pos.X)), nil
}

// PredictedY returns cursor.Y + mean(y window)·N.
func (w *Windowed) PredictedY() (int, error) {
	pos, err := w.anchor()
	if err != nil {
		return 0, err
	}
	return int(stat.Mean(w.ys, nil)*float64(w.size) + float64(pos.Y)), nil
}

// Estimate combines PredictedX and PredictedY.
func (w *Windowed) Estimate() (geom.Point, error) {
	x, err := w.PredictedX()
	if err != nil {
		return geom.Point{}, err
	}
	y, err := w.PredictedY()
	if err != nil {
		return geom.Point{}, err
	}
	return geom.Pt(x, y), nil
}

func (w *Windowed) anchor() (geom.Point, error) {
	if len(w.xs) == 0 {
		return geom.Point{}, ErrNotInitialized
	}
	pos, err := w.cursor.Position()
	if err != nil {
		return geom.Point{}, fmt.Errorf("read cursor: %w", err)
	}
	return pos, nil
}

// Len returns the number of samples in the window.
func (w *Windowed) Len() int {
	return len(w.xs)
}

// Initialized reports whether the window holds a sample.
func (w *Windowed) Initialized() bool {
	return len(w.xs) > 0
}

// Reset empties both windows.
func (w *Windowed) Reset() {
	w.xs = w.xs[:0]
	w.ys = w.ys[:0]
}
