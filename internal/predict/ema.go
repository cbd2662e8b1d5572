package predict

import (
	"fmt"
	"math"
	"time"

	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/geom"
)

// EMAConfig tunes the damped exponential-moving-average predictor.
type EMAConfig struct {
	Alpha            float64 `yaml:"alpha" json:"alpha"`
	LeadSeconds      float64 `yaml:"lead_seconds" json:"lead_seconds"`
	DampingThreshold float64 `yaml:"damping_threshold" json:"damping_threshold"`
	MinDamping       float64 `yaml:"min_damping" json:"min_damping"`
	MinDeltaSeconds  float64 `yaml:"min_delta_seconds" json:"min_delta_seconds"`
}

// DefaultEMAConfig returns the stock tuning.
func DefaultEMAConfig() EMAConfig {
	return EMAConfig{
		Alpha:            0.5,
		LeadSeconds:      0.07,
		DampingThreshold: 60,
		MinDamping:       0.1,
		MinDeltaSeconds:  0.0001,
	}
}

// Validate checks ranges.
func (c EMAConfig) Validate() error {
	switch {
	case c.Alpha <= 0 || c.Alpha > 1:
		return fmt.Errorf("alpha must be in (0, 1], got %v", c.Alpha)
	case c.LeadSeconds < 0:
		return fmt.Errorf("lead_seconds must not be negative, got %v", c.LeadSeconds)
	case c.DampingThreshold <= 0:
		return fmt.Errorf("damping_threshold must be positive, got %v", c.DampingThreshold)
	case c.MinDamping < 0 || c.MinDamping > 1:
		return fmt.Errorf("min_damping must be in [0, 1], got %v", c.MinDamping)
	case c.MinDeltaSeconds < 0:
		return fmt.Errorf("min_delta_seconds must not be negative, got %v", c.MinDeltaSeconds)
	}
	return nil
}

// DampingFactor scales a lead displacement d so that large jumps are
// trusted less: 1 at zero, falling linearly to minDamping at threshold.
func DampingFactor(d, threshold, minDamping float64) float64 {
	return math.Max(minDamping, 1-math.Min(math.Abs(d)/threshold, 1))
}

// DampedEMA smooths detections with an exponential moving average and
// leads the smoothed position by its velocity, damped per axis.
type DampedEMA struct {
	config EMAConfig

	emaX, emaY  float64
	vx, vy      float64
	lastUpdate  time.Time
	initialized bool
}

// NewDampedEMA creates a predictor.
func NewDampedEMA(config EMAConfig) *DampedEMA {
	return &DampedEMA{config: config}
}

// UpdateDetection folds d into the average. The first detection seeds the
// average; detections closer than MinDeltaSeconds to the previous one are
// ignored.
func (e *DampedEMA) UpdateDetection(d detector.Detection) {
	x, y := float64(d.X), float64(d.Y)

	if !e.initialized {
		e.emaX, e.emaY = x, y
		e.vx, e.vy = 0, 0
		e.lastUpdate = d.Timestamp
		e.initialized = true
		return
	}

	dt := d.Timestamp.Sub(e.lastUpdate).Seconds()
	if dt <= e.config.MinDeltaSeconds {
		return
	}

	prevX, prevY := e.emaX, e.emaY
	a := e.config.Alpha
	e.emaX = a*x + (1-a)*e.emaX
	e.emaY = a*y + (1-a)*e.emaY
	e.vx = (e.emaX - prevX) / dt
	e.vy = (e.emaY - prevY) / dt
	e.lastUpdate = d.Timestamp
}

// Update is UpdateDetection.
func (e *DampedEMA) Update(d detector.Detection) {
	e.UpdateDetection(d)
}

// EstimatedPosition leads the average by lead seconds.
func (e *DampedEMA) EstimatedPosition(lead float64) (geom.Point, error) {
	if !e.initialized {
		return geom.Point{}, ErrNotInitialized
	}

	dx := e.vx * lead
	dy := e.vy * lead
	fx := DampingFactor(dx, e.config.DampingThreshold, e.config.MinDamping)
	fy := DampingFactor(dy, e.config.DampingThreshold, e.config.MinDamping)

	return geom.FromFloat(e.emaX+dx*fx, e.emaY+dy*fy), nil
}

// Estimate leads by the configured LeadSeconds.
func (e *DampedEMA) Estimate() (geom.Point, error) {
	return e.EstimatedPosition(e.config.LeadSeconds)
}

// Average returns the smoothed position and its velocity in px/s.
func (e *DampedEMA) Average() (x, y, vx, vy float64) {
	return e.emaX, e.emaY, e.vx, e.vy
}

// Initialized reports whether a detection has been seen.
func (e *DampedEMA) Initialized() bool {
	return e.initialized
}

// Reset discards all state.
func (e *DampedEMA) Reset() {
	*e = DampedEMA{config: e.config}
}
