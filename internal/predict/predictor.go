// Package predict estimates where a tracked target is now from a stream of
// noisy detections. Three estimators share the Predictor interface and are
// selected at runtime by Kind.
package predict

import (
	"errors"
	"fmt"

	"github.com/ayusman/cursorflow/internal/cursor"
	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/timeutil"
)

// ErrNotInitialized is returned when an estimate is requested before the
// predictor has received any detection.
var ErrNotInitialized = errors.New("predictor not initialized")

// Predictor turns detections into a current position estimate. Update is the
// only operation that changes state; Estimate is a pure read.
type Predictor interface {
	Update(d detector.Detection)
	Estimate() (geom.Point, error)
	Initialized() bool
	Reset()
}

// Kind selects a predictor implementation.
type Kind string

const (
	KindKalman Kind = "kalman"
	KindEMA    Kind = "ema"
	KindWindow Kind = "window"
)

// Valid reports whether k names a known predictor.
func (k Kind) Valid() bool {
	switch k {
	case KindKalman, KindEMA, KindWindow:
		return true
	}
	return false
}

// Config holds the tunables of every predictor plus the active kind.
type Config struct {
	Kind   Kind         `yaml:"kind" json:"kind"`
	Kalman KalmanConfig `yaml:"kalman" json:"kalman"`
	EMA    EMAConfig    `yaml:"ema" json:"ema"`
	Window WindowConfig `yaml:"window" json:"window"`
}

// DefaultConfig returns the stock tuning with the Kalman predictor active.
func DefaultConfig() Config {
	return Config{
		Kind:   KindKalman,
		Kalman: DefaultKalmanConfig(),
		EMA:    DefaultEMAConfig(),
		Window: DefaultWindowConfig(),
	}
}

// Validate checks the active kind and every tunable.
func (c Config) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown predictor kind %q", c.Kind)
	}
	if err := c.Kalman.Validate(); err != nil {
		return fmt.Errorf("kalman: %w", err)
	}
	if err := c.EMA.Validate(); err != nil {
		return fmt.Errorf("ema: %w", err)
	}
	if err := c.Window.Validate(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	return nil
}

// New builds the predictor selected by cfg.Kind. The clock drives Kalman
// extrapolation; the cursor provider anchors the windowed predictor.
func New(cfg Config, clock timeutil.Clock, cur cursor.Provider) (Predictor, error) {
	switch cfg.Kind {
	case KindKalman:
		return NewKalman(cfg.Kalman, clock), nil
	case KindEMA:
		return NewDampedEMA(cfg.EMA), nil
	case KindWindow:
		if cur == nil {
			return nil, fmt.Errorf("window predictor requires a cursor provider")
		}
		return NewWindowed(cfg.Window, cur), nil
	default:
		return nil, fmt.Errorf("unknown predictor kind %q", cfg.Kind)
	}
}
