package predict

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/timeutil"
)

// KalmanConfig tunes the constant-velocity filter.
type KalmanConfig struct {
	// StepSize is the synthetic time step between pushes.
	StepSize float64 `yaml:"step_size" json:"step_size"`
	// MeasurementNoise is the variance of each detected coordinate.
	MeasurementNoise float64 `yaml:"measurement_noise" json:"measurement_noise"`
	// AccelerationNoise is the standard deviation of the white acceleration
	// driving the process noise.
	AccelerationNoise float64 `yaml:"acceleration_noise" json:"acceleration_noise"`
	// InitialVelocityVariance is the velocity uncertainty after the first push.
	InitialVelocityVariance float64 `yaml:"initial_velocity_variance" json:"initial_velocity_variance"`
}

// DefaultKalmanConfig returns the stock filter tuning.
func DefaultKalmanConfig() KalmanConfig {
	return KalmanConfig{
		StepSize:                1,
		MeasurementNoise:        1,
		AccelerationNoise:       0.5,
		InitialVelocityVariance: 1000,
	}
}

// Validate rejects non-positive tunables.
func (c KalmanConfig) Validate() error {
	switch {
	case c.StepSize <= 0:
		return fmt.Errorf("step_size must be positive, got %v", c.StepSize)
	case c.MeasurementNoise <= 0:
		return fmt.Errorf("measurement_noise must be positive, got %v", c.MeasurementNoise)
	case c.AccelerationNoise < 0:
		return fmt.Errorf("acceleration_noise must not be negative, got %v", c.AccelerationNoise)
	case c.InitialVelocityVariance <= 0:
		return fmt.Errorf("initial_velocity_variance must be positive, got %v", c.InitialVelocityVariance)
	}
	return nil
}

// Kalman is a discrete constant-velocity Kalman filter over [x, y, vx, vy].
// Position extrapolates the filtered state by the wall-clock time elapsed
// since the last push.
type Kalman struct {
	config KalmanConfig
	clock  timeutil.Clock

	f   *mat.Dense // state transition
	q   *mat.Dense // process noise
	h   *mat.Dense // measurement model
	r   *mat.Dense // measurement noise
	eye *mat.DiagDense

	x           *mat.VecDense
	p           *mat.Dense
	lastUpdate  time.Time
	initialized bool
}

// NewKalman creates a filter. A nil clock uses the system clock.
func NewKalman(config KalmanConfig, clock timeutil.Clock) *Kalman {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	dt := config.StepSize
	k := &Kalman{
		config: config,
		clock:  clock,
		f: mat.NewDense(4, 4, []float64{
			1, 0, dt, 0,
			0, 1, 0, dt,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}),
		h: mat.NewDense(2, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
		}),
		r: mat.NewDense(2, 2, []float64{
			config.MeasurementNoise, 0,
			0, config.MeasurementNoise,
		}),
		eye: mat.NewDiagDense(4, []float64{1, 1, 1, 1}),
	}

	// White acceleration enters position as dt²/2 and velocity as dt.
	g := mat.NewDense(4, 2, []float64{
		dt * dt / 2, 0,
		0, dt * dt / 2,
		dt, 0,
		0, dt,
	})
	k.q = mat.NewDense(4, 4, nil)
	k.q.Mul(g, g.T())
	k.q.Scale(config.AccelerationNoise*config.AccelerationNoise, k.q)

	k.Reset()
	return k
}

// Push runs one predict/correct cycle with the measurement (x, y).
func (k *Kalman) Push(x, y float64) {
	now := k.clock.Now()

	if !k.initialized {
		k.x = mat.NewVecDense(4, []float64{x, y, 0, 0})
		k.p = mat.NewDense(4, 4, nil)
		k.p.Set(0, 0, k.config.MeasurementNoise)
		k.p.Set(1, 1, k.config.MeasurementNoise)
		k.p.Set(2, 2, k.config.InitialVelocityVariance)
		k.p.Set(3, 3, k.config.InitialVelocityVariance)
		k.lastUpdate = now
		k.initialized = true
		return
	}

	// Predict.
	var xp mat.VecDense
	xp.MulVec(k.f, k.x)

	var fp, pp mat.Dense
	fp.Mul(k.f, k.p)
	pp.Mul(&fp, k.f.T())
	pp.Add(&pp, k.q)

	k.lastUpdate = now

	// Correct.
	var hx, innovation mat.VecDense
	hx.MulVec(k.h, &xp)
	innovation.SubVec(mat.NewVecDense(2, []float64{x, y}), &hx)

	var hp, s mat.Dense
	hp.Mul(k.h, &pp)
	s.Mul(&hp, k.h.T())
	s.Add(&s, k.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		// Singular innovation covariance: keep the prediction.
		k.x = &xp
		k.p = &pp
		return
	}

	var pht, gain mat.Dense
	pht.Mul(&pp, k.h.T())
	gain.Mul(&pht, &sInv)

	var dx mat.VecDense
	dx.MulVec(&gain, &innovation)
	xp.AddVec(&xp, &dx)

	var kh, ikh, pn mat.Dense
	kh.Mul(&gain, k.h)
	ikh.Sub(k.eye, &kh)
	pn.Mul(&ikh, &pp)

	k.x = &xp
	k.p = &pn
}

// Update pushes the detection's coordinates.
func (k *Kalman) Update(d detector.Detection) {
	k.Push(float64(d.X), float64(d.Y))
}

// Position extrapolates the filtered position by the time since the last
// push and truncates to pixels. It does not change the filter.
func (k *Kalman) Position() (geom.Point, error) {
	if !k.initialized {
		return geom.Point{}, ErrNotInitialized
	}

	elapsed := k.clock.Since(k.lastUpdate).Seconds()
	return geom.FromFloat(
		k.x.AtVec(0)+k.x.AtVec(2)*elapsed,
		k.x.AtVec(1)+k.x.AtVec(3)*elapsed,
	), nil
}

// Estimate is Position.
func (k *Kalman) Estimate() (geom.Point, error) {
	return k.Position()
}

// State returns the filtered position and velocity.
func (k *Kalman) State() (x, y, vx, vy float64) {
	if !k.initialized {
		return 0, 0, 0, 0
	}
	return k.x.AtVec(0), k.x.AtVec(1), k.x.AtVec(2), k.x.AtVec(3)
}

// Initialized reports whether at least one measurement was pushed.
func (k *Kalman) Initialized() bool {
	return k.initialized
}

// Reset discards the filter state.
func (k *Kalman) Reset() {
	k.x = mat.NewVecDense(4, nil)
	k.p = mat.NewDense(4, 4, nil)
	k.lastUpdate = time.Time{}
	k.initialized = false
}
