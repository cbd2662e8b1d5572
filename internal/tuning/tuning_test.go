package tuning

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/predict"
)

func TestDTW_IdenticalPaths(t *testing.T) {
	path := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}

	assert.Zero(t, DTWDistance(path, path))
	assert.Equal(t, 1.0, Similarity(path, path))
}

func TestDTW_DifferentPaths(t *testing.T) {
	a := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}
	b := []geom.Point{{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}}

	assert.InDelta(t, 2.0, DTWDistance(a, b), 1e-9)
	assert.InDelta(t, 1.0/3, Similarity(a, b), 1e-9)
}

func TestDTW_SpeedInvariant(t *testing.T) {
	fast := []geom.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 8, Y: 0}}
	slow := []geom.Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 4, Y: 0}, {X: 6, Y: 0}, {X: 8, Y: 0}}
	shifted := []geom.Point{{X: 0, Y: 5}, {X: 4, Y: 5}, {X: 8, Y: 5}}

	assert.Less(t, DTWDistance(fast, slow), DTWDistance(fast, shifted))
}

func TestDTW_EmptyPath(t *testing.T) {
	path := []geom.Point{{X: 1, Y: 1}}

	assert.True(t, math.IsInf(DTWDistance(nil, path), 1))
	assert.True(t, math.IsInf(DTWDistance(path, nil), 1))
	assert.Zero(t, Similarity(nil, path))
}

func makeTrace(n int, step geom.Point, interval time.Duration) []detector.Detection {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	trace := make([]detector.Detection, n)
	for i := range trace {
		trace[i] = detector.Detection{
			X:         100 + i*step.X,
			Y:         200 + i*step.Y,
			Timestamp: base.Add(time.Duration(i) * interval),
		}
	}
	return trace
}

func TestEvaluate_StationaryTargetIsExact(t *testing.T) {
	trace := makeTrace(10, geom.Pt(0, 0), 16*time.Millisecond)

	for _, kind := range []predict.Kind{predict.KindKalman, predict.KindEMA, predict.KindWindow} {
		t.Run(string(kind), func(t *testing.T) {
			cfg := predict.DefaultConfig()
			cfg.Kind = kind

			r, err := Evaluate(cfg, trace)
			require.NoError(t, err)
			assert.Equal(t, kind, r.Kind)
			assert.Equal(t, 9, r.Samples)
			assert.Zero(t, r.MaxError)
			assert.Equal(t, 1.0, r.Similarity)
		})
	}
}

func TestEvaluate_KalmanLearnsConstantVelocity(t *testing.T) {
	// Velocity is learned per update and extrapolated per second, so a 1s
	// cadence makes the one-step-ahead estimate land on the next detection.
	trace := makeTrace(40, geom.Pt(4, 2), time.Second)

	r, err := Evaluate(predict.DefaultConfig(), trace)
	require.NoError(t, err)

	assert.Equal(t, 39, r.Samples)
	assert.LessOrEqual(t, r.MeanError, r.MaxError)
	assert.LessOrEqual(t, r.P95Error, r.MaxError)
	assert.Greater(t, r.RMSError, 0.0)
	// The first estimates lag before velocity is learned; the bulk does not.
	assert.Less(t, r.MeanError, 2.5)
}

func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate(predict.DefaultConfig(), makeTrace(1, geom.Pt(1, 1), time.Millisecond))
	assert.ErrorIs(t, err, ErrTraceTooShort)

	cfg := predict.DefaultConfig()
	cfg.Kind = "spline"
	_, err = Evaluate(cfg, makeTrace(3, geom.Pt(1, 1), time.Millisecond))
	assert.Error(t, err)
}

func TestCompare_SortsByMeanError(t *testing.T) {
	trace := makeTrace(30, geom.Pt(5, 0), 16*time.Millisecond)

	reports, err := Compare(predict.DefaultConfig(), trace)
	require.NoError(t, err)
	require.Len(t, reports, 3)

	kinds := map[predict.Kind]bool{}
	for i, r := range reports {
		kinds[r.Kind] = true
		if i > 0 {
			assert.LessOrEqual(t, reports[i-1].MeanError, r.MeanError)
		}
	}
	assert.Len(t, kinds, 3)

	only, err := Compare(predict.DefaultConfig(), trace, predict.KindEMA)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, predict.KindEMA, only[0].Kind)
}
