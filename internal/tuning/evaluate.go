package tuning

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/cursorflow/internal/cursor"
	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/predict"
	"github.com/ayusman/cursorflow/internal/timeutil"
)

// ErrTraceTooShort is returned for traces with fewer than two detections.
var ErrTraceTooShort = errors.New("trace needs at least two detections")

// Report summarizes how well a predictor anticipated a trace. Errors are
// one step ahead: the estimate taken at detection i+1's timestamp, before
// it is fed, against detection i+1.
type Report struct {
	Kind       predict.Kind `json:"kind"`
	Samples    int          `json:"samples"`
	MeanError  float64      `json:"mean_error"`
	RMSError   float64      `json:"rms_error"`
	P95Error   float64      `json:"p95_error"`
	MaxError   float64      `json:"max_error"`
	DTW        float64      `json:"dtw"`
	Similarity float64      `json:"similarity"`
}

// Evaluate replays trace through a predictor built from cfg. The cursor
// follows the estimates, as it does under the control loop, so
// cursor-relative predictors see realistic offsets.
func Evaluate(cfg predict.Config, trace []detector.Detection) (Report, error) {
	if len(trace) < 2 {
		return Report{}, ErrTraceTooShort
	}

	clock := timeutil.NewManualClock(trace[0].Timestamp)
	cur := cursor.NewVirtual(geom.Pt(trace[0].X, trace[0].Y))
	p, err := predict.New(cfg, clock, cur)
	if err != nil {
		return Report{}, fmt.Errorf("build %s predictor: %w", cfg.Kind, err)
	}

	var (
		errs      []float64
		predicted []geom.Point
		actual    []geom.Point
	)
	p.Update(trace[0])
	for _, d := range trace[1:] {
		clock.Set(d.Timestamp)
		target := geom.Pt(d.X, d.Y)

		if est, err := p.Estimate(); err == nil {
			errs = append(errs, geom.Distance(est, target))
			predicted = append(predicted, est)
			actual = append(actual, target)
			cur.MoveTo(est)
		}
		p.Update(d)
	}

	if len(errs) == 0 {
		return Report{}, fmt.Errorf("%s predictor produced no estimates", cfg.Kind)
	}

	var sumSq float64
	for _, e := range errs {
		sumSq += e * e
	}
	sorted := slices.Clone(errs)
	slices.Sort(sorted)

	dtw := DTWDistance(predicted, actual)
	return Report{
		Kind:       cfg.Kind,
		Samples:    len(errs),
		MeanError:  stat.Mean(errs, nil),
		RMSError:   math.Sqrt(sumSq / float64(len(errs))),
		P95Error:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		MaxError:   sorted[len(sorted)-1],
		DTW:        dtw,
		Similarity: 1 / (1 + dtw),
	}, nil
}

// Compare evaluates every kind over trace with base as the shared tuning,
// best mean error first.
func Compare(base predict.Config, trace []detector.Detection, kinds ...predict.Kind) ([]Report, error) {
	if len(kinds) == 0 {
		kinds = []predict.Kind{predict.KindKalman, predict.KindEMA, predict.KindWindow}
	}

	reports := make([]Report, 0, len(kinds))
	for _, kind := range kinds {
		cfg := base
		cfg.Kind = kind
		r, err := Evaluate(cfg, trace)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}

	slices.SortStableFunc(reports, func(a, b Report) int {
		switch {
		case a.MeanError < b.MeanError:
			return -1
		case a.MeanError > b.MeanError:
			return 1
		}
		return 0
	})
	return reports, nil
}
