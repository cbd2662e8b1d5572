// Package tuning scores predictors against recorded detection traces.
package tuning

import (
	"math"

	"github.com/ayusman/cursorflow/internal/geom"
)

// DTWDistance calculates the Dynamic Time Warping distance between two
// point sequences, normalized by the longer length. Returns infinity if
// either sequence is empty.
func DTWDistance(a, b []geom.Point) float64 {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return math.Inf(1)
	}

	// Two rows of the (n+1) x (m+1) cost matrix.
	prev := make([]float64, m+1)
	curr := make([]float64, m+1)
	for j := range prev {
		prev[j] = math.Inf(1)
	}
	prev[0] = 0

	for i := 1; i <= n; i++ {
		curr[0] = math.Inf(1)
		for j := 1; j <= m; j++ {
			cost := geom.Distance(a[i-1], b[j-1])
			curr[j] = cost + min(prev[j], curr[j-1], prev[j-1])
		}
		prev, curr = curr, prev
	}

	return prev[m] / float64(max(n, m))
}

// Similarity maps a DTW distance to (0, 1]; identical sequences score 1.
func Similarity(a, b []geom.Point) float64 {
	d := DTWDistance(a, b)
	if math.IsInf(d, 1) {
		return 0
	}
	return 1 / (1 + d)
}
