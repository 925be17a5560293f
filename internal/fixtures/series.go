// Package fixtures generates synthetic campaign data for tests. Nothing in
// production code imports it.
package fixtures

import (
	"math"
	"math/rand"
	"time"

	"github.com/okian/aecr/internal/domain/model"
)

// Series returns one point per day starting at start.
func Series(start time.Time, values ...float64) []model.TimeSeriesPoint {
	out := make([]model.TimeSeriesPoint, len(values))
	for i, v := range values {
		out[i] = model.TimeSeriesPoint{Timestamp: start.AddDate(0, 0, i), Value: v}
	}
	return out
}

// Trend returns days points of a seeded noisy linear trend: base growing by
// slope per day with uniform noise of +/- noise. The same seed always yields
// the same series.
func Trend(seed int64, start time.Time, days int, base, slope, noise float64) []model.TimeSeriesPoint {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fixtures
	values := make([]float64, days)
	for i := range values {
		v := base + slope*float64(i) + (rng.Float64()*2-1)*noise
		values[i] = math.Max(0, v)
	}
	return Series(start, values...)
}

// WithSpike returns a copy of series where point i is multiplied by factor.
func WithSpike(series []model.TimeSeriesPoint, i int, factor float64) []model.TimeSeriesPoint {
	out := append([]model.TimeSeriesPoint(nil), series...)
	if i >= 0 && i < len(out) {
		out[i].Value *= factor
	}
	return out
}
