// Package benchmark places a user's KPI values among industry peers.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/aecr/internal/domain/model"
)

// MinSampleSize is the smallest peer sample a benchmark row may be compared
// against.
const MinSampleSize = 30

const (
	minPercentile = 0
	maxPercentile = 100
)

// Store resolves benchmark rows.
type Store interface {
	Lookup(ctx context.Context, industry string, platform model.Platform, kpi model.KPI) (model.BenchmarkRow, error)
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithMinSampleSize overrides MinSampleSize.
func WithMinSampleSize(n int) Option {
	return func(c *Comparator) {
		if n > 0 {
			c.minSample = n
		}
	}
}

// WithLowerIsBetter replaces the set of KPIs where smaller values perform better.
func WithLowerIsBetter(kpis ...model.KPI) Option {
	return func(c *Comparator) {
		c.lowerIsBetter = make(map[model.KPI]bool, len(kpis))
		for _, k := range kpis {
			c.lowerIsBetter[k] = true
		}
	}
}

// Comparator is stateless after construction and safe for concurrent use.
type Comparator struct {
	minSample     int
	lowerIsBetter map[model.KPI]bool
}

// NewComparator creates a Comparator. Cost KPIs (cpa, cpc, spend) are
// lower-is-better by default.
func NewComparator(opts ...Option) *Comparator {
	c := &Comparator{
		minSample: MinSampleSize,
		lowerIsBetter: map[model.KPI]bool{
			model.KPICPA:   true,
			model.KPICPC:   true,
			model.KPISpend: true,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LowerIsBetter reports whether smaller values of kpi are better.
func (c *Comparator) LowerIsBetter(kpi model.KPI) bool { return c.lowerIsBetter[kpi] }

// Compare places userValue within row.
func (c *Comparator) Compare(kpi model.KPI, userValue float64, row model.BenchmarkRow) (model.ComparisonResult, error) {
	if math.IsNaN(userValue) || math.IsInf(userValue, 0) {
		return model.ComparisonResult{}, fmt.Errorf("%w: %s=%v", ErrInvalidValue, kpi, userValue)
	}
	// minSample is at least 1, so an empty sample is unusable rather than
	// malformed.
	if row.SampleSize < c.minSample {
		return model.ComparisonResult{}, fmt.Errorf("%w: %s/%s/%s has %d samples, need %d",
			ErrInsufficientData, row.Industry, row.Platform, kpi, row.SampleSize, c.minSample)
	}
	if err := row.Validate(); err != nil {
		return model.ComparisonResult{}, err
	}

	p := Percentile(userValue, row)
	score := p
	if c.lowerIsBetter[kpi] {
		score = maxPercentile - p
	}
	return model.ComparisonResult{
		KPI:                 kpi,
		UserValue:           userValue,
		BenchmarkPercentile: p,
		PerformanceScore:    score,
	}, nil
}

// Percentile maps v onto the 0-100 scale by piecewise-linear interpolation
// through (p25,25), (median,50) and (p75,75), extrapolating outside the
// quartiles from the nearest segment with non-zero width. A value equal to one
// or more quantiles takes the mean rank of those quantiles. The row must be
// ordered.
func Percentile(v float64, row model.BenchmarkRow) float64 {
	xs := [3]float64{row.Percentile25, row.Median, row.Percentile75}
	ys := [3]float64{25, 50, 75}

	var tied, n float64
	for i, x := range xs {
		if v == x {
			tied += ys[i]
			n++
		}
	}
	if n > 0 {
		return clamp(tied / n)
	}

	switch {
	case v < xs[0]:
		for _, j := range []int{1, 2} {
			if xs[j] > xs[0] {
				return clamp(line(v, xs[0], ys[0], xs[j], ys[j]))
			}
		}
		return minPercentile
	case v > xs[2]:
		for _, j := range []int{1, 0} {
			if xs[2] > xs[j] {
				return clamp(line(v, xs[j], ys[j], xs[2], ys[2]))
			}
		}
		return maxPercentile
	case v < xs[1]:
		return clamp(line(v, xs[0], ys[0], xs[1], ys[1]))
	default:
		return clamp(line(v, xs[1], ys[1], xs[2], ys[2]))
	}
}

// line evaluates the line through (x0,y0) and (x1,y1) at v; x1 > x0.
func line(v, x0, y0, x1, y1 float64) float64 {
	return y0 + (v-x0)*(y1-y0)/(x1-x0)
}

func clamp(p float64) float64 {
	return math.Max(minPercentile, math.Min(maxPercentile, p))
}

// Skipped is a KPI that could not be compared and why.
type Skipped struct {
	KPI    model.KPI
	Reason error
}

// CompareRecord compares each of kpis of rec (usually a Totals aggregate)
// against the benchmarks for industry. Undefined ratios, missing rows and
// thin samples are reported as skipped. Invalid rows and store failures
// abort with an error.
func (c *Comparator) CompareRecord(ctx context.Context, store Store, industry string, rec model.CampaignRecord, kpis []model.KPI) ([]model.ComparisonResult, []Skipped, error) {
	var (
		results []model.ComparisonResult
		skipped []Skipped
	)
	for _, kpi := range kpis {
		v, ok := rec.Value(kpi)
		if !ok {
			skipped = append(skipped, Skipped{KPI: kpi, Reason: fmt.Errorf("%s undefined for zero denominator", kpi)})
			continue
		}
		row, err := store.Lookup(ctx, industry, rec.Platform, kpi)
		if errors.Is(err, ErrNotFound) {
			skipped = append(skipped, Skipped{KPI: kpi, Reason: err})
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("lookup %s benchmark: %w", kpi, err)
		}
		res, err := c.Compare(kpi, v, row)
		if errors.Is(err, ErrInsufficientData) {
			skipped = append(skipped, Skipped{KPI: kpi, Reason: err})
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)
	}
	return results, skipped, nil
}
