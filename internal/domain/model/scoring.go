package model

import (
	"fmt"
	"time"
)

// BenchmarkRow is an aggregated peer statistic keyed by industry, platform
// and KPI.
type BenchmarkRow struct {
	Industry     string   `json:"industry" yaml:"industry"`
	Platform     Platform `json:"platform" yaml:"platform"`
	KPI          KPI      `json:"kpi" yaml:"kpi"`
	Percentile25 float64  `json:"percentile_25" yaml:"percentile_25"`
	Median       float64  `json:"median" yaml:"median"`
	Percentile75 float64  `json:"percentile_75" yaml:"percentile_75"`
	SampleSize   int      `json:"sample_size" yaml:"sample_size"`
}

// Validate checks the quantile ordering and sample size.
func (b BenchmarkRow) Validate() error {
	if b.Percentile25 > b.Median || b.Median > b.Percentile75 {
		return fmt.Errorf("%w: %s/%s/%s quantiles out of order (p25=%g median=%g p75=%g)",
			ErrInvalidBenchmark, b.Industry, b.Platform, b.KPI, b.Percentile25, b.Median, b.Percentile75)
	}
	if b.SampleSize <= 0 {
		return fmt.Errorf("%w: %s/%s/%s sample_size must be positive", ErrInvalidBenchmark, b.Industry, b.Platform, b.KPI)
	}
	return nil
}

// ComparisonResult is one KPI's placement against its benchmark.
type ComparisonResult struct {
	KPI                 KPI     `json:"kpi"`
	UserValue           float64 `json:"user_value"`
	BenchmarkPercentile float64 `json:"benchmark_percentile"`
	PerformanceScore    float64 `json:"performance_score"`
}

// CompositeScore is the blended 0-100 score for an account and window.
type CompositeScore struct {
	Score         float64         `json:"score"`
	PreviousScore *float64        `json:"previous_score"`
	Percentile    *float64        `json:"percentile"`
	Contributions map[KPI]float64 `json:"contributions"`
}

// TimeSeriesPoint is one observation of a metric.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Direction of an anomalous deviation.
type Direction string

// Directions.
const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

// AnomalyEvent is a flagged time-series point. It is produced per detection
// run and is not persisted.
type AnomalyEvent struct {
	Metric             string    `json:"metric"`
	Timestamp          time.Time `json:"timestamp"`
	ObservedValue      float64   `json:"observed_value"`
	ExpectedMean       float64   `json:"expected_mean"`
	DeviationMagnitude float64   `json:"deviation_magnitude"`
	Direction          Direction `json:"direction"`
}
