// Package anomaly flags points of a metric series that deviate from the
// series mean by more than a configured number of standard deviations.
package anomaly

import (
	"math"
	"sort"
	"time"

	"github.com/okian/aecr/internal/domain/model"
)

const (
	// MinPoints is the shortest series the detector evaluates.
	MinPoints = 5
	// DefaultThreshold is the deviation, in standard deviations, above which
	// a point is anomalous.
	DefaultThreshold = 1.5
	// DefaultMinRelativeDeviation is the smallest deviation, as a fraction of
	// the mean, reported as an anomaly. Tight series around a stable mean
	// have tiny standard deviations; this floor keeps their noise quiet.
	DefaultMinRelativeDeviation = 0.05
)

// Option configures a Detector.
type Option func(*Detector)

// WithThreshold overrides DefaultThreshold. Non-positive values are ignored.
func WithThreshold(k float64) Option {
	return func(d *Detector) {
		if k > 0 && !math.IsInf(k, 0) {
			d.threshold = k
		}
	}
}

// WithMinRelativeDeviation overrides DefaultMinRelativeDeviation. Zero
// disables the floor.
func WithMinRelativeDeviation(f float64) Option {
	return func(d *Detector) {
		if f >= 0 && !math.IsInf(f, 0) {
			d.minRelative = f
		}
	}
}

// Detector is stateless after construction.
type Detector struct {
	threshold   float64
	minRelative float64
}

// NewDetector creates a Detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{threshold: DefaultThreshold, minRelative: DefaultMinRelativeDeviation}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Threshold returns the configured threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

// Detect returns the anomalous points of series in input order. Series shorter
// than MinPoints, or with zero spread, yield no events. The statistics are
// population mean and standard deviation over the whole series. A point is
// anomalous when |value-mean| > threshold*stddev and the deviation is at
// least the relative floor of |mean| (the floor is skipped when mean is 0).
// Without the floor the flat series [3.5 3.4 3.6 3.5 3.5] flags 3.4 and 3.6,
// since its stddev is only about 0.06; WithMinRelativeDeviation(0) restores
// the plain k·σ rule.
func (d *Detector) Detect(metric string, series []model.TimeSeriesPoint) []model.AnomalyEvent {
	if len(series) < MinPoints {
		return nil
	}
	mean, std := meanStd(series)
	if std == 0 || math.IsNaN(std) {
		return nil
	}

	var events []model.AnomalyEvent
	for _, p := range series {
		dev := math.Abs(p.Value - mean)
		if dev <= d.threshold*std {
			continue
		}
		if mean != 0 && dev < d.minRelative*math.Abs(mean) {
			continue
		}
		dir := model.Decrease
		if p.Value > mean {
			dir = model.Increase
		}
		events = append(events, model.AnomalyEvent{
			Metric:             metric,
			Timestamp:          p.Timestamp,
			ObservedValue:      p.Value,
			ExpectedMean:       mean,
			DeviationMagnitude: dev / std,
			Direction:          dir,
		})
	}
	return events
}

func meanStd(series []model.TimeSeriesPoint) (float64, float64) {
	n := float64(len(series))
	var sum float64
	for _, p := range series {
		sum += p.Value
	}
	mean := sum / n
	var sq float64
	for _, p := range series {
		d := p.Value - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

// SeriesFromRecords builds a daily series of kpi from canonical records.
// Primitive counters are summed per day and ratios recomputed from the sums;
// days where the ratio is undefined are omitted. Points are ordered by day.
func SeriesFromRecords(records []model.CampaignRecord, kpi model.KPI) []model.TimeSeriesPoint {
	byDay := make(map[time.Time][]model.CampaignRecord)
	for _, r := range records {
		byDay[r.Date] = append(byDay[r.Date], r)
	}
	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]model.TimeSeriesPoint, 0, len(days))
	for _, d := range days {
		if v, ok := model.Totals(byDay[d]).Value(kpi); ok {
			out = append(out, model.TimeSeriesPoint{Timestamp: d, Value: v})
		}
	}
	return out
}
