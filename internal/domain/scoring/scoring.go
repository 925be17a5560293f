// Package scoring blends per-KPI benchmark comparisons into one composite
// score.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/aecr/internal/domain/model"
)

const (
	weightSumTolerance = 1e-6
	maxScoreValue      = 100
)

// DefaultWeights returns the default KPI weights. They sum to 1.
func DefaultWeights() map[model.KPI]float64 {
	return map[model.KPI]float64{
		model.KPIROAS: 0.30,
		model.KPICPA:  0.25,
		model.KPICTR:  0.20,
		model.KPICVR:  0.15,
		model.KPICPC:  0.10,
	}
}

// ValidateWeights checks that w is non-empty, non-negative and sums to 1.
func ValidateWeights(w map[model.KPI]float64) error {
	if len(w) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidWeights)
	}
	var sum float64
	for kpi, v := range w {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidWeights, kpi, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: sum is %v", ErrInvalidWeights, sum)
	}
	return nil
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer) error

// WithWeights replaces the KPI weights. Weights are configuration, never
// user input, and must sum to 1.
func WithWeights(w map[model.KPI]float64) Option {
	return func(s *Scorer) error {
		if err := ValidateWeights(w); err != nil {
			return err
		}
		// Copy the weights map to avoid external modifications
		s.weights = make(map[model.KPI]float64, len(w))
		for k, v := range w {
			s.weights[k] = v
		}
		return nil
	}
}

// Scorer computes composite scores. It is immutable after construction.
type Scorer struct {
	weights map[model.KPI]float64
}

// NewScorer creates a Scorer with DefaultWeights unless overridden.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{weights: DefaultWeights()}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Weights returns a copy of the configured weights.
func (s *Scorer) Weights() map[model.KPI]float64 {
	out := make(map[model.KPI]float64, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out
}

// Score blends the performance scores of results. Weights are renormalized
// over the weighted KPIs present; KPIs without a weight are ignored. When a
// KPI appears more than once the first result wins.
func (s *Scorer) Score(results []model.ComparisonResult) (model.CompositeScore, error) {
	present := make(map[model.KPI]float64, len(results))
	var total float64
	for _, r := range results {
		w, ok := s.weights[r.KPI]
		if !ok || w == 0 {
			continue
		}
		if _, dup := present[r.KPI]; dup {
			continue
		}
		present[r.KPI] = r.PerformanceScore
		total += w
	}
	if len(present) == 0 || total == 0 {
		return model.CompositeScore{}, ErrNoScorableKpis
	}

	// Sum in a stable order so equal inputs give bit-identical scores.
	kpis := make([]model.KPI, 0, len(present))
	for k := range present {
		kpis = append(kpis, k)
	}
	sort.Slice(kpis, func(i, j int) bool { return kpis[i] < kpis[j] })

	contributions := make(map[model.KPI]float64, len(kpis))
	var score float64
	for _, k := range kpis {
		w := s.weights[k] / total
		contributions[k] = w
		score += w * present[k]
	}

	return model.CompositeScore{
		Score:         math.Max(0, math.Min(maxScoreValue, score)),
		Contributions: contributions,
	}, nil
}
