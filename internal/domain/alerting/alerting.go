// Package alerting evaluates user alert rules against observed KPI values.
package alerting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/pkg/logger"
)

// DefaultBenchmarkThreshold is the benchmark percentile below which a
// below_benchmark rule with no threshold fires.
const DefaultBenchmarkThreshold = 50

const percent = 100

// Notifier delivers alert events.
type Notifier interface {
	Notify(ctx context.Context, e model.AlertEvent) error
}

// Observation is the state a set of rules is evaluated against. An empty
// CampaignID means an account-level aggregate.
type Observation struct {
	UserID      string
	Platform    model.Platform
	CampaignID  string
	At          time.Time
	Current     map[model.KPI]float64
	Previous    map[model.KPI]float64
	Comparisons map[model.KPI]model.ComparisonResult
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithNotifier sets where Run delivers events.
func WithNotifier(n Notifier) Option {
	return func(e *Evaluator) { e.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.log = l
		}
	}
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(f func() string) Option {
	return func(e *Evaluator) {
		if f != nil {
			e.newID = f
		}
	}
}

// Evaluator checks rules and produces alert events.
type Evaluator struct {
	notifier Notifier
	log      logger.Logger
	newID    func() string
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{log: logger.Discard(), newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns an event for every active, in-scope rule whose condition
// holds. Rules that cannot be evaluated for lack of data are skipped.
func (e *Evaluator) Evaluate(ctx context.Context, rules []model.AlertRule, obs Observation) []model.AlertEvent {
	var events []model.AlertEvent
	for _, r := range rules {
		if !r.Active || !inScope(r, obs) {
			continue
		}
		ev, fired, reason := e.check(r, obs)
		if reason != "" {
			e.log.Debug(ctx, "alert rule skipped",
				logger.String("rule", r.ID), logger.String("kpi", string(r.KPI)), logger.String("reason", reason))
			continue
		}
		if fired {
			ev.ID = e.newID()
			events = append(events, ev)
		}
	}
	return events
}

// Run evaluates rules and delivers every event to the notifier. Delivery
// failures are joined and returned alongside the events.
func (e *Evaluator) Run(ctx context.Context, rules []model.AlertRule, obs Observation) ([]model.AlertEvent, error) {
	events := e.Evaluate(ctx, rules, obs)
	if e.notifier == nil {
		return events, nil
	}
	var errs []error
	for _, ev := range events {
		if err := e.notifier.Notify(ctx, ev); err != nil {
			e.log.Error(ctx, "alert delivery failed", logger.String("rule", ev.RuleID), logger.Error(err))
			errs = append(errs, fmt.Errorf("notify rule %s: %w", ev.RuleID, err))
		}
	}
	return events, errors.Join(errs...)
}

func inScope(r model.AlertRule, obs Observation) bool {
	if r.UserID != obs.UserID {
		return false
	}
	if r.Platform != "" && r.Platform != obs.Platform {
		return false
	}
	return r.CampaignID == "" || r.CampaignID == obs.CampaignID
}

// check returns the event and whether it fired, or a non-empty skip reason.
func (*Evaluator) check(r model.AlertRule, obs Observation) (model.AlertEvent, bool, string) {
	ev := model.AlertEvent{
		RuleID:     r.ID,
		UserID:     r.UserID,
		KPI:        r.KPI,
		Trigger:    r.Trigger,
		Platform:   obs.Platform,
		CampaignID: obs.CampaignID,
		Threshold:  r.Threshold,
		At:         obs.At,
	}

	if r.Trigger == model.TriggerBelowBenchmark {
		cmp, ok := obs.Comparisons[r.KPI]
		if !ok {
			return ev, false, "no benchmark comparison"
		}
		threshold := r.Threshold
		if threshold == 0 {
			threshold = DefaultBenchmarkThreshold
		}
		// PerformanceScore is direction-corrected, so a cheap cpa ranks high.
		ev.Threshold = threshold
		ev.Current = cmp.PerformanceScore
		ev.Message = fmt.Sprintf("%s performs at %.0f against its benchmark, below %.0f", r.KPI, cmp.PerformanceScore, threshold)
		return ev, cmp.PerformanceScore < threshold, ""
	}

	cur, ok := obs.Current[r.KPI]
	if !ok {
		return ev, false, "no current value"
	}
	ev.Current = cur

	switch r.Trigger {
	case model.TriggerAbove:
		ev.Message = fmt.Sprintf("%s is %g, above %g", r.KPI, cur, r.Threshold)
		return ev, cur > r.Threshold, ""
	case model.TriggerBelow:
		ev.Message = fmt.Sprintf("%s is %g, below %g", r.KPI, cur, r.Threshold)
		return ev, cur < r.Threshold, ""
	case model.TriggerIncrease, model.TriggerDecrease, model.TriggerChange:
	default:
		return ev, false, "unknown trigger " + string(r.Trigger)
	}

	prev, ok := obs.Previous[r.KPI]
	if !ok {
		return ev, false, "no previous value"
	}
	if prev == 0 {
		return ev, false, "previous value is zero"
	}
	ev.Previous = &prev
	change := (cur - prev) / math.Abs(prev) * percent

	var fired bool
	switch r.Trigger {
	case model.TriggerIncrease:
		fired = change >= r.Threshold
	case model.TriggerDecrease:
		fired = -change >= r.Threshold
	default:
		fired = math.Abs(change) >= r.Threshold
	}
	ev.Message = fmt.Sprintf("%s changed %+.1f%% from %g to %g (threshold %g%%)", r.KPI, change, prev, cur, r.Threshold)
	return ev, fired, ""
}
