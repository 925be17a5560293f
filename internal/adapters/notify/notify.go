// Package notify provides alert delivery collaborators. Actual channels
// (email, in-app) live outside this service; these implementations log,
// fan out, meter and record.
package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/pkg/logger"
	"github.com/okian/aecr/pkg/metrics"
)

// Notifier delivers one alert event.
type Notifier interface {
	Notify(ctx context.Context, e model.AlertEvent) error
}

// Log writes each event as a structured log line.
type Log struct {
	log logger.Logger
}

// NewLog creates a Log notifier. A nil logger discards.
func NewLog(l logger.Logger) *Log {
	if l == nil {
		l = logger.Discard()
	}
	return &Log{log: l}
}

// Notify implements Notifier.
func (n *Log) Notify(ctx context.Context, e model.AlertEvent) error {
	n.log.Info(ctx, "alert",
		logger.String("id", e.ID),
		logger.String("rule", e.RuleID),
		logger.String("user", e.UserID),
		logger.String("kpi", string(e.KPI)),
		logger.String("trigger", string(e.Trigger)),
		logger.Float64("current", e.Current),
		logger.String("message", e.Message),
	)
	return nil
}

// FanOut delivers every event to all notifiers, continuing past failures.
type FanOut []Notifier

// Notify implements Notifier.
func (f FanOut) Notify(ctx context.Context, e model.AlertEvent) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Metered counts delivered events by trigger and failures by component.
type Metered struct {
	Next Notifier
}

// Notify implements Notifier.
func (m Metered) Notify(ctx context.Context, e model.AlertEvent) error {
	if err := m.Next.Notify(ctx, e); err != nil {
		metrics.RecordError("notify", "delivery_failed")
		return err
	}
	metrics.RecordAlert(string(e.Trigger))
	return nil
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []model.AlertEvent
	err    error
}

// NewRecorder creates a Recorder. When err is non-nil every Notify records
// the event and then fails with err.
func NewRecorder(err error) *Recorder {
	return &Recorder{err: err}
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, e model.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []model.AlertEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AlertEvent(nil), r.events...)
}
