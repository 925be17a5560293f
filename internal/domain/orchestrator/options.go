package orchestrator

import (
	"context"
	"time"

	"github.com/okian/aecr/internal/domain/inflight"
	"github.com/okian/aecr/pkg/logger"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGuard replaces the in-process in-flight guard, e.g. with a chain
// that also takes a distributed lock.
func WithGuard(g inflight.Guard) Option {
	return func(o *Orchestrator) {
		if g != nil {
			o.guard = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithConcurrency bounds parallel account fetches within one run.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithCallTimeout sets the hard deadline of a single adapter call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithRetry sets the attempt ceiling and first backoff delay for rate
// limited or unavailable providers.
func WithRetry(maxAttempts int, base time.Duration) Option {
	return func(o *Orchestrator) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if base > 0 {
			o.baseDelay = base
		}
	}
}

// WithWindowDays sets how many trailing days a request without a range
// fetches.
func WithWindowDays(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.windowDays = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSleep overrides how backoff delays are waited out.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) {
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.newID = f
		}
	}
}
