package service

import (
	"time"

	"github.com/okian/aecr/internal/adapters/repository"
	"github.com/okian/aecr/internal/domain/alerting"
	"github.com/okian/aecr/internal/domain/benchmark"
	"github.com/okian/aecr/internal/domain/inflight"
	"github.com/okian/aecr/internal/domain/mapping"
	"github.com/okian/aecr/internal/domain/orchestrator"
	"github.com/okian/aecr/internal/domain/scoring"
	"github.com/okian/aecr/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of sync workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued sync jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecordStore sets the canonical record store.
func WithRecordStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.records = st
		}
	}
}

// WithCredentials sets the credential and connection store.
func WithCredentials(c Credentials) Option {
	return func(s *Service) {
		if c != nil {
			s.creds = c
		}
	}
}

// WithRuleStore sets the alert rule store.
func WithRuleStore(r repository.RuleStore) Option {
	return func(s *Service) {
		if r != nil {
			s.rules = r
		}
	}
}

// WithBenchmarks sets the benchmark store.
func WithBenchmarks(b benchmark.Store) Option {
	return func(s *Service) {
		if b != nil {
			s.benchmarks = b
		}
	}
}

// WithAdapters sets the provider adapter registry.
func WithAdapters(a orchestrator.Adapters) Option {
	return func(s *Service) {
		if a != nil {
			s.adapters = a
		}
	}
}

// WithMapper sets the canonical mapper.
func WithMapper(m *mapping.Mapper) Option {
	return func(s *Service) {
		if m != nil {
			s.mapper = m
		}
	}
}

// WithScorer sets the composite scorer.
func WithScorer(sc *scoring.Scorer) Option {
	return func(s *Service) {
		if sc != nil {
			s.scorer = sc
		}
	}
}

// WithGuard sets the in-flight guard used by the orchestrator.
func WithGuard(g inflight.Guard) Option {
	return func(s *Service) {
		if g != nil {
			s.guard = g
		}
	}
}

// WithNotifier sets where alert events are delivered.
func WithNotifier(n alerting.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithAnomalyThreshold sets the stddev multiple that flags a point.
func WithAnomalyThreshold(k float64) Option {
	return func(s *Service) {
		if k > 0 {
			s.anomalyThreshold = k
		}
	}
}

// WithSyncInterval sets how stale a connection must be to be due.
func WithSyncInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.syncInterval = d
		}
	}
}

// WithAlertWindowDays sets the length of the current and previous windows
// compared by change triggers.
func WithAlertWindowDays(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.alertWindowDays = n
		}
	}
}

// WithDefaultIndustry sets the benchmark industry used when a connection
// and a request name none.
func WithDefaultIndustry(industry string) Option {
	return func(s *Service) {
		if industry != "" {
			s.defaultIndustry = industry
		}
	}
}

// WithOrchestratorOptions forwards options to the sync orchestrator.
func WithOrchestratorOptions(opts ...orchestrator.Option) Option {
	return func(s *Service) {
		s.orchOpts = append(s.orchOpts, opts...)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
