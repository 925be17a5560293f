// Package worker runs scheduled sync jobs pulled from the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/aecr/internal/adapters/mq/queue"
	"github.com/okian/aecr/internal/domain/orchestrator"
	"github.com/okian/aecr/pkg/logger"
	"github.com/okian/aecr/pkg/metrics"
)

// Default worker configuration constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Syncer runs one sync.
type Syncer interface {
	Sync(ctx context.Context, req orchestrator.Request) (orchestrator.Report, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing sync jobs.
type InMemoryWorker struct {
	queue  Queue
	syncer Syncer
	name   string

	// processed counts jobs handed to the syncer, shared across a pool.
	processed *atomic.Int64

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, s Syncer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		syncer:    s,
		name:      "worker",
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.OrDiscard().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "error processing sync job", logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

// Processed returns the number of jobs this worker (or its pool) handled.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// process runs one job. A job that finds its key already syncing is dropped:
// the running sync covers it.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	defer w.processed.Add(1)

	rep, err := w.syncer.Sync(ctx, orchestrator.Request{UserID: j.UserID, Platform: j.Platform})
	switch {
	case errors.Is(err, orchestrator.ErrSyncInFlight):
		w.logger.Debug(ctx, "sync already running, job dropped",
			logger.String("user_id", j.UserID),
			logger.String("platform", string(j.Platform)),
		)
		return nil
	case err != nil:
		metrics.RecordError("worker", "sync_rejected")
		return fmt.Errorf("sync %s/%s: %w", j.UserID, j.Platform, err)
	}

	w.logger.Debug(ctx, "sync job done",
		logger.String("run_id", rep.RunID),
		logger.String("status", string(rep.Status)),
		logger.String("reason", j.Reason),
		logger.Duration("queued_for", rep.StartedAt.Sub(j.EnqueuedAt)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed *atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker
// per CPU.
func NewPool(workerCount int, q Queue, s Syncer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		processed: new(atomic.Int64),
		logger:    logger.OrDiscard().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, s, wopts...)
		w.processed = pool.processed
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs handled by all workers.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals every worker and waits briefly for each.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.stop()
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue, then stops the workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	for _, w := range p.workers {
		w.stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}
