// Package orchestrator runs provider syncs: it fetches every account of a
// user's connection, maps the native rows to canonical records and upserts
// them, reporting per-account outcomes.
//
// A key (user, platform) moves Idle → Syncing → {Succeeded, PartiallyFailed,
// Failed} → Idle. At most one sync per key runs at a time.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/aecr/internal/adapters/provider"
	"github.com/okian/aecr/internal/domain/inflight"
	"github.com/okian/aecr/internal/domain/mapping"
	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
	"github.com/okian/aecr/pkg/logger"
	"github.com/okian/aecr/pkg/metrics"
)

// Defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	DefaultCallTimeout = 30 * time.Second
	DefaultConcurrency = 4
	DefaultWindowDays  = 30

	maxDelay = time.Minute
)

// State of a sync key.
type State string

// States.
const (
	Idle            State = "idle"
	Syncing         State = "syncing"
	Succeeded       State = "succeeded"
	PartiallyFailed State = "partially_failed"
	Failed          State = "failed"
)

// Adapters resolves the provider adapter of a platform.
type Adapters interface {
	Get(p model.Platform) (provider.Adapter, error)
}

// Credentials resolves credentials and records connection state.
type Credentials interface {
	Get(ctx context.Context, userID string, platform model.Platform) (model.Credential, error)
	MarkError(ctx context.Context, userID string, platform model.Platform, cause string) error
	MarkSynced(ctx context.Context, userID string, platform model.Platform, at time.Time) error
	Connections(ctx context.Context, userID string) ([]model.Connection, error)
}

// Sink persists canonical records.
type Sink interface {
	Upsert(ctx context.Context, rec model.CampaignRecord) error
}

// Request asks for one sync run. A zero Range means the trailing window
// ending yesterday. Empty AccountIDs fall back to the connection's accounts,
// then to discovery through the adapter.
type Request struct {
	UserID     string
	Platform   model.Platform
	Range      native.DateRange
	AccountIDs []string
}

// AccountResult is the outcome of one account within a run.
type AccountResult struct {
	AccountID string `json:"account_id"`
	Upserted  int    `json:"upserted"`
	Skipped   int    `json:"skipped"`
	Attempts  int    `json:"attempts"`
	Cause     string `json:"cause,omitempty"`
	Err       error  `json:"-"`
}

// Failed reports whether the account produced an error.
func (r AccountResult) Failed() bool { return r.Err != nil }

// Report summarizes a run.
type Report struct {
	RunID      string          `json:"run_id"`
	UserID     string          `json:"user_id"`
	Platform   model.Platform  `json:"platform"`
	Status     State           `json:"status"`
	Accounts   []AccountResult `json:"accounts"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Upserted totals the records written by the run.
func (r Report) Upserted() int {
	n := 0
	for _, a := range r.Accounts {
		n += a.Upserted
	}
	return n
}

// Orchestrator runs syncs.
type Orchestrator struct {
	adapters Adapters
	creds    Credentials
	sink     Sink
	mapper   *mapping.Mapper

	guard       inflight.Guard
	log         logger.Logger
	concurrency int
	callTimeout time.Duration
	maxAttempts int
	baseDelay   time.Duration
	windowDays  int
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	newID       func() string

	mu     sync.RWMutex
	active map[string]struct{}
	last   map[string]Report
}

// New creates an Orchestrator.
func New(adapters Adapters, creds Credentials, sink Sink, mapper *mapping.Mapper, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapters:    adapters,
		creds:       creds,
		sink:        sink,
		mapper:      mapper,
		guard:       inflight.NewLocal(),
		log:         logger.Discard(),
		concurrency: DefaultConcurrency,
		callTimeout: DefaultCallTimeout,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		windowDays:  DefaultWindowDays,
		now:         time.Now,
		sleep:       sleepCtx,
		newID:       uuid.NewString,
		active:      make(map[string]struct{}),
		last:        make(map[string]Report),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.mapper == nil {
		o.mapper = mapping.New()
	}
	return o
}

// Key is the in-flight key of a user and platform.
func Key(userID string, platform model.Platform) string {
	return userID + "/" + string(platform)
}

// State returns Syncing while a run for the key is in flight, else Idle.
func (o *Orchestrator) State(userID string, platform model.Platform) State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if _, ok := o.active[Key(userID, platform)]; ok {
		return Syncing
	}
	return Idle
}

// Last returns the report of the most recent finished run for the key.
func (o *Orchestrator) Last(userID string, platform model.Platform) (Report, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.last[Key(userID, platform)]
	return r, ok
}

// Sync runs one sync. It returns an error only when the run could not start:
// an invalid request, an unsupported platform, a guard failure or
// ErrSyncInFlight. Failures inside the run are reported in the Report.
func (o *Orchestrator) Sync(ctx context.Context, req Request) (Report, error) {
	if req.UserID == "" || !req.Platform.Valid() {
		return Report{}, fmt.Errorf("%w: user %q platform %q", ErrInvalidRequest, req.UserID, req.Platform)
	}
	adapter, err := o.adapters.Get(req.Platform)
	if err != nil {
		return Report{}, err
	}

	key := Key(req.UserID, req.Platform)
	ok, err := o.guard.TryAcquire(ctx, key)
	if err != nil {
		return Report{}, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		metrics.RecordSyncRejected(string(req.Platform))
		return Report{}, fmt.Errorf("%w: %s", ErrSyncInFlight, key)
	}
	// Cleanup must run even when ctx is canceled.
	bg := context.WithoutCancel(ctx)
	defer func() {
		if err := o.guard.Release(bg, key); err != nil {
			o.log.Warn(bg, "release in-flight key", logger.String("key", key), logger.Error(err))
		}
	}()

	o.setActive(key, true)
	metrics.IncSyncInFlight()
	defer func() {
		metrics.DecSyncInFlight()
		o.setActive(key, false)
	}()

	rep := Report{
		RunID:     o.newID(),
		UserID:    req.UserID,
		Platform:  req.Platform,
		StartedAt: o.now().UTC(),
	}
	log := o.log.With(logger.String("run_id", rep.RunID), logger.String("user_id", req.UserID),
		logger.String("platform", string(req.Platform)))

	o.run(ctx, log, adapter, req, &rep)

	rep.FinishedAt = o.now().UTC()
	if err := o.creds.MarkSynced(bg, req.UserID, req.Platform, rep.FinishedAt); err != nil {
		log.Warn(bg, "mark synced", logger.Error(err))
	}
	metrics.RecordSyncRun(string(req.Platform), string(rep.Status), float64(rep.FinishedAt.Sub(rep.StartedAt).Milliseconds()))
	log.Info(bg, "sync finished",
		logger.String("status", string(rep.Status)),
		logger.Int("accounts", len(rep.Accounts)),
		logger.Int("upserted", rep.Upserted()),
	)

	o.mu.Lock()
	o.last[key] = rep
	o.mu.Unlock()
	return rep, nil
}

func (o *Orchestrator) setActive(key string, on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if on {
		o.active[key] = struct{}{}
		return
	}
	delete(o.active, key)
}

func (o *Orchestrator) run(ctx context.Context, log logger.Logger, adapter provider.Adapter, req Request, rep *Report) {
	fail := func(msg string, err error) {
		rep.Status = Failed
		rep.Error = err.Error()
		log.Error(ctx, msg, logger.Error(err))
	}

	cred, err := o.creds.Get(ctx, req.UserID, req.Platform)
	if err != nil {
		fail("resolve credential", err)
		return
	}

	var authOnce sync.Once
	markAuth := func(err error) {
		authOnce.Do(func() {
			bg := context.WithoutCancel(ctx)
			if merr := o.creds.MarkError(bg, req.UserID, req.Platform, err.Error()); merr != nil {
				log.Warn(bg, "mark connection error", logger.Error(merr))
			}
		})
	}

	accounts, err := o.accounts(ctx, adapter, cred, req)
	if err != nil {
		if errors.Is(err, provider.ErrAuthExpired) {
			markAuth(err)
		}
		fail("discover accounts", err)
		return
	}

	rng := req.Range
	if rng.Start.IsZero() || rng.End.IsZero() {
		rng = native.LastDays(o.now(), o.windowDays)
	}

	results := make([]AccountResult, len(accounts))
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup
	for i, acct := range accounts {
		wg.Add(1)
		go func(i int, acct string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = AccountResult{AccountID: acct, Err: ctx.Err(), Cause: "canceled"}
				return
			}
			defer func() { <-sem }()
			results[i] = o.syncAccount(ctx, log, adapter, cred, req.UserID, acct, rng, markAuth)
		}(i, acct)
	}
	wg.Wait()

	rep.Accounts = results
	failed := 0
	for _, r := range results {
		outcome := "ok"
		if r.Failed() {
			failed++
			outcome = r.Cause
		}
		metrics.RecordAccountResult(string(req.Platform), outcome)
	}
	switch {
	case failed == 0:
		rep.Status = Succeeded
	case failed == len(results):
		rep.Status = Failed
	default:
		rep.Status = PartiallyFailed
	}
}

func (o *Orchestrator) accounts(ctx context.Context, adapter provider.Adapter, cred model.Credential, req Request) ([]string, error) {
	if len(req.AccountIDs) > 0 {
		return req.AccountIDs, nil
	}
	conns, err := o.creds.Connections(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	for _, c := range conns {
		if c.Platform == req.Platform && len(c.AccountIDs) > 0 {
			return c.AccountIDs, nil
		}
	}
	var ids []string
	_, err = o.call(ctx, req.Platform, "", func(ctx context.Context) error {
		var err error
		ids, err = adapter.FetchAccounts(ctx, cred)
		return err
	})
	return ids, err
}

func (o *Orchestrator) syncAccount(ctx context.Context, log logger.Logger, adapter provider.Adapter, cred model.Credential,
	userID, acct string, rng native.DateRange, markAuth func(error),
) AccountResult {
	res := AccountResult{AccountID: acct}
	log = log.With(logger.String("account_id", acct))

	var batch native.Batch
	attempts, err := o.call(ctx, adapter.Platform(), acct, func(ctx context.Context) error {
		var err error
		batch, err = adapter.FetchMetrics(ctx, cred, acct, rng)
		return err
	})
	res.Attempts = attempts
	if err != nil {
		res.Err = err
		res.Cause = provider.KindLabel(err)
		switch {
		case errors.Is(err, provider.ErrAuthExpired):
			markAuth(err)
			log.Warn(ctx, "credential rejected", logger.Error(err))
		case errors.Is(err, provider.ErrSchemaChanged):
			log.Error(ctx, "provider response no longer matches adapter", logger.Error(err))
		default:
			log.Warn(ctx, "fetch metrics failed", logger.Int("attempts", attempts), logger.Error(err))
		}
		return res
	}

	records, merrs := o.mapper.Map(userID, acct, batch)
	res.Skipped = len(merrs)
	for _, me := range merrs {
		metrics.RecordMappingError(string(adapter.Platform()), me.Field)
		log.Debug(ctx, "record skipped", logger.Error(me))
	}

	var storeErrs []error
	for _, rec := range records {
		if err := o.sink.Upsert(ctx, rec); err != nil {
			storeErrs = append(storeErrs, err)
			continue
		}
		res.Upserted++
	}
	metrics.RecordRecordsUpserted(string(adapter.Platform()), res.Upserted)
	if len(storeErrs) > 0 {
		res.Err = errors.Join(storeErrs...)
		res.Cause = "store"
		log.Error(ctx, "upsert failed", logger.Int("failed", len(storeErrs)), logger.Error(res.Err))
	}
	return res
}

// call runs fn under the per-call deadline, retrying transient failures with
// exponential backoff. It returns the number of attempts made.
func (o *Orchestrator) call(ctx context.Context, platform model.Platform, acct string, fn func(context.Context) error) (int, error) {
	for attempt := 1; ; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, o.callTimeout)
		start := time.Now()
		err := fn(cctx)
		expired := errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		cancel()

		if err != nil && expired && provider.Kind(err) == nil {
			err = &provider.Error{Kind: provider.ErrProviderUnavailable, Platform: platform, Account: acct, Err: err}
		}
		outcome := "ok"
		if err != nil {
			outcome = provider.KindLabel(err)
		}
		metrics.RecordAdapterCall(string(platform), outcome, float64(time.Since(start).Milliseconds()))

		if err == nil {
			return attempt, nil
		}
		if !provider.Retryable(err) || attempt >= o.maxAttempts || ctx.Err() != nil {
			return attempt, err
		}
		metrics.RecordAdapterRetry(string(platform), outcome)
		delay := o.backoff(attempt, provider.RetryAfter(err))
		o.log.Debug(ctx, "retrying adapter call",
			logger.String("platform", string(platform)),
			logger.String("account_id", acct),
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
		)
		if serr := o.sleep(ctx, delay); serr != nil {
			return attempt, err
		}
	}
}

// backoff doubles the base delay per attempt with up to 50% jitter. A
// provider-requested delay is honored when longer. Delays are capped.
func (o *Orchestrator) backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := o.baseDelay << (attempt - 1)
	if half := int64(d / 2); half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	if retryAfter > d {
		d = retryAfter
	}
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
