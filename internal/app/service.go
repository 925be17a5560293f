// Package service wires the sync pipeline, scoring, anomaly detection and
// alerting together and exposes the operations the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	benchstore "github.com/okian/aecr/internal/adapters/benchmark"
	"github.com/okian/aecr/internal/adapters/mq/queue"
	"github.com/okian/aecr/internal/adapters/mq/worker"
	"github.com/okian/aecr/internal/adapters/notify"
	"github.com/okian/aecr/internal/adapters/provider"
	"github.com/okian/aecr/internal/adapters/repository"
	"github.com/okian/aecr/internal/domain/alerting"
	"github.com/okian/aecr/internal/domain/anomaly"
	"github.com/okian/aecr/internal/domain/benchmark"
	"github.com/okian/aecr/internal/domain/inflight"
	"github.com/okian/aecr/internal/domain/mapping"
	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
	"github.com/okian/aecr/internal/domain/orchestrator"
	"github.com/okian/aecr/internal/domain/ranking"
	"github.com/okian/aecr/internal/domain/scoring"
	"github.com/okian/aecr/pkg/logger"
	"github.com/okian/aecr/pkg/metrics"
)

// Default service configuration.
const (
	defaultQueueSize       = 1000
	defaultSyncInterval    = 6 * time.Hour
	defaultScoreWindowDays = 30
	defaultAlertWindowDays = 7
	defaultIndustry        = "ecommerce"
)

// Credentials is the connection store the service needs: the orchestrator's
// contract plus registration and user enumeration for scheduling.
type Credentials interface {
	repository.CredentialStore
	Connect(conn model.Connection, cred model.Credential) error
	Users() []string
}

// Service implements the API dependencies of the pipeline.
type Service struct {
	mu sync.RWMutex

	// Stores and collaborators
	records    repository.Store
	creds      Credentials
	rules      repository.RuleStore
	benchmarks benchmark.Store
	adapters   orchestrator.Adapters
	mapper     *mapping.Mapper
	scorer     *scoring.Scorer
	guard      inflight.Guard
	notifier   alerting.Notifier

	// Domain components
	orch       *orchestrator.Orchestrator
	comparator *benchmark.Comparator
	detector   *anomaly.Detector
	evaluator  *alerting.Evaluator
	ranker     *ranking.Ranker

	// Scheduling
	queue *queue.InMemoryQueue
	pool  *worker.Pool

	// pending holds keys enqueued or running through the pool.
	pendingMu sync.Mutex
	pending   map[string]struct{}

	// Configuration
	workerCount      int
	queueSize        int
	anomalyThreshold float64
	syncInterval     time.Duration
	alertWindowDays  int
	defaultIndustry  string
	orchOpts         []orchestrator.Option
	now              func() time.Time

	// State
	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// New constructs a Service. Collaborators not supplied through options
// default to in-memory implementations.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU(),
		queueSize:        defaultQueueSize,
		anomalyThreshold: anomaly.DefaultThreshold,
		syncInterval:     defaultSyncInterval,
		alertWindowDays:  defaultAlertWindowDays,
		defaultIndustry:  defaultIndustry,
		now:              time.Now,
		stopCh:           make(chan struct{}),
		pending:          make(map[string]struct{}),
		logger:           logger.OrDiscard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.records == nil {
		s.records = repository.NewMemoryStore()
	}
	if s.creds == nil {
		s.creds = repository.NewMemoryCredentials()
	}
	if s.rules == nil {
		s.rules = repository.NewMemoryRules()
	}
	if s.benchmarks == nil {
		s.benchmarks, _ = benchstore.NewMemoryStore(nil) // an empty table cannot be invalid
	}
	if s.adapters == nil {
		s.adapters = provider.NewRegistry()
	}
	if s.mapper == nil {
		s.mapper = mapping.New()
	}
	if s.scorer == nil {
		s.scorer, _ = scoring.NewScorer() // the default weights are valid
	}
	if s.guard == nil {
		s.guard = inflight.NewLocal()
	}
	if s.notifier == nil {
		s.notifier = notify.Metered{Next: notify.NewLog(s.logger.Named("alerts"))}
	}

	s.orch = orchestrator.New(s.adapters, s.creds, s.records, s.mapper,
		append([]orchestrator.Option{
			orchestrator.WithGuard(s.guard),
			orchestrator.WithLogger(s.logger.Named("sync")),
		}, s.orchOpts...)...)
	s.comparator = benchmark.NewComparator()
	s.detector = anomaly.NewDetector(anomaly.WithThreshold(s.anomalyThreshold))
	s.evaluator = alerting.NewEvaluator(
		alerting.WithNotifier(s.notifier),
		alerting.WithLogger(s.logger.Named("alerting")),
	)
	s.ranker = ranking.New()
	return s
}

// Start creates the sync queue and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting sync service...")

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pendingMu.Lock()
	clear(s.pending)
	s.pendingMu.Unlock()
	s.pool = worker.NewPool(s.workerCount, s.queue, pendingSyncer{s}, worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "sync service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop gracefully shuts down the worker pool and queue.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping sync service...")

	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "sync service stopped")
}

// Connect registers a platform connection and its credential.
func (s *Service) Connect(_ context.Context, conn model.Connection, cred model.Credential) error {
	return s.creds.Connect(conn, cred)
}

// Connections lists a user's platform connections.
func (s *Service) Connections(ctx context.Context, userID string) ([]model.Connection, error) {
	return s.creds.Connections(ctx, userID)
}

// SyncNow runs a sync synchronously.
func (s *Service) SyncNow(ctx context.Context, userID string, platform model.Platform) (orchestrator.Report, error) {
	return s.orch.Sync(ctx, orchestrator.Request{UserID: userID, Platform: platform})
}

// ScheduleSync enqueues a sync for the worker pool. A key that is already
// queued or syncing is rejected with orchestrator.ErrSyncInFlight.
func (s *Service) ScheduleSync(ctx context.Context, userID string, platform model.Platform, reason string) error {
	s.mu.RLock()
	q, started := s.queue, s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	if userID == "" || !platform.Valid() {
		return fmt.Errorf("%w: user %q platform %q", orchestrator.ErrInvalidRequest, userID, platform)
	}
	if _, err := s.adapters.Get(platform); err != nil {
		return err
	}
	if s.orch.State(userID, platform) == orchestrator.Syncing {
		metrics.RecordSyncRejected(string(platform))
		return fmt.Errorf("%w: %s", orchestrator.ErrSyncInFlight, orchestrator.Key(userID, platform))
	}
	key := orchestrator.Key(userID, platform)
	if !s.markPending(key) {
		metrics.RecordSyncRejected(string(platform))
		return fmt.Errorf("%w: %s already queued", orchestrator.ErrSyncInFlight, key)
	}
	if !q.Enqueue(ctx, queue.Job{UserID: userID, Platform: platform, Reason: reason, EnqueuedAt: s.now()}) {
		s.clearPending(key)
		return ErrQueueFull
	}
	return nil
}

func (s *Service) markPending(key string) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if _, ok := s.pending[key]; ok {
		return false
	}
	s.pending[key] = struct{}{}
	return true
}

func (s *Service) clearPending(key string) {
	s.pendingMu.Lock()
	delete(s.pending, key)
	s.pendingMu.Unlock()
}

func (s *Service) isPending(key string) bool {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	_, ok := s.pending[key]
	return ok
}

// pendingSyncer releases a queued key once its run finishes.
type pendingSyncer struct{ s *Service }

func (p pendingSyncer) Sync(ctx context.Context, req orchestrator.Request) (orchestrator.Report, error) {
	defer p.s.clearPending(orchestrator.Key(req.UserID, req.Platform))
	return p.s.orch.Sync(ctx, req)
}

// SyncStatus is the current state of a key and its last finished run.
type SyncStatus struct {
	UserID   string               `json:"user_id"`
	Platform model.Platform       `json:"platform"`
	State    orchestrator.State   `json:"state"`
	Last     *orchestrator.Report `json:"last,omitempty"`
}

// SyncState reports the state of a user's platform sync.
func (s *Service) SyncState(userID string, platform model.Platform) SyncStatus {
	st := SyncStatus{UserID: userID, Platform: platform, State: s.orch.State(userID, platform)}
	if rep, ok := s.orch.Last(userID, platform); ok {
		st.Last = &rep
	}
	return st
}

// DueSyncs selects connections whose last sync is older than the sync
// interval. Connections in error need re-authorization and are skipped, as
// are keys already queued or syncing and platforms without an adapter.
func (s *Service) DueSyncs(ctx context.Context, now time.Time) ([]queue.Job, error) {
	var jobs []queue.Job
	for _, user := range s.creds.Users() {
		conns, err := s.creds.Connections(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("connections of %s: %w", user, err)
		}
		for _, c := range conns {
			if c.Status == model.StatusError {
				continue
			}
			if _, err := s.adapters.Get(c.Platform); err != nil {
				continue
			}
			if s.orch.State(c.UserID, c.Platform) == orchestrator.Syncing || s.isPending(orchestrator.Key(c.UserID, c.Platform)) {
				continue
			}
			if c.LastSyncedAt.IsZero() || now.Sub(c.LastSyncedAt) >= s.syncInterval {
				jobs = append(jobs, queue.Job{UserID: c.UserID, Platform: c.Platform, Reason: "scheduled", EnqueuedAt: now})
			}
		}
	}
	return jobs, nil
}

// ScheduleDue enqueues every due sync and returns how many were accepted.
func (s *Service) ScheduleDue(ctx context.Context) (int, error) {
	jobs, err := s.DueSyncs(ctx, s.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range jobs {
		err := s.ScheduleSync(ctx, j.UserID, j.Platform, j.Reason)
		switch {
		case err == nil:
			n++
		case errors.Is(err, ErrQueueFull), errors.Is(err, ErrNotStarted):
			return n, err
		default:
			s.logger.Debug(ctx, "scheduled sync not enqueued",
				logger.String("user_id", j.UserID), logger.String("platform", string(j.Platform)), logger.Error(err))
		}
	}
	return n, nil
}

// RunScheduler enqueues due syncs every tick until ctx is canceled or the
// service stops.
func (s *Service) RunScheduler(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-t.C:
			n, err := s.ScheduleDue(ctx)
			if err != nil {
				s.logger.Warn(ctx, "scheduling due syncs", logger.Error(err))
			}
			if n > 0 {
				s.logger.Info(ctx, "scheduled due syncs", logger.Int("count", n))
			}
		}
	}
}

// CampaignView is the read shape of a canonical record.
type CampaignView struct {
	CampaignID      string               `json:"campaign_id"`
	Platform        model.Platform       `json:"platform"`
	Channel         string               `json:"channel"`
	AccountID       string               `json:"account_id"`
	Name            string               `json:"name,omitempty"`
	Date            string               `json:"date"`
	Currency        string               `json:"currency"`
	Impressions     int64                `json:"impressions"`
	Clicks          int64                `json:"clicks"`
	Conversions     float64              `json:"conversions"`
	Spend           float64              `json:"spend"`
	ConversionValue float64              `json:"conversion_value"`
	Derived         model.DerivedMetrics `json:"derived"`
}

// Campaigns returns matching records with their ratios computed on read.
func (s *Service) Campaigns(ctx context.Context, f repository.Filter) ([]CampaignView, error) {
	recs, err := s.records.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]CampaignView, len(recs))
	for i, r := range recs {
		out[i] = CampaignView{
			CampaignID:      r.CampaignID,
			Platform:        r.Platform,
			Channel:         r.Channel,
			AccountID:       r.AccountID,
			Name:            r.Name,
			Date:            r.Date.Format(time.DateOnly),
			Currency:        r.Currency,
			Impressions:     r.Impressions,
			Clicks:          r.Clicks,
			Conversions:     r.Conversions,
			Spend:           r.Spend,
			ConversionValue: r.ConversionValue,
			Derived:         r.Derived(),
		}
	}
	return out, nil
}

// ScoreRequest selects the records a composite score is computed over. A
// zero window means the trailing thirty days ending yesterday; an empty
// Platform blends every platform.
type ScoreRequest struct {
	UserID   string
	Industry string
	Platform model.Platform
	From     time.Time
	To       time.Time
}

// SkippedKPI is a KPI left out of a score.
type SkippedKPI struct {
	Platform model.Platform `json:"platform"`
	KPI      model.KPI      `json:"kpi"`
	Reason   string         `json:"reason"`
}

// ScoreResult carries a composite score, or a nil Score with a reason when
// none can be computed.
type ScoreResult struct {
	UserID      string                   `json:"user_id"`
	Industry    string                   `json:"industry"`
	From        string                   `json:"from"`
	To          string                   `json:"to"`
	Score       *model.CompositeScore    `json:"score"`
	Reason      string                   `json:"reason,omitempty"`
	Comparisons []model.ComparisonResult `json:"comparisons"`
	Skipped     []SkippedKPI             `json:"skipped,omitempty"`
}

// Score compares the user's aggregated KPIs to benchmarks and blends them
// into a composite. Per-platform comparisons of the same KPI are averaged.
// PreviousScore is the composite of the equal-length window immediately
// before [From, To]. The score is recorded among the industry's peers to
// place its percentile.
func (s *Service) Score(ctx context.Context, req ScoreRequest) (ScoreResult, error) {
	from, to := s.window(req.From, req.To, defaultScoreWindowDays)
	industry := s.industry(ctx, req.UserID, req.Industry)
	res := ScoreResult{
		UserID:      req.UserID,
		Industry:    industry,
		From:        from.Format(time.DateOnly),
		To:          to.Format(time.DateOnly),
		Comparisons: []model.ComparisonResult{},
	}

	composite, err := s.composite(ctx, &res, req.UserID, industry, req.Platform, from, to)
	if err != nil || composite == nil {
		if res.Reason != "" {
			metrics.RecordScoreUnavailable(res.Reason)
		}
		return res, err
	}

	prevTo := from.AddDate(0, 0, -1)
	prevFrom := prevTo.Add(-to.Sub(from))
	prev := ScoreResult{Comparisons: []model.ComparisonResult{}}
	previous, err := s.composite(ctx, &prev, req.UserID, industry, req.Platform, prevFrom, prevTo)
	if err != nil {
		return res, fmt.Errorf("previous window: %w", err)
	}
	if previous != nil {
		composite.PreviousScore = &previous.Score
	}

	group := industry + "/" + string(req.Platform)
	s.ranker.Record(group, req.UserID, composite.Score)
	if pct, ok := s.ranker.Percentile(group, composite.Score); ok {
		composite.Percentile = &pct
	}
	metrics.RecordCompositeScore(composite.Score)
	res.Score = composite
	return res, nil
}

// composite fills res with the comparisons and skips of one window and
// returns its composite. A nil composite with a nil error leaves the reason
// in res.
func (s *Service) composite(ctx context.Context, res *ScoreResult, userID, industry string, platform model.Platform, from, to time.Time) (*model.CompositeScore, error) {
	recs, err := s.records.Query(ctx, repository.Filter{UserID: userID, Platform: platform, From: from, To: to})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		res.Reason = ReasonNoData
		return nil, nil
	}

	kpis := weightedKPIs(s.scorer.Weights())
	perKPI := make(map[model.KPI][]model.ComparisonResult)
	for _, p := range platformsOf(recs) {
		results, skipped, err := s.comparator.CompareRecord(ctx, s.benchmarks, industry, model.Totals(byPlatform(recs, p)), kpis)
		if err != nil {
			return nil, fmt.Errorf("compare %s: %w", p, err)
		}
		for _, r := range results {
			perKPI[r.KPI] = append(perKPI[r.KPI], r)
			metrics.RecordComparison(string(r.KPI), "ok")
		}
		for _, sk := range skipped {
			label := skipLabel(sk.Reason)
			res.Skipped = append(res.Skipped, SkippedKPI{Platform: p, KPI: sk.KPI, Reason: label})
			metrics.RecordComparison(string(sk.KPI), label)
		}
	}
	for _, kpi := range kpis {
		if rs := perKPI[kpi]; len(rs) > 0 {
			res.Comparisons = append(res.Comparisons, blend(rs))
		}
	}

	composite, err := s.scorer.Score(res.Comparisons)
	if errors.Is(err, scoring.ErrNoScorableKpis) {
		res.Reason = ReasonNoScorableKPIs
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &composite, nil
}

// AnomalyRequest selects the series anomalies are detected in. A zero
// window means the trailing thirty days ending yesterday.
type AnomalyRequest struct {
	UserID     string
	KPI        model.KPI
	Platform   model.Platform
	CampaignID string
	From       time.Time
	To         time.Time
}

// Anomalies builds the daily series of a KPI and flags outlying days.
func (s *Service) Anomalies(ctx context.Context, req AnomalyRequest) ([]model.AnomalyEvent, error) {
	from, to := s.window(req.From, req.To, defaultScoreWindowDays)
	recs, err := s.records.Query(ctx, repository.Filter{
		UserID: req.UserID, Platform: req.Platform, CampaignID: req.CampaignID, From: from, To: to,
	})
	if err != nil {
		return nil, err
	}
	events := s.detector.Detect(string(req.KPI), anomaly.SeriesFromRecords(recs, req.KPI))
	for _, e := range events {
		metrics.RecordAnomaly(e.Metric, string(e.Direction))
	}
	if events == nil {
		events = []model.AnomalyEvent{}
	}
	return events, nil
}

// SaveRule stores an alert rule.
func (s *Service) SaveRule(ctx context.Context, r model.AlertRule) error {
	return s.rules.SaveRule(ctx, r)
}

// DeleteRule removes an alert rule.
func (s *Service) DeleteRule(ctx context.Context, userID, ruleID string) error {
	return s.rules.DeleteRule(ctx, userID, ruleID)
}

// Rules lists a user's alert rules.
func (s *Service) Rules(ctx context.Context, userID string) ([]model.AlertRule, error) {
	return s.rules.Rules(ctx, userID)
}

// EvaluateAlerts compares the latest window of the user's data with the one
// before it and delivers every fired event. Rules without a campaign are
// evaluated against each platform's aggregate; campaign rules against that
// campaign only. Delivery failures are returned alongside the events.
func (s *Service) EvaluateAlerts(ctx context.Context, userID string) ([]model.AlertEvent, error) {
	rules, err := s.rules.Rules(ctx, userID)
	if err != nil || len(rules) == 0 {
		return nil, err
	}

	w := s.alertWindowDays
	end := native.Day(s.now()).AddDate(0, 0, -1)
	curFrom := end.AddDate(0, 0, -(w - 1))
	prevFrom := curFrom.AddDate(0, 0, -w)

	recs, err := s.records.Query(ctx, repository.Filter{UserID: userID, From: prevFrom, To: end})
	if err != nil {
		return nil, err
	}
	var cur, prev []model.CampaignRecord
	for _, r := range recs {
		if r.Date.Before(curFrom) {
			prev = append(prev, r)
		} else {
			cur = append(cur, r)
		}
	}

	industry := s.industry(ctx, userID, "")
	var (
		events []model.AlertEvent
		errs   []error
	)
	run := func(rs []model.AlertRule, obs alerting.Observation) {
		if len(rs) == 0 {
			return
		}
		evs, err := s.evaluator.Run(ctx, rs, obs)
		events = append(events, evs...)
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range platformsOf(cur) {
		curP, prevP := byPlatform(cur, p), byPlatform(prev, p)
		run(selectRules(rules, p, ""), s.observe(ctx, userID, p, "", industry, curP, prevP))

		for _, c := range campaignsOf(curP) {
			run(selectRules(rules, p, c), s.observe(ctx, userID, p, c, industry, byCampaign(curP, c), byCampaign(prevP, c)))
		}
	}
	return events, errors.Join(errs...)
}

func (s *Service) observe(ctx context.Context, userID string, p model.Platform, campaign, industry string, cur, prev []model.CampaignRecord) alerting.Observation {
	obs := alerting.Observation{
		UserID:      userID,
		Platform:    p,
		CampaignID:  campaign,
		At:          s.now().UTC(),
		Current:     values(model.Totals(cur)),
		Comparisons: make(map[model.KPI]model.ComparisonResult),
	}
	if len(prev) > 0 {
		obs.Previous = values(model.Totals(prev))
	}
	results, _, err := s.comparator.CompareRecord(ctx, s.benchmarks, industry, model.Totals(cur), model.DerivedKPIs())
	if err != nil {
		s.logger.Warn(ctx, "benchmark comparison for alerts", logger.String("platform", string(p)), logger.Error(err))
		return obs
	}
	for _, r := range results {
		obs.Comparisons[r.KPI] = r
	}
	return obs
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"users":       len(s.creds.Users()),
	}
	if s.started {
		n := s.queue.Len(context.Background())
		stats["queueLength"] = n
		stats["processedJobs"] = s.pool.Processed()
		metrics.UpdateQueueSize(n)
	}
	return stats
}

func (s *Service) window(from, to time.Time, days int) (time.Time, time.Time) {
	if from.IsZero() || to.IsZero() {
		r := native.LastDays(s.now(), days)
		return r.Start, r.End
	}
	return native.Day(from), native.Day(to)
}

// industry resolves the benchmark industry: the request, then the user's
// first connection that names one, then the default.
func (s *Service) industry(ctx context.Context, userID, requested string) string {
	if requested != "" {
		return requested
	}
	if conns, err := s.creds.Connections(ctx, userID); err == nil {
		for _, c := range conns {
			if c.Industry != "" {
				return c.Industry
			}
		}
	}
	return s.defaultIndustry
}

func weightedKPIs(w map[model.KPI]float64) []model.KPI {
	out := make([]model.KPI, 0, len(w))
	for k := range w {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func blend(rs []model.ComparisonResult) model.ComparisonResult {
	if len(rs) == 1 {
		return rs[0]
	}
	out := model.ComparisonResult{KPI: rs[0].KPI}
	n := float64(len(rs))
	for _, r := range rs {
		out.UserValue += r.UserValue / n
		out.BenchmarkPercentile += r.BenchmarkPercentile / n
		out.PerformanceScore += r.PerformanceScore / n
	}
	out.PerformanceScore = math.Max(0, math.Min(100, out.PerformanceScore))
	return out
}

func skipLabel(err error) string {
	switch {
	case errors.Is(err, benchmark.ErrNotFound):
		return "not_found"
	case errors.Is(err, benchmark.ErrInsufficientData):
		return "insufficient_data"
	}
	return "undefined"
}

func values(r model.CampaignRecord) map[model.KPI]float64 {
	out := make(map[model.KPI]float64)
	for _, k := range model.KPIs() {
		if v, ok := r.Value(k); ok {
			out[k] = v
		}
	}
	return out
}

func selectRules(rules []model.AlertRule, p model.Platform, campaign string) []model.AlertRule {
	var out []model.AlertRule
	for _, r := range rules {
		if r.CampaignID != campaign {
			continue
		}
		if r.Platform != "" && r.Platform != p {
			continue
		}
		out = append(out, r)
	}
	return out
}

func platformsOf(recs []model.CampaignRecord) []model.Platform {
	seen := make(map[model.Platform]bool)
	var out []model.Platform
	for _, r := range recs {
		if !seen[r.Platform] {
			seen[r.Platform] = true
			out = append(out, r.Platform)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func campaignsOf(recs []model.CampaignRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range recs {
		if !seen[r.CampaignID] {
			seen[r.CampaignID] = true
			out = append(out, r.CampaignID)
		}
	}
	sort.Strings(out)
	return out
}

func byPlatform(recs []model.CampaignRecord, p model.Platform) []model.CampaignRecord {
	var out []model.CampaignRecord
	for _, r := range recs {
		if r.Platform == p {
			out = append(out, r)
		}
	}
	return out
}

func byCampaign(recs []model.CampaignRecord, id string) []model.CampaignRecord {
	var out []model.CampaignRecord
	for _, r := range recs {
		if r.CampaignID == id {
			out = append(out, r)
		}
	}
	return out
}
