package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/okian/aecr/internal/adapters/benchmark"
	"github.com/okian/aecr/internal/adapters/http/api"
	"github.com/okian/aecr/internal/adapters/lock"
	"github.com/okian/aecr/internal/adapters/provider"
	"github.com/okian/aecr/internal/adapters/repository"
	app "github.com/okian/aecr/internal/app"
	"github.com/okian/aecr/internal/config"
	"github.com/okian/aecr/internal/domain/inflight"
	"github.com/okian/aecr/internal/domain/mapping"
	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/orchestrator"
	"github.com/okian/aecr/internal/domain/scoring"
	"github.com/okian/aecr/pkg/logger"
	"github.com/okian/aecr/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 30 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "aecr exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.LogJSON {
		if err := logger.Init(logger.WithJSON(true)); err != nil {
			return err
		}
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// The pipeline registry starts without runtime collectors.
	reg := metrics.GetRegistry()
	_ = reg.Register(collectors.NewGoCollector())
	_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts, cleanup, err := serviceOptions(ctx, cfg, log)
	defer cleanup()
	if err != nil {
		return err
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startServiceMetricsUpdater(ctx, svc)
	go svc.RunScheduler(ctx, cfg.ScheduleTick())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(svc, svc, log).Routes(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// serviceOptions turns configuration into service options. The returned
// cleanup closes any external connections that were opened and is safe to
// call on error.
func serviceOptions(ctx context.Context, cfg *config.Config, log logger.Logger) ([]app.Option, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	scorer, err := buildScorer(cfg)
	if err != nil {
		return nil, cleanup, err
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithAdapters(buildRegistry(cfg)),
		app.WithMapper(mapping.New(mapping.WithReportingCurrency(cfg.ReportingCurrency))),
		app.WithScorer(scorer),
		app.WithAnomalyThreshold(cfg.AnomalyThreshold),
		app.WithSyncInterval(cfg.SyncInterval()),
		app.WithDefaultIndustry(cfg.DefaultIndustry),
		app.WithOrchestratorOptions(
			orchestrator.WithCallTimeout(cfg.AdapterTimeout()),
			orchestrator.WithRetry(cfg.RetryMaxAttempts, cfg.RetryBaseDelay()),
			orchestrator.WithConcurrency(cfg.AccountConcurrency),
		),
	}

	if cfg.BenchmarkFile != "" {
		bench, err := benchmark.LoadFile(cfg.BenchmarkFile)
		if err != nil {
			return nil, cleanup, err
		}
		log.Info(ctx, "benchmarks loaded", logger.String("file", cfg.BenchmarkFile), logger.Int("rows", bench.Len()))
		opts = append(opts, app.WithBenchmarks(bench))
	}

	if cfg.DatabaseURL != "" {
		db, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, func() { _ = db.Close() })
		store := repository.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return nil, cleanup, err
		}
		log.Info(ctx, "using postgres canonical store")
		opts = append(opts, app.WithRecordStore(store))
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, cleanup, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		log.Info(ctx, "using redis in-flight guard", logger.String("addr", cfg.RedisAddr))
		opts = append(opts, app.WithGuard(inflight.Chain{
			inflight.NewLocal(),
			lock.NewRedis(client, lock.WithTTL(cfg.LockTTL())),
		}))
	}
	return opts, cleanup, nil
}

// buildRegistry creates one adapter per supported platform, applying any
// per-platform endpoint and OAuth settings.
func buildRegistry(cfg *config.Config) *provider.Registry {
	optsFor := func(p model.Platform) []provider.Option {
		pc, ok := cfg.Providers[string(p)]
		if !ok {
			return nil
		}
		var opts []provider.Option
		if pc.BaseURL != "" {
			opts = append(opts, provider.WithBaseURL(pc.BaseURL))
		}
		if pc.ClientID != "" && pc.TokenURL != "" {
			opts = append(opts, provider.WithOAuth(pc.ClientID, pc.ClientSecret, pc.TokenURL))
		}
		if pc.DeveloperToken != "" {
			opts = append(opts, provider.WithDeveloperToken(pc.DeveloperToken))
		}
		return opts
	}
	return provider.NewRegistry(
		provider.NewGoogleAnalytics(optsFor(model.GoogleAnalytics)...),
		provider.NewGoogleAds(optsFor(model.GoogleAds)...),
		provider.NewMeta(optsFor(model.MetaAds)...),
		provider.NewLinkedIn(optsFor(model.LinkedInAds)...),
		provider.NewTikTok(optsFor(model.TikTokAds)...),
	)
}

// buildScorer validates the configured weights against the KPI set.
func buildScorer(cfg *config.Config) (*scoring.Scorer, error) {
	weights := make(map[model.KPI]float64, len(cfg.ScoreWeights))
	for name, w := range cfg.ScoreWeights {
		kpi, err := model.ParseKPI(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		weights[kpi] = w
	}
	return scoring.NewScorer(scoring.WithWeights(weights))
}

// startServiceMetricsUpdater periodically refreshes queue and worker gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
