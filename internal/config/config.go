// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and AECR_ environment variables.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"runtime"
	"time"
)

// ProviderConfig holds per-platform endpoint and OAuth client settings.
type ProviderConfig struct {
	BaseURL      string `koanf:"base_url"`
	TokenURL     string `koanf:"token_url"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	// DeveloperToken is required by Google Ads only.
	DeveloperToken string `koanf:"developer_token"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogJSON switches log output to JSON.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ReportingCurrency is the single currency canonical records are kept in.
	ReportingCurrency string `koanf:"reporting_currency"`
	// DefaultIndustry is used for benchmark lookups when a request names none.
	DefaultIndustry string `koanf:"default_industry"`

	// SyncIntervalMinutes is how stale last_synced_at must be before a
	// connection is due for a scheduled sync.
	SyncIntervalMinutes int `koanf:"sync_interval_minutes"`
	// ScheduleTickSeconds is how often the scheduler looks for due syncs.
	ScheduleTickSeconds int `koanf:"schedule_tick_seconds"`
	// AdapterTimeoutMS is the hard deadline of a single adapter call.
	AdapterTimeoutMS int `koanf:"adapter_timeout_ms"`
	// RetryMaxAttempts caps attempts for RateLimited/ProviderUnavailable.
	RetryMaxAttempts int `koanf:"retry_max_attempts"`
	// RetryBaseDelayMS is the first backoff delay; it doubles per attempt.
	RetryBaseDelayMS int `koanf:"retry_base_delay_ms"`
	// AccountConcurrency bounds parallel adapter calls within one sync.
	AccountConcurrency int `koanf:"account_concurrency"`

	// QueueSize bounds the scheduled sync job queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of sync workers.
	WorkerCount int `koanf:"worker_count"`

	// RedisAddr enables the distributed in-flight guard when set.
	RedisAddr string `koanf:"redis_addr"`
	// LockTTLSeconds bounds how long a crashed process can hold a sync key.
	LockTTLSeconds int `koanf:"lock_ttl_seconds"`

	// DatabaseURL selects the Postgres canonical store when set.
	DatabaseURL string `koanf:"database_url"`

	// BenchmarkFile points at a YAML file of benchmark rows.
	BenchmarkFile string `koanf:"benchmark_file"`

	// AnomalyThreshold is the stddev multiple that flags a point.
	AnomalyThreshold float64 `koanf:"anomaly_threshold"`

	// ScoreWeights maps KPI names to composite weights; they must sum to 1.
	ScoreWeights map[string]float64 `koanf:"score_weights"`

	// Providers maps platform names to endpoint and OAuth settings.
	Providers map[string]ProviderConfig `koanf:"providers"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		ReportingCurrency:   "USD",
		DefaultIndustry:     "ecommerce",
		SyncIntervalMinutes: 360,
		ScheduleTickSeconds: 60,
		AdapterTimeoutMS:    30_000,
		RetryMaxAttempts:    3,
		RetryBaseDelayMS:    500,
		AccountConcurrency:  4,
		QueueSize:           1_000,
		WorkerCount:         runtime.NumCPU(),
		LockTTLSeconds:      900,
		AnomalyThreshold:    1.5,
		ScoreWeights: map[string]float64{
			"roas": 0.30,
			"cpa":  0.25,
			"ctr":  0.20,
			"cvr":  0.15,
			"cpc":  0.10,
		},
		Providers: map[string]ProviderConfig{},
	}
}

// AdapterTimeout returns AdapterTimeoutMS as a duration.
func (c *Config) AdapterTimeout() time.Duration {
	return time.Duration(c.AdapterTimeoutMS) * time.Millisecond
}

// RetryBaseDelay returns RetryBaseDelayMS as a duration.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// SyncInterval returns SyncIntervalMinutes as a duration.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// ScheduleTick returns ScheduleTickSeconds as a duration.
func (c *Config) ScheduleTick() time.Duration {
	return time.Duration(c.ScheduleTickSeconds) * time.Second
}

// LockTTL returns LockTTLSeconds as a duration.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}
