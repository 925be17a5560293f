package config

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "AECR_"
	envConfigPath = "AECR_CONFIG"
	weightEpsilon = 1e-6
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if AECR_CONFIG is set
//  3. env (prefix AECR_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigPath); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// AECR_SYNC_INTERVAL_MINUTES -> sync_interval_minutes. Underscores are
	// preserved to match the flat koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file's path variable is not a config key.
	k.Delete("config")

	cfg := *base
	// A provided weight map replaces the defaults instead of merging into them.
	if k.Exists("score_weights") {
		cfg.ScoreWeights = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that the rest of the service relies on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case len(strings.TrimSpace(c.ReportingCurrency)) != 3:
		return fmt.Errorf("%w: reporting_currency must be an ISO 4217 code", ErrInvalidConfig)
	case c.RetryMaxAttempts < 1:
		return fmt.Errorf("%w: retry_max_attempts must be at least 1", ErrInvalidConfig)
	case c.AdapterTimeoutMS <= 0:
		return fmt.Errorf("%w: adapter_timeout_ms must be positive", ErrInvalidConfig)
	case c.AnomalyThreshold <= 0:
		return fmt.Errorf("%w: anomaly_threshold must be positive", ErrInvalidConfig)
	case len(c.ScoreWeights) == 0:
		return fmt.Errorf("%w: score_weights must not be empty", ErrInvalidConfig)
	}
	sum := 0.0
	for kpi, w := range c.ScoreWeights {
		if w < 0 {
			return fmt.Errorf("%w: score weight for %s is negative", ErrInvalidConfig, kpi)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightEpsilon {
		return fmt.Errorf("%w: score_weights sum to %.4f, want 1", ErrInvalidConfig, sum)
	}
	c.ReportingCurrency = strings.ToUpper(strings.TrimSpace(c.ReportingCurrency))
	return nil
}
