package config_test

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"

	"github.com/okian/aecr/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ReportingCurrency, convey.ShouldEqual, "USD")
			convey.So(cfg.RetryMaxAttempts, convey.ShouldEqual, 3)
			convey.So(cfg.AnomalyThreshold, convey.ShouldEqual, 1.5)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.SyncIntervalMinutes, convey.ShouldEqual, 360)
				convey.So(cfg.ScoreWeights["roas"], convey.ShouldEqual, 0.30)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("AECR_ADDR", ":8080")
			_ = os.Setenv("AECR_RETRY_MAX_ATTEMPTS", "5")
			_ = os.Setenv("AECR_ANOMALY_THRESHOLD", "2.5")
			_ = os.Setenv("AECR_REPORTING_CURRENCY", "eur")
			_ = os.Setenv("AECR_LOG_JSON", "true")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.RetryMaxAttempts, convey.ShouldEqual, 5)
				convey.So(cfg.AnomalyThreshold, convey.ShouldEqual, 2.5)
				convey.So(cfg.ReportingCurrency, convey.ShouldEqual, "EUR")
				convey.So(cfg.LogJSON, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
sync_interval_minutes: 60
benchmark_file: /etc/aecr/benchmarks.yaml
score_weights:
  roas: 0.5
  ctr: 0.5
providers:
  meta_ads:
    base_url: https://graph.facebook.com/v19.0
    client_id: abc
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("AECR_CONFIG", tmpFile)
			_ = os.Setenv("AECR_SYNC_INTERVAL_MINUTES", "15")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env wins over file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.SyncIntervalMinutes, convey.ShouldEqual, 15)
				convey.So(cfg.BenchmarkFile, convey.ShouldEqual, "/etc/aecr/benchmarks.yaml")
				convey.So(cfg.Providers["meta_ads"].ClientID, convey.ShouldEqual, "abc")
			})

			convey.Convey("Then the weight map replaces the defaults", func() {
				convey.So(cfg.ScoreWeights, convey.ShouldHaveLength, 2)
				convey.So(cfg.ScoreWeights["roas"], convey.ShouldEqual, 0.5)
			})
		})

		convey.Convey("When weights do not sum to one", func() {
			tmpFile := createTempConfigFile("score_weights:\n  roas: 0.5\n  ctr: 0.2\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("AECR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails validation", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid YAML", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("AECR_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("AECR_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When addr is empty", func() {
			_ = os.Setenv("AECR_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
			})
		})

		convey.Convey("When numeric env values are invalid", func() {
			_ = os.Setenv("AECR_WORKER_COUNT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When retry attempts are zero", func() {
			_ = os.Setenv("AECR_RETRY_MAX_ATTEMPTS", "0")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"AECR_CONFIG",
		"AECR_ADDR",
		"AECR_RETRY_MAX_ATTEMPTS",
		"AECR_ANOMALY_THRESHOLD",
		"AECR_REPORTING_CURRENCY",
		"AECR_LOG_JSON",
		"AECR_SYNC_INTERVAL_MINUTES",
		"AECR_WORKER_COUNT",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "aecr-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
