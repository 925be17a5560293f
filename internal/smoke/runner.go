package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/aecr/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes the complete smoke run.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.OrDiscard().Named("smoke")
	client := newHTTPClient(config.BaseURL, config.Timeout)

	log.Info(ctx, "starting smoke run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", len(config.Users)),
		logger.Int("platforms", len(config.Platforms)),
		logger.Int("workers", config.Workers))

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	var targets []Target
	for _, u := range config.Users {
		for _, p := range config.Platforms {
			targets = append(targets, Target{UserID: u, Platform: p})
		}
	}

	triggers := fanOut(ctx, config.Workers, targets, func(ctx context.Context, t Target) TriggerResult {
		return trigger(ctx, client, t)
	})
	tally(stats, triggers)
	log.Info(ctx, "syncs triggered",
		logger.Int("accepted", stats.Accepted),
		logger.Int("inFlight", stats.InFlight),
		logger.Int("rejected", stats.Rejected))

	statuses, err := settle(ctx, client, config, targets)
	if err != nil {
		return stats, fmt.Errorf("waiting for syncs: %w", err)
	}
	for _, st := range statuses {
		countOutcome(stats, st)
	}

	scores := fanOut(ctx, config.Workers, config.Users, func(ctx context.Context, u string) ScoreResult {
		res, err := fetchScore(ctx, client, u, config.Industry)
		if err != nil {
			log.Warn(ctx, "score fetch failed", logger.String("user", u), logger.Error(err))
		}
		return res
	})

	if err := verifyResults(ctx, config, scores, stats); err != nil {
		return stats, fmt.Errorf("result verification failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveReport(config.OutputFile, Report{Triggers: triggers, Statuses: statuses, Scores: scores}); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	status, _, err := client.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}
	return nil
}

func trigger(ctx context.Context, client *HTTPClient, t Target) TriggerResult {
	path := "/v1/sync/" + url.PathEscape(t.UserID) + "/" + url.PathEscape(t.Platform)
	status, body, err := client.do(ctx, http.MethodPost, path, nil)
	res := TriggerResult{Target: t, Status: status}
	if err != nil {
		res.Code = "transport_error"
		return res
	}
	if status != http.StatusAccepted {
		res.Code = errorCode(body)
	}
	return res
}

func tally(stats *Stats, triggers []TriggerResult) {
	for _, r := range triggers {
		stats.Triggered++
		switch r.Status {
		case http.StatusAccepted:
			stats.Accepted++
		case http.StatusConflict:
			stats.InFlight++
		default:
			stats.Rejected++
		}
	}
}

// settle polls every target until none is syncing or the settle window
// elapses. Targets that never ran report their idle state.
func settle(ctx context.Context, client *HTTPClient, config *Config, targets []Target) ([]SyncStatus, error) {
	deadline := time.Now().Add(config.SettleAfter)
	for {
		statuses := fanOut(ctx, config.Workers, targets, func(ctx context.Context, t Target) SyncStatus {
			var st SyncStatus
			path := "/v1/sync/" + url.PathEscape(t.UserID) + "/" + url.PathEscape(t.Platform)
			if _, _, err := client.do(ctx, http.MethodGet, path, &st); err != nil {
				st = SyncStatus{UserID: t.UserID, Platform: t.Platform, State: stateSyncing}
			}
			return st
		})
		pending := 0
		for _, st := range statuses {
			if st.State == stateSyncing {
				pending++
			}
		}
		if pending == 0 {
			return statuses, nil
		}
		if time.Now().After(deadline) {
			return statuses, fmt.Errorf("%d syncs still running after %s", pending, config.SettleAfter)
		}
		select {
		case <-ctx.Done():
			return statuses, ctx.Err()
		case <-time.After(config.PollInterval):
		}
	}
}

func countOutcome(stats *Stats, st SyncStatus) {
	if st.Last == nil {
		return
	}
	stats.Settled++
	switch st.Last.Status {
	case stateSucceeded:
		stats.Succeeded++
	case statePartiallyFailed:
		stats.Partial++
	case stateFailed:
		stats.Failed++
	}
}

func fetchScore(ctx context.Context, client *HTTPClient, user, industry string) (ScoreResult, error) {
	path := "/v1/score/" + url.PathEscape(user)
	if industry != "" {
		path += "?industry=" + url.QueryEscape(industry)
	}
	res := ScoreResult{UserID: user}
	status, _, err := client.do(ctx, http.MethodGet, path, &res)
	if err != nil {
		return res, err
	}
	if status != http.StatusOK {
		return res, fmt.Errorf("score for %s: status %d", user, status)
	}
	return res, nil
}

// saveReport writes the run report as indented JSON.
func saveReport(filename string, r Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, filePermission)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate float64
	if stats.Settled > 0 {
		successRate = float64(stats.Succeeded) / float64(stats.Settled) * PercentageMultiplier
	}
	log.Info(ctx, "final statistics",
		logger.Int("triggered", stats.Triggered),
		logger.Int("accepted", stats.Accepted),
		logger.Int("inFlight", stats.InFlight),
		logger.Int("rejected", stats.Rejected),
		logger.Int("settled", stats.Settled),
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("partiallyFailed", stats.Partial),
		logger.Int("failed", stats.Failed),
		logger.Int("scored", stats.Scored),
		logger.Int("scoreUnavailable", stats.Unavailable),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate))
}
