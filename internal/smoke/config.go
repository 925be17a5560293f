// Package smoke drives a running service over HTTP: it triggers syncs for a
// set of users concurrently, waits for them to settle, then reads back
// scores and checks their shape.
package smoke

import (
	"time"
)

// Config holds configuration for a smoke run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Users        []string      // Users whose connections are synced
	Platforms    []string      // Platforms synced per user
	Industry     string        // Industry passed to score requests; empty uses the service default
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between sync status polls
	SettleAfter  time.Duration // Upper bound on waiting for syncs to finish
	OutputFile   string        // Optional JSON report file
	Verbose      bool          // Enable verbose logging
}

// Target is one user/platform sync key.
type Target struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform"`
}

// TriggerResult is the outcome of one sync trigger.
type TriggerResult struct {
	Target
	Status int    `json:"status"`
	Code   string `json:"code,omitempty"`
}

// SyncStatus mirrors GET /v1/sync/{user}/{platform}.
type SyncStatus struct {
	UserID   string      `json:"user_id"`
	Platform string      `json:"platform"`
	State    string      `json:"state"`
	Last     *SyncReport `json:"last,omitempty"`
}

// SyncReport is the subset of a run report the smoke run inspects.
type SyncReport struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Composite mirrors the composite score object.
type Composite struct {
	Score         float64            `json:"score"`
	PreviousScore *float64           `json:"previous_score"`
	Percentile    *float64           `json:"percentile"`
	Contributions map[string]float64 `json:"contributions"`
}

// ScoreResult mirrors GET /v1/score/{user}.
type ScoreResult struct {
	UserID   string     `json:"user_id"`
	Industry string     `json:"industry"`
	Score    *Composite `json:"score"`
	Reason   string     `json:"reason,omitempty"`
}

// Stats holds run statistics.
type Stats struct {
	Triggered   int
	Accepted    int
	InFlight    int
	Rejected    int
	Settled     int
	Succeeded   int
	Partial     int
	Failed      int
	Scored      int
	Unavailable int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// Report is what a run writes to OutputFile.
type Report struct {
	Triggers []TriggerResult `json:"triggers"`
	Statuses []SyncStatus    `json:"statuses"`
	Scores   []ScoreResult   `json:"scores"`
}
