package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted = errors.New("service not started")
	ErrQueueFull  = errors.New("sync queue full")
)

// Reasons a score is unavailable. They are expected states, not failures.
const (
	ReasonNoData         = "no_data"
	ReasonNoScorableKPIs = "no_scorable_kpis"
)
