package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrUnknownKPI       = errors.New("unknown kpi")
	ErrInvalidBenchmark = errors.New("invalid benchmark row")
	ErrUnknownTrigger   = errors.New("unknown alert trigger")
)
