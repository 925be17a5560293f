package smoke

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner defaults.
const (
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultSettleAfter   = 2 * time.Minute
	PercentageMultiplier = 100
	contributionEpsilon  = 1e-6
	maxScore             = 100
)

// Terminal sync states as reported by the service.
const (
	stateSyncing         = "syncing"
	stateSucceeded       = "succeeded"
	statePartiallyFailed = "partially_failed"
	stateFailed          = "failed"
)
