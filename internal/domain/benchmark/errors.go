package benchmark

import "errors"

var (
	// ErrInsufficientData means the benchmark row has too few peers to be
	// meaningful. It is an expected state, not a failure.
	ErrInsufficientData = errors.New("insufficient benchmark data")
	// ErrNotFound means no benchmark row exists for the requested key.
	ErrNotFound = errors.New("benchmark not found")
	// ErrInvalidValue means the user value is NaN or infinite.
	ErrInvalidValue = errors.New("invalid kpi value")
)
