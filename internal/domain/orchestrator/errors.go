package orchestrator

import "errors"

var (
	// ErrSyncInFlight rejects a sync request while another sync for the
	// same user and platform is running. The request is not queued.
	ErrSyncInFlight = errors.New("sync already in flight")
	// ErrInvalidRequest means the request lacks a user or names an unknown
	// platform.
	ErrInvalidRequest = errors.New("invalid sync request")
)
