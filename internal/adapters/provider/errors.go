package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/aecr/internal/domain/model"
)

// Sentinel kinds for provider failures.
var (
	// ErrAuthExpired means the credential needs refresh or re-authorization.
	ErrAuthExpired = errors.New("auth expired")
	// ErrRateLimited means the provider throttled the call; retry after backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrProviderUnavailable is a transient outage, timeout or network failure.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrSchemaChanged means the response no longer matches the adapter.
	ErrSchemaChanged = errors.New("schema changed")
	// ErrUnsupportedPlatform means no adapter is registered for a platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

// Error carries the failure kind together with where it happened.
type Error struct {
	Kind       error
	Platform   model.Platform
	Account    string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Platform, e.Kind)
	if e.Account != "" {
		msg += " (account " + e.Account + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Kind returns the sentinel kind of err, or nil when err is not a provider
// failure.
func Kind(err error) error {
	for _, k := range []error{ErrAuthExpired, ErrRateLimited, ErrProviderUnavailable, ErrSchemaChanged} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Retryable reports whether err is transient.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}

// RetryAfter returns the provider-requested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// KindLabel is a short metric label for err's kind.
func KindLabel(err error) string {
	switch Kind(err) {
	case ErrAuthExpired:
		return "auth_expired"
	case ErrRateLimited:
		return "rate_limited"
	case ErrProviderUnavailable:
		return "unavailable"
	case ErrSchemaChanged:
		return "schema_changed"
	}
	return "other"
}

var errMalformedRow = errors.New("row shape does not match headers")

type missingFieldError struct{ field string }

func (e *missingFieldError) Error() string { return "response lacks field " + e.field }
