package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid campaign record")
)

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, reason)
}
