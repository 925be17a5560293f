package mapping

import (
	"errors"
	"fmt"

	"github.com/okian/aecr/internal/domain/model"
)

// ErrMapping is wrapped by every MappingError.
var ErrMapping = errors.New("mapping error")

// MappingError describes one native row that could not be mapped.
type MappingError struct {
	Platform   model.Platform
	CampaignID string
	Field      string
	Reason     string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s campaign %q field %s: %s", e.Platform, e.CampaignID, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrMapping.
func (e *MappingError) Unwrap() error { return ErrMapping }
