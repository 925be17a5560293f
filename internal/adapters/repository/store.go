// Package repository persists canonical campaign records and platform
// connections.
package repository

import (
	"context"
	"time"

	"github.com/okian/aecr/internal/domain/model"
)

// Filter narrows a record query. Zero fields do not filter. From and To are
// inclusive reporting days.
type Filter struct {
	UserID     string
	Platform   model.Platform
	AccountIDs []string
	CampaignID string
	From       time.Time
	To         time.Time
}

// Match reports whether r passes f.
func (f Filter) Match(r model.CampaignRecord) bool {
	switch {
	case f.UserID != "" && r.UserID != f.UserID:
		return false
	case f.Platform != "" && r.Platform != f.Platform:
		return false
	case f.CampaignID != "" && r.CampaignID != f.CampaignID:
		return false
	case !f.From.IsZero() && r.Date.Before(f.From):
		return false
	case !f.To.IsZero() && r.Date.After(f.To):
		return false
	}
	if len(f.AccountIDs) == 0 {
		return true
	}
	for _, a := range f.AccountIDs {
		if a == r.AccountID {
			return true
		}
	}
	return false
}

// Store provides per-record atomic upserts and filtered reads of canonical
// records. Upserts of the same key are serialized; the last writer wins.
type Store interface {
	// Upsert inserts or replaces the record with the same campaign, platform
	// and day.
	Upsert(ctx context.Context, rec model.CampaignRecord) error
	// Query returns matching records ordered by day, then platform, then
	// campaign id.
	Query(ctx context.Context, f Filter) ([]model.CampaignRecord, error)
}

// Validate rejects records that cannot be stored.
func Validate(rec model.CampaignRecord) error {
	switch {
	case rec.CampaignID == "":
		return invalid("campaign_id is empty")
	case !rec.Platform.Valid():
		return invalid("unknown platform " + string(rec.Platform))
	case rec.Date.IsZero():
		return invalid("date is zero")
	case rec.Impressions < 0 || rec.Clicks < 0 || rec.Conversions < 0 || rec.Spend < 0 || rec.ConversionValue < 0:
		return invalid("negative counter")
	}
	return nil
}

func less(a, b model.CampaignRecord) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Platform != b.Platform {
		return a.Platform < b.Platform
	}
	return a.CampaignID < b.CampaignID
}
