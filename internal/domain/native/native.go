// Package native holds the provider-native record shapes produced by the
// provider adapters and consumed by the canonical mapper.
//
// A Batch is a closed tagged variant: exactly one of the row slices matching
// Platform is populated. Numeric fields are kept as the raw text the provider
// sent; coercion and validation belong to the mapper.
package native

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/aecr/internal/domain/model"
)

// Value is a raw scalar that may arrive as a JSON number, a JSON string or
// null. The empty string means absent.
type Value string

// UnmarshalJSON accepts numbers, strings and null.
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*v = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		*v = Value(b)
		return nil
	}
	return fmt.Errorf("native: unsupported scalar %s", b)
}

// DateRange is an inclusive range of reporting days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the range of n full days ending yesterday relative to now (UTC).
func LastDays(now time.Time, n int) DateRange {
	end := Day(now).AddDate(0, 0, -1)
	return DateRange{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// GARow is one row of a Google Analytics Data API runReport response.
type GARow struct {
	CampaignID   string
	CampaignName string
	Date         string // YYYYMMDD
	Impressions  Value
	Clicks       Value
	Cost         Value
	Conversions  Value
	Revenue      Value
	Currency     string
}

// GoogleAdsRow is one row of a Google Ads searchStream result.
type GoogleAdsRow struct {
	CampaignID       string
	CampaignName     string
	Date             string // YYYY-MM-DD
	Impressions      Value
	Clicks           Value
	CostMicros       Value
	Conversions      Value
	ConversionsValue Value
	Currency         string
}

// MetaAction is an entry of the insights actions/action_values arrays.
type MetaAction struct {
	ActionType string `json:"action_type"`
	Value      Value  `json:"value"`
}

// MetaRow is one campaign-day of the Meta Marketing API insights edge.
type MetaRow struct {
	CampaignID   string
	CampaignName string
	DateStart    string // YYYY-MM-DD
	Impressions  Value
	Clicks       Value
	Spend        Value
	Actions      []MetaAction
	ActionValues []MetaAction
	Currency     string
}

// LinkedInDate is the date triple used by LinkedIn's REST APIs.
type LinkedInDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// LinkedInRow is one element of an adAnalytics response.
type LinkedInRow struct {
	CampaignURN     string // urn:li:sponsoredCampaign:<id>
	Start           LinkedInDate
	Impressions     Value
	Clicks          Value
	Cost            Value
	Conversions     Value
	ConversionValue Value
	Currency        string
}

// TikTokRow is one row of the TikTok integrated report.
type TikTokRow struct {
	CampaignID      string
	CampaignName    string
	StatTimeDay     string // "YYYY-MM-DD 00:00:00"
	Impressions     Value
	Clicks          Value
	Spend           Value
	Conversions     Value
	ConversionValue Value
	Currency        string
}

// Batch is the native result of one FetchMetrics call.
type Batch struct {
	Platform        model.Platform
	AccountID       string
	GoogleAnalytics []GARow
	GoogleAds       []GoogleAdsRow
	Meta            []MetaRow
	LinkedIn        []LinkedInRow
	TikTok          []TikTokRow
}

// Len returns the number of rows of the populated variant.
func (b Batch) Len() int {
	switch b.Platform {
	case model.GoogleAnalytics:
		return len(b.GoogleAnalytics)
	case model.GoogleAds:
		return len(b.GoogleAds)
	case model.MetaAds:
		return len(b.Meta)
	case model.LinkedInAds:
		return len(b.LinkedIn)
	case model.TikTokAds:
		return len(b.TikTok)
	}
	return 0
}
