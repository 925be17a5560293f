package model

import (
	"fmt"
	"strings"
	"time"
)

// KPI names a canonical metric, primitive or derived.
type KPI string

// Canonical KPIs.
const (
	KPIImpressions     KPI = "impressions"
	KPIClicks          KPI = "clicks"
	KPISpend           KPI = "spend"
	KPIConversions     KPI = "conversions"
	KPIConversionValue KPI = "conversion_value"
	KPICTR             KPI = "ctr"
	KPICPC             KPI = "cpc"
	KPICPA             KPI = "cpa"
	KPIROAS            KPI = "roas"
	KPICVR             KPI = "cvr"
)

// KPIs lists every canonical KPI in a stable order.
func KPIs() []KPI {
	return []KPI{
		KPIImpressions, KPIClicks, KPISpend, KPIConversions, KPIConversionValue,
		KPICTR, KPICPC, KPICPA, KPIROAS, KPICVR,
	}
}

// DerivedKPIs lists the ratio KPIs.
func DerivedKPIs() []KPI {
	return []KPI{KPICTR, KPICPC, KPICPA, KPIROAS, KPICVR}
}

// ParseKPI validates a KPI name.
func ParseKPI(s string) (KPI, error) {
	k := KPI(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range KPIs() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKPI, s)
}

// CampaignRecord is the canonical unit of synced performance data for one
// campaign on one reporting day. Ratios are never stored; they are derived
// from the primitive counters on every read.
type CampaignRecord struct {
	CampaignID string
	Platform   Platform
	Channel    string
	AccountID  string
	UserID     string
	Name       string
	Date       time.Time
	Currency   string

	Impressions     int64
	Clicks          int64
	Conversions     float64
	Spend           float64
	ConversionValue float64
}

// Key identifies a record for upserts.
type Key struct {
	CampaignID string
	Platform   Platform
	Date       time.Time
}

// Key returns the upsert key of r.
func (r CampaignRecord) Key() Key {
	return Key{CampaignID: r.CampaignID, Platform: r.Platform, Date: r.Date}
}

func ratio(num, den float64) (float64, bool) {
	if den <= 0 {
		return 0, false
	}
	return num / den, true
}

// CTR is clicks / impressions.
func (r CampaignRecord) CTR() (float64, bool) {
	return ratio(float64(r.Clicks), float64(r.Impressions))
}

// CPC is spend / clicks.
func (r CampaignRecord) CPC() (float64, bool) { return ratio(r.Spend, float64(r.Clicks)) }

// CPA is spend / conversions.
func (r CampaignRecord) CPA() (float64, bool) { return ratio(r.Spend, r.Conversions) }

// ROAS is conversion value / spend.
func (r CampaignRecord) ROAS() (float64, bool) { return ratio(r.ConversionValue, r.Spend) }

// CVR is conversions / clicks.
func (r CampaignRecord) CVR() (float64, bool) { return ratio(r.Conversions, float64(r.Clicks)) }

// Value returns the value of kpi for r; ok is false when the KPI is a ratio
// with a zero denominator.
func (r CampaignRecord) Value(kpi KPI) (float64, bool) {
	switch kpi {
	case KPIImpressions:
		return float64(r.Impressions), true
	case KPIClicks:
		return float64(r.Clicks), true
	case KPISpend:
		return r.Spend, true
	case KPIConversions:
		return r.Conversions, true
	case KPIConversionValue:
		return r.ConversionValue, true
	case KPICTR:
		return r.CTR()
	case KPICPC:
		return r.CPC()
	case KPICPA:
		return r.CPA()
	case KPIROAS:
		return r.ROAS()
	case KPICVR:
		return r.CVR()
	}
	return 0, false
}

// DerivedMetrics is the read shape of the ratio KPIs; nil means undefined.
type DerivedMetrics struct {
	CTR  *float64 `json:"ctr"`
	CPC  *float64 `json:"cpc"`
	CPA  *float64 `json:"cpa"`
	ROAS *float64 `json:"roas"`
	CVR  *float64 `json:"cvr"`
}

func ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

// Derived computes every ratio of r.
func (r CampaignRecord) Derived() DerivedMetrics {
	return DerivedMetrics{
		CTR:  ptr(r.CTR()),
		CPC:  ptr(r.CPC()),
		CPA:  ptr(r.CPA()),
		ROAS: ptr(r.ROAS()),
		CVR:  ptr(r.CVR()),
	}
}

// Totals sums the primitive counters of records into one record carrying
// the identity of the first element. Ratios of the result are computed from
// the sums, never averaged.
func Totals(records []CampaignRecord) CampaignRecord {
	var out CampaignRecord
	for i, r := range records {
		if i == 0 {
			out = CampaignRecord{
				CampaignID: r.CampaignID,
				Platform:   r.Platform,
				Channel:    r.Channel,
				AccountID:  r.AccountID,
				UserID:     r.UserID,
				Name:       r.Name,
				Date:       r.Date,
				Currency:   r.Currency,
			}
		}
		out.Impressions += r.Impressions
		out.Clicks += r.Clicks
		out.Conversions += r.Conversions
		out.Spend += r.Spend
		out.ConversionValue += r.ConversionValue
	}
	return out
}
