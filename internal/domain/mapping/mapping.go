// Package mapping converts provider-native batches into canonical campaign
// records. Mapping is pure: the same batch always yields the same records.
package mapping

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
)

const (
	defaultCurrency = "USD"
	microsExponent  = -6

	layoutCompactDay = "20060102"
	layoutDay        = "2006-01-02"
	layoutTikTokDay  = "2006-01-02 15:04:05"

	linkedInCampaignURN = "urn:li:sponsoredCampaign:"
)

// Option configures a Mapper.
type Option func(*Mapper)

// WithReportingCurrency sets the currency every record must be reported in.
// Rows in any other currency are rejected, never converted.
func WithReportingCurrency(code string) Option {
	return func(m *Mapper) {
		if c := strings.ToUpper(strings.TrimSpace(code)); c != "" {
			m.currency = c
		}
	}
}

// WithMetaConversionTypes sets the Meta action types counted as conversions,
// in priority order. The first type present on a row wins so that overlapping
// action types are not double counted.
func WithMetaConversionTypes(types ...string) Option {
	return func(m *Mapper) {
		if len(types) > 0 {
			m.metaTypes = append([]string(nil), types...)
		}
	}
}

// Mapper maps native batches to canonical records.
type Mapper struct {
	currency  string
	metaTypes []string
}

// New creates a Mapper.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		currency:  defaultCurrency,
		metaTypes: []string{"purchase", "offsite_conversion.fb_pixel_purchase"},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Currency returns the reporting currency.
func (m *Mapper) Currency() string { return m.currency }

// Map converts every row of b. Rows that fail are reported as MappingErrors
// and skipped; the rest are returned in input order.
func (m *Mapper) Map(userID, accountID string, b native.Batch) ([]model.CampaignRecord, []*MappingError) {
	out := make([]model.CampaignRecord, 0, b.Len())
	var errs []*MappingError

	add := func(rec model.CampaignRecord, err *MappingError) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		rec.UserID = userID
		rec.AccountID = accountID
		rec.Platform = b.Platform
		rec.Channel = b.Platform.Channel()
		out = append(out, rec)
	}

	switch b.Platform {
	case model.GoogleAnalytics:
		for _, row := range b.GoogleAnalytics {
			add(m.MapGoogleAnalytics(row))
		}
	case model.GoogleAds:
		for _, row := range b.GoogleAds {
			add(m.MapGoogleAds(row))
		}
	case model.MetaAds:
		for _, row := range b.Meta {
			add(m.MapMeta(row))
		}
	case model.LinkedInAds:
		for _, row := range b.LinkedIn {
			add(m.MapLinkedIn(row))
		}
	case model.TikTokAds:
		for _, row := range b.TikTok {
			add(m.MapTikTok(row))
		}
	default:
		errs = append(errs, &MappingError{Platform: b.Platform, Field: "platform", Reason: "unknown platform"})
	}
	return out, errs
}

// MapGoogleAnalytics maps one runReport row.
func (m *Mapper) MapGoogleAnalytics(row native.GARow) (model.CampaignRecord, *MappingError) {
	f := m.row(model.GoogleAnalytics, row.CampaignID)
	if row.CampaignID == "(not set)" {
		f.fail("campaign_id", "not set")
	}
	rec := model.CampaignRecord{
		CampaignID:      row.CampaignID,
		Name:            row.CampaignName,
		Date:            f.date("date", layoutCompactDay, row.Date),
		Currency:        f.currency(row.Currency),
		Impressions:     f.count("impressions", row.Impressions, true),
		Clicks:          f.count("clicks", row.Clicks, true),
		Spend:           f.amount("spend", row.Cost, true),
		Conversions:     f.amount("conversions", row.Conversions, false),
		ConversionValue: f.amount("conversion_value", row.Revenue, false),
	}
	return rec, f.err
}

// MapGoogleAds maps one searchStream row. Cost arrives in micros.
func (m *Mapper) MapGoogleAds(row native.GoogleAdsRow) (model.CampaignRecord, *MappingError) {
	f := m.row(model.GoogleAds, row.CampaignID)
	rec := model.CampaignRecord{
		CampaignID:      row.CampaignID,
		Name:            row.CampaignName,
		Date:            f.date("date", layoutDay, row.Date),
		Currency:        f.currency(row.Currency),
		Impressions:     f.count("impressions", row.Impressions, true),
		Clicks:          f.count("clicks", row.Clicks, true),
		Spend:           f.micros("spend", row.CostMicros, true),
		Conversions:     f.amount("conversions", row.Conversions, false),
		ConversionValue: f.amount("conversion_value", row.ConversionsValue, false),
	}
	return rec, f.err
}

// MapMeta maps one insights row.
func (m *Mapper) MapMeta(row native.MetaRow) (model.CampaignRecord, *MappingError) {
	f := m.row(model.MetaAds, row.CampaignID)
	rec := model.CampaignRecord{
		CampaignID:      row.CampaignID,
		Name:            row.CampaignName,
		Date:            f.date("date", layoutDay, row.DateStart),
		Currency:        f.currency(row.Currency),
		Impressions:     f.count("impressions", row.Impressions, true),
		Clicks:          f.count("clicks", row.Clicks, true),
		Spend:           f.amount("spend", row.Spend, true),
		Conversions:     f.amount("conversions", m.metaAction(row.Actions), false),
		ConversionValue: f.amount("conversion_value", m.metaAction(row.ActionValues), false),
	}
	return rec, f.err
}

func (m *Mapper) metaAction(actions []native.MetaAction) native.Value {
	for _, t := range m.metaTypes {
		for _, a := range actions {
			if a.ActionType == t {
				return a.Value
			}
		}
	}
	return ""
}

// MapLinkedIn maps one adAnalytics element.
func (m *Mapper) MapLinkedIn(row native.LinkedInRow) (model.CampaignRecord, *MappingError) {
	id, ok := strings.CutPrefix(row.CampaignURN, linkedInCampaignURN)
	f := m.row(model.LinkedInAds, id)
	if !ok {
		f.fail("campaign_id", "unexpected pivot "+row.CampaignURN)
	}
	var day time.Time
	if row.Start.Year == 0 || row.Start.Month == 0 || row.Start.Day == 0 {
		f.fail("date", "missing")
	} else {
		day = time.Date(row.Start.Year, time.Month(row.Start.Month), row.Start.Day, 0, 0, 0, 0, time.UTC)
	}
	rec := model.CampaignRecord{
		CampaignID:      id,
		Name:            id,
		Date:            day,
		Currency:        f.currency(row.Currency),
		Impressions:     f.count("impressions", row.Impressions, true),
		Clicks:          f.count("clicks", row.Clicks, true),
		Spend:           f.amount("spend", row.Cost, true),
		Conversions:     f.amount("conversions", row.Conversions, false),
		ConversionValue: f.amount("conversion_value", row.ConversionValue, false),
	}
	return rec, f.err
}

// MapTikTok maps one integrated report row.
func (m *Mapper) MapTikTok(row native.TikTokRow) (model.CampaignRecord, *MappingError) {
	f := m.row(model.TikTokAds, row.CampaignID)
	rec := model.CampaignRecord{
		CampaignID:      row.CampaignID,
		Name:            row.CampaignName,
		Date:            f.date("date", layoutTikTokDay, row.StatTimeDay),
		Currency:        f.currency(row.Currency),
		Impressions:     f.count("impressions", row.Impressions, true),
		Clicks:          f.count("clicks", row.Clicks, true),
		Spend:           f.amount("spend", row.Spend, true),
		Conversions:     f.amount("conversions", row.Conversions, false),
		ConversionValue: f.amount("conversion_value", row.ConversionValue, false),
	}
	return rec, f.err
}

// rowMapper collects the first failure of one row.
type rowMapper struct {
	platform model.Platform
	campaign string
	want     string
	err      *MappingError
}

func (m *Mapper) row(p model.Platform, campaignID string) *rowMapper {
	r := &rowMapper{platform: p, campaign: campaignID, want: m.currency}
	if strings.TrimSpace(campaignID) == "" {
		r.fail("campaign_id", "missing")
	}
	return r
}

func (r *rowMapper) fail(field, reason string) {
	if r.err == nil {
		r.err = &MappingError{Platform: r.platform, CampaignID: r.campaign, Field: field, Reason: reason}
	}
}

func (r *rowMapper) decimal(field string, v native.Value, required bool) (decimal.Decimal, bool) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		if required {
			r.fail(field, "missing")
		}
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		r.fail(field, "not numeric: "+s)
		return decimal.Zero, false
	}
	if d.IsNegative() {
		return decimal.Zero, true
	}
	return d, true
}

func (r *rowMapper) count(field string, v native.Value, required bool) int64 {
	d, _ := r.decimal(field, v, required)
	return d.Round(0).IntPart()
}

func (r *rowMapper) amount(field string, v native.Value, required bool) float64 {
	d, _ := r.decimal(field, v, required)
	return d.InexactFloat64()
}

func (r *rowMapper) micros(field string, v native.Value, required bool) float64 {
	d, _ := r.decimal(field, v, required)
	return d.Shift(microsExponent).InexactFloat64()
}

func (r *rowMapper) date(field, layout, s string) time.Time {
	if s == "" {
		r.fail(field, "missing")
		return time.Time{}
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		r.fail(field, "unparseable: "+s)
		return time.Time{}
	}
	return native.Day(t)
}

func (r *rowMapper) currency(got string) string {
	c := strings.ToUpper(strings.TrimSpace(got))
	switch {
	case c == "":
		r.fail("currency", "missing")
	case c != r.want:
		r.fail("currency", "reported in "+c+", expected "+r.want)
	}
	return c
}
