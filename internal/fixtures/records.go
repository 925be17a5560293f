package fixtures

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/okian/aecr/internal/domain/model"
)

// Profile describes the performance level of a synthetic campaign.
type Profile int

// Performance profiles.
const (
	Average Profile = iota
	High
	Low
)

type profileRange struct {
	ctr, cvr, cpc, aov float64
}

var profiles = map[Profile]profileRange{
	Average: {ctr: 0.02, cvr: 0.03, cpc: 1.2, aov: 60},
	High:    {ctr: 0.04, cvr: 0.06, cpc: 0.8, aov: 90},
	Low:     {ctr: 0.008, cvr: 0.01, cpc: 2.5, aov: 40},
}

// Campaign generates days of daily records for one new campaign with a
// random id. Values vary by up to 10% per day around the profile, driven by
// seed.
func Campaign(seed int64, userID string, p model.Platform, profile Profile, start time.Time, days int) []model.CampaignRecord {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic fixtures
	pr := profiles[profile]
	id := uuid.NewString()
	jitter := func(v float64) float64 { return v * (0.9 + rng.Float64()*0.2) }

	out := make([]model.CampaignRecord, days)
	for i := range out {
		impressions := int64(jitter(10000))
		clicks := int64(float64(impressions) * jitter(pr.ctr))
		conversions := float64(int64(float64(clicks) * jitter(pr.cvr)))
		out[i] = model.CampaignRecord{
			CampaignID:      id,
			Platform:        p,
			Channel:         p.Channel(),
			AccountID:       "acct-" + id[:8],
			UserID:          userID,
			Name:            "synthetic " + id[:8],
			Date:            start.AddDate(0, 0, i),
			Currency:        "USD",
			Impressions:     impressions,
			Clicks:          clicks,
			Conversions:     conversions,
			Spend:           float64(clicks) * jitter(pr.cpc),
			ConversionValue: conversions * jitter(pr.aov),
		}
	}
	return out
}

// Benchmarks returns a plausible benchmark set for industry and platform
// covering every derived KPI, each with sampleSize peers.
func Benchmarks(industry string, p model.Platform, sampleSize int) []model.BenchmarkRow {
	q := map[model.KPI][3]float64{
		model.KPICTR:  {0.01, 0.02, 0.035},
		model.KPICVR:  {0.015, 0.03, 0.05},
		model.KPICPC:  {0.8, 1.2, 2.0},
		model.KPICPA:  {25, 40, 70},
		model.KPIROAS: {1.5, 2.5, 4.0},
	}
	out := make([]model.BenchmarkRow, 0, len(q))
	for _, kpi := range model.DerivedKPIs() {
		v := q[kpi]
		out = append(out, model.BenchmarkRow{
			Industry: industry, Platform: p, KPI: kpi,
			Percentile25: v[0], Median: v[1], Percentile75: v[2], SampleSize: sampleSize,
		})
	}
	return out
}
