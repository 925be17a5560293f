package model_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/aecr/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCampaignRecord_Derived(t *testing.T) {
	Convey("Given a record with populated counters", t, func() {
		r := model.CampaignRecord{
			Impressions:     1000,
			Clicks:          50,
			Conversions:     5,
			Spend:           100,
			ConversionValue: 400,
		}

		Convey("Then every ratio is computed from the counters", func() {
			ctr, ok := r.CTR()
			So(ok, ShouldBeTrue)
			So(ctr, ShouldAlmostEqual, 0.05)
			cpc, _ := r.CPC()
			So(cpc, ShouldAlmostEqual, 2.0)
			cpa, _ := r.CPA()
			So(cpa, ShouldAlmostEqual, 20.0)
			roas, _ := r.ROAS()
			So(roas, ShouldAlmostEqual, 4.0)
			cvr, _ := r.CVR()
			So(cvr, ShouldAlmostEqual, 0.1)
		})

		Convey("Then mutating a counter changes the ratios on the next read", func() {
			r.Clicks = 100
			cpc, _ := r.CPC()
			So(cpc, ShouldAlmostEqual, 1.0)
		})
	})

	Convey("Given a record whose denominators are all zero", t, func() {
		r := model.CampaignRecord{Spend: 0}

		Convey("Then every ratio is undefined, never NaN or Inf", func() {
			for _, kpi := range model.DerivedKPIs() {
				v, ok := r.Value(kpi)
				So(ok, ShouldBeFalse)
				So(math.IsNaN(v), ShouldBeFalse)
				So(math.IsInf(v, 0), ShouldBeFalse)
			}
			d := r.Derived()
			So(d.CTR, ShouldBeNil)
			So(d.CPC, ShouldBeNil)
			So(d.CPA, ShouldBeNil)
			So(d.ROAS, ShouldBeNil)
			So(d.CVR, ShouldBeNil)
		})

		Convey("Then the JSON shape carries nulls", func() {
			b, err := json.Marshal(r.Derived())
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"ctr":null,"cpc":null,"cpa":null,"roas":null,"cvr":null}`)
		})
	})
}

func TestTotals(t *testing.T) {
	Convey("Given daily records of one campaign", t, func() {
		day := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
		recs := []model.CampaignRecord{
			{CampaignID: "c1", Date: day, Clicks: 10, Impressions: 100, Spend: 10},
			{CampaignID: "c1", Date: day.AddDate(0, 0, 1), Clicks: 30, Impressions: 100, Spend: 50},
		}

		Convey("Then ratios of the totals come from summed counters", func() {
			tot := model.Totals(recs)
			So(tot.Clicks, ShouldEqual, 40)
			ctr, _ := tot.CTR()
			So(ctr, ShouldAlmostEqual, 0.2)
			cpc, _ := tot.CPC()
			So(cpc, ShouldAlmostEqual, 1.5)
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Platform and KPI parsing", t, func() {
		p, err := model.ParsePlatform("Facebook")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, model.MetaAds)
		So(p.Channel(), ShouldEqual, "social")

		_, err = model.ParsePlatform("myspace")
		So(errors.Is(err, model.ErrUnknownPlatform), ShouldBeTrue)

		k, err := model.ParseKPI(" ROAS ")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, model.KPIROAS)

		_, err = model.ParseKPI("reach")
		So(errors.Is(err, model.ErrUnknownKPI), ShouldBeTrue)
	})
}

func TestBenchmarkRow_Validate(t *testing.T) {
	Convey("Benchmark rows enforce ordering and sample size", t, func() {
		ok := model.BenchmarkRow{Percentile25: 1, Median: 2, Percentile75: 3, SampleSize: 10}
		So(ok.Validate(), ShouldBeNil)

		flat := model.BenchmarkRow{Percentile25: 2, Median: 2, Percentile75: 2, SampleSize: 1}
		So(flat.Validate(), ShouldBeNil)

		bad := model.BenchmarkRow{Percentile25: 3, Median: 2, Percentile75: 4, SampleSize: 10}
		So(errors.Is(bad.Validate(), model.ErrInvalidBenchmark), ShouldBeTrue)

		empty := model.BenchmarkRow{Percentile25: 1, Median: 2, Percentile75: 3}
		So(errors.Is(empty.Validate(), model.ErrInvalidBenchmark), ShouldBeTrue)
	})
}
