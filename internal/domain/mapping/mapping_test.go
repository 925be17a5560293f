package mapping_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/aecr/internal/domain/mapping"
	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/native"
	. "github.com/smartystreets/goconvey/convey"
)

var day = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

func TestMapper_Map(t *testing.T) {
	Convey("Given a mapper reporting in USD", t, func() {
		m := mapping.New(mapping.WithReportingCurrency("usd"))
		So(m.Currency(), ShouldEqual, "USD")

		Convey("When mapping a Google Ads batch with cost in micros", func() {
			b := native.Batch{Platform: model.GoogleAds, GoogleAds: []native.GoogleAdsRow{{
				CampaignID: "111", CampaignName: "Brand", Date: "2025-08-01",
				Impressions: "1000", Clicks: "50", CostMicros: "12500000",
				Conversions: "2.5", ConversionsValue: "80", Currency: "USD",
			}}}
			recs, errs := m.Map("u1", "acct", b)

			Convey("Then the record is canonical", func() {
				So(errs, ShouldBeEmpty)
				So(recs, ShouldHaveLength, 1)
				r := recs[0]
				So(r.UserID, ShouldEqual, "u1")
				So(r.AccountID, ShouldEqual, "acct")
				So(r.Platform, ShouldEqual, model.GoogleAds)
				So(r.Channel, ShouldEqual, "search")
				So(r.Date, ShouldEqual, day)
				So(r.Impressions, ShouldEqual, 1000)
				So(r.Clicks, ShouldEqual, 50)
				So(r.Spend, ShouldAlmostEqual, 12.5)
				So(r.Conversions, ShouldAlmostEqual, 2.5)
				So(r.ConversionValue, ShouldAlmostEqual, 80)
			})

			Convey("Then mapping again yields identical records", func() {
				again, _ := m.Map("u1", "acct", b)
				So(again, ShouldResemble, recs)
			})
		})

		Convey("When a row carries negative counters", func() {
			b := native.Batch{Platform: model.TikTokAds, TikTok: []native.TikTokRow{{
				CampaignID: "t1", StatTimeDay: "2025-08-01 00:00:00",
				Impressions: "-5", Clicks: "3", Spend: "-1.25", Currency: "USD",
			}}}
			recs, errs := m.Map("u1", "adv", b)

			Convey("Then they clamp to zero", func() {
				So(errs, ShouldBeEmpty)
				So(recs[0].Impressions, ShouldEqual, 0)
				So(recs[0].Spend, ShouldEqual, 0)
				So(recs[0].Clicks, ShouldEqual, 3)
				_, ok := recs[0].CTR()
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When one of three rows is malformed", func() {
			b := native.Batch{Platform: model.GoogleAnalytics, GoogleAnalytics: []native.GARow{
				{CampaignID: "a", Date: "20250801", Impressions: "10", Clicks: "1", Cost: "1.00", Currency: "USD"},
				{CampaignID: "b", Date: "20250801", Impressions: "ten", Clicks: "1", Cost: "1.00", Currency: "USD"},
				{CampaignID: "c", Date: "20250801", Impressions: "10", Clicks: "1", Cost: "1.00", Currency: "USD"},
			}}
			recs, errs := m.Map("u1", "prop", b)

			Convey("Then only that row is skipped", func() {
				So(recs, ShouldHaveLength, 2)
				So(recs[0].CampaignID, ShouldEqual, "a")
				So(recs[1].CampaignID, ShouldEqual, "c")
				So(errs, ShouldHaveLength, 1)
				So(errs[0].CampaignID, ShouldEqual, "b")
				So(errs[0].Field, ShouldEqual, "impressions")
				So(errors.Is(errs[0], mapping.ErrMapping), ShouldBeTrue)
			})
		})

		Convey("When a required field is absent", func() {
			_, err := m.MapMeta(native.MetaRow{CampaignID: "m1", DateStart: "2025-08-01", Impressions: "10", Currency: "USD", Spend: "1"})
			So(err, ShouldNotBeNil)
			So(err.Field, ShouldEqual, "clicks")
			So(err.Reason, ShouldEqual, "missing")
		})

		Convey("When the row currency differs from the reporting currency", func() {
			_, err := m.MapGoogleAds(native.GoogleAdsRow{
				CampaignID: "1", Date: "2025-08-01", Impressions: "1", Clicks: "1", CostMicros: "1", Currency: "EUR",
			})

			Convey("Then it is rejected rather than converted", func() {
				So(err, ShouldNotBeNil)
				So(err.Field, ShouldEqual, "currency")
			})
		})
	})
}

func TestMapper_Meta(t *testing.T) {
	Convey("Given a Meta row with overlapping purchase actions", t, func() {
		m := mapping.New()
		row := native.MetaRow{
			CampaignID: "m1", CampaignName: "Prospecting", DateStart: "2025-08-01",
			Impressions: "2000", Clicks: "40", Spend: "55.10", Currency: "USD",
			Actions: []native.MetaAction{
				{ActionType: "link_click", Value: "40"},
				{ActionType: "offsite_conversion.fb_pixel_purchase", Value: "4"},
				{ActionType: "purchase", Value: "4"},
			},
			ActionValues: []native.MetaAction{{ActionType: "purchase", Value: "210.5"}},
		}

		Convey("Then the highest priority action type is used once", func() {
			rec, err := m.MapMeta(row)
			So(err, ShouldBeNil)
			So(rec.Conversions, ShouldEqual, 4)
			So(rec.ConversionValue, ShouldAlmostEqual, 210.5)
			So(rec.Spend, ShouldAlmostEqual, 55.10)
		})

		Convey("Then rows without conversion actions map to zero conversions", func() {
			row.Actions, row.ActionValues = nil, nil
			rec, err := m.MapMeta(row)
			So(err, ShouldBeNil)
			So(rec.Conversions, ShouldEqual, 0)
			_, ok := rec.CPA()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestMapper_LinkedIn(t *testing.T) {
	Convey("Given LinkedIn analytics elements", t, func() {
		m := mapping.New()

		Convey("Then the campaign id is taken from the pivot URN", func() {
			rec, err := m.MapLinkedIn(native.LinkedInRow{
				CampaignURN: "urn:li:sponsoredCampaign:987",
				Start:       native.LinkedInDate{Year: 2025, Month: 8, Day: 1},
				Impressions: "300", Clicks: "9", Cost: "45.00", Conversions: "1", Currency: "USD",
			})
			So(err, ShouldBeNil)
			So(rec.CampaignID, ShouldEqual, "987")
			So(rec.Date, ShouldEqual, day)
		})

		Convey("Then an unexpected pivot is a mapping error", func() {
			_, err := m.MapLinkedIn(native.LinkedInRow{
				CampaignURN: "urn:li:sponsoredCreative:1",
				Start:       native.LinkedInDate{Year: 2025, Month: 8, Day: 1},
				Impressions: "1", Clicks: "1", Cost: "1", Currency: "USD",
			})
			So(err, ShouldNotBeNil)
			So(err.Field, ShouldEqual, "campaign_id")
		})
	})
}

func TestMapper_UnknownPlatform(t *testing.T) {
	Convey("An untagged batch yields one mapping error and no records", t, func() {
		recs, errs := mapping.New().Map("u", "a", native.Batch{Platform: "myspace"})
		So(recs, ShouldBeEmpty)
		So(errs, ShouldHaveLength, 1)
	})
}
