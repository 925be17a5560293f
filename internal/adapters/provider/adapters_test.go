package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/okian/aecr/internal/adapters/provider"
	"github.com/okian/aecr/internal/domain/mapping"
	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/fixtures"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGoogleAnalytics(t *testing.T) {
	ctx := context.Background()

	Convey("Given a GA4 Data and Admin API", t, func() {
		var body map[string]any
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v1beta/accountSummaries", respond(http.StatusOK, fixtures.GoogleAnalyticsAccounts))
		mux.HandleFunc("POST /v1beta/properties/{prop}", func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("prop") != "1001:runReport" {
				respond(http.StatusNotFound, `{}`)(w, r)
				return
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			respond(http.StatusOK, fixtures.GoogleAnalyticsReport)(w, r)
		})
		srv := server(t, mux)
		a := provider.NewGoogleAnalytics(provider.WithBaseURL(srv.URL), provider.WithClock(clock))

		Convey("FetchAccounts returns property ids", func() {
			ids, err := a.FetchAccounts(ctx, validCred)
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"1001", "1002"})
		})

		Convey("FetchMetrics resolves metrics by header name", func() {
			batch, err := a.FetchMetrics(ctx, validCred, "1001", window)
			So(err, ShouldBeNil)
			So(batch.Platform, ShouldEqual, model.GoogleAnalytics)
			So(batch.Len(), ShouldEqual, 2)
			row := batch.GoogleAnalytics[0]
			So(string(row.Impressions), ShouldEqual, "2000")
			So(string(row.Clicks), ShouldEqual, "40")
			So(row.Date, ShouldEqual, "20250801")
			So(row.Currency, ShouldEqual, "USD")

			dr := body["dateRanges"].([]any)[0].(map[string]any)
			So(dr["startDate"], ShouldEqual, "2025-08-01")
			So(dr["endDate"], ShouldEqual, "2025-08-02")

			recs, errs := mapping.New().Map("u1", "1001", batch)
			So(errs, ShouldBeEmpty)
			So(recs, ShouldHaveLength, 2)
			So(recs[0].Spend, ShouldAlmostEqual, 50.5)
		})
	})

	Convey("Given a report missing a requested metric header", t, func() {
		broken := strings.Replace(fixtures.GoogleAnalyticsReport, "advertiserAdCost", "adCost", 1)
		srv := server(t, respond(http.StatusOK, broken))
		a := provider.NewGoogleAnalytics(provider.WithBaseURL(srv.URL), provider.WithClock(clock))

		_, err := a.FetchMetrics(ctx, validCred, "1001", window)
		So(errors.Is(err, provider.ErrSchemaChanged), ShouldBeTrue)
	})
}

func TestGoogleAds(t *testing.T) {
	ctx := context.Background()

	Convey("Given a Google Ads API", t, func() {
		var query, devToken string
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v17/customers:listAccessibleCustomers", respond(http.StatusOK, fixtures.GoogleAdsCustomers))
		mux.HandleFunc("POST /v17/customers/{rest...}", func(w http.ResponseWriter, r *http.Request) {
			devToken = r.Header.Get("developer-token")
			var req struct {
				Query string `json:"query"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			query = req.Query
			respond(http.StatusOK, fixtures.GoogleAdsStream)(w, r)
		})
		srv := server(t, mux)
		a := provider.NewGoogleAds(provider.WithBaseURL(srv.URL), provider.WithClock(clock), provider.WithDeveloperToken("dev"))

		Convey("FetchAccounts strips resource names", func() {
			ids, err := a.FetchAccounts(ctx, validCred)
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"1234567890", "2222222222"})
		})

		Convey("FetchMetrics flattens every stream chunk", func() {
			batch, err := a.FetchMetrics(ctx, validCred, "1234567890", window)
			So(err, ShouldBeNil)
			So(devToken, ShouldEqual, "dev")
			So(query, ShouldContainSubstring, "BETWEEN '2025-08-01' AND '2025-08-02'")
			So(batch.GoogleAds, ShouldHaveLength, 2)
			So(string(batch.GoogleAds[1].ConversionsValue), ShouldEqual, "95.5")

			recs, errs := mapping.New().Map("u1", "1234567890", batch)
			So(errs, ShouldBeEmpty)
			So(recs[0].Spend, ShouldAlmostEqual, 12.5)
			So(recs[1].Spend, ShouldAlmostEqual, 15)
		})
	})

	Convey("Given a quota error in the google.rpc envelope", t, func() {
		srv := server(t, respond(http.StatusBadRequest, `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED"}}`))
		a := provider.NewGoogleAds(provider.WithBaseURL(srv.URL), provider.WithClock(clock))

		_, err := a.FetchMetrics(ctx, validCred, "1", window)
		So(errors.Is(err, provider.ErrRateLimited), ShouldBeTrue)
	})
}

func TestMeta(t *testing.T) {
	ctx := context.Background()

	Convey("Given a paginated insights edge", t, func() {
		var srvURL, level, timeRange string
		mux := http.NewServeMux()
		mux.HandleFunc("GET /v19.0/me/adaccounts", respond(http.StatusOK, fixtures.MetaAdAccounts))
		mux.HandleFunc("GET /v19.0/act_555/insights", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("after") == "c2" {
				respond(http.StatusOK, fixtures.MetaInsights("2025-08-02", ""))(w, r)
				return
			}
			level, timeRange = r.URL.Query().Get("level"), r.URL.Query().Get("time_range")
			respond(http.StatusOK, fixtures.MetaInsights("2025-08-01", srvURL+"/v19.0/act_555/insights?after=c2"))(w, r)
		})
		srv := server(t, mux)
		srvURL = srv.URL
		a := provider.NewMeta(provider.WithBaseURL(srv.URL), provider.WithClock(clock))

		Convey("FetchAccounts reads account ids", func() {
			ids, err := a.FetchAccounts(ctx, validCred)
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"555"})
		})

		Convey("FetchMetrics follows the cursor", func() {
			batch, err := a.FetchMetrics(ctx, validCred, "555", window)
			So(err, ShouldBeNil)
			So(level, ShouldEqual, "campaign")
			So(timeRange, ShouldEqual, `{"since":"2025-08-01","until":"2025-08-02"}`)
			So(batch.Meta, ShouldHaveLength, 2)
			So(batch.Meta[1].DateStart, ShouldEqual, "2025-08-02")
			So(batch.Meta[0].Actions, ShouldHaveLength, 2)
		})
	})

	Convey("Given a cursor pointing at another host", t, func() {
		srv := server(t, respond(http.StatusOK, fixtures.MetaInsights("2025-08-01", "https://evil.example/next")))
		a := provider.NewMeta(provider.WithBaseURL(srv.URL), provider.WithClock(clock))

		_, err := a.FetchMetrics(ctx, validCred, "555", window)
		So(errors.Is(err, provider.ErrSchemaChanged), ShouldBeTrue)
	})

	Convey("Graph error codes on HTTP 400 are classified", t, func() {
		for code, kind := range map[int]error{
			190: provider.ErrAuthExpired,
			17:  provider.ErrRateLimited,
			2:   provider.ErrProviderUnavailable,
			100: provider.ErrSchemaChanged,
		} {
			srv := server(t, respond(http.StatusBadRequest, fixtures.MetaError(code)))
			a := provider.NewMeta(provider.WithBaseURL(srv.URL), provider.WithClock(clock))
			_, err := a.FetchMetrics(ctx, validCred, "555", window)
			So(errors.Is(err, kind), ShouldBeTrue)
		}
	})
}

func TestLinkedIn(t *testing.T) {
	ctx := context.Background()

	Convey("Given the LinkedIn Marketing API", t, func() {
		var rawQuery, version string
		mux := http.NewServeMux()
		mux.HandleFunc("GET /rest/adAccounts", respond(http.StatusOK, fixtures.LinkedInAccounts))
		mux.HandleFunc("GET /rest/adAccounts/{id}", respond(http.StatusOK, fixtures.LinkedInAccount))
		mux.HandleFunc("GET /rest/adAnalytics", func(w http.ResponseWriter, r *http.Request) {
			rawQuery = r.URL.RawQuery
			version = r.Header.Get("LinkedIn-Version")
			respond(http.StatusOK, fixtures.LinkedInAnalytics)(w, r)
		})
		srv := server(t, mux)
		a := provider.NewLinkedIn(provider.WithBaseURL(srv.URL), provider.WithClock(clock))

		Convey("FetchAccounts reads numeric ids", func() {
			ids, err := a.FetchAccounts(ctx, validCred)
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"503000001"})
		})

		Convey("FetchMetrics builds a Rest.li query and attaches the account currency", func() {
			batch, err := a.FetchMetrics(ctx, validCred, "503000001", window)
			So(err, ShouldBeNil)
			So(version, ShouldNotBeEmpty)
			So(rawQuery, ShouldContainSubstring, "dateRange=(start:(year:2025,month:8,day:1),end:(year:2025,month:8,day:2))")
			So(rawQuery, ShouldContainSubstring, "accounts=List(urn%3Ali%3AsponsoredAccount%3A503000001)")
			So(batch.LinkedIn, ShouldHaveLength, 2)
			So(batch.LinkedIn[0].Currency, ShouldEqual, "USD")
			So(string(batch.LinkedIn[0].Impressions), ShouldEqual, "300")

			recs, errs := mapping.New().Map("u1", "503000001", batch)
			So(errs, ShouldBeEmpty)
			So(recs[0].CampaignID, ShouldEqual, "987")
		})
	})
}

func TestTikTok(t *testing.T) {
	ctx := context.Background()

	Convey("Given the TikTok Business API", t, func() {
		var token, appID string
		mux := http.NewServeMux()
		mux.HandleFunc("GET /open_api/v1.3/oauth2/advertiser/get/", func(w http.ResponseWriter, r *http.Request) {
			appID = r.URL.Query().Get("app_id")
			respond(http.StatusOK, fixtures.TikTokAdvertisers)(w, r)
		})
		mux.HandleFunc("GET /open_api/v1.3/report/integrated/get/", func(w http.ResponseWriter, r *http.Request) {
			token = r.Header.Get("Access-Token")
			if r.URL.Query().Get("page") == "1" {
				respond(http.StatusOK, fixtures.TikTokReport(1, 2, "2025-08-01"))(w, r)
				return
			}
			respond(http.StatusOK, fixtures.TikTokReport(2, 2, "2025-08-02"))(w, r)
		})
		srv := server(t, mux)
		a := provider.NewTikTok(provider.WithBaseURL(srv.URL), provider.WithClock(clock),
			provider.WithOAuth("app", "secret", srv.URL+"/token"))

		Convey("FetchAccounts lists advertisers", func() {
			ids, err := a.FetchAccounts(ctx, validCred)
			So(err, ShouldBeNil)
			So(ids, ShouldResemble, []string{"7000000001"})
			So(appID, ShouldEqual, "app")
		})

		Convey("FetchMetrics walks every page with the Access-Token header", func() {
			batch, err := a.FetchMetrics(ctx, validCred, "7000000001", window)
			So(err, ShouldBeNil)
			So(token, ShouldEqual, "tok")
			So(batch.TikTok, ShouldHaveLength, 2)

			recs, errs := mapping.New().Map("u1", "7000000001", batch)
			So(errs, ShouldBeEmpty)
			So(recs[1].Date.Day(), ShouldEqual, 2)
			So(recs[0].ConversionValue, ShouldAlmostEqual, 140)
		})
	})

	Convey("Envelope codes are classified even on HTTP 200", t, func() {
		for code, kind := range map[int]error{
			40100: provider.ErrRateLimited,
			40105: provider.ErrAuthExpired,
			51004: provider.ErrProviderUnavailable,
			40002: provider.ErrSchemaChanged,
		} {
			srv := server(t, respond(http.StatusOK, fixtures.TikTokError(code)))
			a := provider.NewTikTok(provider.WithBaseURL(srv.URL), provider.WithClock(clock))
			_, err := a.FetchMetrics(ctx, validCred, "1", window)
			So(errors.Is(err, kind), ShouldBeTrue)
		}
	})

	Convey("A body without the envelope is a schema change", t, func() {
		srv := server(t, respond(http.StatusOK, `{"list":[]}`))
		a := provider.NewTikTok(provider.WithBaseURL(srv.URL), provider.WithClock(clock))
		_, err := a.FetchMetrics(ctx, validCred, "1", window)
		So(errors.Is(err, provider.ErrSchemaChanged), ShouldBeTrue)
	})
}

