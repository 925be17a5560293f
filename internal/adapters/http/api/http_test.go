package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/aecr/internal/adapters/http/api"
	"github.com/okian/aecr/internal/adapters/repository"
	service "github.com/okian/aecr/internal/app"
	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/orchestrator"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies records what handlers pass through and answers with
// canned results.
type mockDependencies struct {
	mu sync.Mutex

	scheduleErr error
	scheduled   []string

	campaigns  []service.CampaignView
	lastFilter repository.Filter

	score        service.ScoreResult
	scoreErr     error
	lastScoreReq service.ScoreRequest

	anomalies      []model.AnomalyEvent
	lastAnomalyReq service.AnomalyRequest

	connected []model.Connection
	creds     []model.Credential

	rules     map[string]model.AlertRule
	alerts    []model.AlertEvent
	alertsErr error
}

func newMockDeps() *mockDependencies {
	return &mockDependencies{rules: make(map[string]model.AlertRule)}
}

func (m *mockDependencies) ScheduleSync(_ context.Context, userID string, p model.Platform, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduleErr != nil {
		return m.scheduleErr
	}
	m.scheduled = append(m.scheduled, orchestrator.Key(userID, p))
	return nil
}

func (m *mockDependencies) SyncState(userID string, p model.Platform) service.SyncStatus {
	return service.SyncStatus{UserID: userID, Platform: p, State: orchestrator.Idle}
}

func (m *mockDependencies) Connections(_ context.Context, userID string) ([]model.Connection, error) {
	return []model.Connection{{
		UserID:       userID,
		Platform:     model.MetaAds,
		Status:       model.StatusError,
		LastError:    "auth_expired",
		LastSyncedAt: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	}}, nil
}

func (m *mockDependencies) Connect(_ context.Context, conn model.Connection, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = append(m.connected, conn)
	m.creds = append(m.creds, cred)
	return nil
}

func (m *mockDependencies) Campaigns(_ context.Context, f repository.Filter) ([]service.CampaignView, error) {
	m.lastFilter = f
	return m.campaigns, nil
}

func (m *mockDependencies) Score(_ context.Context, req service.ScoreRequest) (service.ScoreResult, error) {
	m.lastScoreReq = req
	return m.score, m.scoreErr
}

func (m *mockDependencies) Anomalies(_ context.Context, req service.AnomalyRequest) ([]model.AnomalyEvent, error) {
	m.lastAnomalyReq = req
	return m.anomalies, nil
}

func (m *mockDependencies) SaveRule(_ context.Context, r model.AlertRule) error {
	m.rules[r.ID] = r
	return nil
}

func (m *mockDependencies) DeleteRule(_ context.Context, _, ruleID string) error {
	if _, ok := m.rules[ruleID]; !ok {
		return fmt.Errorf("rule %s: %w", ruleID, repository.ErrNotFound)
	}
	delete(m.rules, ruleID)
	return nil
}

func (m *mockDependencies) Rules(_ context.Context, _ string) ([]model.AlertRule, error) {
	out := make([]model.AlertRule, 0, len(m.rules))
	for _, r := range m.rules {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockDependencies) EvaluateAlerts(_ context.Context, _ string) ([]model.AlertEvent, error) {
	return m.alerts, m.alertsErr
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}, nil).Routes()

		Convey("Health answers ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok"`)
		})

		Convey("Metrics are served in the Prometheus text format", func() {
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Stats pass through the provider", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var got map[string]any
			decode(w, &got)
			So(got["started"], ShouldEqual, true)
		})

		Convey("The API reference is mounted", func() {
			So(do(h, http.MethodGet, "/openapi.yaml", "").Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodGet, "/api-docs", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Unknown routes are 404 and wrong methods 405", func() {
			So(do(h, http.MethodGet, "/nope", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodPut, "/v1/sync/u1/meta_ads", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestSyncHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, nil, nil).Routes()

		Convey("A trigger is accepted and the alias is canonicalized", func() {
			w := do(h, http.MethodPost, "/v1/sync/u1/facebook", "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.scheduled, ShouldResemble, []string{orchestrator.Key("u1", model.MetaAds)})
		})

		Convey("A trigger for a syncing key is a conflict", func() {
			deps.scheduleErr = fmt.Errorf("%w: u1/meta_ads", orchestrator.ErrSyncInFlight)
			w := do(h, http.MethodPost, "/v1/sync/u1/meta_ads", "")
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(w.Body.String(), ShouldContainSubstring, "sync_in_flight")
		})

		Convey("A full queue is backpressure", func() {
			deps.scheduleErr = service.ErrQueueFull
			w := do(h, http.MethodPost, "/v1/sync/u1/meta_ads", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldContainSubstring, "backpressure")
		})

		Convey("An unknown platform is a bad request", func() {
			w := do(h, http.MethodPost, "/v1/sync/u1/myspace", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(deps.scheduled, ShouldBeEmpty)
		})

		Convey("Status reports the key state", func() {
			w := do(h, http.MethodGet, "/v1/sync/u1/tiktok_ads", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var got service.SyncStatus
			decode(w, &got)
			So(got.State, ShouldEqual, orchestrator.Idle)
			So(got.Platform, ShouldEqual, model.TikTokAds)
		})

		Convey("Connections surface their status", func() {
			w := do(h, http.MethodGet, "/v1/connections/u1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"error"`)
			So(w.Body.String(), ShouldContainSubstring, `"last_error":"auth_expired"`)
		})

		Convey("A connection is registered with its credential", func() {
			w := do(h, http.MethodPost, "/v1/connections/u1/facebook",
				`{"industry":"retail","access_token":"tok","refresh_token":"ref","expires_at":"2025-09-01T00:00:00Z","account_ids":["act_1"]}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"status":"active"`)
			So(deps.connected, ShouldHaveLength, 1)
			So(deps.connected[0].UserID, ShouldEqual, "u1")
			So(deps.connected[0].Platform, ShouldEqual, model.MetaAds)
			So(deps.connected[0].Industry, ShouldEqual, "retail")
			So(deps.connected[0].AccountIDs, ShouldResemble, []string{"act_1"})
			So(deps.creds[0].AccessToken, ShouldEqual, "tok")
			So(deps.creds[0].RefreshToken, ShouldEqual, "ref")
			So(deps.creds[0].ExpiresAt.Equal(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("A connection without a token or with a bad body is refused", func() {
			So(do(h, http.MethodPost, "/v1/connections/u1/meta_ads", `{"industry":"retail"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/v1/connections/u1/meta_ads", `{"access_token":"t","scope":"x"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/v1/connections/u1/myspace", `{"access_token":"t"}`).Code, ShouldEqual, http.StatusBadRequest)
			So(deps.connected, ShouldBeEmpty)
		})
	})
}

func TestDataHandler(t *testing.T) {
	Convey("Given an API server with stored data", t, func() {
		deps := newMockDeps()
		deps.campaigns = []service.CampaignView{{CampaignID: "c1", Platform: model.GoogleAds, Date: "2025-08-01"}}
		h := api.NewServer(deps, nil, nil).Routes()

		Convey("Campaigns require a user", func() {
			So(do(h, http.MethodGet, "/v1/campaigns", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Campaign filters are passed through", func() {
			w := do(h, http.MethodGet, "/v1/campaigns?user=u1&platform=adwords&from=2025-08-01&to=2025-08-31&account=a1&account=a2", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastFilter.UserID, ShouldEqual, "u1")
			So(deps.lastFilter.Platform, ShouldEqual, model.GoogleAds)
			So(deps.lastFilter.AccountIDs, ShouldResemble, []string{"a1", "a2"})
			So(deps.lastFilter.From, ShouldEqual, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
			So(deps.lastFilter.To, ShouldEqual, time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC))
			So(w.Body.String(), ShouldContainSubstring, `"derived":{"ctr":null`)
		})

		Convey("A half-open or inverted range is rejected", func() {
			So(do(h, http.MethodGet, "/v1/campaigns?user=u1&from=2025-08-01", "").Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodGet, "/v1/campaigns?user=u1&from=2025-08-02&to=2025-08-01", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An unavailable score is still a 200 with a reason", func() {
			deps.score = service.ScoreResult{UserID: "u1", Reason: service.ReasonNoData}
			w := do(h, http.MethodGet, "/v1/score/u1?industry=retail", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastScoreReq.Industry, ShouldEqual, "retail")
			So(w.Body.String(), ShouldContainSubstring, `"score":null`)
			So(w.Body.String(), ShouldContainSubstring, service.ReasonNoData)
		})

		Convey("A failing score is a server error", func() {
			deps.scoreErr = errors.New("store down")
			So(do(h, http.MethodGet, "/v1/score/u1", "").Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("Anomalies default to spend and never return a null list", func() {
			w := do(h, http.MethodGet, "/v1/anomalies/u1?campaign=c9", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastAnomalyReq.KPI, ShouldEqual, model.KPISpend)
			So(deps.lastAnomalyReq.CampaignID, ShouldEqual, "c9")
			So(w.Body.String(), ShouldContainSubstring, `"events":[]`)
		})

		Convey("An unknown KPI is a bad request", func() {
			So(do(h, http.MethodGet, "/v1/anomalies/u1?kpi=reach", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRulesHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		h := api.NewServer(deps, nil, nil).Routes()

		Convey("Saving a rule without an id generates one", func() {
			w := do(h, http.MethodPost, "/v1/rules/u1", `{"kpi":"CPA","trigger":"above","threshold":50}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var got model.AlertRule
			decode(w, &got)
			So(got.ID, ShouldNotBeEmpty)
			So(got.UserID, ShouldEqual, "u1")
			So(got.KPI, ShouldEqual, model.KPICPA)
			So(got.Active, ShouldBeTrue)
			So(deps.rules, ShouldContainKey, got.ID)

			Convey("And it can be deleted once", func() {
				So(do(h, http.MethodDelete, "/v1/rules/u1/"+got.ID, "").Code, ShouldEqual, http.StatusNoContent)
				So(do(h, http.MethodDelete, "/v1/rules/u1/"+got.ID, "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("A rule with an unknown trigger is rejected", func() {
			w := do(h, http.MethodPost, "/v1/rules/u1", `{"kpi":"cpa","trigger":"sideways"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Malformed bodies are rejected", func() {
			So(do(h, http.MethodPost, "/v1/rules/u1", `{`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(h, http.MethodPost, "/v1/rules/u1", `{"kpi":"cpa","trigger":"above","bogus":1}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Evaluation reports delivery failures next to fired events", func() {
			deps.alerts = []model.AlertEvent{{ID: "e1", RuleID: "r1", KPI: model.KPICPA, Trigger: model.TriggerAbove}}
			deps.alertsErr = errors.New("webhook down")
			w := do(h, http.MethodPost, "/v1/alerts/u1/evaluate", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"rule_id":"r1"`)
			So(w.Body.String(), ShouldContainSubstring, "webhook down")
		})

		Convey("Evaluation with nothing fired is an empty list", func() {
			w := do(h, http.MethodPost, "/v1/alerts/u1/evaluate", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"events":[]`)
		})
	})
}
