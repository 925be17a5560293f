package api

import (
	"net/http"
	"strings"

	"github.com/okian/aecr/internal/adapters/repository"
	service "github.com/okian/aecr/internal/app"
	"github.com/okian/aecr/internal/domain/model"
)

// DataHandler serves the read side: campaigns, scores and anomalies.
type DataHandler struct {
	deps Dependencies
}

// NewDataHandler creates a new data handler.
func NewDataHandler(deps Dependencies) *DataHandler {
	return &DataHandler{deps: deps}
}

// HandleCampaigns handles GET /v1/campaigns?user=&platform=&campaign=&account=&from=&to=.
// Derived ratios are computed on read; undefined ratios are null.
func (h *DataHandler) HandleCampaigns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := strings.TrimSpace(q.Get("user"))
	if user == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	p, err := optionalPlatform(q.Get("platform"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	f := repository.Filter{
		UserID:     user,
		Platform:   p,
		CampaignID: strings.TrimSpace(q.Get("campaign")),
		AccountIDs: q["account"],
		From:       from,
		To:         to,
	}
	views, err := h.deps.Campaigns(r.Context(), f)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleScore handles GET /v1/score/{user}?industry=&platform=&from=&to=.
// A score that cannot be computed is still a 200 with a null score and a
// reason.
func (h *DataHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	q := r.URL.Query()
	p, err := optionalPlatform(q.Get("platform"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	res, err := h.deps.Score(r.Context(), service.ScoreRequest{
		UserID:   user,
		Industry: strings.TrimSpace(q.Get("industry")),
		Platform: p,
		From:     from,
		To:       to,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type anomalyResponse struct {
	UserID string               `json:"user_id"`
	KPI    model.KPI            `json:"kpi"`
	Events []model.AnomalyEvent `json:"events"`
}

// HandleAnomalies handles GET /v1/anomalies/{user}?kpi=&platform=&campaign=&from=&to=.
func (h *DataHandler) HandleAnomalies(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	q := r.URL.Query()
	kpi := model.KPISpend
	if s := q.Get("kpi"); s != "" {
		if kpi, err = model.ParseKPI(s); err != nil {
			writeFailure(w, err)
			return
		}
	}
	p, err := optionalPlatform(q.Get("platform"))
	if err != nil {
		writeFailure(w, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	events, err := h.deps.Anomalies(r.Context(), service.AnomalyRequest{
		UserID:     user,
		KPI:        kpi,
		Platform:   p,
		CampaignID: strings.TrimSpace(q.Get("campaign")),
		From:       from,
		To:         to,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if events == nil {
		events = []model.AnomalyEvent{}
	}
	writeJSON(w, http.StatusOK, anomalyResponse{UserID: user, KPI: kpi, Events: events})
}
