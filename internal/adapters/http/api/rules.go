package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/okian/aecr/internal/domain/model"
)

// RulesHandler manages alert rules and on-demand evaluation.
type RulesHandler struct {
	deps Dependencies
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(deps Dependencies) *RulesHandler {
	return &RulesHandler{deps: deps}
}

// ruleRequest mirrors model.AlertRule minus the owner, which comes from the path.
type ruleRequest struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	KPI        string  `json:"kpi"`
	Trigger    string  `json:"trigger"`
	Threshold  float64 `json:"threshold"`
	Platform   string  `json:"platform"`
	CampaignID string  `json:"campaign_id"`
	Active     *bool   `json:"active"`
}

func (req ruleRequest) rule(user string) (model.AlertRule, error) {
	kpi, err := model.ParseKPI(req.KPI)
	if err != nil {
		return model.AlertRule{}, err
	}
	trigger, err := model.ParseTrigger(req.Trigger)
	if err != nil {
		return model.AlertRule{}, err
	}
	p, err := optionalPlatform(req.Platform)
	if err != nil {
		return model.AlertRule{}, err
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.AlertRule{
		ID:         id,
		UserID:     user,
		Name:       req.Name,
		KPI:        kpi,
		Trigger:    trigger,
		Threshold:  req.Threshold,
		Platform:   p,
		CampaignID: strings.TrimSpace(req.CampaignID),
		Active:     active,
	}, nil
}

// HandleList handles GET /v1/rules/{user}.
func (h *RulesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	rules, err := h.deps.Rules(r.Context(), user)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

// HandleSave handles POST /v1/rules/{user}. A missing id is generated.
func (h *RulesHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req ruleRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeFailure(w, errors.Join(ErrBadRequest, err))
		return
	}
	rule, err := req.rule(user)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.SaveRule(r.Context(), rule); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// HandleDelete handles DELETE /v1/rules/{user}/{rule}.
func (h *RulesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.DeleteRule(r.Context(), user, chi.URLParam(r, "rule")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type evaluateResponse struct {
	Events []model.AlertEvent `json:"events"`
	Error  string             `json:"error,omitempty"`
}

// HandleEvaluate handles POST /v1/alerts/{user}/evaluate. Delivery failures
// do not discard the fired events; they are reported alongside them.
func (h *RulesHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	events, err := h.deps.EvaluateAlerts(r.Context(), user)
	if events == nil {
		events = []model.AlertEvent{}
	}
	if err != nil && len(events) == 0 {
		writeFailure(w, err)
		return
	}
	resp := evaluateResponse{Events: events}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
