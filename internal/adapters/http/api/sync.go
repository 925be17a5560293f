package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/aecr/internal/domain/model"
)

// SyncHandler triggers syncs and reports their state.
type SyncHandler struct {
	deps Dependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps Dependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

type triggerResponse struct {
	Status   string         `json:"status"`
	UserID   string         `json:"user_id"`
	Platform model.Platform `json:"platform"`
}

type connectionView struct {
	Platform     model.Platform         `json:"platform"`
	Industry     string                 `json:"industry,omitempty"`
	Status       model.ConnectionStatus `json:"status"`
	LastError    string                 `json:"last_error,omitempty"`
	LastSyncedAt *time.Time             `json:"last_synced_at,omitempty"`
	AccountIDs   []string               `json:"account_ids,omitempty"`
}

// connectRequest registers a connection and the credential it syncs with.
type connectRequest struct {
	Industry     string     `json:"industry"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at"`
	AccountIDs   []string   `json:"account_ids"`
}

func viewOf(c model.Connection) connectionView {
	v := connectionView{
		Platform:   c.Platform,
		Industry:   c.Industry,
		Status:     c.Status,
		LastError:  c.LastError,
		AccountIDs: c.AccountIDs,
	}
	if !c.LastSyncedAt.IsZero() {
		t := c.LastSyncedAt
		v.LastSyncedAt = &t
	}
	return v
}

func keyParams(r *http.Request) (string, model.Platform, error) {
	user, err := pathUser(r)
	if err != nil {
		return "", "", err
	}
	p, err := model.ParsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		return "", "", err
	}
	return user, p, nil
}

// HandleTrigger handles POST /v1/sync/{user}/{platform}. A sync already in
// flight for the key answers 409; a full queue answers 503.
func (h *SyncHandler) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	user, p, err := keyParams(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := h.deps.ScheduleSync(r.Context(), user, p, "manual"); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Status: "accepted", UserID: user, Platform: p})
}

// HandleStatus handles GET /v1/sync/{user}/{platform}.
func (h *SyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	user, p, err := keyParams(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.SyncState(user, p))
}

// HandleConnections handles GET /v1/connections/{user}.
func (h *SyncHandler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	user, err := pathUser(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	conns, err := h.deps.Connections(r.Context(), user)
	if err != nil {
		writeFailure(w, err)
		return
	}
	out := make([]connectionView, 0, len(conns))
	for _, c := range conns {
		out = append(out, viewOf(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleConnect handles POST /v1/connections/{user}/{platform}. Connecting
// again replaces the credential and clears an error status.
func (h *SyncHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	user, p, err := keyParams(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var req connectRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeFailure(w, errors.Join(ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		writeFailure(w, errors.Join(ErrBadRequest, errors.New("access_token is required")))
		return
	}

	conn := model.Connection{
		UserID:     user,
		Platform:   p,
		Industry:   strings.TrimSpace(req.Industry),
		Status:     model.StatusActive,
		AccountIDs: req.AccountIDs,
	}
	cred := model.Credential{AccessToken: req.AccessToken, RefreshToken: req.RefreshToken}
	if req.ExpiresAt != nil {
		cred.ExpiresAt = *req.ExpiresAt
	}
	if err := h.deps.Connect(r.Context(), conn, cred); err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(conn))
}
