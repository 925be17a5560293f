// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/aecr/internal/adapters/http/swagger"
	"github.com/okian/aecr/internal/adapters/provider"
	"github.com/okian/aecr/internal/adapters/repository"
	service "github.com/okian/aecr/internal/app"
	"github.com/okian/aecr/internal/domain/benchmark"
	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/internal/domain/orchestrator"
	"github.com/okian/aecr/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// ScheduleSync enqueues a sync. It fails with orchestrator.ErrSyncInFlight
	// when the key is already syncing.
	ScheduleSync(ctx context.Context, userID string, platform model.Platform, reason string) error
	SyncState(userID string, platform model.Platform) service.SyncStatus
	Connections(ctx context.Context, userID string) ([]model.Connection, error)
	Connect(ctx context.Context, conn model.Connection, cred model.Credential) error

	Campaigns(ctx context.Context, f repository.Filter) ([]service.CampaignView, error)
	Score(ctx context.Context, req service.ScoreRequest) (service.ScoreResult, error)
	Anomalies(ctx context.Context, req service.AnomalyRequest) ([]model.AnomalyEvent, error)

	SaveRule(ctx context.Context, r model.AlertRule) error
	DeleteRule(ctx context.Context, userID, ruleID string) error
	Rules(ctx context.Context, userID string) ([]model.AlertRule, error)
	EvaluateAlerts(ctx context.Context, userID string) ([]model.AlertEvent, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	logger logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	syncHandler   *SyncHandler
	dataHandler   *DataHandler
	rulesHandler  *RulesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.OrDiscard()
	}
	log = log.Named("api")
	return &Server{
		logger:        log,
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		syncHandler:   NewSyncHandler(deps),
		dataHandler:   NewDataHandler(deps),
		rulesHandler:  NewRulesHandler(deps),
	}
}

// Routes builds the router. Route patterns double as metric labels.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(s.logger))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)
	swagger.Register(r)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/connections/{user}", s.syncHandler.HandleConnections)
		r.Post("/connections/{user}/{platform}", s.syncHandler.HandleConnect)
		r.Post("/sync/{user}/{platform}", s.syncHandler.HandleTrigger)
		r.Get("/sync/{user}/{platform}", s.syncHandler.HandleStatus)

		r.Get("/campaigns", s.dataHandler.HandleCampaigns)
		r.Get("/score/{user}", s.dataHandler.HandleScore)
		r.Get("/anomalies/{user}", s.dataHandler.HandleAnomalies)

		r.Get("/rules/{user}", s.rulesHandler.HandleList)
		r.Post("/rules/{user}", s.rulesHandler.HandleSave)
		r.Delete("/rules/{user}/{rule}", s.rulesHandler.HandleDelete)
		r.Post("/alerts/{user}/evaluate", s.rulesHandler.HandleEvaluate)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure translates upstream sentinel errors to a status and code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, orchestrator.ErrInvalidRequest),
		errors.Is(err, repository.ErrInvalidRecord),
		errors.Is(err, model.ErrUnknownPlatform),
		errors.Is(err, model.ErrUnknownKPI),
		errors.Is(err, model.ErrUnknownTrigger):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, provider.ErrUnsupportedPlatform):
		writeError(w, http.StatusBadRequest, "unsupported_platform", err)
	case errors.Is(err, orchestrator.ErrSyncInFlight):
		writeError(w, http.StatusConflict, "sync_in_flight", err)
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "backpressure", ErrBackpressure)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "not_started", err)
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, benchmark.ErrNotFound)
}

// pathUser returns the trimmed {user} parameter.
func pathUser(r *http.Request) (string, error) {
	u := strings.TrimSpace(chi.URLParam(r, "user"))
	if u == "" {
		return "", ErrBadRequest
	}
	return u, nil
}

// optionalPlatform parses a platform that may be absent.
func optionalPlatform(s string) (model.Platform, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	return model.ParsePlatform(s)
}

// dateRange parses the optional from/to query pair. Both or neither must be
// present and from may not follow to.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	fs, ts := q.Get("from"), q.Get("to")
	if fs == "" && ts == "" {
		return time.Time{}, time.Time{}, nil
	}
	from, err := time.Parse(time.DateOnly, fs)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Join(ErrBadRequest, errors.New("from must be YYYY-MM-DD"))
	}
	to, err := time.Parse(time.DateOnly, ts)
	if err != nil {
		return time.Time{}, time.Time{}, errors.Join(ErrBadRequest, errors.New("to must be YYYY-MM-DD"))
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, errors.Join(ErrBadRequest, errors.New("from is after to"))
	}
	return from, to, nil
}
