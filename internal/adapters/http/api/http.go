// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/okian/sessionrec/internal/domain/model"
	"github.com/okian/sessionrec/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	VisitorDependencies
	RecommendationDependencies
	CacheDependencies
	StatsProvider
}

// VisitorDependencies exposes visitor reads.
type VisitorDependencies interface {
	GetAllVisitors(ctx context.Context) ([]model.VisitorSummary, error)
	GetVisitorByBadgeID(ctx context.Context, badgeID string) (model.Visitor, error)
}

// RecommendationDependencies runs the recommendation pipeline.
type RecommendationDependencies interface {
	GetRecommendationsAndFilter(ctx context.Context, req types.Request) types.Result
}

// CacheDependencies exposes cache maintenance.
type CacheDependencies interface {
	ClearCaches()
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler          *HealthHandler
	statsHandler           *StatsHandler
	visitorsHandler        *VisitorsHandler
	recommendationsHandler *RecommendationsHandler
	cachesHandler          *CachesHandler
}

// NewServer creates a new API server with all handlers. maxLimit caps the
// max query parameter of recommendation requests.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		healthHandler:          NewHealthHandler(),
		statsHandler:           NewStatsHandler(deps),
		visitorsHandler:        NewVisitorsHandler(deps),
		recommendationsHandler: NewRecommendationsHandler(deps, maxLimit),
		cachesHandler:          NewCachesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /visitors", MetricsMiddleware(s.visitorsHandler.HandleList, "visitors"))
	mux.HandleFunc("GET /visitors/{badge_id}", MetricsMiddleware(s.visitorsHandler.HandleGet, "visitor"))
	mux.HandleFunc("GET /visitors/{badge_id}/recommendations",
		MetricsMiddleware(s.recommendationsHandler.HandleGet, "visitor_recommendations"))
	mux.HandleFunc("POST /recommendations", MetricsMiddleware(s.recommendationsHandler.HandlePost, "recommendations"))
	mux.HandleFunc("POST /caches/clear", MetricsMiddleware(s.cachesHandler.HandleClear, "caches_clear"))
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
