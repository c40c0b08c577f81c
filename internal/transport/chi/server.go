// Package chi is the HTTP transport: route handlers, DTO mapping and bearer
// authentication over the retrieval services.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/plantops/manualsearch/internal/domain"
	healthuc "github.com/plantops/manualsearch/internal/usecase/health"
)

// Searcher is the retrieval surface consumed by the HTTP handlers.
type Searcher interface {
	Ask(ctx context.Context, query string, maxResults int) (domain.Decision, error)
	List(ctx context.Context, query string, maxResults int) ([]domain.Candidate, error)
}

// CorpusStats is the corpus composition reported by the statistics endpoint,
// computed once at startup from the ingested document.
type CorpusStats struct {
	Tables     int
	Figures    int
	TextBlocks int
}

// IndexReadiness reports whether the index snapshot is installed.
type IndexReadiness interface {
	Ready() bool
}

// Server holds the HTTP handlers.
type Server struct {
	search  Searcher
	stats   CorpusStats
	indexes IndexReadiness
	health  *healthuc.Service
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	search Searcher,
	stats CorpusStats,
	indexes IndexReadiness,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		search:  search,
		stats:   stats,
		indexes: indexes,
		health:  health,
		logger:  logger,
	}
}

// Routes registers all handlers on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/ask", s.Ask)
	r.Post("/v1/search", s.Search)
	r.Get("/v1/statistics", s.Statistics)
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Ask handles POST /v1/ask: the confidence-gated tri-state mode.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	decision, err := s.search.Ask(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decisionToResponse(req.Query, decision))
}

// Search handles POST /v1/search: the non-arbitrated ordered-list mode.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeQuery(w, r)
	if !ok {
		return
	}

	candidates, err := s.search.List(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := string(domain.StatusSuccess)
	if len(candidates) == 0 {
		status = string(domain.StatusInsufficientInfo)
	}

	results := make([]rankedResult, len(candidates))
	for i := range candidates {
		results[i] = candidateToResult(&candidates[i])
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:   req.Query,
		Status:  status,
		Results: results,
		Total:   len(results),
	})
}

// Statistics handles GET /v1/statistics.
func (s *Server) Statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statisticsResponse{
		TotalRecords: s.stats.Tables + s.stats.Figures,
		Tables:       s.stats.Tables,
		Figures:      s.stats.Figures,
		TextBlocks:   s.stats.TextBlocks,
		IndexReady:   s.indexes.Ready(),
	})
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeQuery(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body: "+err.Error())
		return askRequest{}, false
	}
	return req, true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_query", "Query must be a non-empty string")
	case errors.Is(err, domain.ErrIndexNotReady):
		writeError(w, http.StatusServiceUnavailable, "index_not_ready", "Search index is still building")
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}
