// Package chi is the HTTP transport: request decoding, domain error
// mapping, and bearer authentication.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mnemo-dev/mnemo/internal/domain"
	"github.com/mnemo-dev/mnemo/internal/domain/query"
	"github.com/mnemo-dev/mnemo/internal/domain/weights"
	logpkg "github.com/mnemo-dev/mnemo/internal/logger"
	searchuc "github.com/mnemo-dev/mnemo/internal/usecase/search"
)

// Error response codes.
const (
	codeBadRequest          = "bad_request"
	codeValidationFailed    = "validation_failed"
	codeUnknownProfile      = "unknown_profile"
	codeStrategyUnavailable = "strategy_unavailable"
	codeTimeout             = "timeout"
	codeInternalError       = "internal_error"
)

// Pinger checks backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server exposes the search pipeline over HTTP.
type Server struct {
	search        *searchuc.Service
	registry      *weights.Registry
	store         Pinger // nil when the cache store is disabled
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(search *searchuc.Service, registry *weights.Registry, store Pinger, logger *zap.Logger) *Server {
	s := &Server{
		search:   search,
		registry: registry,
		store:    store,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrWeightsInvalid, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrUnknownProfile, http.StatusBadRequest, codeUnknownProfile),
		sentinelHandler(domain.ErrStrategyUnavailable, http.StatusBadGateway, codeStrategyUnavailable),
		sentinelHandler(domain.ErrAnalyzerUnavailable, http.StatusBadGateway, codeStrategyUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, codeTimeout),
	}
	return s
}

// Routes registers all endpoints on r.
func (s *Server) Routes(r chi.Router) {
	r.Post("/v1/search", s.Search)
	r.Post("/v1/analyze", s.Analyze)
	r.Get("/v1/profiles", s.Profiles)
	r.Get("/healthz", s.Health)
	r.Get("/metrics", s.Metrics)
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	params, err := req.toParams()
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}

	q, err := query.New(params)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp, err := s.search.Search(r.Context(), &q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFromResult(resp))
}

// Analyze handles POST /v1/analyze. It runs the analyzer alone so clients
// can inspect intent classification without paying for retrieval.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}
	if len(req.Query) > query.MaxQueryLength {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query too long")
		return
	}

	an, err := s.search.Analyze(r.Context(), req.Query, req.History)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, analysisToDTO(an))
}

// Profiles handles GET /v1/profiles.
func (s *Server) Profiles(w http.ResponseWriter, r *http.Request) {
	resp := profilesResponse{
		Profiles: make(map[string]map[string]float64),
		Default:  weights.DefaultProfileName,
	}
	for _, name := range s.registry.Names() {
		p, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		resp.Profiles[name] = p.Map()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health handles GET /healthz. The cache store being down degrades the
// report but keeps the service available, matching the fail-open cache.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "ok"

	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			checks["cache"] = "unavailable"
			status = "degraded"
		} else {
			checks["cache"] = "ok"
		}
	} else {
		checks["cache"] = "disabled"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a client-facing message without exposing
// internals. Validation errors carry their own detail; everything else maps
// to its sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrWeightsInvalid) ||
		errors.Is(err, domain.ErrUnknownProfile) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrStrategyUnavailable,
		domain.ErrAnalyzerUnavailable,
		domain.ErrCacheUnavailable,
		domain.ErrRerankUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logpkg.Request(r.Context()).Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
