// Package chi exposes the search service over HTTP with a chi router.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/citesearch/internal/domain"
	dompaper "github.com/kailas-cloud/citesearch/internal/domain/paper"
	"github.com/kailas-cloud/citesearch/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/citesearch/internal/logger"
	healthuc "github.com/kailas-cloud/citesearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/citesearch/internal/usecase/search"
)

// maxBodyBytes bounds request bodies; queries are single sentences.
const maxBodyBytes = 64 << 10

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search *searchuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{search: search, health: health, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadRequest, CodeVectorDimMismatch),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrEmptyBatch, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
	}
	return s
}

// Mount registers the routes on r.
func (s *Server) Mount(r chi.Router) {
	r.Post("/search/vector", s.SearchVector)
	r.Get("/search/doi/*", s.SearchDOI)
	r.Get("/papers/*", s.GetPaper)
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
}

// SearchVector handles POST /search/vector.
func (s *Server) SearchVector(w http.ResponseWriter, r *http.Request) {
	var req VectorSearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	topK := 0
	if req.TopK != nil {
		if *req.TopK <= 0 {
			writeError(w, http.StatusBadRequest, CodeValidationFailed,
				fmt.Sprintf("top_k must be between 1 and %d", searchuc.MaxTopK))
			return
		}
		topK = *req.TopK
	}

	results, err := s.search.ByText(r.Context(), req.Text, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(results))
}

// SearchDOI handles GET /search/doi/{doi}?size=N. DOIs contain slashes, so the
// identifier is the rest of the path.
func (s *Server) SearchDOI(w http.ResponseWriter, r *http.Request) {
	doi, ok := s.doiParam(w, r)
	if !ok {
		return
	}

	var size int
	if err := runtime.BindQueryParameter("form", true, false, "size", r.URL.Query(), &size); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "size must be an integer")
		return
	}
	if _, set := r.URL.Query()["size"]; set && size <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			fmt.Sprintf("size must be between 1 and %d", searchuc.MaxDOISize))
		return
	}

	results, err := s.search.ByDOI(r.Context(), doi, size)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResponse(results))
}

// GetPaper handles GET /papers/{doi}.
func (s *Server) GetPaper(w http.ResponseWriter, r *http.Request) {
	doi, ok := s.doiParam(w, r)
	if !ok {
		return
	}

	p, err := s.search.Paper(r.Context(), doi)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toPaperResponse(p))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func (s *Server) doiParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "*")
	if raw == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "doi is required")
		return "", false
	}
	var doi string
	err := runtime.BindStyledParameterWithOptions("simple", "doi", raw, &doi, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid doi")
		return "", false
	}
	return doi, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Validation errors carry their own message, which names the offending field.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidRequest) {
		return validationMessage(err)
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrVectorDimMismatch,
		domain.ErrIndexUnavailable,
		domain.ErrRateLimited,
		domain.ErrEmptyBatch,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// validationMessage strips wrapping op prefixes, keeping the "invalid request: ..." tail.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, domain.ErrInvalidRequest.Error()); i >= 0 {
		return msg[i:]
	}
	return domain.ErrInvalidRequest.Error()
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func toSearchResponse(results []result.Result) SearchResponse {
	hits := make([]SearchHit, len(results))
	for i := range results {
		hits[i] = SearchHit{
			DOI:      results[i].DOI(),
			Sentence: results[i].Sentence(),
			Score:    results[i].Score(),
		}
	}
	return SearchResponse{Results: hits}
}

func toPaperResponse(p dompaper.Paper) PaperResponse {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if name := a.Name(); name != "" {
			authors = append(authors, name)
		}
	}
	resp := PaperResponse{
		DOI:      p.DOI,
		Title:    p.Title,
		Abstract: p.Text,
		Journal:  p.Journal,
		ISSN:     p.ISSN,
		Authors:  authors,
		CitedBy:  p.CitedBy,
	}
	if !p.Published.IsZero() {
		d := p.Published.Format("2006-01-02")
		resp.Published = &d
	}
	return resp
}
