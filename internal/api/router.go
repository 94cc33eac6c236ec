// Package api exposes the orchestrator and the global search over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/logger"
	"crm-ai-orchestrator/internal/orchestrator"
	"crm-ai-orchestrator/internal/search"
	"crm-ai-orchestrator/pkg/registry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Orchestrator is the part of *orchestrator.Orchestrator the API uses.
type Orchestrator interface {
	Process(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.AIResponse, error)
	Submit(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.Ticket, error)
	Await(ctx context.Context, requestID string) (*orchestrator.AIResponse, error)
	Lookup(ctx context.Context, requestID string) (*orchestrator.AIResponse, error)
	Registry() *registry.Registry
	State() orchestrator.State
	QueueDepth() int
}

// Searcher is the part of *search.Service the API uses.
type Searcher interface {
	Search(ctx context.Context, query string, filters map[string]interface{}, searchContext string) ([]search.SearchResult, error)
	ContextualSearch(ctx context.Context, query, route string) ([]search.SearchResult, error)
	History() []string
	ClearHistory(ctx context.Context)
	Suggestions(prefix string, limit int) []string
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	AllowedOrigins []string
	// MaxWait caps the ?wait= parameter of response lookups.
	MaxWait time.Duration
	Checks  map[string]ReadinessCheck
}

type Router struct {
	orch   Orchestrator
	search Searcher
	opts   Options
	logger logger.Logger
}

func NewRouter(orch Orchestrator, searcher Searcher, opts Options, log logger.Logger) http.Handler {
	if opts.MaxWait <= 0 {
		opts.MaxWait = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	r := &Router{
		orch:   orch,
		search: searcher,
		opts:   opts,
		logger: log.With(map[string]interface{}{"component": "api"}),
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
	mux.Use(r.logRequests)

	mux.Get("/health", r.handleHealth)
	mux.Get("/ready", r.handleReady)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/ai/requests", r.wrap(r.handleProcess))
		rt.Post("/ai/requests:async", r.wrap(r.handleSubmit))
		rt.Get("/ai/responses/{id}", r.wrap(r.handleGetResponse))
		rt.Get("/ai/models", r.wrap(r.handleModels))
		rt.Get("/ai/pipelines", r.wrap(r.handlePipelines))
		rt.Get("/ai/status", r.wrap(r.handleStatus))

		rt.Post("/search", r.wrap(r.handleSearch))
		rt.Post("/search/contextual", r.wrap(r.handleContextualSearch))
		rt.Get("/search/history", r.wrap(r.handleHistory))
		rt.Delete("/search/history", r.wrap(r.handleClearHistory))
		rt.Get("/search/suggestions", r.wrap(r.handleSuggestions))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

type errorBody struct {
	Error struct {
		Code    apperrors.ErrorCode `json:"code"`
		Message string              `json:"message"`
		Details string              `json:"details,omitempty"`
	} `json:"error"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		stdErr := apperrors.Normalize(err)
		status := statusFor(stdErr.Code)
		if status >= http.StatusInternalServerError {
			r.logger.Error("request failed", map[string]interface{}{
				"path":      req.URL.Path,
				"errorCode": string(stdErr.Code),
				"error":     err,
			})
		}

		var body errorBody
		body.Error.Code = stdErr.Code
		body.Error.Message = stdErr.Message
		body.Error.Details = stdErr.Details
		writeJSON(w, status, body)
	}
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case apperrors.ErrCodeNoModelAvailable:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeQueueFull:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeDuplicateRequest:
		return http.StatusConflict
	case apperrors.ErrCodeRequestTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeResponseNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeOrchestratorClosed, apperrors.ErrCodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(req *http.Request, v interface{}) error {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		return apperrors.NewInvalidRequestError("malformed JSON body: "+err.Error(), err)
	}
	return nil
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		r.logger.Debug("http request", map[string]interface{}{
			"method":    req.Method,
			"path":      req.URL.Path,
			"status":    ww.Status(),
			"duration":  time.Since(start).String(),
			"requestId": middleware.GetReqID(req.Context()),
		})
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range r.opts.Checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not ready",
			"checks": failed,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
