package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/orchestrator"
	"crm-ai-orchestrator/internal/search"

	"github.com/go-chi/chi/v5"
)

// ==========================
// AI requests
// ==========================

// POST /v1/ai/requests
func (r *Router) handleProcess(w http.ResponseWriter, req *http.Request) error {
	var aiReq orchestrator.AIRequest
	if err := decodeBody(req, &aiReq); err != nil {
		return err
	}
	resp, err := r.orch.Process(req.Context(), aiReq)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// POST /v1/ai/requests:async
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var aiReq orchestrator.AIRequest
	if err := decodeBody(req, &aiReq); err != nil {
		return err
	}
	// The request outlives this HTTP call.
	ticket, err := r.orch.Submit(context.WithoutCancel(req.Context()), aiReq)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"requestId": ticket.RequestID})
	return nil
}

// GET /v1/ai/responses/{id}?wait=2s
func (r *Router) handleGetResponse(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	var wait time.Duration
	if raw := req.URL.Query().Get("wait"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return apperrors.NewInvalidRequestError("wait must be a duration such as 2s", err)
		}
		wait = min(d, r.opts.MaxWait)
	}

	var (
		resp *orchestrator.AIResponse
		err  error
	)
	if wait > 0 {
		ctx, cancel := context.WithTimeout(req.Context(), wait)
		defer cancel()
		resp, err = r.orch.Await(ctx, id)
		if errors.Is(err, orchestrator.ErrRequestTimeout) {
			err = apperrors.NewResponseNotFoundError(id, err)
		}
	} else {
		resp, err = r.orch.Lookup(req.Context(), id)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// GET /v1/ai/models
func (r *Router) handleModels(w http.ResponseWriter, _ *http.Request) error {
	reg := r.orch.Registry()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version": reg.Version(),
		"models":  reg.Models(),
	})
	return nil
}

// GET /v1/ai/pipelines
func (r *Router) handlePipelines(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"pipelines": r.orch.Registry().Pipelines(),
	})
	return nil
}

// GET /v1/ai/status
func (r *Router) handleStatus(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":      r.orch.State(),
		"queueDepth": r.orch.QueueDepth(),
	})
	return nil
}

// ==========================
// Search
// ==========================

type searchResponse struct {
	Query   string                `json:"query"`
	Results []search.SearchResult `json:"results"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// POST /v1/search
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Query   string                 `json:"query"`
		Filters map[string]interface{} `json:"filters"`
		Context string                 `json:"context"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	results, err := r.search.Search(req.Context(), body.Query, body.Filters, body.Context)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: body.Query, Results: nonNil(results)})
	return nil
}

// POST /v1/search/contextual
func (r *Router) handleContextualSearch(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Query string `json:"query"`
		Route string `json:"route"`
	}
	if err := decodeBody(req, &body); err != nil {
		return err
	}
	results, err := r.search.ContextualSearch(req.Context(), body.Query, body.Route)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: body.Query, Results: nonNil(results)})
	return nil
}

// GET /v1/search/history
func (r *Router) handleHistory(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string][]string{"history": nonNil(r.search.History())})
	return nil
}

// DELETE /v1/search/history
func (r *Router) handleClearHistory(w http.ResponseWriter, req *http.Request) error {
	r.search.ClearHistory(req.Context())
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GET /v1/search/suggestions?q=ac&limit=5
func (r *Router) handleSuggestions(w http.ResponseWriter, req *http.Request) error {
	limit := 5
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperrors.NewInvalidRequestError("limit must be a positive integer", err)
		}
		limit = n
	}
	suggestions := r.search.Suggestions(req.URL.Query().Get("q"), limit)
	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": nonNil(suggestions)})
	return nil
}
