package globalsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/metrics"
	"crm-ai-orchestrator/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "ai-global-search"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Searcher is satisfied by *search.Service.
type Searcher interface {
	Search(ctx context.Context, query string, filters map[string]interface{}, searchContext string) ([]search.SearchResult, error)
	ContextualSearch(ctx context.Context, query, route string) ([]search.SearchResult, error)
}

type Handler struct {
	config   *Config
	searcher Searcher
	errors   *apperrors.ErrorHandler
	logger   Logger
}

func NewHandler(config *Config, searcher Searcher, log Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		searcher: searcher,
		errors:   apperrors.NewErrorHandler(l),
		logger:   l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()

	input, err := h.parseInput(job)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	result, err := inputSchema.Validate([]byte(job.Variables))
	if err != nil {
		return nil, apperrors.NewInvalidRequestError("parse job variables: "+err.Error(), err)
	}
	if !result.Valid {
		return nil, apperrors.NewInvalidRequestError(
			fmt.Sprintf("validation errors: %v", result.GetErrorMessages()), search.ErrEmptyQuery)
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError("parse job variables: "+err.Error(), err)
	}
	return &input, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		results []search.SearchResult
		err     error
	)
	if input.Route != "" {
		results, err = h.searcher.ContextualSearch(ctx, input.Query, input.Route)
	} else {
		results, err = h.searcher.Search(ctx, input.Query, input.Filters, "")
	}
	if err != nil {
		if _, ok := apperrors.AsStandardError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewSearchFailedError(input.Query, err)
	}

	if h.config.MaxResults > 0 && len(results) > h.config.MaxResults {
		results = results[:h.config.MaxResults]
	}
	if results == nil {
		results = []search.SearchResult{}
	}

	out := &Output{
		Query:       input.Query,
		Results:     results,
		ResultCount: len(results),
	}
	if len(results) > 0 {
		out.TopResultID = results[0].ID
	}

	h.logger.Info("global search completed", map[string]interface{}{
		"query":       input.Query,
		"route":       input.Route,
		"resultCount": out.ResultCount,
	})
	return out, nil
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
