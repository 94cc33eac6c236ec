package processairequest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "crm-ai-orchestrator/internal/common/errors"
	"crm-ai-orchestrator/internal/common/metrics"
	"crm-ai-orchestrator/internal/orchestrator"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "ai-process-request"

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Processor is satisfied by *orchestrator.Orchestrator.
type Processor interface {
	Process(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.AIResponse, error)
	Submit(ctx context.Context, req orchestrator.AIRequest) (*orchestrator.Ticket, error)
}

type Handler struct {
	config    *Config
	processor Processor
	errors    *apperrors.ErrorHandler
	logger    Logger
}

func NewHandler(config *Config, processor Processor, log Logger) *Handler {
	l := log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:    config,
		processor: processor,
		errors:    apperrors.NewErrorHandler(l),
		logger:    l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

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

	h.completeJob(client, job, output)
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
			fmt.Sprintf("validation errors: %v", result.GetErrorMessages()), orchestrator.ErrInvalidRequest)
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, apperrors.NewInvalidRequestError("parse job variables: "+err.Error(), err)
	}
	return &input, nil
}

func (h *Handler) toRequest(input *Input) (orchestrator.AIRequest, error) {
	req := orchestrator.AIRequest{
		ID:   input.RequestID,
		Type: orchestrator.RequestType(input.RequestType),
	}
	// Unknown types travel without a payload and are rejected by routing.
	if req.Type.Known() {
		payload, err := orchestrator.DecodePayload(req.Type, input.Data)
		if err != nil {
			return req, apperrors.NewInvalidRequestError("aiRequestData: "+err.Error(), orchestrator.ErrInvalidRequest)
		}
		req.Data = payload
	}
	return req, nil
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	req, err := h.toRequest(input)
	if err != nil {
		return nil, err
	}

	if !h.config.WaitForResponse {
		// The request outlives the job; callers pick it up by id.
		ticket, err := h.processor.Submit(context.WithoutCancel(ctx), req)
		if err != nil {
			return nil, err
		}
		return &Output{RequestID: ticket.RequestID, Queued: true}, nil
	}

	resp, err := h.processor.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	h.logger.Info("AI request processed", map[string]interface{}{
		"requestId":  resp.RequestID,
		"modelId":    resp.ModelID,
		"confidence": resp.Confidence,
	})

	return &Output{
		RequestID:      resp.RequestID,
		ResponseID:     resp.ID,
		ModelID:        resp.ModelID,
		Confidence:     resp.Confidence,
		ProcessingTime: resp.ProcessingTime,
		Result:         resp.Result,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
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
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
