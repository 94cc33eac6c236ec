// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by request type and outcome",
		},
		[]string{"request_type", "status"},
	)

	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_processing_seconds",
			Help:    "Time spent generating an AI response",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 5},
		},
		[]string{"request_type", "model_id"},
	)

	AIQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ai_queue_depth",
			Help: "Number of AI requests waiting in the queue",
		},
	)

	AIStoredResponses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ai_stored_responses",
			Help: "Responses currently held by the in-memory response store",
		},
	)

	SearchCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_lookups_total",
			Help: "Global search cache lookups by result",
		},
		[]string{"result"},
	)

	SearchFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_fallbacks_total",
			Help: "Searches answered with the static fallback result",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)
)

// Request outcome labels.
const (
	StatusSuccess       = "success"
	StatusNoModel       = "no_model"
	StatusHandlerFailed = "handler_failed"
	StatusRejected      = "rejected"
)
