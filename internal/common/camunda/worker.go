package camunda

import (
	"time"

	"crm-ai-orchestrator/internal/common/config"
	"crm-ai-orchestrator/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// WorkerSet opens job workers on one Zeebe client and closes them together.
type WorkerSet struct {
	client  zbc.Client
	workers map[string]worker.JobWorker
	logger  logger.Logger
}

func NewWorkerSet(client zbc.Client, log logger.Logger) *WorkerSet {
	return &WorkerSet{
		client:  client,
		workers: make(map[string]worker.JobWorker),
		logger:  log.With(map[string]interface{}{"component": "zeebe-workers"}),
	}
}

// Start opens a worker for taskType unless wcfg disables it. It reports
// whether a worker is running.
func (s *WorkerSet) Start(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !wcfg.Enabled {
		s.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}
	if _, running := s.workers[taskType]; running {
		s.logger.Warn("worker already started", map[string]interface{}{"taskType": taskType})
		return true
	}

	s.workers[taskType] = s.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	s.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

func (s *WorkerSet) Running() int { return len(s.workers) }

// Close stops polling and waits for active jobs to finish.
func (s *WorkerSet) Close() {
	for taskType, w := range s.workers {
		w.Close()
		w.AwaitClose()
		s.logger.Info("worker stopped", map[string]interface{}{"taskType": taskType})
	}
	s.workers = map[string]worker.JobWorker{}
}
