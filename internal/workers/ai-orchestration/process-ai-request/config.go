package processairequest

import (
	"time"

	"crm-ai-orchestrator/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	// Wait for the response instead of completing the job with the ticket id.
	WaitForResponse bool
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{
		Timeout:         timeout,
		WaitForResponse: true,
	}
}
