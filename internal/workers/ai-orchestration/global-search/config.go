package globalsearch

import (
	"time"

	"crm-ai-orchestrator/internal/common/config"
)

type Config struct {
	Timeout    time.Duration
	MaxResults int
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	c := &Config{
		Timeout:    config.GetDuration(wcfg.Timeout),
		MaxResults: cfg.Search.MaxResults,
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}
