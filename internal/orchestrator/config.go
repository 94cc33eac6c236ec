package orchestrator

import "crm-ai-orchestrator/internal/common/config"

// ConfigFrom converts the millisecond based file configuration.
func ConfigFrom(c config.OrchestratorConfig) Config {
	return Config{
		Workers:        c.Workers,
		QueueSize:      c.QueueSize,
		MinDelay:       config.GetDuration(c.MinDelay),
		MaxDelay:       config.GetDuration(c.MaxDelay),
		PollInterval:   c.PollIntervalDuration(),
		RequestTimeout: c.RequestTimeoutDuration(),
	}
}
