package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, `
app:
  name: crm-ai
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "crm-ai", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 1, cfg.Orchestrator.Workers)
	assert.Equal(t, 100, cfg.Orchestrator.QueueSize)
	assert.Equal(t, 500, cfg.Orchestrator.MinDelay)
	assert.Equal(t, 1500, cfg.Orchestrator.MaxDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.Orchestrator.PollIntervalDuration())
	assert.Equal(t, "memory", cfg.Orchestrator.ResponseStore)
	assert.Equal(t, 20, cfg.Search.HistoryLimit)
	assert.Equal(t, "ai_search_history", cfg.Search.HistoryKey)
	assert.Equal(t, "crm-entities", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Notify.Enabled)
	assert.Equal(t, "us-east-1", cfg.Notify.Region)
}

func TestLoadFromFile_Overrides(t *testing.T) {
	path := writeConfig(t, `
orchestrator:
  workers: 4
  queue_size: 8
  min_delay: 10
  max_delay: 20
  response_store: redis
search:
  cache_backend: redis
  history_limit: 5
database:
  redis:
    address: localhost:6379
workers:
  ai-process-request:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Orchestrator.Workers)
	assert.Equal(t, 8, cfg.Orchestrator.QueueSize)
	assert.Equal(t, 10, cfg.Orchestrator.MinDelay)
	assert.True(t, cfg.UsesRedis())
	assert.Equal(t, 5, cfg.Search.HistoryLimit)

	w := GetWorkerConfig(cfg, "ai-process-request")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("REDIS_PASSWORD", "s3cret")

	path := writeConfig(t, `
orchestrator:
  response_store: redis
database:
  redis:
    address: ${TEST_REDIS_ADDR}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Database.Redis.Address)
	assert.Equal(t, "s3cret", cfg.Database.Redis.Password)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name: "redis backend without address",
			body: `
search:
  history_backend: redis
`,
			wantErr: "database.redis.address is required",
		},
		{
			name: "unknown response store",
			body: `
orchestrator:
  response_store: dynamo
`,
			wantErr: "orchestrator.response_store",
		},
		{
			name: "delay range inverted",
			body: `
orchestrator:
  min_delay: 100
  max_delay: 50
`,
			wantErr: "min_delay/max_delay",
		},
		{
			name: "camunda enabled without broker",
			body: `
camunda:
  enabled: true
`,
			wantErr: "camunda.broker_address is required",
		},
		{
			name: "archive without postgres host",
			body: `
orchestrator:
  archive: true
`,
			wantErr: "database.postgres.host is required",
		},
		{
			name: "elasticsearch enabled without address",
			body: `
database:
  elasticsearch:
    enabled: true
`,
			wantErr: "database.elasticsearch.addresses or url is required",
		},
		{
			name: "notifications without topic",
			body: `
notifications:
  enabled: true
`,
			wantErr: "notifications.topic_arn is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPostgresConfig_GetDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "crm", Password: "pw", Database: "ai", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=crm password=pw dbname=ai sslmode=disable", p.GetDSN())
}

// ==========================
// Shipped configs
// ==========================

// Completion order is submission order only with a single worker.
func TestShippedConfig_SingleWorker(t *testing.T) {
	cfg, err := LoadFromFile("../../../configs/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Orchestrator.Workers)
}

func TestShippedProductionOverlay_SingleWorker(t *testing.T) {
	v := viper.New()
	v.SetConfigFile("../../../configs/config.yaml")
	require.NoError(t, v.ReadInConfig())
	v.SetConfigFile("../../../configs/config.production.yaml")
	require.NoError(t, v.MergeInConfig())

	assert.Equal(t, 1, v.GetInt("orchestrator.workers"))
	assert.Equal(t, "redis", v.GetString("orchestrator.response_store"))
}
