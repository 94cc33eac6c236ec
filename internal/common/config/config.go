// internal/common/config/config.go
package config

import (
	"fmt"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Server       ServerConfig            `mapstructure:"server"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Orchestrator OrchestratorConfig      `mapstructure:"orchestrator"`
	Search       SearchConfig            `mapstructure:"search"`
	Registry     RegistryConfig          `mapstructure:"registry"`
	Notify       NotifyConfig            `mapstructure:"notifications"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	ReadTimeout    int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout   int      `mapstructure:"write_timeout"` // milliseconds
	MaxWait        int      `mapstructure:"max_wait"`      // milliseconds, cap for ?wait= on response lookups
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
	URL       string   `mapstructure:"url"` // single URL shorthand
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	PoolSize  int    `mapstructure:"pool_size"`
	MinIdle   int    `mapstructure:"min_idle"`
}

// OrchestratorConfig drives the request queue, worker pool and response store.
type OrchestratorConfig struct {
	Workers        int    `mapstructure:"workers"`
	QueueSize      int    `mapstructure:"queue_size"`
	MinDelay       int    `mapstructure:"min_delay"`       // milliseconds
	MaxDelay       int    `mapstructure:"max_delay"`       // milliseconds
	PollInterval   int    `mapstructure:"poll_interval"`   // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	ResponseTTL    int    `mapstructure:"response_ttl"`    // milliseconds
	MaxResponses   int    `mapstructure:"max_responses"`
	ResponseStore  string `mapstructure:"response_store"` // "memory" or "redis"
	Archive        bool   `mapstructure:"archive"`        // persist responses to postgres
}

// SearchConfig drives the global search service.
type SearchConfig struct {
	CacheBackend    string `mapstructure:"cache_backend"`   // "memory" or "redis"
	HistoryBackend  string `mapstructure:"history_backend"` // "memory" or "redis"
	CacheTTL        int    `mapstructure:"cache_ttl"`       // milliseconds
	MaxCacheEntries int    `mapstructure:"max_cache_entries"`
	HistoryLimit    int    `mapstructure:"history_limit"`
	HistoryKey      string `mapstructure:"history_key"`
	MaxResults      int    `mapstructure:"max_results"`
}

// RegistryConfig points at an optional JSON model/pipeline registry file.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// NotifyConfig publishes a message to an SNS topic whenever a response is stored.
type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Region   string `mapstructure:"region"`
	TopicARN string `mapstructure:"topic_arn"`
	Endpoint string `mapstructure:"endpoint"` // optional, e.g. localstack
	Timeout  int    `mapstructure:"timeout"`  // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// UsesRedis reports whether any backend is configured to live in Redis.
func (c *Config) UsesRedis() bool {
	return c.Orchestrator.ResponseStore == "redis" ||
		c.Search.CacheBackend == "redis" ||
		c.Search.HistoryBackend == "redis"
}

// Duration helpers

func (o OrchestratorConfig) PollIntervalDuration() time.Duration { return GetDuration(o.PollInterval) }
func (o OrchestratorConfig) RequestTimeoutDuration() time.Duration {
	return GetDuration(o.RequestTimeout)
}
func (o OrchestratorConfig) ResponseTTLDuration() time.Duration { return GetDuration(o.ResponseTTL) }
func (s SearchConfig) CacheTTLDuration() time.Duration          { return GetDuration(s.CacheTTL) }
