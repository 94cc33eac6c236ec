package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"crm-ai-orchestrator/internal/api"
	"crm-ai-orchestrator/internal/archive"
	"crm-ai-orchestrator/internal/common/camunda"
	"crm-ai-orchestrator/internal/common/config"
	"crm-ai-orchestrator/internal/common/database"
	"crm-ai-orchestrator/internal/common/logger"
	"crm-ai-orchestrator/internal/common/observability"
	"crm-ai-orchestrator/internal/notify"
	"crm-ai-orchestrator/internal/orchestrator"
	"crm-ai-orchestrator/internal/search"
	"crm-ai-orchestrator/pkg/registry"

	gs "crm-ai-orchestrator/internal/workers/ai-orchestration/global-search"
	par "crm-ai-orchestrator/internal/workers/ai-orchestration/process-ai-request"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting CRM AI orchestrator...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New(cfg.App.Name, zapLog)
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]api.ReadinessCheck{}

	// --- Model registry ---
	reg := registry.Default()
	if cfg.Registry.Path != "" {
		reg, err = registry.LoadRegistry(cfg.Registry.Path)
		if err != nil {
			zapLog.Fatal("model registry load failed", zap.String("path", cfg.Registry.Path), zap.Error(err))
		}
	}
	zapLog.Info("Model registry loaded",
		zap.String("version", reg.Version()),
		zap.Int("models", len(reg.Models())),
		zap.Int("pipelines", len(reg.Pipelines())),
	)

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	if cfg.UsesRedis() {
		err = retryWithBackoff(func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		checks["redis"] = rdb.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	if cfg.Database.Postgres.Enabled || cfg.Orchestrator.Archive {
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		checks["postgres"] = pg.Ping
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	if cfg.Database.Elasticsearch.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		checks["elasticsearch"] = esClient.Ping
		zapLog.Info("Elasticsearch connected successfully")

		created, err := esClient.EnsureIndex(ctx)
		if err != nil {
			zapLog.Fatal("entity index setup failed", zap.String("index", esClient.Index), zap.Error(err))
		}
		if created {
			zapLog.Info("Entity index created", zap.String("index", esClient.Index))
		}
	}

	// --- Orchestrator ---
	storeParams := orchestrator.StoreParams{
		KeyPrefix:  cfg.Database.Redis.KeyPrefix,
		TTL:        cfg.Orchestrator.ResponseTTLDuration(),
		MaxEntries: cfg.Orchestrator.MaxResponses,
	}
	if rdb != nil {
		storeParams.Redis = rdb.Client
	}
	store, err := orchestrator.Stores.New(ctx, cfg.Orchestrator.ResponseStore, storeParams)
	if err != nil {
		zapLog.Fatal("response store init failed", zap.Error(err))
	}

	opts := []orchestrator.Option{
		orchestrator.WithTracer(obs.Tracer()),
		orchestrator.WithRecorder(obs),
	}
	if cfg.Orchestrator.Archive {
		responseArchive := archive.NewPostgresArchive(pg.DB, 5*time.Second, log)
		if err := responseArchive.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("response archive schema failed", zap.Error(err))
		}
		opts = append(opts, orchestrator.WithArchive(responseArchive))
	}
	if cfg.Notify.Enabled {
		snsClient, err := notify.NewSNSClient(ctx, cfg.Notify.Region, cfg.Notify.Endpoint)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		notifier := notify.NewSNSNotifier(snsClient, cfg.Notify.TopicARN, config.GetDuration(cfg.Notify.Timeout), log)
		opts = append(opts, orchestrator.WithNotifier(notifier))
		zapLog.Info("response notifications enabled", zap.String("topic", cfg.Notify.TopicARN))
	}

	orch, err := orchestrator.New(orchestrator.ConfigFrom(cfg.Orchestrator), reg, store, log, opts...)
	if err != nil {
		zapLog.Fatal("orchestrator init failed", zap.Error(err))
	}

	// --- Global search ---
	cacheParams := search.CacheParams{
		KeyPrefix:  cfg.Database.Redis.KeyPrefix,
		TTL:        cfg.Search.CacheTTLDuration(),
		MaxEntries: cfg.Search.MaxCacheEntries,
	}
	historyParams := search.HistoryParams{Key: cfg.Search.HistoryKey}
	if rdb != nil {
		cacheParams.Redis = rdb.Client
		historyParams.Redis = rdb.Client
	}
	cache, err := search.Caches.New(ctx, cfg.Search.CacheBackend, cacheParams)
	if err != nil {
		zapLog.Fatal("search cache init failed", zap.Error(err))
	}
	history, err := search.Histories.New(ctx, cfg.Search.HistoryBackend, historyParams)
	if err != nil {
		zapLog.Fatal("search history init failed", zap.Error(err))
	}

	var searchOpts []search.ServiceOption
	if esClient != nil {
		searchOpts = append(searchOpts, search.WithEntityIndex(search.NewElasticIndex(esClient.Client, esClient.Index)))
	}
	searchSvc := search.NewService(ctx, orch, cache, history, search.Config{
		HistoryLimit: cfg.Search.HistoryLimit,
		MaxResults:   cfg.Search.MaxResults,
	}, log, searchOpts...)

	// --- Zeebe workers ---
	var (
		zeebe   *camunda.Client
		workers *camunda.WorkerSet
	)
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(ctx, camunda.ConfigFrom(cfg.Camunda))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		checks["zeebe"] = zeebe.HealthCheck
		zapLog.Info("Zeebe client connected successfully")

		workers = camunda.NewWorkerSet(zeebe.GetClient(), log)

		parHandler := par.NewHandler(par.LoadConfig(cfg), orch, &processAIRequestLoggerAdapter{log})
		workers.Start(par.TaskType, config.GetWorkerConfig(cfg, par.TaskType), parHandler.Handle)

		gsHandler := gs.NewHandler(gs.LoadConfig(cfg), searchSvc, &globalSearchLoggerAdapter{log})
		workers.Start(gs.TaskType, config.GetWorkerConfig(cfg, gs.TaskType), gsHandler.Handle)

		zapLog.Info("Zeebe workers registered", zap.Int("running", workers.Running()))
	}

	// --- HTTP API ---
	server := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewRouter(orch, searchSvc, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxWait:        config.GetDuration(cfg.Server.MaxWait),
			Checks:         checks,
		}, log),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down API server", zap.Error(err))
	}
	if workers != nil {
		workers.Close()
	}
	if err := orch.Close(shutdownCtx); err != nil {
		zapLog.Error("Orchestrator did not drain in time", zap.Error(err))
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("CRM AI orchestrator stopped gracefully")
}

// Logger adapters for workers that have their own Logger interfaces
type processAIRequestLoggerAdapter struct {
	logger.Logger
}

func (a *processAIRequestLoggerAdapter) With(fields map[string]interface{}) par.Logger {
	return &processAIRequestLoggerAdapter{a.Logger.With(fields)}
}

type globalSearchLoggerAdapter struct {
	logger.Logger
}

func (a *globalSearchLoggerAdapter) With(fields map[string]interface{}) gs.Logger {
	return &globalSearchLoggerAdapter{a.Logger.With(fields)}
}
