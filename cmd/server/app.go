package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ewhitley/certscan-api/internal/cache"
	"github.com/ewhitley/certscan-api/internal/config"
	"github.com/ewhitley/certscan-api/internal/extraction"
	"github.com/ewhitley/certscan-api/internal/metrics"
	"github.com/ewhitley/certscan-api/internal/platform/gemini"
	"github.com/ewhitley/certscan-api/internal/platform/minio"
	"github.com/ewhitley/certscan-api/internal/platform/redis"
	"github.com/ewhitley/certscan-api/internal/platform/textract"
	"github.com/ewhitley/certscan-api/internal/service"
	"github.com/ewhitley/certscan-api/internal/status"
	"github.com/ewhitley/certscan-api/internal/task"
)

// application holds the assembled dependency graph.
type application struct {
	config *config.Config
	logger *slog.Logger

	store      *redis.Store
	files      extraction.FileStore
	cache      *cache.Manager
	tracker    *status.Tracker
	dispatcher *task.Dispatcher
	pool       *task.Pool
	reconciler *status.Reconciler
	registry   *metrics.Registry
	admission  *service.AdmissionService

	stopReconciler context.CancelFunc
}

// newApplication wires every component together. Construction fails fast on
// unreachable backends so misconfiguration surfaces at boot; a store that
// goes away later is handled per-operation in degraded mode.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
	}

	store, err := redis.New(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache store: %w", err)
	}
	app.store = store
	logger.Info("Cache store initialized", "addr", cfg.Redis.Addr)

	// Document object store.
	app.files, err = minio.New(ctx, minio.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	}, logger.With("component", "file_store"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}
	logger.Info("Object store initialized",
		"endpoint", cfg.Storage.Endpoint,
		"bucket", cfg.Storage.Bucket)

	// Structured extraction via Gemini.
	llm, err := gemini.New(ctx, gemini.Config{
		APIKey:         cfg.LLM.GeminiAPIKey,
		ModelName:      cfg.LLM.ModelName,
		MaxPromptChars: cfg.LLM.MaxPromptChars,
		CallsPerMinute: cfg.LLM.CallsPerMinute,
	}, logger.With("component", "llm_extractor"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM extractor: %w", err)
	}
	logger.Info("LLM extractor initialized", "model", cfg.LLM.ModelName)

	app.registry = metrics.NewRegistry(store, logger.With("component", "metrics"))
	app.cache = cache.NewManager(store, logger.With("component", "cache"))
	app.tracker = status.NewTracker(store, status.Config{
		ActiveTTL:         cfg.Pipeline.StatusTTL(),
		TerminalRetention: cfg.Pipeline.TerminalRetention(),
	}, logger.With("component", "status_tracker"))

	app.dispatcher = task.NewDispatcher(cfg.Pipeline.QueueCapacity,
		logger.With("component", "dispatcher"))

	retry := extraction.RetryPolicy{
		MaxAttempts:    cfg.LLM.MaxRetries + 1,
		BaseDelay:      time.Duration(cfg.LLM.RetryDelaySeconds) * time.Second,
		AttemptTimeout: 60 * time.Second,
	}
	executor := task.NewExecutor(
		app.files,
		textract.New(),
		llm,
		retry,
		app.cache,
		app.tracker,
		app.registry,
		task.ExecutorConfig{
			JobTimeout: cfg.Pipeline.JobTimeout(),
			CacheTTL:   cfg.Pipeline.CacheTTL(),
		},
		logger.With("component", "executor"),
	)

	app.pool = task.NewPool(app.dispatcher, task.PoolConfig{
		WorkerCount: cfg.Pipeline.WorkerCount,
	}, executor.Process, logger.With("component", "worker_pool"))

	app.reconciler = status.NewReconciler(
		app.tracker,
		app.cache,
		cfg.Pipeline.StaleAfter(),
		cfg.Pipeline.ReconcileInterval(),
		logger.With("component", "reconciler"),
	)

	app.admission = service.NewAdmissionService(
		app.files,
		app.cache,
		app.tracker,
		app.dispatcher,
		app.pool,
		app.registry,
		service.AdmissionConfig{
			MaxFileSizeBytes:   cfg.Pipeline.MaxFileSizeBytes(),
			ClaimLease:         cfg.Pipeline.ClaimLease(),
			MirrorPollInterval: time.Second,
			MirrorTimeout:      cfg.Pipeline.JobTimeout() + cfg.Pipeline.ClaimLease(),
			NominalJobSeconds:  cfg.Pipeline.JobTimeoutSeconds / 10,
		},
		logger.With("component", "admission"),
	)

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the background pipeline and the HTTP server, blocking until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	app.pool.Start()

	reconCtx, cancel := context.WithCancel(ctx)
	app.stopReconciler = cancel
	go app.reconciler.Run(reconCtx)

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of pipeline resources. Order matters:
// stop admitting, drain workers, then stop the reconciler so it can still
// observe worker outcomes during the drain.
func (app *application) cleanup() {
	app.dispatcher.Close()
	app.pool.Stop()
	app.admission.Shutdown()

	if app.stopReconciler != nil {
		app.stopReconciler()
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error("Error closing cache store connection", "error", err)
	}

	app.logger.Info("Application shutdown completed")
}
