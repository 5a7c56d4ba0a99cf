// Package main implements the entry point for the certscan API server,
// which extracts structured data from insurance certificate documents
// through an asynchronous, cache-deduplicated processing pipeline.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/ewhitley/certscan-api/internal/config"
	"github.com/ewhitley/certscan-api/internal/platform/logger"
)

func main() {
	ctx := context.Background()

	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to assemble application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)
	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Pipeline.WorkerCount,
		"queue_capacity", cfg.Pipeline.QueueCapacity)

	return cfg, appLogger, nil
}
