package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cashplan/internal/amqp"
	"cashplan/internal/backend"
	"cashplan/internal/cli"
	"cashplan/internal/log"
	"cashplan/internal/services"
	"cashplan/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker, os.Getenv("LOG_LEVEL"))
	logger.Info("Starting cashplan-worker")

	cfg := cli.LoadAndValidateConfig(logger, false)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid snapshot backend", log.FieldError, err)
		os.Exit(1)
	}
	writer, err := backend.NewFactory(logger.WithComponent(log.ComponentSheets)).SnapshotWriter(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize snapshot backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	projections := services.NewProjectionService(repo, cfg.ProjectionCacheTTL)
	exports := services.NewExportService(repo, projections, cfg.ExportPageSize)
	eventWorker := worker.NewEventWorker(repo, exports, writer)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeEvents(gctx, eventWorker.HandleEvent)
	})
	g.Go(func() error {
		// Periodic health log so a silent consumer is visible.
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := repo.Ping(gctx); err != nil {
					logger.Warn("Database ping failed", log.FieldError, err)
					continue
				}
				logger.Debug("Worker healthy")
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
