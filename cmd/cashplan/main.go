package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"cashplan/internal/amqp"
	"cashplan/internal/auth"
	"cashplan/internal/cli"
	apphttp "cashplan/internal/http"
	"cashplan/internal/log"
	"cashplan/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp, os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, true)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Event publishing is optional; without a broker events are only logged.
	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		logger.Info("AMQP event publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided, events will not be published")
	}

	projections := services.NewProjectionService(repo, cfg.ProjectionCacheTTL)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Storage:            repo,
		Companies:          services.NewCompanyService(repo),
		Imports:            services.NewImportService(repo, events),
		Scenarios:          services.NewScenarioService(repo, events, projections),
		Overrides:          services.NewOverrideService(repo, events, projections),
		Projections:        projections,
		Exports:            services.NewExportService(repo, projections, cfg.ExportPageSize),
		Auth:               auth.NewService(cfg.AuthJWTSecret, cfg.AuthTokenTTL),
		Logger:             logger.WithComponent(log.ComponentHTTP),
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting cashplan server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
