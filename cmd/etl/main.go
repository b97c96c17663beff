package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/adapter/httpadmin"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/adapter/postgres"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/adapter/weatherapi"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/config"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/observability"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/pipeline"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/quality"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := postgres.New(pool, logger)
	client := weatherapi.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIKey, cfg.FetchTimeout, cfg.FetchMaxRetries, logger)
	checker := quality.New(store, logger, metrics)

	p := pipeline.New(client, store, checker, cfg.Cities, logger, metrics)

	sched := scheduler.New(p, cfg.RunInterval, logger)
	if err := sched.Start(); err != nil {
		logger.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	srv := httpadmin.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server error", "error", err)
		}
	}()

	logger.Info("etl service started",
		"cities", cfg.Cities, "interval", cfg.RunInterval, "addr", cfg.HTTPAddr)

	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
