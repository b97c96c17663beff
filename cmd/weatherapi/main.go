package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudbarrow/weather-warehouse-etl/internal/config"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/keystore"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/mockapi"
	"github.com/cloudbarrow/weather-warehouse-etl/internal/observability"
)

func main() {
	cfg, err := config.LoadAPI()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	keys, err := keystore.Open(cfg.KeysPath, logger)
	if err != nil {
		logger.Error("failed to open key whitelist", "path", cfg.KeysPath, "error", err)
		os.Exit(1)
	}

	cities, err := mockapi.LoadCities(cfg.CapitalsPath)
	if err != nil {
		logger.Error("failed to load city catalog", "path", cfg.CapitalsPath, "error", err)
		os.Exit(1)
	}

	gen := mockapi.NewGenerator(cities, nil, nil)
	srv := mockapi.NewServer(cfg.Addr, gen, keys, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server error", "error", err)
		}
	}()

	logger.Info("weather api started", "addr", cfg.Addr, "cities", len(cities))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
