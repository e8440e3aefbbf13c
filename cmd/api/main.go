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

	"github.com/joho/godotenv"

	"dvrp/internal/api"
	"dvrp/internal/buildinfo"
	"dvrp/internal/config"
	"dvrp/internal/logging"
	"dvrp/internal/metrics"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Service: "dvrp-api", Version: buildinfo.Version})
	metrics.RegisterDefault()

	srvDeps, err := api.NewServer(cfg, logger)
	if err != nil {
		logger.Error("failed to init server", "error", err)
		os.Exit(1)
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           srvDeps.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", "addr", addr, "scenario", srvDeps.Scenario.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if err := srvDeps.Shutdown(shutdownCtx); err != nil {
		logger.Error("run shutdown", "error", err)
	}
}
