// Archive holdings STAC API server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/auscophub/archive/internal/api"
	"github.com/auscophub/archive/internal/config"
	"github.com/auscophub/archive/internal/holdings"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Storage.Root == "" {
		return fmt.Errorf("STORAGE_ROOT is required")
	}

	logger := cfg.Logging.NewLogger()

	logger.Info("starting holdings server",
		"version", cfg.STAC.Version,
		"archive_root", cfg.Storage.Root,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	index := holdings.NewIndex(cfg.Storage.Root, logger)
	if err := index.Reload(); err != nil {
		return fmt.Errorf("initial index scan failed: %w", err)
	}

	// Pick up newly archived products without a restart.
	reloadCtx, stopReload := context.WithCancel(context.Background())
	defer stopReload()
	go func() {
		ticker := time.NewTicker(cfg.Ingest.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-reloadCtx.Done():
				return
			case <-ticker.C:
				if err := index.Reload(); err != nil {
					logger.Error("holdings reload failed", "error", err)
				}
			}
		}
	}()

	handlers := api.NewHandlers(cfg, index, logger)
	router := api.NewRouter(handlers, logger, promhttp.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down server", "timeout", cfg.Server.ShutdownTimeout)
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
