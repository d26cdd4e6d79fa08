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

	"github.com/vitaliisemenov/recsa-core/internal/api"
	"github.com/vitaliisemenov/recsa-core/internal/config"
	"github.com/vitaliisemenov/recsa-core/internal/logging"
	"github.com/vitaliisemenov/recsa-core/internal/resolver"
)

const shutdownTimeout = 30 * time.Second

// runNode loads configuration, wires a Resolver and its HTTP surface, and
// blocks until SIGINT/SIGTERM, a POST /kill, an HTTP server failure, or
// the resolver's run loop returning tells it to stop, then drains
// in-flight requests before returning.
func runNode(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Log)

	res, err := resolver.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("build resolver: %w", err)
	}

	if err := res.ListenUDP(cfg.Node.APIPort); err != nil {
		return fmt.Errorf("bind failure-detector socket: %w", err)
	}

	server := api.NewServer(fmt.Sprintf(":%d", cfg.Node.APIPort), res, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	res.MarkReady(ctx)

	runErr := make(chan error, 1)
	go func() { runErr <- res.Run(ctx) }()

	select {
	case <-quit:
		logger.Info("received shutdown signal")
	case <-res.KillChan():
		logger.Info("received kill request")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", "err", err)
		}
	case err := <-runErr:
		if err != nil {
			logger.Error("resolver run loop exited", "err", err)
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server forced to shut down", "err", err)
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
