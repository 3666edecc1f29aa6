// Package main is the entry point for the AIForged document poller.
// The poller periodically lists documents waiting in a configured status,
// reads their extracted field results and moves them on to the next status.
//
// Startup sequence:
// 1. Load configuration (.env, optional YAML file, environment)
// 2. Initialize logging
// 3. Wire dependencies via the DI container
// 4. Start the status server (unless disabled)
// 5. Start polling, on the interval loop or the cron schedule
// 6. Wait for SIGINT/SIGTERM and shut down gracefully
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aristath/docpoller/internal/config"
	"github.com/aristath/docpoller/internal/di"
	"github.com/aristath/docpoller/internal/server"
	"github.com/aristath/docpoller/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Int("project_id", cfg.ProjectID).
		Int("service_id", cfg.ServiceID).
		Str("auth", cfg.AuthMode()).
		Msg("Starting document poller")

	// Cancelled on shutdown; stops the interval loop and scheduled jobs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}

	var srv *server.Server
	if cfg.StatusPort > 0 {
		srv = server.New(server.Config{
			Log:      log,
			Port:     cfg.StatusPort,
			Mode:     container.Mode(),
			Settings: cfg.Redacted(),
			Poller:   container.Poller,
			Trigger:  container.Trigger,
			Session:  container.DocumentService.Session(),
			Events:   container.EventManager,
		})

		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Failed to start server")
			}
		}()
	} else {
		log.Info().Msg("Status server disabled")
	}

	var wg sync.WaitGroup
	if container.Scheduler != nil {
		container.Scheduler.Start()
		log.Info().Str("schedule", cfg.Schedule).Msg("Polling on cron schedule")
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := container.Poller.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Poller exited with error")
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down...")

	// A cycle in flight finishes its current document first
	cancel()
	wg.Wait()
	container.Stop()
	log.Info().Msg("Poller stopped")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	}

	log.Info().Msg("Document poller stopped")
}
