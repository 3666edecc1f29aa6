package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/docpoller/internal/clients/aiforged"
	"github.com/aristath/docpoller/internal/config"
	"github.com/aristath/docpoller/internal/documents"
	"github.com/aristath/docpoller/internal/events"
	"github.com/aristath/docpoller/internal/poller"
)

// Wire initializes all dependencies and returns a fully configured container.
// ctx bounds the lifetime of scheduled poll jobs.
// Order of operations:
// 1. Initialize clients
// 2. Initialize services
// 3. Register jobs
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	container := &Container{Config: cfg}

	InitializeClients(container, cfg, log)
	InitializeServices(container, cfg, log)

	if err := RegisterJobs(ctx, container, cfg, log); err != nil {
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().
		Str("mode", container.Mode()).
		Str("auth", cfg.AuthMode()).
		Msg("Dependency injection wiring completed successfully")

	return container, nil
}

// InitializeClients creates the remote API client
func InitializeClients(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.AIForgedClient = aiforged.NewClient(aiforged.Config{
		Endpoint:          cfg.Endpoint,
		APIKey:            cfg.APIKey,
		Username:          cfg.Username,
		Password:          cfg.Password,
		TokenPath:         cfg.TokenPath,
		ClientID:          cfg.ClientID,
		AppName:           cfg.AppName,
		Timeout:           cfg.RequestTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, log)
}

// InitializeServices creates the document facade, the event manager and the poller
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) {
	container.DocumentService = documents.NewService(container.AIForgedClient, cfg.ProjectID, cfg.ServiceID, log)
	container.EventManager = events.NewManager(events.DefaultHistorySize, log)
	container.Poller = poller.New(
		container.DocumentService,
		poller.SettingsFromConfig(cfg),
		container.EventManager,
		log,
	)
}
