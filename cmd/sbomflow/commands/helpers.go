package commands

import (
	"fmt"

	"github.com/systmms/sbomflow/internal/analyzer"
	"github.com/systmms/sbomflow/internal/blobstore"
	"github.com/systmms/sbomflow/internal/config"
	"github.com/systmms/sbomflow/internal/credentials"
	"github.com/systmms/sbomflow/internal/orchestrator"
	"github.com/systmms/sbomflow/internal/queue"
	"github.com/systmms/sbomflow/internal/secretstore"
)

// buildCredentialManager wires the secret store and the analyzer admin
// surface into one credential lifecycle manager.
func buildCredentialManager(cfg *config.Config) (*credentials.Manager, error) {
	store, err := secretstore.FromConfig(cfg.Definition.SecretStore)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret store: %w", err)
	}

	client := analyzer.NewClient(
		cfg.Definition.Analyzer.BaseURL,
		analyzer.WithTimeout(cfg.Definition.AnalyzerTimeout()),
	)

	manager := credentials.NewManager(
		store,
		client,
		cfg.Definition.Analyzer.AdminUser,
		cfg.Definition.Analyzer.DefaultPassword,
		cfg.Logger,
	)
	return manager, nil
}

// buildOrchestrator assembles the full enrichment pipeline: blob store,
// keyed analyzer client, and the run loop around them.
func buildOrchestrator(cfg *config.Config) (*orchestrator.Orchestrator, error) {
	manager, err := buildCredentialManager(cfg)
	if err != nil {
		return nil, err
	}

	store, err := blobstore.NewS3Store(cfg.Definition.Storage.Region, cfg.Definition.Storage.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	client := analyzer.NewClient(
		cfg.Definition.Analyzer.BaseURL,
		analyzer.WithTimeout(cfg.Definition.AnalyzerTimeout()),
	)
	keyed := analyzer.NewKeyedClient(client, manager, cfg.Logger)

	o := orchestrator.New(store, keyed, cfg.Logger,
		orchestrator.WithPolling(cfg.Definition.PollInterval(), cfg.Definition.PollTimeout()),
	)
	return o, nil
}

// buildQueue creates the enrichment queue from configuration.
func buildQueue(cfg *config.Config) (*queue.Queue, error) {
	if cfg.Definition.Queue.URL == "" {
		return nil, config.ConfigError{
			Field:      "queue.url",
			Message:    "enrichment queue URL is required",
			Suggestion: fmt.Sprintf("Set queue.url or the %s environment variable", config.QueueURLEnv),
		}
	}
	q, err := queue.New(cfg.Definition.Queue.URL, cfg.Definition.Queue.Region, cfg.Definition.Queue.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}
	return q, nil
}
