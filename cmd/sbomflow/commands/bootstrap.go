package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/sbomflow/internal/config"
	"github.com/systmms/sbomflow/internal/logging"
)

func NewBootstrapCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Provision analyzer credentials in the secret store",
		Long: `Bootstrap ensures the analyzer is usable: the factory-default admin
password is rotated to a generated one, the Automation team gets its
permissions granted, and its API key is persisted in the secret store.

Safe to run repeatedly: already-provisioned credentials are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runBootstrap(cfg)
		},
	}
	return cmd
}

func runBootstrap(cfg *config.Config) error {
	manager, err := buildCredentialManager(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()

	password, err := manager.AdminPassword(ctx)
	if err != nil {
		return fmt.Errorf("failed to provision admin password: %w", err)
	}
	cfg.Logger.Info("Admin password provisioned: %s", logging.Secret(password))

	key, err := manager.APIKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to provision automation API key: %w", err)
	}
	cfg.Logger.Info("Automation API key provisioned: %s", logging.Secret(key))

	return nil
}
