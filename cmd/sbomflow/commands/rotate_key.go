package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/sbomflow/internal/config"
	"github.com/systmms/sbomflow/internal/logging"
)

func NewRotateKeyCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate-key",
		Short: "Rotate the automation API key",
		Long: `Rotate the Automation team's API key on the analyzer and persist the
replacement in the secret store. The old key stops working immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runRotateKey(cfg)
		},
	}
	return cmd
}

func runRotateKey(cfg *config.Config) error {
	manager, err := buildCredentialManager(cfg)
	if err != nil {
		return err
	}

	key, err := manager.RotateAPIKey(context.Background())
	if err != nil {
		return fmt.Errorf("failed to rotate automation API key: %w", err)
	}

	cfg.Logger.Info("Automation API key rotated: %s", logging.Secret(key))
	return nil
}
