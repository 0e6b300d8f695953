package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/sbomflow/internal/config"
)

const starterConfig = `# sbomflow configuration
version: 0

analyzer:
  base_url: http://localhost:8081
  # admin_user: admin
  # default_password: admin
  # timeout_ms: 30000

secretStore:
  type: aws.ssm
  # region: us-east-1
  # parameter_prefix: /sbomflow/

storage:
  bucket: my-sbom-bucket
  # region: us-east-1
  # endpoint: http://localhost:4566   # for local stacks

queue:
  url: https://sqs.us-east-1.amazonaws.com/123456789012/enrichment
  # region: us-east-1

polling:
  interval_ms: 500
  timeout_ms: 300000
`

func NewInitCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter sbomflow.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cfg)
		},
	}
	return cmd
}

func runInit(cfg *config.Config) error {
	if _, err := os.Stat(cfg.Path); err == nil {
		return config.ConfigError{
			Field:      "path",
			Value:      cfg.Path,
			Message:    "configuration file already exists",
			Suggestion: "Remove it first or pass a different --config path",
		}
	}

	if err := os.WriteFile(cfg.Path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.Path, err)
	}

	cfg.Logger.Info("Created %s", cfg.Path)
	return nil
}
