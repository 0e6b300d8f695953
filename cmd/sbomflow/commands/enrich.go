package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/sbomflow/internal/config"
	"github.com/systmms/sbomflow/internal/orchestrator"
	"github.com/systmms/sbomflow/internal/queue"
)

func NewEnrichCommand(cfg *config.Config) *cobra.Command {
	var (
		bucket string
		key    string
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Run one enrichment for a stored SBOM",
		Long: `Enrich fetches a stored SBOM, submits it to the analyzer through a
disposable analysis project, waits for the analysis to finish, and
stores the findings report next to the SBOM.

Examples:
  sbomflow enrich --key sbom-2f1c...
  sbomflow enrich --bucket other-bucket --key sbom-2f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if bucket == "" {
				bucket = cfg.Definition.Storage.Bucket
			}
			return runEnrich(cfg, bucket, key)
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket holding the SBOM (defaults to storage.bucket)")
	cmd.Flags().StringVar(&key, "key", "", "Object key of the SBOM (required)")
	_ = cmd.MarkFlagRequired("key")

	return cmd
}

func runEnrich(cfg *config.Config, bucket, key string) error {
	o, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}

	req := queue.EnrichmentRequest{Bucket: bucket, Key: key}
	if err := o.Run(context.Background(), req); err != nil {
		return err
	}

	cfg.Logger.Info("Findings stored at s3://%s/%s", bucket, orchestrator.FindingsKey(key))
	return nil
}
