package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/sbomflow/internal/blobstore"
	"github.com/systmms/sbomflow/internal/config"
	"github.com/systmms/sbomflow/internal/ingress"
)

func NewIngestCommand(cfg *config.Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Validate and store an SBOM, then queue it for enrichment",
		Long: `Ingest reads a CycloneDX SBOM from a file (or stdin with --file -),
validates it, stores it in the SBOM bucket under a fresh key, and
publishes an enrichment request to the queue.

Examples:
  sbomflow ingest --file app-bom.json
  cat app-bom.json | sbomflow ingest --file -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runIngest(cfg, file)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "SBOM file to ingest, or - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runIngest(cfg *config.Config, file string) error {
	var bom []byte
	var err error
	if file == "-" {
		bom, err = io.ReadAll(os.Stdin)
	} else {
		bom, err = os.ReadFile(file)
	}
	if err != nil {
		return fmt.Errorf("failed to read SBOM: %w", err)
	}

	store, err := blobstore.NewS3Store(cfg.Definition.Storage.Region, cfg.Definition.Storage.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}

	q, err := buildQueue(cfg)
	if err != nil {
		return err
	}

	service, err := ingress.NewService(store, q, cfg.Definition.Storage.Bucket, cfg.Logger)
	if err != nil {
		return err
	}

	receipt, err := service.Ingest(context.Background(), bom)
	if err != nil {
		return err
	}

	cfg.Logger.Info("SBOM accepted: s3://%s/%s (enrichment id %s)", receipt.Bucket, receipt.Key, receipt.EnrichmentID)
	return nil
}
