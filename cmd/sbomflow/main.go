package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/sbomflow/cmd/sbomflow/commands"
	"github.com/systmms/sbomflow/internal/config"
	"github.com/systmms/sbomflow/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "sbomflow",
		Short: "SBOM enrichment pipeline - Analyze SBOMs for vulnerabilities",
		Long: `sbomflow ingests CycloneDX SBOMs, runs them through a vulnerability
analyzer using disposable analysis projects, and stores the findings
next to the SBOM. It also manages the analyzer credentials end to end.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize logger with parsed flags
			logger := logging.New(debug, noColor)

			cfg.Path = configFile
			cfg.Logger = logger
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "sbomflow.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	// Add commands
	rootCmd.AddCommand(
		commands.NewInitCommand(cfg),
		commands.NewWorkerCommand(cfg),
		commands.NewIngestCommand(cfg),
		commands.NewEnrichCommand(cfg),
		commands.NewBootstrapCommand(cfg),
		commands.NewRotateKeyCommand(cfg),
	)

	return rootCmd.Execute()
}
