package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/systmms/sbomflow/internal/config"
	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
	"github.com/systmms/sbomflow/internal/metrics"
	"github.com/systmms/sbomflow/internal/orchestrator"
	"github.com/systmms/sbomflow/internal/queue"
)

func NewWorkerCommand(cfg *config.Config) *cobra.Command {
	var (
		metricsAddr string
		batchSize   int32
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume the enrichment queue and run the pipeline",
		Long: `Worker long-polls the enrichment queue and runs one enrichment per
message. Messages are acknowledged on success; retryable failures leave
the message for the queue's redelivery policy, configuration errors are
acknowledged so they do not loop forever.

Prometheus metrics are served on --metrics-addr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runWorker(cfg, metricsAddr, batchSize)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Prometheus metrics listen address (empty to disable)")
	cmd.Flags().Int32Var(&batchSize, "batch-size", 5, "Maximum messages per queue poll")

	return cmd
}

func runWorker(cfg *config.Config, metricsAddr string, batchSize int32) error {
	metrics.InitMetrics()

	o, err := buildOrchestrator(cfg)
	if err != nil {
		return err
	}
	q, err := buildQueue(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		server := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cfg.Logger.Error("Metrics server failed: %v", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		cfg.Logger.Info("Serving metrics on %s", metricsAddr)
	}

	cfg.Logger.Info("Worker started, polling %s", cfg.Definition.Queue.URL)
	return consume(ctx, cfg, o, q, batchSize)
}

func consume(ctx context.Context, cfg *config.Config, o *orchestrator.Orchestrator, q *queue.Queue, batchSize int32) error {
	for {
		if ctx.Err() != nil {
			cfg.Logger.Info("Worker stopping")
			return nil
		}

		messages, malformed, err := q.Receive(ctx, batchSize)
		if err != nil {
			if ctx.Err() != nil {
				cfg.Logger.Info("Worker stopping")
				return nil
			}
			cfg.Logger.Error("Queue receive failed: %v", err)
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
			}
			continue
		}

		for _, decodeErr := range malformed {
			cfg.Logger.Warn("Skipping malformed queue message, leaving it for the redrive policy: %v", decodeErr)
		}

		for _, msg := range messages {
			handleMessage(ctx, cfg, o, q, msg)
		}
	}
}

// handleMessage runs one enrichment and decides the message's fate.
// Redeliverable failures leave the message in flight so the queue retries
// it; configuration errors are acknowledged because redelivery would fail
// identically until an operator intervenes.
func handleMessage(ctx context.Context, cfg *config.Config, o *orchestrator.Orchestrator, q *queue.Queue, msg queue.Message) {
	err := o.Run(ctx, msg.Request)
	if err != nil {
		cfg.Logger.Error("Enrichment of %s/%s failed: %v", msg.Request.Bucket, msg.Request.Key, err)
		if pipelineerrors.Redeliverable(err) {
			return
		}
		cfg.Logger.Warn("Failure is not retryable, acknowledging message")
	}

	if ackErr := q.Acknowledge(ctx, msg); ackErr != nil {
		cfg.Logger.Error("Failed to acknowledge message for %s/%s: %v", msg.Request.Bucket, msg.Request.Key, ackErr)
	}
}
