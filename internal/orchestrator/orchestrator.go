// Package orchestrator runs the enrichment pipeline: fetch an SBOM, push
// it through a disposable analysis project, and store the findings next to
// the SBOM.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/systmms/sbomflow/internal/analyzer"
	"github.com/systmms/sbomflow/internal/blobstore"
	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
	"github.com/systmms/sbomflow/internal/logging"
	"github.com/systmms/sbomflow/internal/metrics"
	"github.com/systmms/sbomflow/internal/queue"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultPollTimeout  = 5 * time.Minute
)

// FindingsKey returns the object key the findings report is stored under
// for a given SBOM key.
func FindingsKey(sbomKey string) string {
	return "findings-" + sbomKey
}

// Analyzer is the analysis surface the pipeline drives. Implemented by
// analyzer.KeyedClient.
type Analyzer interface {
	CreateProject(ctx context.Context) (string, error)
	UploadSBOM(ctx context.Context, projectUUID string, bom []byte) (string, error)
	IsProcessing(ctx context.Context, token string) (bool, error)
	Findings(ctx context.Context, projectUUID string) (json.RawMessage, error)
	DeleteProject(ctx context.Context, projectUUID string) error
}

// Orchestrator executes enrichment runs.
type Orchestrator struct {
	store    blobstore.Store
	analyzer Analyzer
	logger   *logging.Logger
	metrics  *metrics.PipelineMetrics

	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Option is a functional option for configuring the orchestrator.
type Option func(*Orchestrator)

// WithPolling overrides the status polling cadence and deadline.
func WithPolling(interval, timeout time.Duration) Option {
	return func(o *Orchestrator) {
		if interval > 0 {
			o.pollInterval = interval
		}
		if timeout > 0 {
			o.pollTimeout = timeout
		}
	}
}

// New creates an orchestrator reading SBOMs and writing findings through
// the given store.
func New(store blobstore.Store, az Analyzer, logger *logging.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		analyzer:     az,
		logger:       logger,
		metrics:      metrics.NewPipelineMetrics(),
		pollInterval: defaultPollInterval,
		pollTimeout:  defaultPollTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run enriches one stored SBOM. The disposable analysis project is deleted
// on every exit path after creation; a failed delete is logged and does not
// change the run's outcome. Re-running the same request overwrites the
// previous findings report.
func (o *Orchestrator) Run(ctx context.Context, req queue.EnrichmentRequest) error {
	log := o.logger.WithRun(req.Bucket, req.Key)
	start := time.Now()
	o.metrics.RecordRunStarted(req.Bucket)

	err := o.run(ctx, log, req)

	status := "success"
	if err != nil {
		status = "failure"
	}
	o.metrics.RecordRunCompleted(req.Bucket, status, time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) run(ctx context.Context, log *logging.Logger, req queue.EnrichmentRequest) error {
	obj, err := o.store.Get(ctx, req.Bucket, req.Key)
	if err != nil {
		return fmt.Errorf("failed to fetch SBOM: %w", err)
	}
	log.Debug("Fetched SBOM (%d bytes)", len(obj.Body))

	projectUUID, err := o.analyzer.CreateProject(ctx)
	if err != nil {
		return err
	}
	log.Debug("Created analysis project %s", projectUUID)
	defer func() {
		if deleteErr := o.analyzer.DeleteProject(context.WithoutCancel(ctx), projectUUID); deleteErr != nil {
			log.Warn("Failed to delete analysis project %s: %v", projectUUID, deleteErr)
		}
	}()

	token, err := o.analyzer.UploadSBOM(ctx, projectUUID, obj.Body)
	if err != nil {
		return err
	}
	log.Debug("Uploaded SBOM, submission token %s", token)

	if err := o.waitForAnalysis(ctx, log, token); err != nil {
		return err
	}

	findings, err := o.analyzer.Findings(ctx, projectUUID)
	if err != nil {
		return err
	}

	findingsKey := FindingsKey(req.Key)
	if err := o.store.Put(ctx, req.Bucket, findingsKey, findings, nil); err != nil {
		return fmt.Errorf("failed to store findings: %w", err)
	}
	log.Info("Findings stored at %s/%s", req.Bucket, findingsKey)
	return nil
}

// waitForAnalysis polls the submission status until the analyzer reports
// done, the deadline passes, or the context ends. Transient transport
// failures count as "still processing"; HTTP status failures abort.
func (o *Orchestrator) waitForAnalysis(ctx context.Context, log *logging.Logger, token string) error {
	start := time.Now()
	deadline := time.NewTimer(o.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		processing, err := o.analyzer.IsProcessing(ctx, token)
		switch {
		case err != nil && analyzer.IsTransient(err):
			log.Warn("Status poll failed, treating as still processing: %v", err)
		case err != nil:
			return err
		case !processing:
			o.metrics.RecordPollWait(time.Since(start).Seconds())
			log.Debug("Analysis finished after %s", time.Since(start).Round(time.Millisecond))
			return nil
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return pipelineerrors.TimeoutError{
				Operation: "analysis polling",
				Waited:    time.Since(start).Round(time.Millisecond).String(),
			}
		case <-ctx.Done():
			// A platform execution deadline is a timeout like our own
			// bound; plain cancellation (shutdown) stays a context error.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return pipelineerrors.TimeoutError{
					Operation: "analysis polling",
					Waited:    time.Since(start).Round(time.Millisecond).String(),
				}
			}
			return ctx.Err()
		}
	}
}
