// Package metrics exposes Prometheus instrumentation for the pipeline.
// Registration is guarded so tests and short-lived commands can call
// Record* without initializing the collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStartedTotal   *prometheus.CounterVec
	runsCompletedTotal *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	keyRotationsTotal  prometheus.Counter
	bootstrapsTotal    prometheus.Counter
	pollDuration       prometheus.Histogram

	metricsOnce       sync.Once
	metricsRegistered bool
)

// PipelineMetrics provides methods to record pipeline events.
type PipelineMetrics struct{}

// NewPipelineMetrics creates a new PipelineMetrics instance. Metrics are
// only recorded after InitMetrics has run.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{}
}

// InitMetrics initializes all Prometheus metrics. Called once at startup
// by the worker command.
func InitMetrics() {
	metricsOnce.Do(func() {
		runsStartedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sbomflow_runs_started_total",
				Help: "Total number of enrichment runs started",
			},
			[]string{"bucket"},
		)

		runsCompletedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sbomflow_runs_completed_total",
				Help: "Total number of enrichment runs completed",
			},
			[]string{"bucket", "status"},
		)

		runDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sbomflow_run_duration_seconds",
				Help:    "Duration of enrichment runs in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"bucket"},
		)

		keyRotationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sbomflow_key_rotations_total",
				Help: "Total number of automation API key rotations",
			},
		)

		bootstrapsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sbomflow_credential_bootstraps_total",
				Help: "Total number of credential bootstrap operations",
			},
		)

		pollDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sbomflow_poll_duration_seconds",
				Help:    "Time spent waiting for the analyzer to finish processing",
				Buckets: []float64{0.5, 1, 5, 15, 60, 120, 300},
			},
		)

		metricsRegistered = true
	})
}

// RecordRunStarted records the start of an enrichment run.
func (m *PipelineMetrics) RecordRunStarted(bucket string) {
	if !metricsRegistered || runsStartedTotal == nil {
		return
	}
	runsStartedTotal.WithLabelValues(bucket).Inc()
}

// RecordRunCompleted records the outcome and duration of an enrichment run.
func (m *PipelineMetrics) RecordRunCompleted(bucket, status string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}
	if runsCompletedTotal != nil {
		runsCompletedTotal.WithLabelValues(bucket, status).Inc()
	}
	if runDuration != nil {
		runDuration.WithLabelValues(bucket).Observe(durationSeconds)
	}
}

// RecordKeyRotation records one automation API key rotation.
func (m *PipelineMetrics) RecordKeyRotation() {
	if !metricsRegistered || keyRotationsTotal == nil {
		return
	}
	keyRotationsTotal.Inc()
}

// RecordBootstrap records one credential bootstrap.
func (m *PipelineMetrics) RecordBootstrap() {
	if !metricsRegistered || bootstrapsTotal == nil {
		return
	}
	bootstrapsTotal.Inc()
}

// RecordPollWait records how long a run waited for analysis to finish.
func (m *PipelineMetrics) RecordPollWait(durationSeconds float64) {
	if !metricsRegistered || pollDuration == nil {
		return
	}
	pollDuration.Observe(durationSeconds)
}

// IsMetricsRegistered returns whether metrics have been initialized.
func IsMetricsRegistered() bool {
	return metricsRegistered
}
