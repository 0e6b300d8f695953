package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/sbomflow/internal/blobstore"
	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
	"github.com/systmms/sbomflow/internal/logging"
	"github.com/systmms/sbomflow/internal/orchestrator"
	"github.com/systmms/sbomflow/internal/queue"
)

// fakeAnalyzer scripts the analysis surface: pollResults is consumed one
// entry per IsProcessing call, with the last entry repeating.
type fakeAnalyzer struct {
	pollResults []pollResult
	findings    json.RawMessage
	uploadToken string

	createCalls int
	uploadCalls int
	pollCalls   int
	deleted     []string
	deleteErr   error
	lastToken   string
	lastBOM     []byte
}

type pollResult struct {
	processing bool
	err        error
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		uploadToken: "tok-1",
		findings:    json.RawMessage(`{"vulns":[]}`),
		pollResults: []pollResult{{processing: false}},
	}
}

func (f *fakeAnalyzer) CreateProject(ctx context.Context) (string, error) {
	f.createCalls++
	return "proj-1", nil
}

func (f *fakeAnalyzer) UploadSBOM(ctx context.Context, projectUUID string, bom []byte) (string, error) {
	f.uploadCalls++
	f.lastBOM = bom
	return f.uploadToken, nil
}

func (f *fakeAnalyzer) IsProcessing(ctx context.Context, token string) (bool, error) {
	f.lastToken = token
	result := f.pollResults[0]
	if len(f.pollResults) > 1 {
		f.pollResults = f.pollResults[1:]
	}
	f.pollCalls++
	return result.processing, result.err
}

func (f *fakeAnalyzer) Findings(ctx context.Context, projectUUID string) (json.RawMessage, error) {
	return f.findings, nil
}

func (f *fakeAnalyzer) DeleteProject(ctx context.Context, projectUUID string) error {
	f.deleted = append(f.deleted, projectUUID)
	return f.deleteErr
}

func newOrchestrator(fake *fakeAnalyzer, store blobstore.Store, timeout time.Duration) *orchestrator.Orchestrator {
	logger := logging.NewWithWriter(io.Discard, false)
	return orchestrator.New(store, fake, logger, orchestrator.WithPolling(time.Millisecond, timeout))
}

func seedSBOM(t *testing.T, store blobstore.Store) queue.EnrichmentRequest {
	t.Helper()
	req := queue.EnrichmentRequest{Bucket: "sboms", Key: "sbom-abc"}
	err := store.Put(context.Background(), req.Bucket, req.Key, []byte(`{"bomFormat":"CycloneDX"}`), nil)
	require.NoError(t, err)
	return req
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	req := seedSBOM(t, store)
	fake := newFakeAnalyzer()
	fake.pollResults = []pollResult{
		{processing: true},
		{processing: true},
		{processing: false},
	}
	o := newOrchestrator(fake, store, time.Second)

	require.NoError(t, o.Run(context.Background(), req))

	// The uploaded document is the stored SBOM and the returned token is
	// the one polled.
	assert.Equal(t, []byte(`{"bomFormat":"CycloneDX"}`), fake.lastBOM)
	assert.Equal(t, "tok-1", fake.lastToken)
	assert.Equal(t, 3, fake.pollCalls)

	// Findings land next to the SBOM under the derived key.
	obj, err := store.Get(context.Background(), "sboms", "findings-sbom-abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"vulns":[]}`, string(obj.Body))

	// The disposable project is cleaned up exactly once.
	assert.Equal(t, []string{"proj-1"}, fake.deleted)
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	req := seedSBOM(t, store)
	fake := newFakeAnalyzer()
	o := newOrchestrator(fake, store, time.Second)
	ctx := context.Background()

	require.NoError(t, o.Run(ctx, req))
	fake.findings = json.RawMessage(`{"vulns":[{"id":"CVE-2026-0001"}]}`)
	require.NoError(t, o.Run(ctx, req))

	// The second run overwrites the findings report.
	obj, err := store.Get(ctx, "sboms", "findings-sbom-abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"vulns":[{"id":"CVE-2026-0001"}]}`, string(obj.Body))

	// One fresh project per run, each cleaned up.
	assert.Equal(t, 2, fake.createCalls)
	assert.Len(t, fake.deleted, 2)
}

func TestRunPollingTimeout(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	req := seedSBOM(t, store)
	fake := newFakeAnalyzer()
	fake.pollResults = []pollResult{{processing: true}}
	o := newOrchestrator(fake, store, 20*time.Millisecond)

	err := o.Run(context.Background(), req)

	var timeoutErr pipelineerrors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, pipelineerrors.Redeliverable(err))

	// Cleanup still runs, and no findings are stored.
	assert.Equal(t, []string{"proj-1"}, fake.deleted)
	_, err = store.Get(context.Background(), "sboms", "findings-sbom-abc")
	assert.True(t, blobstore.IsNotFound(err))
}

func TestRunCallerDeadlineBecomesTimeout(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	req := seedSBOM(t, store)
	fake := newFakeAnalyzer()
	fake.pollResults = []pollResult{{processing: true}}
	o := newOrchestrator(fake, store, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := o.Run(ctx, req)

	var timeoutErr pipelineerrors.TimeoutError
	require.ErrorAs(t, err, &timeoutErr, "an expired execution deadline must surface as a timeout")
	assert.Equal(t, []string{"proj-1"}, fake.deleted, "cleanup must survive the expired context")
}

func TestRunCancellationStaysContextError(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	req := seedSBOM(t, store)
	fake := newFakeAnalyzer()
	fake.pollResults = []pollResult{{processing: true}}
	o := newOrchestrator(fake, store, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := o.Run(ctx, req)

	assert.ErrorIs(t, err, context.Canceled)
	var timeoutErr pipelineerrors.TimeoutError
	assert.False(t, errors.As(err, &timeoutErr), "shutdown is not a timeout")
}

func TestRunTransientPollFailuresAreRetried(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	req := seedSBOM(t, store)
	fake := newFakeAnalyzer()
	transient := pipelineerrors.AnalyzerHTTPError{
		Operation: "poll status",
		Err:       errors.New("connection refused"),
	}
	fake.pollResults = []pollResult{
		{err: transient},
		{err: transient},
		{processing: false},
	}
	o := newOrchestrator(fake, store, time.Second)

	require.NoError(t, o.Run(context.Background(), req))
	assert.Equal(t, 3, fake.pollCalls)
}

func TestRunStatusFailureAborts(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	req := seedSBOM(t, store)
	fake := newFakeAnalyzer()
	fake.pollResults = []pollResult{
		{err: pipelineerrors.AnalyzerHTTPError{Operation: "poll status", StatusCode: 500, Body: "boom"}},
	}
	o := newOrchestrator(fake, store, time.Second)

	err := o.Run(context.Background(), req)

	var httpErr pipelineerrors.AnalyzerHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Equal(t, []string{"proj-1"}, fake.deleted)
}

func TestRunMissingSBOM(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	fake := newFakeAnalyzer()
	o := newOrchestrator(fake, store, time.Second)

	err := o.Run(context.Background(), queue.EnrichmentRequest{Bucket: "sboms", Key: "sbom-nope"})

	require.Error(t, err)
	assert.True(t, blobstore.IsNotFound(err))
	assert.Zero(t, fake.createCalls, "no project without an SBOM")
	assert.Empty(t, fake.deleted)
}

func TestRunDeleteFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	store := blobstore.NewMemoryStore()
	req := seedSBOM(t, store)
	fake := newFakeAnalyzer()
	fake.deleteErr = pipelineerrors.AnalyzerHTTPError{Operation: "delete project", StatusCode: 404}
	o := newOrchestrator(fake, store, time.Second)

	require.NoError(t, o.Run(context.Background(), req))

	obj, err := store.Get(context.Background(), "sboms", "findings-sbom-abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"vulns":[]}`, string(obj.Body))
}
