package analyzer_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/sbomflow/internal/analyzer"
	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
	"github.com/systmms/sbomflow/internal/logging"
)

// stubKeySource hands out keys from a fixed rotation sequence.
type stubKeySource struct {
	current   string
	next      []string
	rotations int
}

func (s *stubKeySource) APIKey(ctx context.Context) (string, error) {
	return s.current, nil
}

func (s *stubKeySource) RotateAPIKey(ctx context.Context) (string, error) {
	s.rotations++
	if len(s.next) > 0 {
		s.current = s.next[0]
		s.next = s.next[1:]
	}
	return s.current, nil
}

func newKeyedClient(t *testing.T, serverURL string, keys analyzer.KeySource) *analyzer.KeyedClient {
	t.Helper()
	logger := logging.NewWithWriter(io.Discard, false)
	return analyzer.NewKeyedClient(analyzer.NewClient(serverURL), keys, logger)
}

func TestKeyedClientRotatesOnceOn401(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Api-Key") != "odt_fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"uuid":"proj-1"}`))
	}))
	defer server.Close()

	keys := &stubKeySource{current: "odt_stale", next: []string{"odt_fresh"}}
	keyed := newKeyedClient(t, server.URL, keys)

	projectUUID, err := keyed.CreateProject(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "proj-1", projectUUID)
	assert.Equal(t, 1, keys.rotations)
	assert.Equal(t, int32(2), calls.Load())
}

func TestKeyedClientNeverLoops(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	keys := &stubKeySource{current: "odt_stale", next: []string{"odt_still_stale"}}
	keyed := newKeyedClient(t, server.URL, keys)

	_, err := keyed.CreateProject(context.Background())

	var authErr pipelineerrors.AnalyzerAuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, keys.rotations, "rotation must be attempted exactly once")
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry after rotation")
}

func TestKeyedClientNoRotationOnSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"processing":false}`))
	}))
	defer server.Close()

	keys := &stubKeySource{current: "odt_good"}
	keyed := newKeyedClient(t, server.URL, keys)

	processing, err := keyed.IsProcessing(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.False(t, processing)
	assert.Zero(t, keys.rotations)
}

func TestKeyedClientNonAuthErrorsPassThrough(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	keys := &stubKeySource{current: "odt_good"}
	keyed := newKeyedClient(t, server.URL, keys)

	_, err := keyed.Findings(context.Background(), "proj-1")

	var httpErr pipelineerrors.AnalyzerHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Zero(t, keys.rotations, "non-401 failures must not trigger rotation")
}

func TestKeyedClientDeleteIsBestEffort(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	keys := &stubKeySource{current: "odt_stale", next: []string{"odt_fresh"}}
	keyed := newKeyedClient(t, server.URL, keys)

	err := keyed.DeleteProject(context.Background(), "proj-1")
	require.Error(t, err)
	assert.Zero(t, keys.rotations, "delete must not rotate the key")
}
