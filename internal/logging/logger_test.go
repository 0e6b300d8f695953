package logging_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/sbomflow/internal/logging"
)

func TestLoggerLevels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false)

	logger.Info("hello %s", "world")
	logger.Warn("careful")
	logger.Error("broken")

	out := buf.String()
	assert.Contains(t, out, "✓ hello world")
	assert.Contains(t, out, "⚠ careful")
	assert.Contains(t, out, "✗ broken")
}

func TestLoggerDebugSuppressed(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false)
	logger.Debug("should not appear")
	assert.Empty(t, buf.String())

	verbose := logging.NewWithWriter(&buf, true)
	verbose.Debug("now visible")
	assert.Contains(t, buf.String(), "[DEBUG] now visible")
}

func TestLoggerWithRunPrefix(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, false).WithRun("sboms", "sbom-abc")
	logger.Info("state=FETCHED")

	assert.Contains(t, buf.String(), "[sboms/sbom-abc] state=FETCHED")
}

func TestSecretNeverPrints(t *testing.T) {
	t.Parallel()

	s := logging.Secret("super-secret-key")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
}

func TestRedact(t *testing.T) {
	t.Parallel()

	out := logging.Redact("key=odt_abcdef status=401", []string{"odt_abcdef"})
	assert.Equal(t, "key=[REDACTED] status=401", out)

	// Trivial values are left alone to avoid mangling log text.
	out = logging.Redact("a=1", []string{"1"})
	assert.Equal(t, "a=1", out)
}
