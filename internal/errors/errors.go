// Package errors defines the failure taxonomy for the enrichment pipeline.
//
// Every error aborts the current run without partial credit. The only
// distinction that matters operationally is whether the triggering queue
// message may be redelivered: a ConfigurationError needs operator
// intervention and redelivering would just fail again, everything else is
// safe to retry through the queue's own redelivery policy.
package errors

import (
	"errors"
	"fmt"
)

// ConfigurationError indicates a fatal misconfiguration of the Analyzer,
// such as the Automation team being absent. Not retryable.
type ConfigurationError struct {
	Message    string
	Suggestion string
}

func (e ConfigurationError) Error() string {
	msg := "configuration error: " + e.Message
	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}
	return msg
}

// AnalyzerAuthError indicates a 401 from the Analyzer that survived one
// key rotation and retry.
type AnalyzerAuthError struct {
	Operation string
	Err       error
}

func (e AnalyzerAuthError) Error() string {
	return fmt.Sprintf("analyzer rejected credentials during %s after one rotation and retry", e.Operation)
}

func (e AnalyzerAuthError) Unwrap() error {
	return e.Err
}

// AnalyzerHTTPError indicates a non-401 HTTP failure from the Analyzer.
type AnalyzerHTTPError struct {
	Operation  string
	StatusCode int
	Body       string
	Err        error
}

func (e AnalyzerHTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analyzer request failed during %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("analyzer returned HTTP %d during %s", e.StatusCode, e.Operation)
}

func (e AnalyzerHTTPError) Unwrap() error {
	return e.Err
}

// AnalyzerProtocolError indicates a malformed or unexpected response body.
// The payload is carried for diagnosis and logged in full.
type AnalyzerProtocolError struct {
	Operation string
	Payload   string
	Err       error
}

func (e AnalyzerProtocolError) Error() string {
	return fmt.Sprintf("analyzer returned an unexpected body during %s: %v (payload: %s)", e.Operation, e.Err, e.Payload)
}

func (e AnalyzerProtocolError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates that polling for analysis completion exceeded the
// configured bound or the caller's execution deadline.
type TimeoutError struct {
	Operation string
	Waited    string
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("timed out during %s after %s", e.Operation, e.Waited)
}

// SecretStoreError wraps a failure from the secret store. Propagated as-is
// and never retried in-process.
type SecretStoreError struct {
	Name string
	Op   string
	Err  error
}

func (e SecretStoreError) Error() string {
	return fmt.Sprintf("secret store %s failed for %q: %v", e.Op, e.Name, e.Err)
}

func (e SecretStoreError) Unwrap() error {
	return e.Err
}

// Redeliverable reports whether the triggering queue message may be
// redelivered after this failure. Only configuration errors are excluded:
// they require an operator and would fail identically on every redelivery.
func Redeliverable(err error) bool {
	if err == nil {
		return false
	}
	var cfg ConfigurationError
	return !errors.As(err, &cfg)
}
