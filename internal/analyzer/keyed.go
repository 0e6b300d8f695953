package analyzer

import (
	"context"
	"encoding/json"
	"errors"

	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
	"github.com/systmms/sbomflow/internal/logging"
)

// KeySource supplies the automation API key and can rotate it. Implemented
// by the credential lifecycle manager.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
	RotateAPIKey(ctx context.Context) (string, error)
}

// KeyedClient wraps the stateless Client with key management: every call
// fetches the current key first, and a 401 triggers exactly one rotation
// and one retry. A second 401 means the key was rotated out from under us
// twice within the retry window; that fails loudly rather than looping.
type KeyedClient struct {
	client *Client
	keys   KeySource
	logger *logging.Logger
}

// NewKeyedClient creates the retry-once wrapper.
func NewKeyedClient(client *Client, keys KeySource, logger *logging.Logger) *KeyedClient {
	return &KeyedClient{
		client: client,
		keys:   keys,
		logger: logger,
	}
}

// CreateProject creates a disposable analysis project.
func (k *KeyedClient) CreateProject(ctx context.Context) (string, error) {
	var projectUUID string
	err := k.withKey(ctx, "create project", func(key string) error {
		var err error
		projectUUID, err = k.client.CreateProject(ctx, key)
		return err
	})
	return projectUUID, err
}

// UploadSBOM submits the SBOM into a project and returns the submission token.
func (k *KeyedClient) UploadSBOM(ctx context.Context, projectUUID string, bom []byte) (string, error) {
	var token string
	err := k.withKey(ctx, "upload sbom", func(key string) error {
		var err error
		token, err = k.client.UploadSBOM(ctx, key, projectUUID, bom)
		return err
	})
	return token, err
}

// IsProcessing reports whether the submission is still being analyzed.
func (k *KeyedClient) IsProcessing(ctx context.Context, token string) (bool, error) {
	var processing bool
	err := k.withKey(ctx, "poll status", func(key string) error {
		var err error
		processing, err = k.client.IsProcessing(ctx, key, token)
		return err
	})
	return processing, err
}

// Findings fetches the findings JSON for a project.
func (k *KeyedClient) Findings(ctx context.Context, projectUUID string) (json.RawMessage, error) {
	var findings json.RawMessage
	err := k.withKey(ctx, "fetch findings", func(key string) error {
		var err error
		findings, err = k.client.Findings(ctx, key, projectUUID)
		return err
	})
	return findings, err
}

// DeleteProject removes a disposable project. Best-effort cleanup: no
// rotation, no retry.
func (k *KeyedClient) DeleteProject(ctx context.Context, projectUUID string) error {
	key, err := k.keys.APIKey(ctx)
	if err != nil {
		return err
	}
	return k.client.DeleteProject(ctx, key, projectUUID)
}

// withKey runs fn with the current API key, rotating and retrying exactly
// once on a 401.
func (k *KeyedClient) withKey(ctx context.Context, op string, fn func(key string) error) error {
	key, err := k.keys.APIKey(ctx)
	if err != nil {
		return err
	}

	err = fn(key)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return err
	}

	k.logger.Warn("analyzer rejected the API key during %s, rotating and retrying once", op)
	key, rotateErr := k.keys.RotateAPIKey(ctx)
	if rotateErr != nil {
		return rotateErr
	}

	err = fn(key)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return err
	}
	return pipelineerrors.AnalyzerAuthError{Operation: op, Err: err}
}
