package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
)

// SecretsManagerClientAPI defines the interface for AWS Secrets Manager
// operations. This allows for mocking in tests.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// SecretsManagerStore implements Store on AWS Secrets Manager.
type SecretsManagerStore struct {
	client SecretsManagerClientAPI
}

// SecretsManagerOption is a functional option for configuring the store.
type SecretsManagerOption func(*SecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerOption {
	return func(s *SecretsManagerStore) {
		s.client = client
	}
}

// NewSecretsManagerStore creates a Secrets Manager backed secret store.
func NewSecretsManagerStore(configMap map[string]interface{}, opts ...SecretsManagerOption) (*SecretsManagerStore, error) {
	s := &SecretsManagerStore{}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		cfg, err := loadAWSConfig(configMap)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		var clientOpts []func(*secretsmanager.Options)
		if endpoint, ok := configMap["endpoint"].(string); ok && endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// Get returns the current secret value, or NotFoundError.
func (s *SecretsManagerStore) Get(ctx context.Context, name string) (string, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	}

	result, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		if isResourceNotFound(err) {
			return "", NotFoundError{Name: name}
		}
		return "", pipelineerrors.SecretStoreError{Name: name, Op: "get", Err: err}
	}

	switch {
	case result.SecretString != nil:
		return *result.SecretString, nil
	case result.SecretBinary != nil:
		return string(result.SecretBinary), nil
	default:
		return "", pipelineerrors.SecretStoreError{
			Name: name,
			Op:   "get",
			Err:  fmt.Errorf("secret has no value"),
		}
	}
}

// Put overwrites the secret, creating it on first write.
func (s *SecretsManagerStore) Put(ctx context.Context, name, value string) error {
	_, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(name),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}

	if !isResourceNotFound(err) {
		return pipelineerrors.SecretStoreError{Name: name, Op: "put", Err: err}
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	})
	if err != nil {
		return pipelineerrors.SecretStoreError{Name: name, Op: "put", Err: err}
	}
	return nil
}

func isResourceNotFound(err error) bool {
	var notFound *types.ResourceNotFoundException
	return errors.As(err, &notFound)
}
