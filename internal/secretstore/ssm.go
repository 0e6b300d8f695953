package secretstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
)

// SSMClientAPI defines the interface for AWS SSM Parameter Store operations.
// This allows for mocking in tests.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// ParameterStore implements Store on AWS Systems Manager Parameter Store.
type ParameterStore struct {
	client SSMClientAPI
	prefix string
}

// SSMOption is a functional option for configuring the parameter store.
type SSMOption func(*ParameterStore)

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(client SSMClientAPI) SSMOption {
	return func(s *ParameterStore) {
		s.client = client
	}
}

// NewParameterStore creates an SSM-backed secret store. The config map
// accepts region, endpoint, access_key_id/secret_access_key (for local
// stacks) and parameter_prefix.
func NewParameterStore(configMap map[string]interface{}, opts ...SSMOption) (*ParameterStore, error) {
	s := &ParameterStore{}
	if prefix, ok := configMap["parameter_prefix"].(string); ok {
		s.prefix = prefix
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		cfg, err := loadAWSConfig(configMap)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		var clientOpts []func(*ssm.Options)
		if endpoint, ok := configMap["endpoint"].(string); ok && endpoint != "" {
			clientOpts = append(clientOpts, func(o *ssm.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		s.client = ssm.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// Get returns the parameter value, or NotFoundError if it was never written.
func (s *ParameterStore) Get(ctx context.Context, name string) (string, error) {
	input := &ssm.GetParameterInput{
		Name:           aws.String(s.prefix + name),
		WithDecryption: aws.Bool(true),
	}

	result, err := s.client.GetParameter(ctx, input)
	if err != nil {
		if isParameterNotFound(err) {
			return "", NotFoundError{Name: name}
		}
		return "", pipelineerrors.SecretStoreError{Name: name, Op: "get", Err: err}
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", pipelineerrors.SecretStoreError{
			Name: name,
			Op:   "get",
			Err:  fmt.Errorf("parameter has no value"),
		}
	}

	return *result.Parameter.Value, nil
}

// Put overwrites the parameter, creating it if absent.
func (s *ParameterStore) Put(ctx context.Context, name, value string) error {
	input := &ssm.PutParameterInput{
		Name:      aws.String(s.prefix + name),
		Value:     aws.String(value),
		Type:      types.ParameterTypeString,
		Overwrite: aws.Bool(true),
		Tier:      types.ParameterTierStandard,
	}

	if _, err := s.client.PutParameter(ctx, input); err != nil {
		return pipelineerrors.SecretStoreError{Name: name, Op: "put", Err: err}
	}
	return nil
}

// loadAWSConfig builds an aws.Config from a store config map. Shared by the
// SSM and Secrets Manager backends.
func loadAWSConfig(configMap map[string]interface{}) (aws.Config, error) {
	var configOpts []func(*awsconfig.LoadOptions) error

	if region, ok := configMap["region"].(string); ok && region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(region))
	}
	if profile, ok := configMap["profile"].(string); ok && profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(profile))
	}

	accessKeyID, _ := configMap["access_key_id"].(string)
	secretAccessKey, _ := configMap["secret_access_key"].(string)
	if accessKeyID != "" && secretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	return awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
}

func isParameterNotFound(err error) bool {
	return strings.Contains(err.Error(), "ParameterNotFound")
}
