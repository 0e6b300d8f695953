package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3ClientAPI defines the interface for the S3 operations used here. This
// allows for mocking in tests.
type S3ClientAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements Store on AWS S3.
type S3Store struct {
	client S3ClientAPI
}

// S3Option is a functional option for configuring the store.
type S3Option func(*S3Store)

// WithS3Client sets a custom S3 client (for testing).
func WithS3Client(client S3ClientAPI) S3Option {
	return func(s *S3Store) {
		s.client = client
	}
}

// NewS3Store creates an S3-backed blob store. region and endpoint may be
// empty to use the ambient AWS configuration.
func NewS3Store(region, endpoint string, opts ...S3Option) (*S3Store, error) {
	s := &S3Store{}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		if region != "" {
			configOpts = append(configOpts, awsconfig.WithRegion(region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		var clientOpts []func(*s3.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(endpoint)
				o.UsePathStyle = true
			})
		}
		s.client = s3.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// Get reads an object body and metadata.
func (s *S3Store) Get(ctx context.Context, bucket, key string) (Object, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return Object{}, NotFoundError{Bucket: bucket, Key: key}
		}
		return Object{}, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = result.Body.Close() }()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return Object{}, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}

	return Object{Body: body, Metadata: result.Metadata}, nil
}

// Put writes an object, overwriting any previous version.
func (s *S3Store) Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
