// Package ingress accepts SBOM documents, validates them against the
// CycloneDX shape, stores them, and queues them for enrichment.
package ingress

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/systmms/sbomflow/internal/blobstore"
	"github.com/systmms/sbomflow/internal/logging"
	"github.com/systmms/sbomflow/internal/queue"
	"github.com/xeipuuv/gojsonschema"
)

// EnrichmentIDMetadataKey is the object metadata key carrying the
// enrichment identifier. S3 lowercases user metadata keys, so the constant
// is lowercase too.
const EnrichmentIDMetadataKey = "enrichmentid"

// cycloneDXSchema is the structural subset every accepted SBOM must
// satisfy. Deep component validation is the analyzer's job; the gate here
// rejects documents that are not CycloneDX at all.
const cycloneDXSchema = `{
	"type": "object",
	"required": ["bomFormat", "specVersion"],
	"properties": {
		"bomFormat": {"const": "CycloneDX"},
		"specVersion": {"type": "string", "minLength": 1},
		"components": {"type": "array"}
	}
}`

// ValidationError reports an SBOM that failed the CycloneDX check.
type ValidationError struct {
	Problems []string
}

func (e ValidationError) Error() string {
	return "invalid CycloneDX document: " + strings.Join(e.Problems, "; ")
}

// Receipt describes where an accepted SBOM landed.
type Receipt struct {
	Bucket       string
	Key          string
	EnrichmentID string
}

// Publisher is the queue side the ingress needs.
type Publisher interface {
	Publish(ctx context.Context, req queue.EnrichmentRequest) error
}

// Service validates and stores incoming SBOMs.
type Service struct {
	store     blobstore.Store
	publisher Publisher
	bucket    string
	schema    *gojsonschema.Schema
	logger    *logging.Logger
}

// NewService builds an ingress service writing to the given bucket.
func NewService(store blobstore.Store, publisher Publisher, bucket string, logger *logging.Logger) (*Service, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(cycloneDXSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile CycloneDX schema: %w", err)
	}
	return &Service{
		store:     store,
		publisher: publisher,
		bucket:    bucket,
		schema:    schema,
		logger:    logger,
	}, nil
}

// Ingest validates an SBOM, stores it under a fresh sbom-<uuid> key with an
// enrichment identifier in the metadata, and queues it for enrichment.
func (s *Service) Ingest(ctx context.Context, bom []byte) (Receipt, error) {
	if err := s.validate(bom); err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{
		Bucket:       s.bucket,
		Key:          "sbom-" + uuid.NewString(),
		EnrichmentID: "sbom-api-" + uuid.NewString(),
	}

	metadata := map[string]string{EnrichmentIDMetadataKey: receipt.EnrichmentID}
	if err := s.store.Put(ctx, receipt.Bucket, receipt.Key, bom, metadata); err != nil {
		return Receipt{}, fmt.Errorf("failed to store SBOM: %w", err)
	}
	s.logger.Debug("Stored SBOM at %s/%s", receipt.Bucket, receipt.Key)

	err := s.publisher.Publish(ctx, queue.EnrichmentRequest{
		Bucket: receipt.Bucket,
		Key:    receipt.Key,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to queue SBOM %s for enrichment: %w", receipt.Key, err)
	}
	s.logger.Info("Queued %s for enrichment", receipt.Key)

	return receipt, nil
}

func (s *Service) validate(bom []byte) error {
	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(bom))
	if err != nil {
		return ValidationError{Problems: []string{err.Error()}}
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return ValidationError{Problems: problems}
}
