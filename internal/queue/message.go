// Package queue carries enrichment requests between the ingress and the
// worker over SQS.
package queue

import (
	"encoding/json"
	"fmt"
)

// EnrichmentRequest names one stored SBOM awaiting enrichment. The wire
// field names are dotted to match the keys the storage notification layer
// emits.
type EnrichmentRequest struct {
	Bucket string `json:"sbom.bucket.name"`
	Key    string `json:"sbom.s3.key"`
}

// Encode serializes the request for the queue body.
func (r EnrichmentRequest) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode enrichment request: %w", err)
	}
	return string(data), nil
}

// DecodeRequest parses a queue body into an EnrichmentRequest. Both fields
// are required.
func DecodeRequest(body string) (EnrichmentRequest, error) {
	var req EnrichmentRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return EnrichmentRequest{}, fmt.Errorf("failed to decode enrichment request: %w", err)
	}
	if req.Bucket == "" || req.Key == "" {
		return EnrichmentRequest{}, fmt.Errorf("enrichment request missing bucket or key: %q", body)
	}
	return req, nil
}
