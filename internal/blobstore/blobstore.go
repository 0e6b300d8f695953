// Package blobstore abstracts the object storage holding SBOM documents
// and their findings reports.
package blobstore

import (
	"context"
	"errors"
)

// Object is one stored blob with its user metadata.
type Object struct {
	Body     []byte
	Metadata map[string]string
}

// Store is the blob contract consumed by the ingress and the orchestrator.
type Store interface {
	// Get reads an object, or returns NotFoundError.
	Get(ctx context.Context, bucket, key string) (Object, error)

	// Put writes an object, overwriting any previous version. Metadata may
	// be nil.
	Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error
}

// NotFoundError indicates a missing object.
type NotFoundError struct {
	Bucket string
	Key    string
}

func (e NotFoundError) Error() string {
	return "object not found: " + e.Bucket + "/" + e.Key
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
