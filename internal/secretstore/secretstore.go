// Package secretstore abstracts the durable key/value store holding the
// pipeline's credentials: the analyzer admin password and the automation
// API key.
//
// The store distinguishes two non-value states: a name that has never been
// written (NotFoundError) and a name holding the Empty placeholder, which
// the deployment layer provisions before first use. Both mean "not yet
// populated" to the credential manager.
package secretstore

import (
	"context"
	"errors"
)

// Empty is the placeholder written by the deployment layer for a secret
// that has been provisioned but not yet populated.
const Empty = "EMPTY"

// Store is the secret store contract consumed by the credential manager.
// Writes are full overwrites; there is no versioning beyond that.
type Store interface {
	// Get returns the current value for name, or NotFoundError.
	Get(ctx context.Context, name string) (string, error)

	// Put overwrites the value for name, creating it if absent.
	Put(ctx context.Context, name, value string) error
}

// NotFoundError indicates that a secret name has never been written.
type NotFoundError struct {
	Name string
}

func (e NotFoundError) Error() string {
	return "secret not found: " + e.Name
}

// IsNotFound reports whether err indicates an absent secret.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
