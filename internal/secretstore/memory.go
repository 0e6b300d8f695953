package secretstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests and the "memory" store
// type. Writes are full overwrites, matching the durable backends.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the stored value, or NotFoundError.
func (m *MemoryStore) Get(ctx context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[name]
	if !ok {
		return "", NotFoundError{Name: name}
	}
	return value, nil
}

// Put overwrites the stored value.
func (m *MemoryStore) Put(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[name] = value
	return nil
}
