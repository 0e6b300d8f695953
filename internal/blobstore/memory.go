package blobstore

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

// Get reads a stored object, or returns NotFoundError.
func (m *MemoryStore) Get(ctx context.Context, bucket, key string) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[bucket+"/"+key]
	if !ok {
		return Object{}, NotFoundError{Bucket: bucket, Key: key}
	}
	return obj, nil
}

// Put stores an object, overwriting any previous version.
func (m *MemoryStore) Put(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[bucket+"/"+key] = Object{Body: body, Metadata: metadata}
	return nil
}
