package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/mobilsoft/connectors/internal/domain/feed"
)

// MemoryDocumentStore keeps documents in process memory.
// It is used when object storage is disabled; uploads do not survive a restart.
type MemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var _ feed.DocumentStore = (*MemoryDocumentStore)(nil)

// NewMemoryDocumentStore creates an empty store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{docs: make(map[string][]byte)}
}

// Upload stores a copy of data under key
func (s *MemoryDocumentStore) Upload(_ context.Context, key string, data []byte, _ string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	s.docs[key] = append([]byte(nil), data...)
	s.mu.Unlock()
	return nil
}

// Download returns a copy of the document stored under key
func (s *MemoryDocumentStore) Download(_ context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	s.mu.RLock()
	data, ok := s.docs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Delete removes the document stored under key
func (s *MemoryDocumentStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	delete(s.docs, key)
	s.mu.Unlock()
	return nil
}
