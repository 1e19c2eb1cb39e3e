package storage

import (
	"context"
	"encoding/json"
	"sync"

	"folio/internal/application/port"
)

// InMemoryStore is a map-backed settings store. Used in tests and as the
// "memory" backend for throwaway deployments.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{values: make(map[string]json.RawMessage)}
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	s.values[key] = stored
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

var _ port.SettingsStore = (*InMemoryStore)(nil)
