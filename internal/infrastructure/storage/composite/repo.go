package composite

import (
	"context"
	"encoding/json"

	"folio/internal/application/port"
)

// Store fans writes out to several settings stores and reads from the first
// (the primary). Mirrors are best-effort durable copies; the first write
// error is reported after all stores have been attempted.
type Store struct {
	stores []port.SettingsStore
}

func New(stores ...port.SettingsStore) *Store {
	out := make([]port.SettingsStore, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Store{stores: out}
}

func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if len(s.stores) == 0 {
		return nil, nil
	}
	return s.stores[0].Get(ctx, key)
}

func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	var firstErr error
	for _, store := range s.stores {
		if err := store.Set(ctx, key, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Store) Close() error {
	var firstErr error
	for _, store := range s.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.SettingsStore = (*Store)(nil)
