package port

import (
	"context"
	"encoding/json"
)

// Settings store keys owned by the portfolio service.
const (
	KeyPositions = "positions"
	KeySnapshot  = "snapshot"
	KeyMeta      = "meta"
)

// SettingsStore is a durable key -> JSON document store. Get returns
// (nil, nil) when the key has never been written.
type SettingsStore interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Close() error
}
