package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"folio/internal/application/port"
)

// Store is a redis-backed settings store. Each setting lives under
// "<prefix>:settings:<key>", optionally with a TTL.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "folio"
	}
	return &Store{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *Store) key(key string) string {
	return s.prefix + ":settings:" + key
}

func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, error) {
	value, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	return s.rdb.Set(ctx, s.key(key), []byte(value), s.ttl).Err()
}

func (s *Store) Close() error { return s.rdb.Close() }

var _ port.SettingsStore = (*Store)(nil)
