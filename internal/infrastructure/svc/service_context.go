package svc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"folio/internal/application/port"
	"folio/internal/application/service"
	"folio/internal/infrastructure/config"
	"folio/internal/infrastructure/marketdata"
	"folio/internal/infrastructure/storage"
	compositestore "folio/internal/infrastructure/storage/composite"
	postgresstore "folio/internal/infrastructure/storage/postgres"
	redisstore "folio/internal/infrastructure/storage/redis"
	sqlitestore "folio/internal/infrastructure/storage/sqlite"
)

// ServiceContext wires storage, the quote provider and the portfolio service
// together. It is the single place where backends are chosen and resources
// are tracked for shutdown.
type ServiceContext struct {
	Config    *config.Config
	Store     port.SettingsStore
	Quotes    *marketdata.Client
	Portfolio *service.PortfolioService

	closerChain []func() error
}

func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Config:      cfg,
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeStorage(ctx); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}

	sc.Quotes = marketdata.NewClient(marketdata.ClientConfig{
		BaseURL: cfg.Alpaca.BaseURL,
		Key:     cfg.Alpaca.Key,
		Secret:  cfg.Alpaca.Secret,
		Log:     log.Logger,
	})
	sc.Portfolio = service.NewPortfolioService(sc.Store, sc.Quotes, log.Logger)

	return sc, nil
}

// initializeStorage builds the primary backend plus any configured mirrors
// behind a composite write-through store.
func (sc *ServiceContext) initializeStorage(ctx context.Context) error {
	primary, err := sc.buildStore(ctx, sc.Config.Storage.Backend)
	if err != nil {
		return err
	}
	stores := []port.SettingsStore{primary}
	for _, mirror := range sc.Config.Storage.Mirrors {
		s, err := sc.buildStore(ctx, mirror)
		if err != nil {
			return fmt.Errorf("mirror %q: %w", mirror, err)
		}
		stores = append(stores, s)
	}

	if len(stores) == 1 {
		sc.Store = primary
	} else {
		sc.Store = compositestore.New(stores...)
	}
	return nil
}

func (sc *ServiceContext) buildStore(ctx context.Context, backend string) (port.SettingsStore, error) {
	switch backend {
	case "sqlite":
		store, err := sqlitestore.New(sc.Config.Storage.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite store creation failed: %w", err)
		}
		sc.addCloser("sqlite", store.Close)
		log.Info().Str("path", sc.Config.Storage.SQLite.Path).Msg("sqlite store initialized")
		return store, nil

	case "postgres":
		store, err := postgresstore.New(sc.Config.Storage.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres store creation failed: %w", err)
		}
		sc.addCloser("postgres", store.Close)
		log.Info().Msg("postgres store initialized")
		return store, nil

	case "redis":
		rdb := redisclient.NewClient(&redisclient.Options{
			Addr:     sc.Config.Storage.Redis.Addr,
			Password: sc.Config.Storage.Redis.Password,
			DB:       sc.Config.Storage.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		ttl := time.Duration(sc.Config.Storage.Redis.TTLSeconds) * time.Second
		store := redisstore.New(rdb, sc.Config.Storage.Redis.Prefix, ttl)
		sc.addCloser("redis", store.Close)
		log.Info().
			Str("addr", sc.Config.Storage.Redis.Addr).
			Int("db", sc.Config.Storage.Redis.DB).
			Msg("redis store initialized")
		return store, nil

	case "memory":
		return storage.NewInMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func (sc *ServiceContext) addCloser(name string, close func() error) {
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Str("store", name).Msg("closing store connection")
		return close()
	})
}

// Seed writes an initial empty position list when the store has never been
// written, so first reads serve [] instead of null.
func (sc *ServiceContext) Seed(ctx context.Context) error {
	raw, err := sc.Store.Get(ctx, port.KeyPositions)
	if err != nil {
		return err
	}
	if raw != nil {
		return nil
	}
	return sc.Store.Set(ctx, port.KeyPositions, json.RawMessage("[]"))
}

// Close releases all resources in reverse initialization order.
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	return nil
}
