package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"folio/internal/application/port"
	"folio/internal/domain"
)

// PortfolioService owns the position list, the derived valuation snapshot and
// the refresh metadata, all persisted through the injected settings store.
type PortfolioService struct {
	store  port.SettingsStore
	quotes port.QuoteProvider
	log    zerolog.Logger
	now    func() time.Time
}

func NewPortfolioService(store port.SettingsStore, quotes port.QuoteProvider, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		store:  store,
		quotes: quotes,
		log:    log.With().Str("component", "portfolio").Logger(),
		now:    time.Now,
	}
}

// RefreshResult is the outcome of a successful price refresh.
type RefreshResult struct {
	Prices   domain.PriceMap
	AsOf     string
	Snapshot domain.Snapshot
}

// Positions returns the stored position list. Missing or malformed stored
// data degrades to an empty list rather than an error; records are coerced
// on read and healed on the next save.
func (s *PortfolioService) Positions(ctx context.Context) ([]domain.PositionInput, error) {
	return s.loadPositions(ctx)
}

// SavePositions normalizes and persists an incoming position list, then
// rebuilds the snapshot against an empty price map: cost-basis figures are
// available immediately, market-derived fields stay null until the next
// refresh.
func (s *PortfolioService) SavePositions(ctx context.Context, inputs []domain.PositionInput) ([]domain.Position, domain.Snapshot, error) {
	positions := domain.Normalize(inputs)
	if err := s.setJSON(ctx, port.KeyPositions, positions); err != nil {
		return nil, domain.Snapshot{}, fmt.Errorf("save positions: %w", err)
	}

	meta := s.loadMeta(ctx)
	snapshot := domain.BuildSnapshot(positions, domain.PriceMap{}, meta, s.now())
	if err := s.setJSON(ctx, port.KeySnapshot, snapshot); err != nil {
		return nil, domain.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}

	s.log.Info().Int("positions", len(positions)).Msg("positions saved")
	return positions, snapshot, nil
}

// Snapshot returns the last persisted snapshot document, or an empty JSON
// object when none has been computed yet.
func (s *PortfolioService) Snapshot(ctx context.Context) (json.RawMessage, error) {
	raw, err := s.store.Get(ctx, port.KeySnapshot)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if raw == nil {
		return json.RawMessage("{}"), nil
	}
	return raw, nil
}

// Meta returns the persisted refresh metadata, zero-valued when absent.
func (s *PortfolioService) Meta(ctx context.Context) (domain.Meta, error) {
	raw, err := s.store.Get(ctx, port.KeyMeta)
	if err != nil {
		return domain.Meta{}, fmt.Errorf("load meta: %w", err)
	}
	var meta domain.Meta
	if raw != nil {
		if err := json.Unmarshal(raw, &meta); err != nil {
			s.log.Warn().Err(err).Msg("stored meta is malformed, starting fresh")
		}
	}
	return meta, nil
}

// RefreshPrices runs the full refresh workflow: load and normalize stored
// positions, fetch latest prices for the deduplicated symbol set, rebuild the
// snapshot and persist snapshot + meta. On a fetch failure the error message
// is recorded into meta.lastError and the previous snapshot is left intact.
func (s *PortfolioService) RefreshPrices(ctx context.Context) (RefreshResult, error) {
	stored, err := s.loadPositions(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	positions := domain.Normalize(stored)
	symbols := uniqueSymbols(positions)

	latest, err := s.quotes.FetchLatestPrices(ctx, symbols)
	if err != nil {
		s.recordRefreshError(ctx, err)
		return RefreshResult{}, err
	}

	meta := s.loadMeta(ctx)
	asOf := latest.AsOf
	if asOf == "" {
		asOf = s.now().UTC().Format(time.RFC3339Nano)
	}
	meta.LastRefreshAt = &asOf
	meta.LastError = nil

	snapshot := domain.BuildSnapshot(positions, latest.Prices, meta, s.now())

	// Snapshot first: if the meta write fails afterwards, the snapshot still
	// reflects the newer prices and meta stays diagnostic-only stale.
	if err := s.setJSON(ctx, port.KeySnapshot, snapshot); err != nil {
		return RefreshResult{}, fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.setJSON(ctx, port.KeyMeta, meta); err != nil {
		return RefreshResult{}, fmt.Errorf("save meta: %w", err)
	}

	s.log.Info().
		Int("symbols", len(symbols)).
		Str("as_of", asOf).
		Msg("prices refreshed")

	return RefreshResult{Prices: latest.Prices, AsOf: asOf, Snapshot: snapshot}, nil
}

func (s *PortfolioService) loadPositions(ctx context.Context) ([]domain.PositionInput, error) {
	raw, err := s.store.Get(ctx, port.KeyPositions)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	if raw == nil {
		return []domain.PositionInput{}, nil
	}
	var inputs []domain.PositionInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		s.log.Warn().Err(err).Msg("stored positions are malformed, treating as empty")
		return []domain.PositionInput{}, nil
	}
	return inputs, nil
}

func (s *PortfolioService) loadMeta(ctx context.Context) domain.Meta {
	meta, err := s.Meta(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load meta")
		return domain.Meta{}
	}
	return meta
}

// recordRefreshError persists the failure into meta.lastError, preserving the
// prior lastRefreshAt. The snapshot is deliberately untouched: stale but
// available beats cleared.
func (s *PortfolioService) recordRefreshError(ctx context.Context, cause error) {
	meta := s.loadMeta(ctx)
	msg := cause.Error()
	meta.LastError = &msg
	if err := s.setJSON(ctx, port.KeyMeta, meta); err != nil {
		s.log.Error().Err(err).Msg("failed to record refresh error")
	}
}

func (s *PortfolioService) setJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, raw)
}

// uniqueSymbols dedupes with set semantics, keeping first-seen order.
func uniqueSymbols(positions []domain.Position) []string {
	seen := make(map[string]struct{}, len(positions))
	out := make([]string, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p.Symbol]; ok {
			continue
		}
		seen[p.Symbol] = struct{}{}
		out = append(out, p.Symbol)
	}
	return out
}
