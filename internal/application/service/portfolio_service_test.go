package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/application/port"
	"folio/internal/domain"
)

type mockStore struct {
	values  map[string]json.RawMessage
	setErr  error
	getErr  error
	setKeys []string
}

func newMockStore() *mockStore {
	return &mockStore{values: make(map[string]json.RawMessage)}
}

func (m *mockStore) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *mockStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.setKeys = append(m.setKeys, key)
	m.values[key] = value
	return nil
}

func (m *mockStore) Close() error { return nil }

type mockQuotes struct {
	result  port.LatestPrices
	err     error
	symbols []string
	calls   int
}

func (m *mockQuotes) FetchLatestPrices(ctx context.Context, symbols []string) (port.LatestPrices, error) {
	m.calls++
	m.symbols = symbols
	if m.err != nil {
		return port.LatestPrices{}, m.err
	}
	return m.result, nil
}

func flex(v float64) *domain.FlexNumber {
	n := domain.FlexNumber(v)
	return &n
}

func fptr(v float64) *float64 { return &v }

func newService(store port.SettingsStore, quotes port.QuoteProvider) *PortfolioService {
	return NewPortfolioService(store, quotes, zerolog.Nop())
}

func TestSavePositionsPersistsNormalizedListAndSnapshot(t *testing.T) {
	store := newMockStore()
	svc := newService(store, &mockQuotes{})

	positions, snapshot, err := svc.SavePositions(context.Background(), []domain.PositionInput{
		{Symbol: "aapl", Shares: flex(10), AvgCost: flex(150)},
		{Symbol: "", Shares: flex(5)},
	})
	require.NoError(t, err)

	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)

	var stored []domain.Position
	require.NoError(t, json.Unmarshal(store.values[port.KeyPositions], &stored))
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].CostBasis)
	assert.Equal(t, 1500.0, *stored[0].CostBasis)

	// snapshot is rebuilt against an empty price map: cost basis only
	assert.Equal(t, 1500.0, snapshot.TotalCostBasis)
	assert.Zero(t, snapshot.TotalMarketValue)
	require.Len(t, snapshot.Positions, 1)
	assert.Nil(t, snapshot.Positions[0].LastPrice)

	var storedSnap domain.Snapshot
	require.NoError(t, json.Unmarshal(store.values[port.KeySnapshot], &storedSnap))
	assert.Equal(t, snapshot.TotalCostBasis, storedSnap.TotalCostBasis)
}

func TestSavePositionsKeepsLastRefreshAt(t *testing.T) {
	store := newMockStore()
	store.values[port.KeyMeta] = json.RawMessage(`{"lastRefreshAt":"2025-05-31T20:00:00Z","lastError":null}`)
	svc := newService(store, &mockQuotes{})

	_, snapshot, err := svc.SavePositions(context.Background(), []domain.PositionInput{
		{Symbol: "AAPL", Shares: flex(1), AvgCost: flex(100)},
	})
	require.NoError(t, err)
	require.NotNil(t, snapshot.LastRefreshAt)
	assert.Equal(t, "2025-05-31T20:00:00Z", *snapshot.LastRefreshAt)
}

func TestRefreshPricesSuccess(t *testing.T) {
	store := newMockStore()
	store.values[port.KeyPositions] = json.RawMessage(`[
		{"symbol":"AAPL","shares":2,"avgCost":100,"costBasis":200},
		{"symbol":"AAPL","shares":3,"avgCost":110,"costBasis":330},
		{"symbol":"BTC","shares":0.5,"avgCost":40000,"costBasis":20000}
	]`)
	quotes := &mockQuotes{result: port.LatestPrices{
		Prices: domain.PriceMap{"AAPL": fptr(150), "BTC": fptr(60000)},
		AsOf:   "2025-06-01T16:01:00Z",
	}}
	svc := newService(store, quotes)

	result, err := svc.RefreshPrices(context.Background())
	require.NoError(t, err)

	// symbols deduplicated with set semantics
	assert.Equal(t, []string{"AAPL", "BTC"}, quotes.symbols)
	assert.Equal(t, "2025-06-01T16:01:00Z", result.AsOf)

	var meta domain.Meta
	require.NoError(t, json.Unmarshal(store.values[port.KeyMeta], &meta))
	require.NotNil(t, meta.LastRefreshAt)
	assert.Equal(t, "2025-06-01T16:01:00Z", *meta.LastRefreshAt)
	assert.Nil(t, meta.LastError)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(store.values[port.KeySnapshot], &snap))
	assert.Equal(t, 20530.0, snap.TotalCostBasis)
	assert.Equal(t, 2*150.0+3*150.0+0.5*60000.0, snap.TotalMarketValue)

	// snapshot write precedes meta write
	assert.Equal(t, []string{port.KeySnapshot, port.KeyMeta}, store.setKeys)
}

func TestRefreshPricesSuccessClearsPreviousError(t *testing.T) {
	store := newMockStore()
	store.values[port.KeyPositions] = json.RawMessage(`[{"symbol":"AAPL","shares":1,"avgCost":100}]`)
	store.values[port.KeyMeta] = json.RawMessage(`{"lastRefreshAt":"2025-05-31T20:00:00Z","lastError":"previous failure"}`)
	quotes := &mockQuotes{result: port.LatestPrices{
		Prices: domain.PriceMap{"AAPL": fptr(150)},
		AsOf:   "2025-06-01T16:01:00Z",
	}}
	svc := newService(store, quotes)

	_, err := svc.RefreshPrices(context.Background())
	require.NoError(t, err)

	var meta domain.Meta
	require.NoError(t, json.Unmarshal(store.values[port.KeyMeta], &meta))
	assert.Nil(t, meta.LastError)
}

func TestRefreshPricesFailureRecordsErrorAndKeepsSnapshot(t *testing.T) {
	store := newMockStore()
	store.values[port.KeyPositions] = json.RawMessage(`[{"symbol":"AAPL","shares":1,"avgCost":100}]`)
	store.values[port.KeySnapshot] = json.RawMessage(`{"totalCostBasis":100}`)
	store.values[port.KeyMeta] = json.RawMessage(`{"lastRefreshAt":"2025-05-31T20:00:00Z","lastError":null}`)
	quotes := &mockQuotes{err: errors.New("alpaca request failed (http 500): boom")}
	svc := newService(store, quotes)

	_, err := svc.RefreshPrices(context.Background())
	require.Error(t, err)

	// prior snapshot untouched
	assert.JSONEq(t, `{"totalCostBasis":100}`, string(store.values[port.KeySnapshot]))

	var meta domain.Meta
	require.NoError(t, json.Unmarshal(store.values[port.KeyMeta], &meta))
	require.NotNil(t, meta.LastError)
	assert.Contains(t, *meta.LastError, "boom")
	// prior lastRefreshAt preserved
	require.NotNil(t, meta.LastRefreshAt)
	assert.Equal(t, "2025-05-31T20:00:00Z", *meta.LastRefreshAt)
}

func TestRefreshPricesEmptyPortfolioFallsBackToNow(t *testing.T) {
	store := newMockStore()
	quotes := &mockQuotes{result: port.LatestPrices{Prices: domain.PriceMap{}}}
	svc := newService(store, quotes)

	result, err := svc.RefreshPrices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, quotes.symbols)
	assert.NotEmpty(t, result.AsOf, "asOf falls back to wall clock when the provider had no trades")

	var meta domain.Meta
	require.NoError(t, json.Unmarshal(store.values[port.KeyMeta], &meta))
	require.NotNil(t, meta.LastRefreshAt)
	assert.Equal(t, result.AsOf, *meta.LastRefreshAt)
}

func TestRefreshPricesMalformedStoredPositionsSelfHeal(t *testing.T) {
	store := newMockStore()
	store.values[port.KeyPositions] = json.RawMessage(`[
		{"symbol":"AAPL","shares":"2","avgCost":"100"},
		{"symbol":"JUNK","shares":"not-a-number"}
	]`)
	quotes := &mockQuotes{result: port.LatestPrices{
		Prices: domain.PriceMap{"AAPL": fptr(150)},
		AsOf:   "2025-06-01T16:01:00Z",
	}}
	svc := newService(store, quotes)

	_, err := svc.RefreshPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL"}, quotes.symbols, "coerced record kept, junk record dropped")
}

func TestSnapshotDefaultsToEmptyObject(t *testing.T) {
	svc := newService(newMockStore(), &mockQuotes{})

	raw, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestPositionsStoreFailurePropagates(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("disk gone")
	svc := newService(store, &mockQuotes{})

	_, err := svc.Positions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}
