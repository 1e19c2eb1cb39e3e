package domain

import (
	"math"
	"testing"
	"time"
)

func fptr(v float64) *float64 { return &v }

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestBuildSnapshotPriceMerge(t *testing.T) {
	positions := Normalize([]PositionInput{
		{Symbol: "AAPL", Shares: flex(2), AvgCost: flex(100)},
	})
	snap := BuildSnapshot(positions, PriceMap{"AAPL": fptr(150)}, Meta{}, testNow)

	if len(snap.Positions) != 1 {
		t.Fatalf("expected 1 enriched position, got %d", len(snap.Positions))
	}
	p := snap.Positions[0]
	if p.MarketValue == nil || *p.MarketValue != 300 {
		t.Errorf("expected marketValue 300, got %v", p.MarketValue)
	}
	if p.UnrealizedPnL == nil || *p.UnrealizedPnL != 100 {
		t.Errorf("expected unrealizedPnL 100, got %v", p.UnrealizedPnL)
	}
	if p.UnrealizedPnLPct == nil || math.Abs(*p.UnrealizedPnLPct-50) > 1e-9 {
		t.Errorf("expected unrealizedPnLPct 50, got %v", p.UnrealizedPnLPct)
	}
	if snap.TotalCostBasis != 200 || snap.TotalMarketValue != 300 || snap.TotalUnrealizedPnL != 100 {
		t.Errorf("unexpected totals: %v %v %v", snap.TotalCostBasis, snap.TotalMarketValue, snap.TotalUnrealizedPnL)
	}
	if snap.TotalUnrealizedPnLPct == nil || math.Abs(*snap.TotalUnrealizedPnLPct-50) > 1e-9 {
		t.Errorf("expected total pct 50, got %v", snap.TotalUnrealizedPnLPct)
	}
}

func TestBuildSnapshotMissingPrice(t *testing.T) {
	positions := Normalize([]PositionInput{
		{Symbol: "AAPL", Shares: flex(2), AvgCost: flex(100)},
	})
	snap := BuildSnapshot(positions, PriceMap{}, Meta{}, testNow)

	p := snap.Positions[0]
	if p.LastPrice != nil || p.MarketValue != nil || p.UnrealizedPnL != nil || p.UnrealizedPnLPct != nil {
		t.Errorf("expected all market fields nil, got %+v", p)
	}
	if p.CostBasis != 200 {
		t.Errorf("expected costBasis 200, got %v", p.CostBasis)
	}
	// null contributions count as zero in sums, cost basis still counts
	if snap.TotalCostBasis != 200 || snap.TotalMarketValue != 0 || snap.TotalUnrealizedPnL != 0 {
		t.Errorf("unexpected totals: %v %v %v", snap.TotalCostBasis, snap.TotalMarketValue, snap.TotalUnrealizedPnL)
	}
}

func TestBuildSnapshotZeroPriceTreatedAsNoQuote(t *testing.T) {
	positions := Normalize([]PositionInput{
		{Symbol: "LUNA", Shares: flex(100), AvgCost: flex(80)},
	})
	snap := BuildSnapshot(positions, PriceMap{"LUNA": fptr(0)}, Meta{}, testNow)

	p := snap.Positions[0]
	if p.LastPrice == nil || *p.LastPrice != 0 {
		t.Errorf("expected lastPrice 0 to be reported, got %v", p.LastPrice)
	}
	if p.MarketValue != nil || p.UnrealizedPnL != nil {
		t.Errorf("expected market fields nil for zero price, got %+v", p)
	}
}

func TestBuildSnapshotNullQuoteEntry(t *testing.T) {
	positions := Normalize([]PositionInput{
		{Symbol: "BTC", Shares: flex(1), AvgCost: flex(30000)},
	})
	snap := BuildSnapshot(positions, PriceMap{"BTC": nil}, Meta{}, testNow)

	p := snap.Positions[0]
	if p.LastPrice != nil || p.MarketValue != nil {
		t.Errorf("expected nil quote to behave like missing, got %+v", p)
	}
}

func TestBuildSnapshotMixedTotals(t *testing.T) {
	positions := Normalize([]PositionInput{
		{Symbol: "AAPL", Shares: flex(2), AvgCost: flex(100)},
		{Symbol: "MSFT", Shares: flex(1), AvgCost: flex(300)},
	})
	snap := BuildSnapshot(positions, PriceMap{"AAPL": fptr(150)}, Meta{}, testNow)

	// MSFT has no quote: contributes cost basis only
	if snap.TotalCostBasis != 500 {
		t.Errorf("expected totalCostBasis 500, got %v", snap.TotalCostBasis)
	}
	if snap.TotalMarketValue != 300 {
		t.Errorf("expected totalMarketValue 300, got %v", snap.TotalMarketValue)
	}
	if snap.TotalUnrealizedPnL != 100 {
		t.Errorf("expected totalUnrealizedPnL 100, got %v", snap.TotalUnrealizedPnL)
	}
	if snap.TotalUnrealizedPnLPct == nil || math.Abs(*snap.TotalUnrealizedPnLPct-20) > 1e-9 {
		t.Errorf("expected total pct 20, got %v", snap.TotalUnrealizedPnLPct)
	}
}

func TestBuildSnapshotEmptyPositions(t *testing.T) {
	snap := BuildSnapshot(nil, PriceMap{}, Meta{}, testNow)

	if snap.TotalCostBasis != 0 || snap.TotalMarketValue != 0 || snap.TotalUnrealizedPnL != 0 {
		t.Errorf("expected zero totals, got %+v", snap)
	}
	if snap.TotalUnrealizedPnLPct != nil {
		t.Errorf("expected nil total pct, got %v", *snap.TotalUnrealizedPnLPct)
	}
	if snap.Positions == nil || len(snap.Positions) != 0 {
		t.Errorf("expected empty non-nil positions slice, got %v", snap.Positions)
	}
}

func TestBuildSnapshotMetaPassthrough(t *testing.T) {
	at := "2025-05-31T20:00:00Z"
	snap := BuildSnapshot(nil, PriceMap{}, Meta{LastRefreshAt: &at}, testNow)

	if snap.LastRefreshAt == nil || *snap.LastRefreshAt != at {
		t.Errorf("expected lastRefreshAt passthrough, got %v", snap.LastRefreshAt)
	}
	if snap.GeneratedAt != testNow.Format(time.RFC3339Nano) {
		t.Errorf("unexpected generatedAt %q", snap.GeneratedAt)
	}
}

func TestBuildSnapshotIdempotent(t *testing.T) {
	positions := Normalize([]PositionInput{
		{Symbol: "AAPL", Shares: flex(2), AvgCost: flex(100)},
		{Symbol: "BTC", Shares: flex(0.5), AvgCost: flex(40000)},
	})
	prices := PriceMap{"AAPL": fptr(150), "BTC": fptr(60000)}

	a := BuildSnapshot(positions, prices, Meta{}, testNow)
	b := BuildSnapshot(positions, prices, Meta{}, testNow)

	if a.TotalCostBasis != b.TotalCostBasis ||
		a.TotalMarketValue != b.TotalMarketValue ||
		a.TotalUnrealizedPnL != b.TotalUnrealizedPnL {
		t.Errorf("totals differ between identical calls: %+v vs %+v", a, b)
	}
	for i := range a.Positions {
		if *a.Positions[i].MarketValue != *b.Positions[i].MarketValue {
			t.Errorf("position %d differs between identical calls", i)
		}
	}
}
