package domain

import "time"

// BuildSnapshot combines validated positions with a price map into a full
// valuation snapshot. It always succeeds; an empty position list yields zero
// totals and an empty positions array.
//
// A price of exactly 0 is treated the same as a missing quote: lastPrice is
// reported as returned, but marketValue and P&L come back nil. An asset
// genuinely worth zero is therefore valued as "no quote". Kept as-is for
// wire compatibility with existing clients.
func BuildSnapshot(positions []Position, prices PriceMap, meta Meta, now time.Time) Snapshot {
	enriched := make([]EnrichedPosition, 0, len(positions))
	var totalCostBasis, totalMarketValue, totalPnL float64

	for _, p := range positions {
		lastPrice := prices[p.Symbol]

		costBasis := 0.0
		switch {
		case p.CostBasis != nil:
			costBasis = *p.CostBasis
		case p.AvgCost != nil && *p.AvgCost != 0:
			costBasis = *p.AvgCost * p.Shares
		}

		var marketValue, pnl, pnlPct *float64
		if lastPrice != nil && *lastPrice != 0 {
			mv := p.Shares * *lastPrice
			d := mv - costBasis
			marketValue = &mv
			pnl = &d
			if costBasis != 0 {
				pct := d / costBasis * 100
				pnlPct = &pct
			}
		}

		totalCostBasis += costBasis
		if marketValue != nil {
			totalMarketValue += *marketValue
		}
		if pnl != nil {
			totalPnL += *pnl
		}

		enriched = append(enriched, EnrichedPosition{
			Symbol:           p.Symbol,
			Shares:           p.Shares,
			AvgCost:          p.AvgCost,
			CostBasis:        costBasis,
			LastPrice:        lastPrice,
			MarketValue:      marketValue,
			UnrealizedPnL:    pnl,
			UnrealizedPnLPct: pnlPct,
		})
	}

	var totalPct *float64
	if totalCostBasis != 0 {
		pct := totalPnL / totalCostBasis * 100
		totalPct = &pct
	}

	return Snapshot{
		GeneratedAt:           now.UTC().Format(time.RFC3339Nano),
		LastRefreshAt:         meta.LastRefreshAt,
		TotalCostBasis:        totalCostBasis,
		TotalMarketValue:      totalMarketValue,
		TotalUnrealizedPnL:    totalPnL,
		TotalUnrealizedPnLPct: totalPct,
		Positions:             enriched,
	}
}
