package domain

import (
	"math"
	"strings"
)

// Normalize sanitizes raw position records into validated Positions.
//
// Symbols are trimmed and uppercased. costBasis is derived from
// avgCost*shares when not explicitly supplied. Records with an empty symbol
// or without a finite positive share count are dropped; a non-finite avgCost
// or costBasis is stored as nil instead of dropping the record. Order of the
// surviving records is preserved.
func Normalize(inputs []PositionInput) []Position {
	out := make([]Position, 0, len(inputs))
	for _, in := range inputs {
		symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
		shares := in.Shares.Float64()

		var avgCost *float64
		if in.AvgCost != nil {
			v := in.AvgCost.Float64()
			avgCost = &v
		}

		var costBasis *float64
		switch {
		case in.CostBasis != nil:
			v := in.CostBasis.Float64()
			costBasis = &v
		case avgCost != nil:
			v := shares * *avgCost
			costBasis = &v
		}

		if avgCost != nil && !isFinite(*avgCost) {
			avgCost = nil
		}
		if costBasis != nil && !isFinite(*costBasis) {
			costBasis = nil
		}

		if symbol == "" || !isFinite(shares) || shares <= 0 {
			continue
		}
		out = append(out, Position{
			Symbol:    symbol,
			Shares:    shares,
			AvgCost:   avgCost,
			CostBasis: costBasis,
		})
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
