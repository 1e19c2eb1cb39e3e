package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexNumber is a float64 that tolerates loose JSON: plain numbers, numeric
// strings ("150.25") and junk. Unparseable values decode to NaN so that
// Normalize can apply its drop/null policy instead of the decoder erroring.
type FlexNumber float64

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*n = FlexNumber(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*n = FlexNumber(math.NaN())
			return nil
		}
		*n = FlexNumber(v)
		return nil
	}
	*n = FlexNumber(math.NaN())
	return nil
}

// MarshalJSON writes NaN back out as null so a healed record stays valid
// JSON.
func (n FlexNumber) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(n))
}

// Float64 dereferences with NaN for absent values.
func (n *FlexNumber) Float64() float64 {
	if n == nil {
		return math.NaN()
	}
	return float64(*n)
}

// PositionInput is a position record as submitted by the client or read back
// from the settings store. Untrusted: fields may be missing, null, or carry
// the wrong JSON type.
type PositionInput struct {
	Symbol    string      `json:"symbol"`
	Shares    *FlexNumber `json:"shares"`
	AvgCost   *FlexNumber `json:"avgCost"`
	CostBasis *FlexNumber `json:"costBasis"`
}

// Position is a validated holding. Produced only by Normalize.
type Position struct {
	Symbol    string   `json:"symbol"`
	Shares    float64  `json:"shares"`
	AvgCost   *float64 `json:"avgCost"`
	CostBasis *float64 `json:"costBasis"`
}

// PriceMap maps a symbol (or crypto pair) to its latest trade price.
// A nil value means the provider returned no quote for the symbol.
type PriceMap map[string]*float64

// Meta is the persisted refresh bookkeeping record. Timestamps are RFC 3339
// strings so that lexicographic order equals chronological order.
type Meta struct {
	LastRefreshAt *string `json:"lastRefreshAt"`
	LastError     *string `json:"lastError"`
}

// EnrichedPosition is a Position joined with the latest quote. Market-derived
// fields are null when no usable price was available.
type EnrichedPosition struct {
	Symbol           string   `json:"symbol"`
	Shares           float64  `json:"shares"`
	AvgCost          *float64 `json:"avgCost"`
	CostBasis        float64  `json:"costBasis"`
	LastPrice        *float64 `json:"lastPrice"`
	MarketValue      *float64 `json:"marketValue"`
	UnrealizedPnL    *float64 `json:"unrealizedPnL"`
	UnrealizedPnLPct *float64 `json:"unrealizedPnLPct"`
}

// Snapshot is the derived valuation of the whole portfolio. It is recomputed
// wholesale on every save or refresh and never patched in place.
type Snapshot struct {
	GeneratedAt           string             `json:"generatedAt"`
	LastRefreshAt         *string            `json:"lastRefreshAt"`
	TotalCostBasis        float64            `json:"totalCostBasis"`
	TotalMarketValue      float64            `json:"totalMarketValue"`
	TotalUnrealizedPnL    float64            `json:"totalUnrealizedPnL"`
	TotalUnrealizedPnLPct *float64           `json:"totalUnrealizedPnLPct"`
	Positions             []EnrichedPosition `json:"positions"`
}
