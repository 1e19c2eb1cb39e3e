package port

import (
	"context"

	"folio/internal/domain"
)

// LatestPrices is the merged result of a quote fetch. AsOf is the freshest
// trade timestamp (RFC 3339) across all returned quotes, empty when the
// provider returned no trades at all.
type LatestPrices struct {
	Prices domain.PriceMap
	AsOf   string
}

// QuoteProvider fetches the latest trade price for a batch of symbols.
type QuoteProvider interface {
	FetchLatestPrices(ctx context.Context, symbols []string) (LatestPrices, error)
}
