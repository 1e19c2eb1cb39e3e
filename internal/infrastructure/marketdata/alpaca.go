package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"folio/internal/application/port"
	"folio/internal/domain"
)

const (
	// DefaultBaseURL is the Alpaca market data host.
	DefaultBaseURL = "https://data.alpaca.markets"

	stockTradesPath  = "/v2/stocks/trades/latest"
	cryptoTradesPath = "/v1beta3/crypto/us/latest/trades"
)

// ClientConfig configures an Alpaca market data client.
type ClientConfig struct {
	BaseURL string
	Key     string
	Secret  string
	Log     zerolog.Logger
}

// Client fetches latest trade prices from the Alpaca data API.
type Client struct {
	baseURL    string
	key        string
	secret     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates an Alpaca client. BaseURL falls back to the production
// data host when empty.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		key:        cfg.Key,
		secret:     cfg.Secret,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        cfg.Log.With().Str("component", "alpaca").Logger(),
	}
}

type alpacaTrade struct {
	Price     *float64 `json:"p"`
	Timestamp string   `json:"t"`
}

type alpacaTradesResponse struct {
	Trades map[string]*alpacaTrade `json:"trades"`
}

type tradeBatch struct {
	prices domain.PriceMap
	asOf   string
}

// FetchLatestPrices fetches latest trades for a mixed equity/crypto symbol
// set. Equity and crypto batches go out as two concurrent requests; if either
// fails the whole fetch fails and the sibling request is cancelled. Crypto
// results are keyed back by the original input symbol, not pair notation.
func (c *Client) FetchLatestPrices(ctx context.Context, symbols []string) (port.LatestPrices, error) {
	if len(symbols) == 0 {
		return port.LatestPrices{Prices: domain.PriceMap{}}, nil
	}
	if missing := c.missingCredentials(); len(missing) > 0 {
		return port.LatestPrices{}, &CredentialsError{Missing: missing}
	}

	cls := Classify(symbols)

	g, ctx := errgroup.WithContext(ctx)
	var stocks, crypto tradeBatch
	g.Go(func() error {
		var err error
		stocks, err = c.fetchTrades(ctx, stockTradesPath, cls.EquitySymbols)
		return err
	})
	g.Go(func() error {
		var err error
		crypto, err = c.fetchTrades(ctx, cryptoTradesPath, cls.CryptoPairs)
		return err
	})
	if err := g.Wait(); err != nil {
		return port.LatestPrices{}, err
	}

	prices := make(domain.PriceMap, len(symbols))
	for symbol, price := range stocks.prices {
		prices[symbol] = price
	}
	// Every crypto input symbol gets an entry, nil when the provider had no
	// trade for its pair.
	for pair, symbol := range cls.PairToSymbol {
		prices[symbol] = crypto.prices[pair]
	}

	asOf := stocks.asOf
	if crypto.asOf > asOf {
		asOf = crypto.asOf
	}

	c.log.Debug().
		Int("symbols", len(symbols)).
		Int("equities", len(cls.EquitySymbols)).
		Int("crypto", len(cls.CryptoPairs)).
		Str("as_of", asOf).
		Msg("fetched latest prices")

	return port.LatestPrices{Prices: prices, AsOf: asOf}, nil
}

// fetchTrades issues one latest-trades request for a batch of symbols and
// extracts price + freshest trade timestamp per symbol.
func (c *Client) fetchTrades(ctx context.Context, path string, symbols []string) (tradeBatch, error) {
	if len(symbols) == 0 {
		return tradeBatch{prices: domain.PriceMap{}}, nil
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(symbols, ","))
	endpoint := fmt.Sprintf("%s%s?%s", strings.TrimRight(c.baseURL, "/"), path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tradeBatch{}, err
	}
	req.Header.Set("APCA-API-KEY-ID", c.key)
	req.Header.Set("APCA-API-SECRET-KEY", c.secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tradeBatch{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tradeBatch{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return tradeBatch{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed alpacaTradesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return tradeBatch{}, fmt.Errorf("decode trades response: %w", err)
	}

	batch := tradeBatch{prices: make(domain.PriceMap, len(parsed.Trades))}
	for symbol, trade := range parsed.Trades {
		if trade == nil {
			batch.prices[symbol] = nil
			continue
		}
		batch.prices[symbol] = trade.Price
		if trade.Timestamp > batch.asOf {
			batch.asOf = trade.Timestamp
		}
	}
	return batch, nil
}

func (c *Client) missingCredentials() []string {
	var missing []string
	if c.key == "" {
		missing = append(missing, "ALPACA_API_KEY")
	}
	if c.secret == "" {
		missing = append(missing, "ALPACA_API_SECRET")
	}
	return missing
}

var _ port.QuoteProvider = (*Client)(nil)
