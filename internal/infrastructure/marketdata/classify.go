package marketdata

import "strings"

// Tickers routed to the crypto trades endpoint even without pair notation.
var cryptoTickers = map[string]struct{}{
	"BTC":   {},
	"ETH":   {},
	"SOL":   {},
	"USDC":  {},
	"USDT":  {},
	"AVAX":  {},
	"ADA":   {},
	"DOGE":  {},
	"LTC":   {},
	"XRP":   {},
	"BNB":   {},
	"DOT":   {},
	"MATIC": {},
	"LINK":  {},
	"ATOM":  {},
	"UNI":   {},
}

// Classification partitions a symbol set into equity and crypto buckets.
// PairToSymbol maps the provider pair notation back to the original input
// symbol so crypto results can be re-merged after the fetch.
type Classification struct {
	EquitySymbols []string
	CryptoPairs   []string
	PairToSymbol  map[string]string
}

// IsCryptoSymbol reports whether a symbol should be quoted as crypto: it
// either already carries pair notation or sits on the known-ticker list.
func IsCryptoSymbol(symbol string) bool {
	if strings.Contains(symbol, "/") {
		return true
	}
	_, ok := cryptoTickers[symbol]
	return ok
}

// NormalizeCryptoPair converts a bare crypto ticker to BASE/USD pair
// notation. Symbols already in pair notation pass through unchanged.
func NormalizeCryptoPair(symbol string) string {
	if strings.Contains(symbol, "/") {
		return symbol
	}
	return symbol + "/USD"
}

// Classify splits symbols into equity symbols and crypto pairs. Input order
// is preserved within each bucket.
func Classify(symbols []string) Classification {
	c := Classification{
		EquitySymbols: make([]string, 0, len(symbols)),
		CryptoPairs:   make([]string, 0),
		PairToSymbol:  make(map[string]string),
	}
	for _, symbol := range symbols {
		if IsCryptoSymbol(symbol) {
			pair := NormalizeCryptoPair(symbol)
			c.CryptoPairs = append(c.CryptoPairs, pair)
			c.PairToSymbol[pair] = symbol
			continue
		}
		c.EquitySymbols = append(c.EquitySymbols, symbol)
	}
	return c
}
