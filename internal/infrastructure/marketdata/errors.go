package marketdata

import (
	"fmt"
	"strings"
)

// CredentialsError reports missing provider credentials. Raised before any
// request is issued.
type CredentialsError struct {
	Missing []string
}

func (e *CredentialsError) Error() string {
	return fmt.Sprintf("missing alpaca credentials: %s", strings.Join(e.Missing, ", "))
}

// ProviderError is a failed upstream quote request. Body carries the raw
// response so the caller can record the provider's own diagnostics.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("alpaca request failed (http %d): %s", e.StatusCode, e.Body)
}
