// Package marketdata wraps the external market-data provider behind a
// caching, rate-limited gateway. Every quote lookup is a total function:
// when the provider is unreachable, unconfigured, or returns garbage, the
// gateway degrades to deterministic synthetic quotes instead of failing.
package marketdata

import "time"

// QuoteSource records the provenance of a quote so that tests and audits
// can distinguish genuine market data from fallback values.
type QuoteSource string

const (
	// QuoteSourceReal marks a quote fetched from the external provider.
	QuoteSourceReal QuoteSource = "real"
	// QuoteSourceSynthetic marks a deterministic fallback quote.
	QuoteSourceSynthetic QuoteSource = "synthetic"
)

// Quote is a point-in-time price snapshot for a symbol.
type Quote struct {
	Symbol        string      `json:"symbol"`
	Current       float64     `json:"current"`
	Change        float64     `json:"change"`
	PercentChange float64     `json:"percent_change"`
	High          float64     `json:"high"`
	Low           float64     `json:"low"`
	Open          float64     `json:"open"`
	PrevClose     float64     `json:"prev_close"`
	Timestamp     time.Time   `json:"timestamp"`
	Source        QuoteSource `json:"source"`
}

// SymbolMatch is a single symbol-search result.
type SymbolMatch struct {
	Symbol        string `json:"symbol"`
	DisplaySymbol string `json:"display_symbol"`
	Description   string `json:"description"`
	Type          string `json:"type"`
}

// Bars holds OHLCV candle arrays for one symbol over one range. All
// slices have equal length.
type Bars struct {
	Opens      []float64 `json:"opens"`
	Highs      []float64 `json:"highs"`
	Lows       []float64 `json:"lows"`
	Closes     []float64 `json:"closes"`
	Volumes    []int64   `json:"volumes"`
	Timestamps []int64   `json:"timestamps"`
}

// Profile carries the descriptive metadata used to resolve a new stock.
type Profile struct {
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}
