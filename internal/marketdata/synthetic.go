package marketdata

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// maxSyntheticChangePct bounds the random change applied to fallback quotes.
const maxSyntheticChangePct = 3.0

// syntheticQuote builds a deterministic fallback quote for a symbol. The
// baseline price is derived from a hash of the symbol, so repeated calls
// for the same symbol always agree on the current price; only the change
// fields carry bounded randomness.
func syntheticQuote(symbol string, rng *rand.Rand) Quote {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	seed := h.Sum32()

	// 10.00 .. 509.99
	base := 10 + float64(seed%50000)/100

	pct := (rng.Float64()*2 - 1) * maxSyntheticChangePct
	change := base * pct / 100

	return Quote{
		Symbol:        symbol,
		Current:       base,
		Change:        change,
		PercentChange: pct,
		High:          base * 1.02,
		Low:           base * 0.98,
		Open:          base - change,
		PrevClose:     base - change,
		Timestamp:     time.Now().UTC(),
		Source:        QuoteSourceSynthetic,
	}
}
