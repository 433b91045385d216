package marketdata

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stockfolio/internal/logger"
)

const (
	defaultQuoteTTL     = 45 * time.Second
	defaultRequestDelay = 350 * time.Millisecond

	// subBatchSize is how many cache-miss symbols a single batch chunk
	// carries; chunks run with the same bound on concurrency.
	subBatchSize = 4

	maxSearchResults = 10

	commonStockType = "Common Stock"
)

type cachedQuote struct {
	quote     Quote
	fetchedAt time.Time
}

type cachedBars struct {
	bars      *Bars
	fetchedAt time.Time
}

// Gateway is the single process-wide entry point for market data. It owns
// a TTL cache and a serialized FIFO dispatch queue with a minimum
// inter-request delay, so a burst of N cache misses reaches the provider
// over roughly N times the delay rather than concurrently.
//
// All state is instance-scoped and mutex-guarded; construct one Gateway
// per process and share it by reference.
type Gateway struct {
	fetcher Fetcher
	ttl     time.Duration
	delay   time.Duration

	mu      sync.Mutex
	quotes  map[string]cachedQuote
	candles map[string]cachedBars
	rng     *rand.Rand

	queue     chan func()
	closeOnce sync.Once
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithQuoteTTL overrides the quote cache time-to-live.
func WithQuoteTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.ttl = ttl }
}

// WithRequestDelay overrides the minimum delay between provider requests.
func WithRequestDelay(delay time.Duration) Option {
	return func(g *Gateway) { g.delay = delay }
}

// NewGateway creates a Gateway on top of a raw fetcher and starts its
// dispatch worker. Call Close when the process shuts down.
func NewGateway(fetcher Fetcher, opts ...Option) *Gateway {
	g := &Gateway{
		fetcher: fetcher,
		ttl:     defaultQuoteTTL,
		delay:   defaultRequestDelay,
		quotes:  make(map[string]cachedQuote),
		candles: make(map[string]cachedBars),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		queue:   make(chan func(), 256),
	}
	for _, opt := range opts {
		opt(g)
	}

	go g.dispatchLoop()
	return g
}

// Close stops the dispatch worker. Pending jobs are drained first.
func (g *Gateway) Close() {
	g.closeOnce.Do(func() { close(g.queue) })
}

// dispatchLoop drains the FIFO queue, enforcing the minimum gap between
// consecutive provider calls.
func (g *Gateway) dispatchLoop() {
	var last time.Time
	for job := range g.queue {
		if wait := g.delay - time.Since(last); wait > 0 {
			time.Sleep(wait)
		}
		last = time.Now()
		job()
	}
}

// serialize runs fn on the dispatch worker and waits for it to finish.
// The queue drains FIFO regardless of caller context state; a caller
// abandoning its context does not cancel an already-queued job.
func (g *Gateway) serialize(fn func()) {
	done := make(chan struct{})
	g.queue <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// GetQuote returns a quote for the symbol. It is a total function: any
// provider failure, malformed payload, or unconfigured client yields a
// deterministic synthetic quote instead of an error.
func (g *Gateway) GetQuote(ctx context.Context, symbol string) Quote {
	symbol = normalizeSymbol(symbol)

	if q, ok := g.cachedQuote(symbol); ok {
		return q
	}

	var quote Quote
	g.serialize(func() {
		// A concurrent request for the same symbol may have populated
		// the cache while this job sat in the queue.
		if q, ok := g.cachedQuote(symbol); ok {
			quote = q
			return
		}

		fetched, err := g.fetcher.Quote(ctx, symbol)
		if err != nil || fetched == nil {
			if err != nil {
				logger.Get().Debugw("quote fetch failed, using synthetic fallback",
					"symbol", symbol, "error", err.Error())
			}
			g.mu.Lock()
			quote = syntheticQuote(symbol, g.rng)
			g.mu.Unlock()
		} else {
			quote = *fetched
			quote.Source = QuoteSourceReal
		}

		g.storeQuote(symbol, quote)
	})

	return quote
}

// GetQuotesBatch returns quotes for all requested symbols. Cache hits are
// satisfied immediately; misses go through the rate-limited path in
// fixed-size sub-batches with bounded concurrency. The result always
// contains an entry for every distinct input symbol.
func (g *Gateway) GetQuotesBatch(ctx context.Context, symbols []string) map[string]Quote {
	result := make(map[string]Quote, len(symbols))
	var misses []string

	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		symbol := normalizeSymbol(s)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		if q, ok := g.cachedQuote(symbol); ok {
			result[symbol] = q
		} else {
			misses = append(misses, symbol)
		}
	}

	var mu sync.Mutex
	for start := 0; start < len(misses); start += subBatchSize {
		end := min(start+subBatchSize, len(misses))
		chunk := misses[start:end]

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(subBatchSize)
		for _, symbol := range chunk {
			eg.Go(func() error {
				q := g.GetQuote(egCtx, symbol)
				mu.Lock()
				result[symbol] = q
				mu.Unlock()
				return nil
			})
		}
		// Workers never return errors; GetQuote is total.
		_ = eg.Wait()
	}

	return result
}

// SearchSymbols searches the provider for symbols matching the query,
// filtered to common stock, ranked prefix-first, capped at ten results.
// Provider failures yield an empty slice, never an error.
func (g *Gateway) SearchSymbols(ctx context.Context, query string) []SymbolMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return []SymbolMatch{}
	}

	var raw []SymbolMatch
	var err error
	g.serialize(func() {
		raw, err = g.fetcher.Search(ctx, query)
	})
	if err != nil {
		logger.Get().Debugw("symbol search failed", "query", query, "error", err.Error())
		return []SymbolMatch{}
	}

	return rankMatches(raw, query)
}

// rankMatches filters to common stock, keeps case-insensitive substring
// matches over symbol and description, and ranks exact-prefix symbol
// matches ahead of the rest.
func rankMatches(raw []SymbolMatch, query string) []SymbolMatch {
	q := strings.ToUpper(query)

	var matches []SymbolMatch
	for _, m := range raw {
		if m.Type != commonStockType {
			continue
		}
		symbol := strings.ToUpper(m.Symbol)
		desc := strings.ToUpper(m.Description)
		if !strings.Contains(symbol, q) && !strings.Contains(desc, q) {
			continue
		}
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		iPrefix := strings.HasPrefix(strings.ToUpper(matches[i].Symbol), q)
		jPrefix := strings.HasPrefix(strings.ToUpper(matches[j].Symbol), q)
		if iPrefix != jPrefix {
			return iPrefix
		}
		if len(matches[i].Symbol) != len(matches[j].Symbol) {
			return len(matches[i].Symbol) < len(matches[j].Symbol)
		}
		return matches[i].Symbol < matches[j].Symbol
	})

	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}
	if matches == nil {
		matches = []SymbolMatch{}
	}
	return matches
}

// GetCandles returns historical bars for a symbol, or false when the
// provider cannot supply them. There is no synthetic fallback for bars;
// callers degrade gracefully.
func (g *Gateway) GetCandles(ctx context.Context, symbol, resolution string, from, to int64) (*Bars, bool) {
	symbol = normalizeSymbol(symbol)
	key := fmt.Sprintf("%s:%s:%d:%d", symbol, resolution, from, to)

	g.mu.Lock()
	if entry, ok := g.candles[key]; ok && time.Since(entry.fetchedAt) < g.ttl {
		g.mu.Unlock()
		return entry.bars, true
	}
	g.mu.Unlock()

	var bars *Bars
	var err error
	g.serialize(func() {
		bars, err = g.fetcher.Candles(ctx, symbol, resolution, from, to)
	})
	if err != nil || bars == nil {
		if err != nil {
			logger.Get().Debugw("candle fetch failed", "symbol", symbol, "error", err.Error())
		}
		return nil, false
	}

	g.mu.Lock()
	g.candles[key] = cachedBars{bars: bars, fetchedAt: time.Now()}
	g.mu.Unlock()
	return bars, true
}

// Profile fetches descriptive metadata for a symbol. Unlike quotes this
// is not total: resolving a brand-new stock requires real data, so the
// error surfaces to the caller.
func (g *Gateway) Profile(ctx context.Context, symbol string) (*Profile, error) {
	symbol = normalizeSymbol(symbol)

	var profile *Profile
	var err error
	g.serialize(func() {
		profile, err = g.fetcher.Profile(ctx, symbol)
	})
	return profile, err
}

func (g *Gateway) cachedQuote(symbol string) (Quote, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.quotes[symbol]
	if !ok || time.Since(entry.fetchedAt) >= g.ttl {
		return Quote{}, false
	}
	return entry.quote, true
}

func (g *Gateway) storeQuote(symbol string, quote Quote) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.quotes[symbol] = cachedQuote{quote: quote, fetchedAt: time.Now()}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
