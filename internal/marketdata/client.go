package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Fetcher is the raw provider contract the gateway sits on top of.
// Implementations return errors freely; the gateway decides what
// callers see.
type Fetcher interface {
	Quote(ctx context.Context, symbol string) (*Quote, error)
	Search(ctx context.Context, query string) ([]SymbolMatch, error)
	Candles(ctx context.Context, symbol, resolution string, from, to int64) (*Bars, error)
	Profile(ctx context.Context, symbol string) (*Profile, error)
}

// Client fetches market data from a Finnhub-style REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a market-data client. An empty API key is allowed;
// every call will then fail and the gateway falls back to synthetic data.
func NewClient(httpClient *http.Client, baseURL, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// quoteResponse is the provider's /quote payload. A missing or zero
// current-price field marks the payload as malformed.
type quoteResponse struct {
	Current       *float64 `json:"c"`
	Change        float64  `json:"d"`
	PercentChange float64  `json:"dp"`
	High          float64  `json:"h"`
	Low           float64  `json:"l"`
	Open          float64  `json:"o"`
	PrevClose     float64  `json:"pc"`
	Timestamp     int64    `json:"t"`
}

type searchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

type candleResponse struct {
	Opens      []float64 `json:"o"`
	Highs      []float64 `json:"h"`
	Lows       []float64 `json:"l"`
	Closes     []float64 `json:"c"`
	Volumes    []int64   `json:"v"`
	Timestamps []int64   `json:"t"`
	Status     string    `json:"s"`
}

type profileResponse struct {
	Name     string `json:"name"`
	Industry string `json:"finnhubIndustry"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	Ticker   string `json:"ticker"`
}

// Quote fetches the current quote for a symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var resp quoteResponse
	if err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return nil, err
	}
	if resp.Current == nil || *resp.Current <= 0 {
		return nil, fmt.Errorf("malformed quote payload for %s: missing current price", symbol)
	}

	ts := time.Now().UTC()
	if resp.Timestamp > 0 {
		ts = time.Unix(resp.Timestamp, 0).UTC()
	}
	return &Quote{
		Symbol:        symbol,
		Current:       *resp.Current,
		Change:        resp.Change,
		PercentChange: resp.PercentChange,
		High:          resp.High,
		Low:           resp.Low,
		Open:          resp.Open,
		PrevClose:     resp.PrevClose,
		Timestamp:     ts,
		Source:        QuoteSourceReal,
	}, nil
}

// Search runs a symbol search against the provider.
func (c *Client) Search(ctx context.Context, query string) ([]SymbolMatch, error) {
	var resp searchResponse
	if err := c.get(ctx, "/search", url.Values{"q": {query}}, &resp); err != nil {
		return nil, err
	}

	matches := make([]SymbolMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, SymbolMatch{
			Symbol:        r.Symbol,
			DisplaySymbol: r.DisplaySymbol,
			Description:   r.Description,
			Type:          r.Type,
		})
	}
	return matches, nil
}

// Candles fetches historical bars. A non-"ok" status is treated as a failure.
func (c *Client) Candles(ctx context.Context, symbol, resolution string, from, to int64) (*Bars, error) {
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {resolution},
		"from":       {fmt.Sprintf("%d", from)},
		"to":         {fmt.Sprintf("%d", to)},
	}
	var resp candleResponse
	if err := c.get(ctx, "/stock/candle", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("candle status %q for %s", resp.Status, symbol)
	}
	if len(resp.Closes) == 0 || len(resp.Closes) != len(resp.Timestamps) {
		return nil, fmt.Errorf("malformed candle payload for %s", symbol)
	}

	return &Bars{
		Opens:      resp.Opens,
		Highs:      resp.Highs,
		Lows:       resp.Lows,
		Closes:     resp.Closes,
		Volumes:    resp.Volumes,
		Timestamps: resp.Timestamps,
	}, nil
}

// Profile fetches company metadata for a symbol. An empty payload means
// the provider does not know the symbol.
func (c *Client) Profile(ctx context.Context, symbol string) (*Profile, error) {
	var resp profileResponse
	if err := c.get(ctx, "/stock/profile2", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return nil, err
	}
	if resp.Name == "" && resp.Ticker == "" {
		return nil, fmt.Errorf("no profile data for %s", symbol)
	}

	return &Profile{
		Name:     resp.Name,
		Sector:   resp.Industry,
		Exchange: resp.Exchange,
		Currency: resp.Currency,
	}, nil
}

// get performs a provider GET request and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.apiKey == "" {
		return fmt.Errorf("market data provider is not configured")
	}

	params.Set("token", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
