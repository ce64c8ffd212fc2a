// Package market fetches live quote snapshots for a listed symbol.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"forecast_agent/pkg/core/logger"
)

const (
	// DefaultTimeout bounds a single quote request.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit is requests per second.
	DefaultRateLimit = 2

	// DefaultCacheTTL is how long a cached snapshot is served.
	DefaultCacheTTL = 60 * time.Second
)

// ErrIncompleteQuote is returned when the endpoint omits price, previous close
// or either end of the day range.
var ErrIncompleteQuote = errors.New("quote is missing price, previous_close or day_range")

// DayRange is the intraday low and high.
type DayRange struct {
	Low  *float64 `json:"low"`
	High *float64 `json:"high"`
}

// Snapshot is a quote with the derived day change.
type Snapshot struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	PreviousClose float64   `json:"previous_close"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	DayRange      DayRange  `json:"day_range"`
	Currency      string    `json:"currency,omitempty"`
	Exchange      string    `json:"exchange,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

type quoteResponse struct {
	Price         *float64  `json:"price"`
	PreviousClose *float64  `json:"previous_close"`
	DayRange      *DayRange `json:"day_range"`
	Currency      string    `json:"currency"`
	Exchange      string    `json:"exchange"`
}

// APIError is a non-200 response from the quote endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Client talks to the quote endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      Cache
	cacheTTL   time.Duration
	now        func() time.Time
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets requests per second. Zero or less disables throttling.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(math.Ceil(requestsPerSecond))
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithCache serves snapshots from cache for ttl.
func WithCache(cache Cache, ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// NewClient creates a quote client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote returns the current snapshot for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Snapshot, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	if c.baseURL == "" {
		return nil, errors.New("market base URL is not configured")
	}

	key := cacheKey(symbol)
	if snap := c.cached(ctx, key); snap != nil {
		return snap, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := c.baseURL + "/quote/" + url.PathEscape(symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	logger.Log.WithField("symbol", symbol).Debug("market quote request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), Endpoint: endpoint}
	}

	var q quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if q.Price == nil || q.PreviousClose == nil || q.DayRange == nil || q.DayRange.Low == nil || q.DayRange.High == nil {
		return nil, ErrIncompleteQuote
	}

	snap := &Snapshot{
		Symbol:        symbol,
		Price:         *q.Price,
		PreviousClose: *q.PreviousClose,
		DayRange:      *q.DayRange,
		Currency:      q.Currency,
		Exchange:      q.Exchange,
		FetchedAt:     c.now().UTC(),
	}
	snap.Change = round2(snap.Price - snap.PreviousClose)
	if snap.PreviousClose != 0 {
		snap.ChangePercent = round2((snap.Price - snap.PreviousClose) / snap.PreviousClose * 100)
	}

	c.store(ctx, key, snap)
	return snap, nil
}

func (c *Client) cached(ctx context.Context, key string) *Snapshot {
	if c.cache == nil {
		return nil
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			logger.Log.Debugf("market cache read %s: %v", key, err)
		}
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil
	}
	return &snap
}

func (c *Client) store(ctx context.Context, key string, snap *Snapshot) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		logger.Log.Debugf("market cache write %s: %v", key, err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
