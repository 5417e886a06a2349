// Package client provides the authenticated HTTP client for the
// Wildberries seller APIs: the content host (card catalog) and the
// discounts-prices host (price listings).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API hosts.
const (
	// ContentBaseURL serves the product card catalog.
	ContentBaseURL = "https://suppliers-api.wildberries.ru"

	// PricesBaseURL serves price and discount listings.
	PricesBaseURL = "https://discounts-prices-api.wildberries.ru"
)

// MaxCardsPageSize is the largest page the cards cursor endpoint accepts.
const MaxCardsPageSize = 1000

// Prometheus metrics for API requests.
var (
	wbRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wb_requests_total",
		Help: "Total Wildberries API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	wbRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wb_request_duration_seconds",
		Help:    "Wildberries API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	wbErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wb_errors_total",
		Help: "Total Wildberries API errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// APIKey is the raw cabinet credential, sent verbatim in the
	// Authorization header (with or without a Bearer prefix).
	APIKey string

	// RequestDelay is the fixed pause after every completed call. This
	// self-throttle applies on top of the fetcher's rate window.
	RequestDelay time.Duration

	// Timeout per request.
	Timeout time.Duration

	// ContentURL and PricesURL override the production hosts (tests).
	ContentURL string
	PricesURL  string
}

// DefaultConfig returns a configuration with production hosts and the
// delays the original tooling shipped with.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:       apiKey,
		RequestDelay: 500 * time.Millisecond,
		Timeout:      30 * time.Second,
		ContentURL:   ContentBaseURL,
		PricesURL:    PricesBaseURL,
	}
}

// Client is the Wildberries API client for one cabinet credential.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ContentURL == "" {
		cfg.ContentURL = ContentBaseURL
	}
	if cfg.PricesURL == "" {
		cfg.PricesURL = PricesBaseURL
	}

	logger := log.With().Str("component", "wb-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Response is a completed API call. Body is fully read; StatusCode may be
// any HTTP status, including errors - callers decide how to react.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// do executes one API call. Transport failures come back as *APIError
// with a network or dns class; HTTP-level errors are returned as a
// Response for the caller to inspect. After every completed call the
// client sleeps for the configured fixed delay.
func (c *Client) do(ctx context.Context, method, baseURL, endpoint string, params url.Values, body any) (*Response, error) {
	fullURL := baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	wbRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		class := classifyTransportError(err)
		wbErrorsTotal.WithLabelValues(string(class)).Inc()
		wbRequestsTotal.WithLabelValues(endpoint, "transport_error").Inc()

		if class == ErrorClassDNS {
			c.logger.Error().
				Str("endpoint", endpoint).
				Msg("DNS/network failure, check internet connectivity")
		} else {
			c.logger.Error().
				Err(err).
				Str("endpoint", endpoint).
				Str("method", method).
				Msg("API request failed")
		}

		return nil, &APIError{
			Endpoint: endpoint,
			Class:    class,
			Message:  "transport failure",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		wbErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			Endpoint: endpoint,
			Class:    ErrorClassNetwork,
			Message:  "read response body",
			Err:      err,
		}
	}

	wbRequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := ClassifyStatus(resp.StatusCode)
		wbErrorsTotal.WithLabelValues(string(class)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Str("method", method).
			Int("status", resp.StatusCode).
			Str("body", Truncate(string(data), 200)).
			Msg("API request returned error status")
	} else {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("method", method).
			Int("status", resp.StatusCode).
			Msg("API request completed")
	}

	// Fixed self-throttle after every completed call.
	if c.config.RequestDelay > 0 {
		time.Sleep(c.config.RequestDelay)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// GoodsFilterPost requests prices for a batch of marketplace ids.
// POST /api/v2/list/goods/filter with {"nmList": [...]}.
func (c *Client) GoodsFilterPost(ctx context.Context, nmIDs []int64) (*Response, error) {
	return c.do(ctx, http.MethodPost, c.config.PricesURL, "/api/v2/list/goods/filter", nil,
		map[string][]int64{"nmList": nmIDs})
}

// GoodsFilterGet requests a price listing page.
// GET /api/v2/list/goods/filter?limit=...&offset=...
func (c *Client) GoodsFilterGet(ctx context.Context, limit, offset int) (*Response, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("offset", fmt.Sprintf("%d", offset))
	return c.do(ctx, http.MethodGet, c.config.PricesURL, "/api/v2/list/goods/filter", params, nil)
}

// SizePrices requests per-size prices for a single marketplace id.
// GET /api/v2/list/goods/size/nm?nm=...
func (c *Client) SizePrices(ctx context.Context, nmID int64) (*Response, error) {
	params := url.Values{}
	params.Set("nm", fmt.Sprintf("%d", nmID))
	return c.do(ctx, http.MethodGet, c.config.PricesURL, "/api/v2/list/goods/size/nm", params, nil)
}

// Card is a product card from the content catalog.
type Card struct {
	NmID       int64  `json:"nmID"`
	VendorCode string `json:"vendorCode"`
}

// cardsEnvelope is the cards cursor list response shape.
type cardsEnvelope struct {
	Data struct {
		Cards []Card `json:"cards"`
	} `json:"data"`
}

// CardsCursorList requests one page of the card catalog.
// POST /content/v1/cards/cursor/list with {"limit", "offset"}.
func (c *Client) CardsCursorList(ctx context.Context, limit, offset int) ([]Card, error) {
	if limit > MaxCardsPageSize {
		limit = MaxCardsPageSize
	}

	resp, err := c.do(ctx, http.MethodPost, c.config.ContentURL, "/content/v1/cards/cursor/list", nil,
		map[string]int{"limit": limit, "offset": offset})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &APIError{
			Endpoint:   "/content/v1/cards/cursor/list",
			StatusCode: resp.StatusCode,
			Class:      ClassifyStatus(resp.StatusCode),
			Message:    Truncate(string(resp.Body), 200),
		}
	}

	var envelope cardsEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return nil, fmt.Errorf("parse cards response: %w", err)
	}

	return envelope.Data.Cards, nil
}

// AllCards enumerates the full card catalog page by page.
func (c *Client) AllCards(ctx context.Context) ([]Card, error) {
	var all []Card
	offset := 0

	c.logger.Info().Msg("Enumerating product cards")

	for {
		cards, err := c.CardsCursorList(ctx, MaxCardsPageSize, offset)
		if err != nil {
			return all, err
		}
		if len(cards) == 0 {
			break
		}

		all = append(all, cards...)
		c.logger.Info().Int("cards", len(all)).Msg("Catalog page fetched")

		if len(cards) < MaxCardsPageSize {
			break
		}
		offset += MaxCardsPageSize
	}

	c.logger.Info().Int("total", len(all)).Msg("Catalog enumeration complete")
	return all, nil
}

// RetryAfter reads a Retry-After header as a duration, falling back to
// def when absent or unparsable.
func RetryAfter(h http.Header, def time.Duration) time.Duration {
	raw := h.Get("Retry-After")
	if raw == "" {
		return def
	}
	var seconds int
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err != nil || seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

// Truncate shortens s to at most n characters for log output.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
