// Package client implements the account status client: one POST per
// identifier against the remote status endpoint, with classified failures.
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

	"github.com/aegistools/statusq/pkg/cache"
)

// Prometheus metrics for status query operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusq_requests_total",
		Help: "Total status requests by outcome",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "statusq_request_duration_seconds",
		Help:    "Status request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "statusq_errors_total",
		Help: "Total query failures by class",
	}, []string{"class"})
)

// StatusPayload is the decoded response body of one successful query.
// The schema is owned by the remote endpoint; the payload is treated as
// opaque and merged into the success record as-is.
type StatusPayload = map[string]any

// Config holds the status client configuration.
type Config struct {
	// RequestURL is the fully assembled status endpoint URL.
	RequestURL string

	// Timeout per request. A timeout is reported as a network failure of
	// that one query, never as a batch abort.
	Timeout time.Duration

	// UserAgent header sent with every request.
	UserAgent string

	// Cache is an optional read-through payload cache. Nil disables caching.
	Cache *cache.Manager

	// CacheTTL is how long fetched payloads stay cached.
	CacheTTL time.Duration
}

// DefaultConfig returns a safe default configuration for the given URL.
func DefaultConfig(requestURL string) Config {
	return Config{
		RequestURL: requestURL,
		Timeout:    30 * time.Second,
		UserAgent:  "statusq/0.1.0",
		CacheTTL:   60 * time.Second,
	}
}

// Client queries the account status endpoint. It holds no per-request
// mutable state and is safe for concurrent use by pool workers.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new status client.
func New(cfg Config) (*Client, error) {
	if cfg.RequestURL == "" {
		return nil, fmt.Errorf("request URL is required")
	}
	u, err := url.Parse(cfg.RequestURL)
	if err != nil {
		return nil, fmt.Errorf("parse request URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("request URL must be http or https (got %q)", cfg.RequestURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: log.With().Str("component", "status-client").Logger(),
	}, nil
}

// statusRequest is the request body of one status query. The identifier is
// carried as a raw JSON number so values beyond int64 range survive intact.
type statusRequest struct {
	EasyID json.RawMessage `json:"easy_id"`
}

// Query performs a single status lookup for id. One attempt per call; retry
// policy, if any, belongs to the caller.
//
// Failures are returned as *StatusError classified as network, protocol
// (with the response code), or decode.
func (c *Client) Query(ctx context.Context, id string) (StatusPayload, error) {
	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	if payload, ok := c.cachedPayload(ctx, id); ok {
		requestsTotal.WithLabelValues("cache_hit").Inc()
		return payload, nil
	}

	body, err := json.Marshal(statusRequest{EasyID: json.RawMessage(id)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.RequestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("easy_id", id).Msg("Transport failure")
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug().
			Str("easy_id", id).
			Int("status_code", resp.StatusCode).
			Msg("Non-success response")
		errorsTotal.WithLabelValues(string(ErrorClassProtocol)).Inc()
		return nil, protocolError(resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, networkError(err)
	}

	var payload StatusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.Debug().Err(err).Str("easy_id", id).Msg("Response decode failure")
		errorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, decodeError(err)
	}

	c.storePayload(ctx, id, raw)
	return payload, nil
}

// cachedPayload consults the optional payload cache.
func (c *Client) cachedPayload(ctx context.Context, id string) (StatusPayload, bool) {
	if c.config.Cache == nil {
		return nil, false
	}

	entry, err := c.config.Cache.Get(ctx, cache.Key{Identifier: id})
	if err != nil {
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("easy_id", id).Msg("Cache get error")
		}
		return nil, false
	}

	var payload StatusPayload
	if err := json.Unmarshal(entry.Payload, &payload); err != nil {
		c.logger.Warn().Err(err).Str("easy_id", id).Msg("Corrupt cached payload")
		return nil, false
	}

	c.logger.Debug().Str("easy_id", id).Msg("Cache hit")
	return payload, true
}

// storePayload writes a fetched payload to the optional cache.
// Cache errors degrade to direct requests and never fail the query.
func (c *Client) storePayload(ctx context.Context, id string, raw []byte) {
	if c.config.Cache == nil || c.config.CacheTTL <= 0 {
		return
	}

	entry := cache.NewEntry(raw, c.config.CacheTTL)
	if err := c.config.Cache.Set(ctx, cache.Key{Identifier: id}, entry); err != nil {
		c.logger.Warn().Err(err).Str("easy_id", id).Msg("Failed to cache payload")
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
