// Package client implements the aggregation layer over the Blesta REST
// API: request execution with retry and backoff, JSON/CSV response
// classification, page-cursor pagination, concurrent batch extraction,
// and monthly report series assembly.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AuthMethod selects how API credentials are sent.
type AuthMethod string

const (
	// AuthBasic sends credentials as HTTP Basic Auth.
	AuthBasic AuthMethod = "basic"

	// AuthHeader sends credentials via the BLESTA-API-USER and
	// BLESTA-API-KEY headers. Recommended by Blesta since it needs no
	// server-side CGI/FPM configuration.
	AuthHeader AuthMethod = "header"
)

// Credential header names used by AuthHeader.
const (
	headerAPIUser = "BLESTA-API-USER"
	headerAPIKey  = "BLESTA-API-KEY"
)

// Config holds client configuration.
type Config struct {
	// BaseURL is the API root, e.g. "https://billing.example.com/api".
	BaseURL string
	User    string
	Key     string

	// AuthMethod defaults to AuthBasic.
	AuthMethod AuthMethod

	// Timeout applies to every request made through this client.
	// Callers may shorten it per call with a context deadline but
	// cannot extend it.
	Timeout time.Duration

	// Retry policy: only network failures and 5xx responses are
	// retried, with delays of InitialBackoff * BackoffMultiplier^n
	// capped at MaxBackoff.
	MaxRetries        int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration

	// MaxIdleConns bounds the pooled connections kept for reuse under
	// heavy pagination and batch workloads.
	MaxIdleConns int
}

// DefaultConfig returns a default client configuration.
func DefaultConfig(baseURL, user, key string) Config {
	return Config{
		BaseURL:           baseURL,
		User:              user,
		Key:               key,
		AuthMethod:        AuthBasic,
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
		MaxIdleConns:      10,
	}
}

// RequestRecord describes the most recent request made by a client.
type RequestRecord struct {
	URL    string
	Params map[string]any
}

// Client is the Blesta API client. Each instance owns one pooled HTTP
// transport, released via Close.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	// sleep waits between retry attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// lastRequest is overwritten on every call. Under concurrent
	// dispatch the recorded value is last-write-wins, not a guaranteed
	// "most recent"; the mutex only keeps the record itself intact.
	mu          sync.Mutex
	lastRequest *RequestRecord
}

// New creates a new Blesta API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.User == "" || cfg.Key == "" {
		return nil, fmt.Errorf("API user and key are required")
	}
	if cfg.AuthMethod == "" {
		cfg.AuthMethod = AuthBasic
	}
	if cfg.AuthMethod != AuthBasic && cfg.AuthMethod != AuthHeader {
		return nil, fmt.Errorf("unknown auth method %q", cfg.AuthMethod)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: log.With().Str("component", "blesta-client").Logger(),
		sleep:  sleepContext,
	}, nil
}

// Close releases the client's idle connections.
func (c *Client) Close() {
	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
}

// Get sends a GET request. Parameters are passed as a query string.
func (c *Client) Get(ctx context.Context, model, method string, params map[string]any) (*Response, error) {
	return c.Submit(ctx, model, method, params, http.MethodGet)
}

// Post sends a POST request. Parameters are sent as a JSON body.
func (c *Client) Post(ctx context.Context, model, method string, params map[string]any) (*Response, error) {
	return c.Submit(ctx, model, method, params, http.MethodPost)
}

// Put sends a PUT request. Parameters are sent as a JSON body.
func (c *Client) Put(ctx context.Context, model, method string, params map[string]any) (*Response, error) {
	return c.Submit(ctx, model, method, params, http.MethodPut)
}

// Delete sends a DELETE request. Parameters are sent as a JSON body.
func (c *Client) Delete(ctx context.Context, model, method string, params map[string]any) (*Response, error) {
	return c.Submit(ctx, model, method, params, http.MethodDelete)
}

// Count fetches a record count from a Blesta *Count method, such as
// "getListCount". Counts are advisory, so any failure or non-numeric
// payload collapses to 0 instead of an error.
func (c *Client) Count(ctx context.Context, model, method string, params map[string]any) int {
	resp, err := c.Get(ctx, model, method, params)
	if err != nil || !resp.OK() {
		c.logger.Warn().
			Str("endpoint", model+"/"+method).
			Msg("Count request failed")
		return 0
	}
	return asInt(resp.Data())
}

// asInt coerces a decoded JSON count payload to an int, returning 0
// for anything non-numeric.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// LastRequest returns the URL and parameters of the most recent
// request, or nil if none has been made. With concurrent dispatch the
// value is last-write-wins.
func (c *Client) LastRequest() *RequestRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastRequest == nil {
		return nil
	}
	record := *c.lastRequest
	return &record
}

func (c *Client) recordLastRequest(url string, params map[string]any) {
	c.mu.Lock()
	c.lastRequest = &RequestRecord{URL: url, Params: params}
	c.mu.Unlock()
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
