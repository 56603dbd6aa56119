package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"
)

const userAgent = "blesta-go/1.0"

// Submit sends an HTTP request to the Blesta API and returns the
// classified response. Prefer Get, Post, Put, or Delete over calling
// Submit directly.
//
// API-level failures never surface as a Go error: a transport failure
// yields a Response with StatusCode 0 and a diagnostic body, and HTTP
// error statuses are returned literally with their bodies. Network
// failures and 5xx statuses are retried per the configured policy
// (4xx never is); after exhaustion the last observed Response is
// returned. The error return is reserved for programming errors
// (unknown action, unencodable parameters) and context cancellation.
func (c *Client) Submit(ctx context.Context, model, method string, params map[string]any, action string) (*Response, error) {
	if params == nil {
		params = map[string]any{}
	}

	switch action {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	requestURL := fmt.Sprintf("%s/%s/%s.json", c.baseURL, model, method)
	endpoint := model + "/" + method
	c.recordLastRequest(requestURL, params)

	var body []byte
	if action != http.MethodGet {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		body = encoded
	}

	var last *Response
	for attempt := 0; ; attempt++ {
		start := time.Now()
		resp := c.doOnce(ctx, action, requestURL, params, body)
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		apiRequestsTotal.WithLabelValues(endpoint, statusLabel(resp.StatusCode)).Inc()

		if !retryable(resp) {
			return resp, nil
		}
		last = resp

		if attempt >= c.cfg.MaxRetries {
			if c.cfg.MaxRetries > 0 {
				apiRetryExhaustedTotal.WithLabelValues(endpoint).Inc()
				c.logger.Warn().
					Str("endpoint", endpoint).
					Int("max_retries", c.cfg.MaxRetries).
					Int("status", last.StatusCode).
					Msg("Retry attempts exhausted")
			}
			return last, nil
		}

		delay := c.backoffDelay(attempt)
		apiRetriesTotal.WithLabelValues(endpoint).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt+1).
			Int("max_retries", c.cfg.MaxRetries).
			Int("status", resp.StatusCode).
			Dur("backoff", delay).
			Msg("Retrying request after backoff")

		if err := c.sleep(ctx, delay); err != nil {
			return last, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}
}

// doOnce performs a single HTTP exchange. A transport-level failure is
// absorbed into a Response with StatusCode 0 rather than an error.
func (c *Client) doOnce(ctx context.Context, action, requestURL string, params map[string]any, body []byte) *Response {
	var reader io.Reader
	target := requestURL
	if action == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, fmt.Sprint(v))
		}
		if encoded := query.Encode(); encoded != "" {
			target = requestURL + "?" + encoded
		}
	} else {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, action, target, reader)
	if err != nil {
		return NewResponse(fmt.Sprintf("creating request: %v", err), 0)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if action != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}

	switch c.cfg.AuthMethod {
	case AuthHeader:
		req.Header.Set(headerAPIUser, c.cfg.User)
		req.Header.Set(headerAPIKey, c.cfg.Key)
	default:
		req.SetBasicAuth(c.cfg.User, c.cfg.Key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", requestURL).Msg("Request failed")
		return NewResponse(fmt.Sprintf("request failed: %v", err), 0)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error().Err(err).Str("url", requestURL).Msg("Reading response body failed")
		return NewResponse(fmt.Sprintf("reading response body: %v", err), 0)
	}

	return NewResponse(string(raw), resp.StatusCode)
}

// retryable reports whether a response should trigger a retry:
// network-level failures and 5xx statuses only, never 4xx.
func retryable(resp *Response) bool {
	return resp.StatusCode == 0 || resp.StatusCode >= 500
}

// backoffDelay computes the exponential delay before re-attempt n:
// InitialBackoff * BackoffMultiplier^n, capped at MaxBackoff.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.cfg.InitialBackoff) * math.Pow(c.cfg.BackoffMultiplier, float64(attempt)))
	if delay > c.cfg.MaxBackoff {
		delay = c.cfg.MaxBackoff
	}
	return delay
}

// statusLabel renders a status code for the metrics status label.
func statusLabel(status int) string {
	if status == 0 {
		return "network_error"
	}
	return fmt.Sprintf("%d", status)
}
