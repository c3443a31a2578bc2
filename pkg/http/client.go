package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout bounds each individual request attempt.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

// WithRetry retries transient failures (network errors, 429, 5xx) up to
// attempts times with doubling backoff.
func WithRetry(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// Client is a small JSON client for provider REST endpoints.
type Client struct {
	hc       *http.Client
	attempts int
	backoff  time.Duration
}

// NewClient builds a Client. Defaults: 30s timeout, single attempt.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		hc:       &http.Client{Timeout: 30 * time.Second},
		attempts: 1,
		backoff:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches rawURL with the given query and decodes the JSON body
// into dest. Non-2xx responses become errors carrying a body excerpt.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, dest interface{}) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var lastErr error
	wait := c.backoff
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait *= 2
		}

		retriable, err := c.getOnce(ctx, u.String(), dest)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retriable {
			return err
		}
	}
	return lastErr
}

// getOnce performs a single GET. The bool reports whether the failure is
// worth retrying.
func (c *Client) getOnce(ctx context.Context, fullURL string, dest interface{}) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		retriable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retriable, fmt.Errorf("status %d: %s", resp.StatusCode, excerpt)
	}

	if dest == nil {
		return false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return false, nil
}
