// Package fetch wraps net/http with the retry and pacing behavior
// shared by every portal adapter and enrichment client.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Config tunes a Client. Zero values fall back to the defaults noted
// per field.
type Config struct {
	Timeout     time.Duration // per-request timeout, default 30s
	UserAgent   string        // default desktop Chrome string
	MaxAttempts int           // default 3
	BackoffBase time.Duration // default 2s, doubled per retry
	BackoffCap  time.Duration // default 10s
	RatePerSec  float64       // 0 means unpaced
}

// Client is a retrying HTTP client. Transient failures (network
// errors, 429, 503 and other 5xx) are retried with exponential
// backoff; other 4xx responses fail immediately.
type Client struct {
	http        *http.Client
	userAgent   string
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
	limiter     *rate.Limiter
}

// NewClient builds a Client from cfg, filling in defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 10 * time.Second
	}
	c := &Client{
		http:        &http.Client{Timeout: cfg.Timeout},
		userAgent:   cfg.UserAgent,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
	}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return c
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Get fetches a URL and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.fetch(ctx, http.MethodGet, rawURL, "", nil)
}

// GetWithHeaders is Get with extra request headers.
func (c *Client) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	return c.fetch(ctx, http.MethodGet, rawURL, "", headers)
}

// PostForm sends a urlencoded form and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) ([]byte, error) {
	return c.fetch(ctx, http.MethodPost, rawURL, form.Encode(), headers)
}

// GetJSON fetches a URL and unmarshals the body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out interface{}) error {
	data, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", rawURL, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, method, rawURL, body string, headers map[string]string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := c.backoffBase << (attempt - 2)
			if backoff > c.backoffCap {
				backoff = c.backoffCap
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		data, err := c.doOnce(ctx, method, rawURL, body, headers)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !retryableStatus(statusErr.Code) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *Client) doOnce(ctx context.Context, method, rawURL, body string, headers map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if method == http.MethodPost && body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", rawURL, err)
	}
	return data, nil
}
