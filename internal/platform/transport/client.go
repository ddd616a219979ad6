// Package transport is the JSON-over-HTTP client shared by the gateway,
// content store and scheduler adapters. Every client sits behind its own
// circuit breaker and classifies failures as transient or permanent.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

const maxErrorBody = 512

// BreakerSettings configures the circuit breaker wrapped around a Client.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	Interval            time.Duration
}

// Option customises a Client.
type Option func(*Client)

// WithBasicAuth sets HTTP basic auth on every request.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.authorize = func(r *http.Request) { r.SetBasicAuth(username, password) }
	}
}

// WithTokenAuth sets "Authorization: Token <token>" on every request.
func WithTokenAuth(token string) Option {
	return func(c *Client) {
		c.authorize = func(r *http.Request) { r.Header.Set("Authorization", "Token "+token) }
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// Client sends JSON requests relative to a base URL.
type Client struct {
	service    string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	authorize  func(*http.Request)
	logger     *slog.Logger
}

// NewClient creates a Client for service rooted at baseURL.
func NewClient(service, baseURL string, timeout time.Duration, bs BreakerSettings, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		service:    service,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		authorize:  func(*http.Request) {},
		logger:     logger.With("component", "http_client", "remote_service", service),
	}
	for _, opt := range opts {
		opt(c)
	}

	failures := bs.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     service,
		Interval: bs.Interval,
		Timeout:  bs.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// BaseURL returns the root every request path is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Do sends method to path (relative to the base URL) with an optional JSON
// body, and decodes a 2xx JSON response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", c.service, err)
		}
	}

	// Only transient failures count against the breaker; permanent ones travel
	// back through the result.
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, endpoint, payload, out)
	})
	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return &TransientError{Service: c.service, Err: err}
		default:
			return err
		}
	}
	if permanent, ok := result.(error); ok && permanent != nil {
		return permanent
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, payload []byte, out any) (interface{}, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", c.service, err), nil
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Caller's deadline, not a remote failure.
			return fmt.Errorf("%s: %s %s: %w", c.service, method, endpoint, ctxErr), nil
		}
		return nil, &TransientError{Service: c.service, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return &PermanentError{Service: c.service, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}, nil
		}
		return nil, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	remoteErr := fmt.Errorf("%s %s returned %s: %s", method, endpoint, resp.Status, strings.TrimSpace(string(snippet)))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &TransientError{Service: c.service, StatusCode: resp.StatusCode, Err: remoteErr}
	}
	return &PermanentError{Service: c.service, StatusCode: resp.StatusCode, Err: remoteErr}, nil
}
