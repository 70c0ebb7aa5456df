// Package rest implements the low-level ARI HTTP contract: send a method and
// path with optional query and JSON body, get a decoded JSON result or a
// structured RequestError. Retries for transient failures are handled here
// per request; concurrency bounding and circuit breaking live in the queue
// package on top of this contract.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/PerMoeller/asterisk-ari/logging"
)

// apiPrefix is prepended to every resource path.
const apiPrefix = "/ari"

// RetryConfig configures the per-request retry policy.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	// ShouldRetry determines if a response should trigger a retry
	ShouldRetry func(resp *http.Response, err error) bool
}

// DefaultRetryConfig returns sensible defaults for HTTP retries
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  2,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		ShouldRetry: DefaultShouldRetry,
	}
}

// DefaultShouldRetry determines if an HTTP request should be retried.
// Retries on network errors, server errors (5xx), and rate limits (429).
func DefaultShouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// Config represents the configuration for the REST client
type Config struct {
	BaseURL     string
	Username    string
	Password    string
	Timeout     time.Duration
	Logger      logging.Logger
	RetryConfig *RetryConfig
}

// Client is the ARI REST client. One Client is shared by every resource
// binding of a session.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	executor   failsafe.Executor[*http.Response]
	logger     logging.Logger
}

// New creates a new REST client
func New(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Logger == nil {
		config.Logger = logging.NewLoggerWithComponent("rest")
	}

	retryConfig := DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}
	if retryConfig.ShouldRetry == nil {
		retryConfig.ShouldRetry = DefaultShouldRetry
	}
	if retryConfig.BaseDelay <= 0 {
		retryConfig.BaseDelay = 100 * time.Millisecond
	}
	if retryConfig.MaxDelay < retryConfig.BaseDelay {
		retryConfig.MaxDelay = retryConfig.BaseDelay
	}

	//nolint:bodyclose // false positive: [*http.Response] is a generic type parameter, not an actual response
	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(retryConfig.BaseDelay, retryConfig.MaxDelay).
		WithMaxRetries(retryConfig.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(resp *http.Response, err error) bool {
			return retryConfig.ShouldRetry(resp, err)
		}).
		Build()

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		username:   config.Username,
		password:   config.Password,
		httpClient: &http.Client{Timeout: config.Timeout, Transport: DefaultTransport()},
		executor:   failsafe.With(retry),
		logger:     config.Logger,
	}
}

// BaseURL returns the configured HTTP base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Credentials returns the configured username and password.
func (c *Client) Credentials() (string, string) {
	return c.username, c.password
}

// Get issues a GET request against an ARI resource path.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST request against an ARI resource path.
func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, query, body, out)
}

// Put issues a PUT request against an ARI resource path.
func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, query, body, out)
}

// Delete issues a DELETE request against an ARI resource path.
func (c *Client) Delete(ctx context.Context, path string, query url.Values) error {
	return c.Do(ctx, http.MethodDelete, path, query, nil, nil)
}

// Do executes one ARI request. path is the resource path below /ari, e.g.
// "/channels/1234/answer". A non-2xx response is returned as *RequestError
// carrying the status code and raw body; a request that never produced a
// response is returned as *RequestError with status 0. Empty (204-style)
// responses leave out untouched.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	reqURL := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.username != "" || c.password != "" {
			req.SetBasicAuth(c.username, c.password)
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		c.logger.WithError(err).WithFields(logging.Fields{
			"method": method,
			"path":   path,
		}).Debug("ARI request failed without a response")
		return NewLocalError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewLocalError(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.WithFields(logging.Fields{
			"method":      method,
			"path":        path,
			"status_code": resp.StatusCode,
		}).Debug("ARI request returned error status")
		return NewRequestError(resp.StatusCode, respBody)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
