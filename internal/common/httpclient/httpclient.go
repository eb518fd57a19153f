// Package httpclient provides an HTTP client with retry logic shared by the
// geolocation and authentication collaborators.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"
)

// Error variables for HTTP client errors
var (
	// ErrMaxRetriesExceeded is returned when all retry attempts have failed
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	// ErrRequestTimeout is returned when a request times out
	ErrRequestTimeout = errors.New("request timeout")
)

// envVarPattern matches ${VAR_NAME} syntax for environment variable substitution
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 2)
	MaxRetries int
	// BaseDelay is the initial delay before first retry (default: 500ms)
	BaseDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 2s)
	MaxDelay time.Duration
	// Timeout is the timeout for each individual request (default: 10s)
	Timeout time.Duration
	// RetryThrottled retries 429 responses like 5xx ones (default: true)
	RetryThrottled bool
}

// DefaultRetryConfig returns the default retry configuration.
// Delays are 500ms then 1s; a dashboard user is waiting on the result.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Timeout:    10 * time.Second,

		RetryThrottled: true,
	}
}

// Client wraps an HTTP client with retry logic.
// It implements exponential backoff for failed requests.
type Client struct {
	client *http.Client
	config RetryConfig
	// delayFunc allows overriding the delay function for testing
	delayFunc func(time.Duration)
	// defaultHeaders are headers applied to all requests
	defaultHeaders map[string]string
}

// New creates a new HTTP client with retry support using the default configuration.
func New() *Client {
	return NewWithConfig(DefaultRetryConfig())
}

// NewWithTimeout creates a client with the default retry policy and a custom per-request timeout.
func NewWithTimeout(timeout time.Duration) *Client {
	cfg := DefaultRetryConfig()
	if timeout > 0 {
		cfg.Timeout = timeout
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a new HTTP client with custom retry configuration.
func NewWithConfig(config RetryConfig) *Client {
	return &Client{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		config:    config,
		delayFunc: time.Sleep,
	}
}

// SetHTTPClient sets a custom underlying HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.client = client
}

// SetDelayFunc sets a custom delay function (useful for testing).
func (c *Client) SetDelayFunc(fn func(time.Duration)) {
	c.delayFunc = fn
}

// SetDefaultHeaders sets default headers that will be applied to all requests.
// Values may reference environment variables with ${VAR_NAME}.
func (c *Client) SetDefaultHeaders(headers map[string]string) {
	c.defaultHeaders = headers
}

// Do executes an HTTP request with retry logic.
// It retries on network errors, 5xx server errors and, unless disabled, 429
// with exponential backoff.
// Requests with a body are replayed through req.GetBody.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	c.applyDefaultHeaders(req)

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			c.delayFunc(c.calculateDelay(attempt))
		}

		reqCopy := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			reqCopy.Body = body
		}

		resp, err := c.client.Do(reqCopy)
		if err != nil {
			lastErr = err
			if isTimeoutError(err) {
				lastErr = fmt.Errorf("%w: %v", ErrRequestTimeout, err)
			}
			continue
		}

		if c.shouldRetry(resp.StatusCode) {
			if attempt == c.config.MaxRetries {
				// Hand the final response to the caller so it can read the error body
				return resp, nil
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			lastResp = resp
			continue
		}

		return resp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
	}
	return lastResp, ErrMaxRetriesExceeded
}

// Get performs an HTTP GET request with retry logic and context support.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, SubstituteEnvVars(value))
	}
	return c.Do(req)
}

// calculateDelay calculates the delay for a given retry attempt.
// delay = baseDelay * 2^(attempt-1), capped at MaxDelay.
func (c *Client) calculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := 1 << (attempt - 1)
	delay := c.config.BaseDelay * time.Duration(multiplier)

	if delay > c.config.MaxDelay {
		delay = c.config.MaxDelay
	}

	return delay
}

// applyDefaultHeaders sets default headers the request does not already carry
func (c *Client) applyDefaultHeaders(req *http.Request) {
	for key, value := range c.defaultHeaders {
		if req.Header.Get(key) != "" {
			continue
		}
		if v := SubstituteEnvVars(value); v != "" {
			req.Header.Set(key, v)
		}
	}
}

// shouldRetry reports whether a status code is worth retrying: 5xx, and 429
// when RetryThrottled is set.
func (c *Client) shouldRetry(statusCode int) bool {
	if statusCode >= 500 && statusCode < 600 {
		return true
	}
	return c.config.RetryThrottled && statusCode == http.StatusTooManyRequests
}

// isTimeoutError checks if an error is a timeout error.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	type timeoutError interface {
		Timeout() bool
	}
	var te timeoutError
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return false
}

// SubstituteEnvVars replaces ${VAR_NAME} patterns in a string with
// the corresponding environment variable values.
// If an environment variable is not set, the pattern is replaced with an empty string.
func SubstituteEnvVars(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}
