package utils

import (
	"bytes"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// RetryConfig controls how the HTTP client retries transient failures.
type RetryConfig struct {
	MaxRetries    int
	MaxBackoff    time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		MaxBackoff:    30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// HTTPClient is an http.Client with retry on transient failures: network
// errors, timeouts and retryable 4xx/5xx status codes.
type HTTPClient struct {
	client      *http.Client
	retryConfig RetryConfig
}

// NewHTTPClient returns a client with the given timeout. A nil retryConfig
// uses the defaults.
func NewHTTPClient(timeout time.Duration, retryConfig *RetryConfig) *HTTPClient {
	cfg := DefaultRetryConfig()
	if retryConfig != nil {
		cfg = *retryConfig
	}

	return &HTTPClient{
		client:      &http.Client{Timeout: timeout},
		retryConfig: cfg,
	}
}

// Do executes the request, retrying with exponential backoff. The request
// body is buffered so it can be replayed on each attempt.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	var resp *http.Response

	if req.Body != nil {
		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read request body")
		}
		req.Body.Close()
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(bodyBytes)), nil
		}
		req.ContentLength = int64(len(bodyBytes))
	}

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, errors.Wrap(err, "recreate request body")
			}
			req.Body = body
		}

		resp, lastErr = c.client.Do(req)

		if lastErr == nil && !isRetryableStatusCode(resp.StatusCode) {
			return resp, nil
		}

		if lastErr != nil && !isRetryableError(lastErr) {
			return nil, errors.Wrap(lastErr, "non-retryable error")
		}

		// drain before retrying so the connection can be reused
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	if lastErr != nil {
		return nil, errors.Wrapf(lastErr, "request failed after %d retries", c.retryConfig.MaxRetries)
	}

	return resp, errors.Errorf("request failed with status %d after %d retries",
		resp.StatusCode, c.retryConfig.MaxRetries)
}

func (c *HTTPClient) backoff(attempt int) time.Duration {
	backoff := float64(time.Second) * math.Pow(c.retryConfig.BackoffFactor, float64(attempt-1))
	if backoff > float64(c.retryConfig.MaxBackoff) {
		backoff = float64(c.retryConfig.MaxBackoff)
	}
	return time.Duration(backoff)
}

func isRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary()
	}

	return false
}
