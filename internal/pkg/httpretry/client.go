// Package httpretry provides an HTTP client with automatic retry logic,
// exponential backoff, and jitter for calls to auxiliary HTTP services such
// as the Prometheus Pushgateway.
package httpretry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ignite/batch-email/internal/pkg/logger"
	"github.com/ignite/batch-email/internal/pkg/retry"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with retry logic using the backoff of a
// retry.Policy.
type RetryClient struct {
	client HTTPDoer
	policy retry.Policy
}

// NewRetryClient wraps client. If client is nil, a default http.Client with
// a 30s timeout is used. Zero policy fields take the retry defaults.
func NewRetryClient(client HTTPDoer, policy retry.Policy) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RetryClient{client: client, policy: policy.WithDefaults()}
}

var errRetryableStatus = errors.New("httpretry: retryable status")

// Do executes the request with retry logic. It retries on 429 and 5xx
// gateway statuses and on transport errors, but not on client errors or
// context cancellation. On the final attempt the response is returned as-is
// so the caller can inspect the status code and body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	attempt := 0
	policy := rc.policy
	policy.Retryable = nil

	return retry.DoValue(req.Context(), policy, func(ctx context.Context) (*http.Response, error) {
		attempt++
		if attempt > 1 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, retry.Permanent(fmt.Errorf("httpretry: failed to reset request body: %w", err))
				}
				req.Body = body
			}
			logger.Debug("httpretry: retrying", "attempt", attempt, "method", req.Method, "host", req.URL.Host, "path", req.URL.Path)
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}

		if !isRetryableStatus(resp.StatusCode) || attempt == policy.MaxAttempts {
			return resp, nil
		}

		// Drain for connection reuse before retrying.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w %d", errRetryableStatus, resp.StatusCode)
	})
}

// isRetryableStatus returns true if the HTTP status code indicates a
// transient server error that should be retried.
func isRetryableStatus(statusCode int) bool {
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
