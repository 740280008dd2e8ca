package services

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// retryPolicy bounds the attempts made against a flaky provider endpoint.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryPolicy = retryPolicy{
	maxRetries: 2,
	baseDelay:  1 * time.Second,
	maxDelay:   10 * time.Second,
}

// doWithRetry sends the request built by newReq until it returns 200, a
// non-retryable status, or the retries run out. The response body is returned
// on success. newReq is called once per attempt so bodies can be replayed.
func doWithRetry(
	ctx context.Context,
	client *http.Client,
	policy retryPolicy,
	logger zerolog.Logger,
	newReq func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= policy.maxRetries; attempt++ {
		if attempt > 0 {
			delay := policy.delay(attempt)
			logger.Warn().Int("attempt", attempt).Dur("wait", delay).Err(lastErr).Msg("retrying provider request")

			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if isRetryableError(err) {
				continue
			}
			return nil, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			if readErr != nil {
				lastErr = fmt.Errorf("failed to read response body: %w", readErr)
				continue
			}
			return body, nil
		}

		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if !isRetryableStatus(resp.StatusCode) {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", policy.maxRetries+1, lastErr)
}

// delay is exponential backoff with 0-25% jitter.
func (p retryPolicy) delay(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || // 429
		status == http.StatusRequestTimeout || // 408
		status == http.StatusBadGateway || // 502
		status == http.StatusServiceUnavailable || // 503
		status == http.StatusGatewayTimeout // 504
}

// truncate limits a string to maxLen characters for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
