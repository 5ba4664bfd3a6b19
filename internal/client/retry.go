package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"
)

const maxBackoff = 30 * time.Second

// statusError is a non-2xx reply from the service
type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("service responded with status %d", e.status)
}

func (e *statusError) retryable() bool {
	switch e.status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// executeWithRetry runs fn up to maxRetries+1 times with exponential backoff
func (c *Client) executeWithRetry(ctx context.Context, operation string, fn func() (*response, error)) (*response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying service request",
				"operation", operation,
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Service request succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return nil, lastErr
}

// backoff doubles from one second with up to 10% jitter
func backoff(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(0)
	if n, err := rand.Int(rand.Reader, big.NewInt(int64(float64(base)*0.1)+1)); err == nil {
		jitter = time.Duration(n.Int64())
	}
	return min(base+jitter, maxBackoff)
}

func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *statusError
	if errors.As(err, &se) {
		return se.retryable()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
