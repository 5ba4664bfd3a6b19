package client

import (
	"context"
	"errors"
	"fmt"

	"rjdctl/internal/config"
	rjdctlErrors "rjdctl/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// Breaker wraps one service operation with the circuit breaker pattern.
// A nil Breaker runs calls directly.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[*response]
}

// NewBreaker creates a breaker for operation, or nil when disabled
func NewBreaker(operation string, cfg config.CircuitBreakerConfig, logger *rjdctlErrors.Logger) *Breaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("service-%s", operation),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				"name", name,
				"operation", operation,
				"from", from.String(),
				"to", to.String(),
				"failure_threshold", cfg.FailureThreshold)
		},
		IsSuccessful: countsAsSuccess,
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker[*response](settings)}
}

// countsAsSuccess keeps user aborts and client-side rejections out of the
// failure count. Only transport errors, 429 and 5xx trip the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return !se.retryable()
	}
	return false
}

// Execute runs fn under breaker protection
func (b *Breaker) Execute(fn func() (*response, error)) (*response, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// Stats returns breaker statistics
func (b *Breaker) Stats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{"enabled": false}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy is true unless the breaker is open
func (b *Breaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() != gobreaker.StateOpen
}
