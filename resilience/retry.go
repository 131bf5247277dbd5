// Package resilience provides retry and circuit breaker primitives used
// around reasoning provider calls, outbound HTTP fetches, and store
// writes.
package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry executes fn until it succeeds, attempts are exhausted, or ctx
// is done. Waits between attempts grow exponentially up to MaxDelay,
// with up to 25% random jitter to avoid synchronized retries across
// clients.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == config.MaxAttempts {
			break
		}

		wait := delay
		if j := wait / 4; config.JitterEnabled && j > 0 {
			wait += rand.N(j)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * config.BackoffFactor)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", core.ErrMaxRetriesExceeded, config.MaxAttempts, lastErr)
}

// RetryWithCircuitBreaker combines retry logic with circuit breaker
// protection. Rejections from an open circuit count as attempts, so an
// exhausted retry surfaces quickly instead of hammering a down
// dependency.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		if !cb.CanExecute() {
			return fmt.Errorf("circuit breaker %q: %w", cb.Name(), core.ErrCircuitBreakerOpen)
		}

		err := fn()
		if err != nil {
			cb.RecordFailure(err)
			return err
		}

		cb.RecordSuccess()
		return nil
	})
}
