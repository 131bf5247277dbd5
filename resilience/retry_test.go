package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// TestRetryBasicSuccess tests successful execution on first attempt
func TestRetryBasicSuccess(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
	}

	attempts := 0
	err := Retry(context.Background(), config, func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

// TestRetryEventualSuccess tests success after multiple attempts
func TestRetryEventualSuccess(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
	}

	attempts := 0
	err := Retry(context.Background(), config, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected eventual success, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

// TestRetryExhausted tests failure after all attempts
func TestRetryExhausted(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  5 * time.Millisecond,
		MaxDelay:      50 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
	}

	attempts := 0
	err := Retry(context.Background(), config, func() error {
		attempts++
		return errors.New("persistent failure")
	})

	if !errors.Is(err, core.ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

// TestRetryNilConfigUsesDefaults tests nil config handling
func TestRetryNilConfigUsesDefaults(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), nil, func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected success with default config, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

// TestRetryContextCancellation tests that cancellation stops retries
func TestRetryContextCancellation(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:   5,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      500 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
	}

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, config, func() error {
		attempts++
		return errors.New("failing")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts >= 5 {
		t.Errorf("Expected cancellation to cut attempts short, got %d", attempts)
	}
}

// TestRetryBackoffGrowth verifies delays grow between attempts
func TestRetryBackoffGrowth(t *testing.T) {
	config := &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  20 * time.Millisecond,
		MaxDelay:      200 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
	}

	start := time.Now()
	_ = Retry(context.Background(), config, func() error {
		return errors.New("always fails")
	})
	elapsed := time.Since(start)

	// Two waits: 20ms + 40ms = 60ms minimum.
	if elapsed < 60*time.Millisecond {
		t.Errorf("Expected at least 60ms of backoff, got %v", elapsed)
	}
}

// TestRetryWithCircuitBreakerOpen tests fast failure when circuit is open
func TestRetryWithCircuitBreakerOpen(t *testing.T) {
	cb, err := NewCircuitBreaker(&Config{
		Name:          "test-open",
		Threshold:     1,
		ResetTimeout:  time.Minute,
		HalfOpenLimit: 1,
	})
	if err != nil {
		t.Fatalf("NewCircuitBreaker failed: %v", err)
	}
	cb.RecordFailure(errors.New("dependency down"))

	if cb.GetState() != "open" {
		t.Fatalf("Expected open state, got %s", cb.GetState())
	}

	config := &RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	calls := 0
	err = RetryWithCircuitBreaker(context.Background(), config, cb, func() error {
		calls++
		return nil
	})

	if !errors.Is(err, core.ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected 0 calls through open breaker, got %d", calls)
	}
}

// TestRetryWithCircuitBreakerRecords tests success and failure recording
func TestRetryWithCircuitBreakerRecords(t *testing.T) {
	cb, err := NewCircuitBreaker(&Config{
		Name:          "test-records",
		Threshold:     3,
		ResetTimeout:  time.Minute,
		HalfOpenLimit: 1,
	})
	if err != nil {
		t.Fatalf("NewCircuitBreaker failed: %v", err)
	}

	config := &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      10 * time.Millisecond,
		BackoffFactor: 2.0,
	}

	attempts := 0
	err = RetryWithCircuitBreaker(context.Background(), config, cb, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("flaky")
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected eventual success, got %v", err)
	}
	if cb.GetState() != "closed" {
		t.Errorf("Expected closed state after success, got %s", cb.GetState())
	}
}
