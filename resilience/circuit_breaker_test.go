package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

func newTestBreaker(t *testing.T, threshold int, resetTimeout time.Duration) *CircuitBreaker {
	t.Helper()
	cb, err := NewCircuitBreaker(&Config{
		Name:          "test",
		Threshold:     threshold,
		ResetTimeout:  resetTimeout,
		HalfOpenLimit: 1,
	})
	if err != nil {
		t.Fatalf("NewCircuitBreaker failed: %v", err)
	}
	return cb
}

// TestCircuitBreakerStartsClosed tests initial state
func TestCircuitBreakerStartsClosed(t *testing.T) {
	cb := newTestBreaker(t, 3, time.Minute)
	if cb.GetState() != "closed" {
		t.Errorf("Expected closed, got %s", cb.GetState())
	}
	if !cb.CanExecute() {
		t.Error("Expected execution allowed in closed state")
	}
}

// TestCircuitBreakerOpensAfterThreshold tests opening on consecutive failures
func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(t, 3, time.Minute)

	failing := errors.New("provider unreachable")
	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return failing })
		if !errors.Is(err, failing) {
			t.Fatalf("Attempt %d: expected the function error, got %v", i, err)
		}
	}

	if cb.GetState() != "open" {
		t.Fatalf("Expected open after 3 failures, got %s", cb.GetState())
	}

	err := cb.Execute(context.Background(), func() error {
		t.Error("Function must not run while open")
		return nil
	})
	if !errors.Is(err, core.ErrCircuitBreakerOpen) {
		t.Errorf("Expected ErrCircuitBreakerOpen, got %v", err)
	}
}

// TestCircuitBreakerSuccessResetsCount tests that success interrupts the streak
func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := newTestBreaker(t, 3, time.Minute)

	failing := errors.New("flaky")
	_ = cb.Execute(context.Background(), func() error { return failing })
	_ = cb.Execute(context.Background(), func() error { return failing })
	_ = cb.Execute(context.Background(), func() error { return nil })
	_ = cb.Execute(context.Background(), func() error { return failing })
	_ = cb.Execute(context.Background(), func() error { return failing })

	if cb.GetState() != "closed" {
		t.Errorf("Expected closed, consecutive streak never reached 3, got %s", cb.GetState())
	}
}

// TestCircuitBreakerHalfOpenRecovery tests open -> half-open -> closed
func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := newTestBreaker(t, 1, 20*time.Millisecond)

	_ = cb.Execute(context.Background(), func() error { return errors.New("down") })
	if cb.GetState() != "open" {
		t.Fatalf("Expected open, got %s", cb.GetState())
	}

	time.Sleep(30 * time.Millisecond)

	err := cb.Execute(context.Background(), func() error { return nil })
	if err != nil {
		t.Fatalf("Expected probe to run after reset timeout, got %v", err)
	}
	if cb.GetState() != "closed" {
		t.Errorf("Expected closed after successful probe, got %s", cb.GetState())
	}
}

// TestCircuitBreakerHalfOpenReopen tests open -> half-open -> open on probe failure
func TestCircuitBreakerHalfOpenReopen(t *testing.T) {
	cb := newTestBreaker(t, 1, 20*time.Millisecond)

	_ = cb.Execute(context.Background(), func() error { return errors.New("down") })
	time.Sleep(30 * time.Millisecond)

	_ = cb.Execute(context.Background(), func() error { return errors.New("still down") })
	if cb.GetState() != "open" {
		t.Errorf("Expected re-open after failed probe, got %s", cb.GetState())
	}
}

// TestCircuitBreakerHalfOpenLimit tests probe slot exhaustion
func TestCircuitBreakerHalfOpenLimit(t *testing.T) {
	cb := newTestBreaker(t, 1, 10*time.Millisecond)

	cb.RecordFailure(errors.New("down"))
	time.Sleep(20 * time.Millisecond)

	if !cb.CanExecute() {
		t.Fatal("Expected the single probe slot to be grantable")
	}
	if cb.CanExecute() {
		t.Error("Expected second probe to be rejected while the first is in flight")
	}
}

// TestDefaultErrorClassifier tests which errors count as failures
func TestDefaultErrorClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"invalid configuration", core.ErrInvalidConfiguration, false},
		{"malformed response", core.NewDomainError("executor.Execute", core.KindMalformedResponse, core.ErrMalformedResponse), false},
		{"reflection failure", core.NewDomainError("reflector.Reflect", core.KindReflectionFailure, core.ErrReflectionFailed), false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"per-call timeout", core.NewDomainError("executor.Execute", core.KindPerCallTimeout, core.ErrPerCallTimeout), true},
		{"generic network error", errors.New("connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultErrorClassifier(tt.err); got != tt.want {
				t.Errorf("DefaultErrorClassifier(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// TestCircuitBreakerIgnoresExcludedErrors tests that uncounted errors never open the circuit
func TestCircuitBreakerIgnoresExcludedErrors(t *testing.T) {
	cb := newTestBreaker(t, 2, time.Minute)

	malformed := core.NewDomainError("executor.Execute", core.KindMalformedResponse, core.ErrMalformedResponse)
	for i := 0; i < 10; i++ {
		_ = cb.Execute(context.Background(), func() error { return malformed })
	}

	if cb.GetState() != "closed" {
		t.Errorf("Expected closed despite malformed responses, got %s", cb.GetState())
	}
}

// TestCircuitBreakerPanicRecovery tests panic conversion to error
func TestCircuitBreakerPanicRecovery(t *testing.T) {
	cb := newTestBreaker(t, 5, time.Minute)

	err := cb.Execute(context.Background(), func() error {
		panic("unexpected provider payload")
	})
	if err == nil {
		t.Fatal("Expected error from panicking function")
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Errorf("Expected panic to be described in error, got %v", err)
	}

	// The breaker keeps working after a panic.
	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Errorf("Expected breaker usable after panic, got %v", err)
	}
}

// TestCircuitBreakerReset tests manual reset
func TestCircuitBreakerReset(t *testing.T) {
	cb := newTestBreaker(t, 1, time.Hour)

	cb.RecordFailure(errors.New("down"))
	if cb.GetState() != "open" {
		t.Fatalf("Expected open, got %s", cb.GetState())
	}

	cb.Reset()
	if cb.GetState() != "closed" {
		t.Errorf("Expected closed after reset, got %s", cb.GetState())
	}
	if !cb.CanExecute() {
		t.Error("Expected execution allowed after reset")
	}
}

// TestCircuitBreakerNilPassThrough tests the disabled-breaker path
func TestCircuitBreakerNilPassThrough(t *testing.T) {
	var cb *CircuitBreaker

	ran := false
	err := cb.Execute(context.Background(), func() error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Errorf("Expected nil breaker to pass through, err=%v ran=%v", err, ran)
	}
	if !cb.CanExecute() {
		t.Error("Expected nil breaker to allow execution")
	}
	cb.RecordSuccess()
	cb.RecordFailure(errors.New("ignored"))
}

// TestConfigValidate tests configuration validation
func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"valid", &Config{Name: "x", Threshold: 5, ResetTimeout: time.Second, HalfOpenLimit: 1, SuccessThreshold: 0.5}, false},
		{"missing name", &Config{Threshold: 5, ResetTimeout: time.Second, HalfOpenLimit: 1}, true},
		{"zero threshold", &Config{Name: "x", Threshold: 0, ResetTimeout: time.Second, HalfOpenLimit: 1}, true},
		{"zero reset timeout", &Config{Name: "x", Threshold: 5, HalfOpenLimit: 1}, true},
		{"zero half-open limit", &Config{Name: "x", Threshold: 5, ResetTimeout: time.Second}, true},
		{"bad success threshold", &Config{Name: "x", Threshold: 5, ResetTimeout: time.Second, HalfOpenLimit: 1, SuccessThreshold: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestFromBreakerConfig tests construction from application config
func TestFromBreakerConfig(t *testing.T) {
	t.Run("disabled returns nil breaker", func(t *testing.T) {
		cb, err := FromBreakerConfig(core.BreakerConfig{Enabled: false}, "provider", nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cb != nil {
			t.Error("Expected nil breaker when disabled")
		}
	})

	t.Run("enabled builds breaker with settings", func(t *testing.T) {
		cb, err := FromBreakerConfig(core.BreakerConfig{
			Enabled:       true,
			Threshold:     2,
			ResetTimeout:  time.Second,
			HalfOpenLimit: 1,
		}, "provider", nil)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cb == nil {
			t.Fatal("Expected breaker when enabled")
		}
		if cb.Name() != "provider" {
			t.Errorf("Expected name provider, got %s", cb.Name())
		}

		cb.RecordFailure(errors.New("one"))
		cb.RecordFailure(errors.New("two"))
		if cb.GetState() != "open" {
			t.Errorf("Expected open after reaching threshold 2, got %s", cb.GetState())
		}
	})
}

// TestGetMetrics tests the metrics snapshot
func TestGetMetrics(t *testing.T) {
	cb := newTestBreaker(t, 5, time.Minute)

	_ = cb.Execute(context.Background(), func() error { return nil })
	_ = cb.Execute(context.Background(), func() error { return errors.New("bad") })

	m := cb.GetMetrics()
	if m["name"] != "test" {
		t.Errorf("Expected name test, got %v", m["name"])
	}
	if m["state"] != "closed" {
		t.Errorf("Expected closed state, got %v", m["state"])
	}
	if m["success"].(uint64) != 1 || m["failure"].(uint64) != 1 {
		t.Errorf("Expected 1 success and 1 failure, got %v/%v", m["success"], m["failure"])
	}
	if m["error_rate"].(float64) != 0.5 {
		t.Errorf("Expected 0.5 error rate, got %v", m["error_rate"])
	}
}
