package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{
			name:     "nil error has no kind",
			err:      nil,
			expected: "",
		},
		{
			name:     "planning sentinel",
			err:      ErrPlanningFailed,
			expected: KindPlanningFailure,
		},
		{
			name:     "wrapped plan range error",
			err:      fmt.Errorf("planner: %w", ErrPlanOutOfRange),
			expected: KindPlanningFailure,
		},
		{
			name:     "malformed response",
			err:      ErrMalformedResponse,
			expected: KindMalformedResponse,
		},
		{
			name:     "context deadline counts as per-call timeout",
			err:      context.DeadlineExceeded,
			expected: KindPerCallTimeout,
		},
		{
			name:     "domain error carries its own kind",
			err:      NewDomainError("executor.ExecuteStep", KindPerCallTimeout, errors.New("gateway gave up")),
			expected: KindPerCallTimeout,
		},
		{
			name:     "wrapped domain error",
			err:      fmt.Errorf("step 2: %w", NewDomainError("reflector.Reflect", KindReflectionFailure, ErrReflectionFailed)),
			expected: KindReflectionFailure,
		},
		{
			name:     "unknown errors default to execution error",
			err:      errors.New("socket closed"),
			expected: KindExecutionError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "execution error is retryable",
			err:      errors.New("capability blew up"),
			expected: true,
		},
		{
			name:     "per-call timeout is retryable",
			err:      ErrPerCallTimeout,
			expected: true,
		},
		{
			name:     "wrapped deadline is retryable",
			err:      fmt.Errorf("provider call: %w", context.DeadlineExceeded),
			expected: true,
		},
		{
			name:     "malformed response is not controller-retryable",
			err:      ErrMalformedResponse,
			expected: false,
		},
		{
			name:     "overall timeout is not retryable",
			err:      ErrOverallTimeout,
			expected: false,
		},
		{
			name:     "planning failure is not retryable",
			err:      ErrPlanningFailed,
			expected: false,
		},
		{
			name:     "nil is not retryable",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestDomainErrorFormatting(t *testing.T) {
	inner := errors.New("connection refused")

	e := &DomainError{Op: "planner.Plan", Kind: KindPlanningFailure, Err: inner}
	if got := e.Error(); got != "planner.Plan: connection refused" {
		t.Errorf("unexpected error string: %q", got)
	}

	e.RunID = "run-42"
	if got := e.Error(); got != "planner.Plan [run-42]: connection refused" {
		t.Errorf("unexpected error string with run id: %q", got)
	}

	if !errors.Is(e, inner) {
		t.Error("expected DomainError to unwrap to inner error")
	}

	msgOnly := &DomainError{Kind: KindUnrecoverable, Message: "state machine wedged"}
	if got := msgOnly.Error(); got != "state machine wedged" {
		t.Errorf("unexpected message-only string: %q", got)
	}
}

func TestNewStepError(t *testing.T) {
	se := NewStepError(KindMalformedResponse, "provider", ErrMalformedResponse)

	if se.Kind != KindMalformedResponse {
		t.Errorf("kind = %q, want %q", se.Kind, KindMalformedResponse)
	}
	if se.Source != "provider" {
		t.Errorf("source = %q, want provider", se.Source)
	}
	if se.Message == "" {
		t.Error("expected non-empty message")
	}
	if se.OccurredAt.IsZero() {
		t.Error("expected occurred_at to be set")
	}

	empty := NewStepError(KindExecutionError, "datemath", nil)
	if empty.Message != "" {
		t.Errorf("nil error should produce empty message, got %q", empty.Message)
	}
}
