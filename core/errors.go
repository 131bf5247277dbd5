package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure within the run error taxonomy. Kinds decide
// routing: which failures retry, which degrade, which end the run.
type ErrorKind string

const (
	KindPlanningFailure   ErrorKind = "planning_failure"
	KindExecutionError    ErrorKind = "execution_error"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindReflectionFailure ErrorKind = "reflection_failure"
	KindPerCallTimeout    ErrorKind = "per_call_timeout"
	KindOverallTimeout    ErrorKind = "overall_timeout"
	KindUnrecoverable     ErrorKind = "unrecoverable"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Planning errors
	ErrPlanningFailed = errors.New("planning failed")
	ErrPlanOutOfRange = errors.New("plan length out of range")
	ErrEmptyPlan      = errors.New("plan contains no steps")

	// Execution errors
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrReflectionFailed  = errors.New("reflection failed")
	ErrPerCallTimeout    = errors.New("per-call timeout exceeded")
	ErrOverallTimeout    = errors.New("overall run timeout exceeded")
	ErrUnrecoverable     = errors.New("unrecoverable run error")
	ErrBudgetExhausted   = errors.New("iteration budget exhausted")

	// Capability errors
	ErrCapabilityNotFound = errors.New("capability not found")
	ErrCapabilityExcluded = errors.New("capability excluded by side-effect policy")

	// Provider errors
	ErrProviderUnavailable = errors.New("reasoning provider unavailable")

	// Resilience errors
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrMaxRetriesExceeded = errors.New("max retry attempts exceeded")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Store errors
	ErrRunNotFound  = errors.New("run not found")
	ErrDuplicateRun = errors.New("run already recorded")
)

// DomainError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type DomainError struct {
	Op      string    // Operation that failed (e.g., "planner.Plan")
	Kind    ErrorKind // Taxonomy classification
	RunID   string    // Optional run the error belongs to
	Message string    // Human-readable message
	Err     error     // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *DomainError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.RunID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.RunID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(op string, kind ErrorKind, err error) *DomainError {
	return &DomainError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// KindOf extracts the taxonomy kind of an error, walking the wrap chain.
// Context deadline errors classify as per-call timeouts; everything else
// without an explicit kind is an execution error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrPlanningFailed), errors.Is(err, ErrPlanOutOfRange), errors.Is(err, ErrEmptyPlan):
		return KindPlanningFailure
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrReflectionFailed):
		return KindReflectionFailure
	case errors.Is(err, ErrPerCallTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindPerCallTimeout
	case errors.Is(err, ErrOverallTimeout):
		return KindOverallTimeout
	case errors.Is(err, ErrUnrecoverable):
		return KindUnrecoverable
	default:
		return KindExecutionError
	}
}

// IsRetryable reports whether a step failure of this kind goes through the
// retry controller. Malformed responses get their single stricter re-ask inside
// the executor, not a controller retry, so they are not retryable here.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindExecutionError, KindPerCallTimeout:
		return true
	default:
		return false
	}
}

// IsTimeout checks if an error represents either timeout level
func IsTimeout(err error) bool {
	k := KindOf(err)
	return k == KindPerCallTimeout || k == KindOverallTimeout
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}

// NewStepError builds the serializable error record a StepResult carries.
func NewStepError(kind ErrorKind, source string, err error) StepError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return StepError{
		Kind:       kind,
		Message:    msg,
		Source:     source,
		OccurredAt: time.Now().UTC(),
	}
}
