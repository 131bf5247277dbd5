package resilience

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited probe requests
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier determines which errors count toward opening the
// circuit.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts only availability failures. A malformed
// or low-quality provider response means the provider answered, so it
// says nothing about whether the next call will get through; the same
// goes for a caller that gave up.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, core.ErrInvalidConfiguration) || errors.Is(err, core.ErrMissingConfiguration) {
		return false
	}
	switch core.KindOf(err) {
	case core.KindMalformedResponse, core.KindReflectionFailure:
		return false
	}
	return true
}

// Config holds circuit breaker settings.
type Config struct {
	// Name identifies the circuit breaker in logs and metrics.
	Name string

	// Threshold is the number of consecutive counted failures that
	// opens the circuit.
	Threshold int

	// ResetTimeout is how long the circuit stays open before allowing
	// probe requests.
	ResetTimeout time.Duration

	// HalfOpenLimit is the number of probe requests allowed while
	// half-open.
	HalfOpenLimit int

	// SuccessThreshold is the fraction of probes that must succeed for
	// the circuit to close again.
	SuccessThreshold float64

	// WindowSize and BucketCount configure the sliding window used for
	// error rate reporting.
	WindowSize  time.Duration
	BucketCount int

	// ErrorClassifier decides which errors count as failures.
	ErrorClassifier ErrorClassifier

	// Logger for state change events.
	Logger core.Logger
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("configuration cannot be nil")
	}
	if c.Name == "" {
		return errors.New("circuit breaker name is required")
	}
	if c.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1, got %d", c.Threshold)
	}
	if c.ResetTimeout <= 0 {
		return fmt.Errorf("reset timeout must be positive, got %v", c.ResetTimeout)
	}
	if c.HalfOpenLimit < 1 {
		return fmt.Errorf("half-open limit must be at least 1, got %d", c.HalfOpenLimit)
	}
	if c.SuccessThreshold < 0 || c.SuccessThreshold > 1 {
		return fmt.Errorf("success threshold must be between 0 and 1, got %f", c.SuccessThreshold)
	}
	return nil
}

// DefaultConfig returns a production-ready default configuration
func DefaultConfig() *Config {
	return &Config{
		Name:             "default",
		Threshold:        5,
		ResetTimeout:     30 * time.Second,
		HalfOpenLimit:    1,
		SuccessThreshold: 0.5,
		WindowSize:       60 * time.Second,
		BucketCount:      10,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
	}
}

// CircuitBreaker protects a dependency from being hammered while it is
// failing. Consecutive counted failures open the circuit; after
// ResetTimeout a limited number of probes decide whether it closes.
type CircuitBreaker struct {
	config *Config

	state          atomic.Value // CircuitState
	stateChangedAt atomic.Value // time.Time

	consecutiveFailures atomic.Int32
	window              *slidingWindow

	halfOpenTotal     atomic.Int32
	halfOpenSuccesses atomic.Int32
	halfOpenFailures  atomic.Int32

	totalExecutions    atomic.Uint64
	rejectedExecutions atomic.Uint64

	mu sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker from config. A nil config
// uses defaults.
func NewCircuitBreaker(config *Config) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	if config.WindowSize == 0 {
		config.WindowSize = 60 * time.Second
	}
	if config.BucketCount == 0 {
		config.BucketCount = 10
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 0.5
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}

	cb := &CircuitBreaker{
		config: config,
		window: newSlidingWindow(config.WindowSize, config.BucketCount),
	}
	cb.state.Store(StateClosed)
	cb.stateChangedAt.Store(time.Now())

	config.Logger.Info("Circuit breaker created", map[string]interface{}{
		"operation":        "circuit_breaker_created",
		"name":             config.Name,
		"threshold":        config.Threshold,
		"reset_timeout_ms": config.ResetTimeout.Milliseconds(),
		"half_open_limit":  config.HalfOpenLimit,
	})
	return cb, nil
}

// FromBreakerConfig builds a circuit breaker from the application
// breaker settings. Returns nil when the breaker is disabled; callers
// treat a nil breaker as pass-through.
func FromBreakerConfig(cfg core.BreakerConfig, name string, logger core.Logger) (*CircuitBreaker, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	config := DefaultConfig()
	config.Name = name
	config.Threshold = cfg.Threshold
	config.ResetTimeout = cfg.ResetTimeout
	config.HalfOpenLimit = cfg.HalfOpenLimit
	config.Logger = logger
	return NewCircuitBreaker(config)
}

// Name returns the configured breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Execute runs fn with circuit breaker protection. A nil receiver is
// pass-through so disabled breakers need no call-site branching.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if cb == nil {
		return fn()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if !cb.CanExecute() {
		cb.rejectedExecutions.Add(1)
		telemetry.Counter(telemetry.MetricBreakerRejected,
			"name", cb.config.Name, "module", telemetry.ModuleResilience)
		return fmt.Errorf("circuit breaker %q is open: %w", cb.config.Name, core.ErrCircuitBreakerOpen)
	}

	cb.totalExecutions.Add(1)
	err := cb.run(fn)
	if err != nil {
		cb.RecordFailure(err)
		return err
	}
	cb.RecordSuccess()
	return nil
}

// run invokes fn, converting a panic into an error so one bad provider
// response cannot take down the whole run loop.
func (cb *CircuitBreaker) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err = fmt.Errorf("panic in circuit breaker %q: %v", cb.config.Name, r)
			cb.config.Logger.Error("Circuit breaker caught panic", map[string]interface{}{
				"operation": "circuit_breaker_panic",
				"name":      cb.config.Name,
				"panic":     fmt.Sprintf("%v", r),
				"stack":     string(stack),
			})
		}
	}()
	return fn()
}

// CanExecute reports whether a request may proceed. In the half-open
// state a true result reserves one of the probe slots, so callers must
// follow up with RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) CanExecute() bool {
	if cb == nil {
		return true
	}

	switch cb.state.Load().(CircuitState) {
	case StateClosed:
		return true

	case StateOpen:
		changedAt := cb.stateChangedAt.Load().(time.Time)
		if time.Since(changedAt) < cb.config.ResetTimeout {
			return false
		}
		cb.mu.Lock()
		if cb.state.Load().(CircuitState) == StateOpen {
			cb.transitionToUnlocked(StateHalfOpen)
		}
		cb.mu.Unlock()
		return cb.CanExecute()

	case StateHalfOpen:
		for {
			current := cb.halfOpenTotal.Load()
			if int(current) >= cb.config.HalfOpenLimit {
				return false
			}
			if cb.halfOpenTotal.CompareAndSwap(current, current+1) {
				return true
			}
		}

	default:
		return false
	}
}

// RecordSuccess records a successful operation.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.window.recordSuccess()
	cb.consecutiveFailures.Store(0)
	if cb.state.Load().(CircuitState) == StateHalfOpen {
		cb.halfOpenSuccesses.Add(1)
	}
	cb.evaluateState()
}

// RecordFailure records a failed operation. Errors the classifier
// excludes reset nothing and count nothing.
func (cb *CircuitBreaker) RecordFailure(err error) {
	if cb == nil {
		return
	}
	if !cb.config.ErrorClassifier(err) {
		// Release the probe slot so an uncounted error cannot pin the
		// breaker in half-open.
		if cb.state.Load().(CircuitState) == StateHalfOpen {
			cb.halfOpenTotal.Add(-1)
		}
		return
	}
	cb.window.recordFailure()
	cb.consecutiveFailures.Add(1)
	if cb.state.Load().(CircuitState) == StateHalfOpen {
		cb.halfOpenFailures.Add(1)
	}
	cb.evaluateState()
}

// evaluateState checks whether a state transition is needed.
func (cb *CircuitBreaker) evaluateState() {
	switch cb.state.Load().(CircuitState) {
	case StateClosed:
		if int(cb.consecutiveFailures.Load()) >= cb.config.Threshold {
			cb.mu.Lock()
			if cb.state.Load().(CircuitState) == StateClosed {
				cb.transitionToUnlocked(StateOpen)
			}
			cb.mu.Unlock()
		}

	case StateHalfOpen:
		successes := cb.halfOpenSuccesses.Load()
		failures := cb.halfOpenFailures.Load()
		completed := successes + failures
		if int(completed) < cb.config.HalfOpenLimit {
			return
		}

		successRate := float64(successes) / float64(completed)
		cb.mu.Lock()
		defer cb.mu.Unlock()
		if cb.state.Load().(CircuitState) != StateHalfOpen {
			return
		}
		if successRate >= cb.config.SuccessThreshold {
			cb.transitionToUnlocked(StateClosed)
		} else {
			cb.transitionToUnlocked(StateOpen)
		}
	}
}

// transitionToUnlocked changes state. Callers must hold cb.mu.
func (cb *CircuitBreaker) transitionToUnlocked(newState CircuitState) {
	oldState := cb.state.Load().(CircuitState)
	if oldState == newState {
		return
	}

	cb.state.Store(newState)
	cb.stateChangedAt.Store(time.Now())

	switch newState {
	case StateHalfOpen:
		cb.halfOpenTotal.Store(0)
		cb.halfOpenSuccesses.Store(0)
		cb.halfOpenFailures.Store(0)
	case StateClosed:
		cb.consecutiveFailures.Store(0)
	case StateOpen:
		telemetry.Counter(telemetry.MetricBreakerOpen,
			"name", cb.config.Name, "module", telemetry.ModuleResilience)
	}

	cb.config.Logger.Info("Circuit breaker state changed", map[string]interface{}{
		"operation":  "circuit_breaker_state_change",
		"name":       cb.config.Name,
		"from":       oldState.String(),
		"to":         newState.String(),
		"error_rate": cb.window.errorRate(),
	})
}

// GetState returns the current state name.
func (cb *CircuitBreaker) GetState() string {
	if cb == nil {
		return StateClosed.String()
	}
	return cb.state.Load().(CircuitState).String()
}

// GetMetrics returns a snapshot of breaker counters for diagnostics.
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	success, failure := cb.window.counts()
	return map[string]interface{}{
		"name":                 cb.config.Name,
		"state":                cb.GetState(),
		"success":              success,
		"failure":              failure,
		"error_rate":           cb.window.errorRate(),
		"consecutive_failures": cb.consecutiveFailures.Load(),
		"total_executions":     cb.totalExecutions.Load(),
		"rejected_executions":  cb.rejectedExecutions.Load(),
	}
}

// Reset returns the breaker to the closed state and clears counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state.Load().(CircuitState)
	cb.state.Store(StateClosed)
	cb.stateChangedAt.Store(time.Now())
	cb.consecutiveFailures.Store(0)
	cb.halfOpenTotal.Store(0)
	cb.halfOpenSuccesses.Store(0)
	cb.halfOpenFailures.Store(0)
	cb.window = newSlidingWindow(cb.config.WindowSize, cb.config.BucketCount)

	cb.config.Logger.Info("Circuit breaker reset", map[string]interface{}{
		"operation":      "circuit_breaker_reset",
		"name":           cb.config.Name,
		"previous_state": oldState.String(),
	})
}

// bucket holds counts for one slice of the sliding window.
type bucket struct {
	success uint64
	failure uint64
}

// slidingWindow tracks recent success and failure counts for error
// rate reporting. All access is serialized by mu; rotation happens
// lazily on record and read.
type slidingWindow struct {
	buckets      []bucket
	bucketSize   time.Duration
	windowSize   time.Duration
	currentIdx   int
	lastRotation time.Time
	mu           sync.Mutex
}

func newSlidingWindow(windowSize time.Duration, bucketCount int) *slidingWindow {
	if bucketCount <= 0 {
		bucketCount = 10
	}
	return &slidingWindow{
		buckets:      make([]bucket, bucketCount),
		bucketSize:   windowSize / time.Duration(bucketCount),
		windowSize:   windowSize,
		lastRotation: time.Now(),
	}
}

// rotate expires buckets older than the window. Callers must hold mu.
func (sw *slidingWindow) rotate() {
	elapsed := time.Since(sw.lastRotation)
	if elapsed < sw.bucketSize {
		return
	}

	steps := int(elapsed / sw.bucketSize)
	if steps > len(sw.buckets) {
		steps = len(sw.buckets)
	}
	for i := 0; i < steps; i++ {
		sw.currentIdx = (sw.currentIdx + 1) % len(sw.buckets)
		sw.buckets[sw.currentIdx] = bucket{}
	}
	sw.lastRotation = time.Now()
}

func (sw *slidingWindow) recordSuccess() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotate()
	sw.buckets[sw.currentIdx].success++
}

func (sw *slidingWindow) recordFailure() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotate()
	sw.buckets[sw.currentIdx].failure++
}

func (sw *slidingWindow) counts() (success, failure uint64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotate()
	for i := range sw.buckets {
		success += sw.buckets[i].success
		failure += sw.buckets[i].failure
	}
	return success, failure
}

func (sw *slidingWindow) errorRate() float64 {
	success, failure := sw.counts()
	total := success + failure
	if total == 0 {
		return 0
	}
	return float64(failure) / float64(total)
}
