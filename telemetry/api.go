// Package telemetry provides tracing and metrics for compliance analysis runs.
//
// The package-level functions are safe to call before Init: when no
// provider is installed they are silent no-ops. This lets library code
// emit metrics unconditionally while leaving the decision to export
// them to the process entry point.
//
//	telemetry.Counter("run.executions", "module", telemetry.ModuleEngine)
//	telemetry.Histogram("provider.latency_ms", 125.3, "provider", "openai")
//
// Labels are passed as alternating key-value pairs. A trailing key
// without a value is dropped.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Module label values used to attribute metrics to the emitting package.
const (
	ModuleEngine       = "engine"
	ModuleReasoning    = "reasoning"
	ModuleCapabilities = "capabilities"
	ModuleStore        = "store"
	ModuleResilience   = "resilience"
)

// Metric names emitted across the codebase. Declared here so dashboards
// and alerts have a single place to look.
const (
	MetricRunExecutions = "run.executions"
	MetricRunDuration   = "run.duration_ms"
	MetricRunsActive    = "run.active"
	MetricStepRetries   = "run.step.retries"
	MetricStepFailures  = "run.step.failures"
	MetricPlanAttempts  = "run.plan.attempts"
	MetricPlanRevisions = "run.plan.revisions"

	MetricGateWait     = "gate.wait_ms"
	MetricGateInFlight = "gate.in_flight"

	MetricProviderRequests = "provider.requests"
	MetricProviderErrors   = "provider.errors"
	MetricProviderLatency  = "provider.latency_ms"
	MetricPromptTokens     = "provider.prompt_tokens"
	MetricCompletionTokens = "provider.completion_tokens"

	MetricCapabilityInvocations = "capability.invocations"
	MetricCapabilityDuration    = "capability.duration_ms"
	MetricCapabilityErrors      = "capability.errors"

	MetricBreakerOpen     = "circuit_breaker.open"
	MetricBreakerRejected = "circuit_breaker.rejected"

	MetricStoreOperations = "store.operations"
	MetricStoreErrors     = "store.errors"
)

// Counter increments a counter metric by 1.
// Example: Counter("run.executions", "status", "completed")
func Counter(name string, labels ...string) {
	p := global.Load()
	if p == nil {
		return
	}
	_ = p.instruments.RecordCounter(context.Background(), name, 1,
		metric.WithAttributes(toAttributes(labels...)...))
}

// Add increments a counter metric by delta. Use for values accumulated
// in batches, like token counts.
func Add(name string, delta int64, labels ...string) {
	p := global.Load()
	if p == nil {
		return
	}
	_ = p.instruments.RecordCounter(context.Background(), name, delta,
		metric.WithAttributes(toAttributes(labels...)...))
}

// Histogram records a value in a distribution. Use for latencies,
// sizes, scores.
func Histogram(name string, value float64, labels ...string) {
	p := global.Load()
	if p == nil {
		return
	}
	_ = p.instruments.RecordHistogram(context.Background(), name, value,
		metric.WithAttributes(toAttributes(labels...)...))
}

// Gauge records a current-value metric. Recorded as a histogram
// internally so callers do not have to manage observable callbacks;
// use UpDown for values that strictly increment and decrement.
func Gauge(name string, value float64, labels ...string) {
	Histogram(name, value, labels...)
}

// UpDown adjusts a value that can go up and down, like the number of
// runs currently in flight.
func UpDown(name string, delta int64, labels ...string) {
	p := global.Load()
	if p == nil {
		return
	}
	_ = p.instruments.RecordUpDownCounter(context.Background(), name, delta,
		metric.WithAttributes(toAttributes(labels...)...))
}

// Duration records elapsed time since startTime in milliseconds.
//
//	start := time.Now()
//	defer telemetry.Duration("run.duration_ms", start)
func Duration(name string, startTime time.Time, labels ...string) {
	Histogram(name, float64(time.Since(startTime).Milliseconds()), labels...)
}

// TimeOperation returns a func that records the elapsed time when
// called. Intended for defer at the top of an operation.
func TimeOperation(name string, labels ...string) func() {
	start := time.Now()
	return func() {
		Duration(name, start, labels...)
	}
}

// RecordError increments an error counter with an error type label.
func RecordError(name string, errorType string, labels ...string) {
	Counter(name, append(labels, "error_type", errorType)...)
}

// RecordSuccess increments a counter with a success status label.
func RecordSuccess(name string, labels ...string) {
	Counter(name, append(labels, "status", "success")...)
}

// toAttributes converts alternating key-value strings to attributes.
// A trailing key without a value is dropped.
func toAttributes(labels ...string) []attribute.KeyValue {
	if len(labels) < 2 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}
