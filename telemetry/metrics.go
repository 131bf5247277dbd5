package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricInstruments caches metric instruments so repeated recordings
// against the same name do not re-create them.
type MetricInstruments struct {
	meter          metric.Meter
	counters       map[string]metric.Int64Counter
	upDownCounters map[string]metric.Int64UpDownCounter
	histograms     map[string]metric.Float64Histogram
	mu             sync.RWMutex
}

// NewMetricInstruments creates an instrument cache backed by the global
// meter provider.
func NewMetricInstruments(meterName string) *MetricInstruments {
	return &MetricInstruments{
		meter:          otel.Meter(meterName),
		counters:       make(map[string]metric.Int64Counter),
		upDownCounters: make(map[string]metric.Int64UpDownCounter),
		histograms:     make(map[string]metric.Float64Histogram),
	}
}

// cached returns the instrument stored under name, creating and storing
// it on first use. The read path takes only the read lock; creation
// re-checks under the write lock.
func cached[T any](mu *sync.RWMutex, cache map[string]T, name string, create func() (T, error)) (T, error) {
	mu.RLock()
	inst, ok := cache[name]
	mu.RUnlock()
	if ok {
		return inst, nil
	}

	mu.Lock()
	defer mu.Unlock()
	if inst, ok = cache[name]; ok {
		return inst, nil
	}
	inst, err := create()
	if err != nil {
		var zero T
		return zero, err
	}
	cache[name] = inst
	return inst, nil
}

// RecordCounter adds value to a counter metric.
func (m *MetricInstruments) RecordCounter(ctx context.Context, name string, value int64, opts ...metric.AddOption) error {
	counter, err := cached(&m.mu, m.counters, name, func() (metric.Int64Counter, error) {
		return m.meter.Int64Counter(name)
	})
	if err != nil {
		return fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	counter.Add(ctx, value, opts...)
	return nil
}

// RecordUpDownCounter adds value, which may be negative, to a counter
// that tracks a current level, like in-flight runs.
func (m *MetricInstruments) RecordUpDownCounter(ctx context.Context, name string, value int64, opts ...metric.AddOption) error {
	counter, err := cached(&m.mu, m.upDownCounters, name, func() (metric.Int64UpDownCounter, error) {
		return m.meter.Int64UpDownCounter(name)
	})
	if err != nil {
		return fmt.Errorf("failed to create up-down counter %s: %w", name, err)
	}
	counter.Add(ctx, value, opts...)
	return nil
}

// RecordHistogram records a value distribution, like latencies or
// quality scores.
func (m *MetricInstruments) RecordHistogram(ctx context.Context, name string, value float64, opts ...metric.RecordOption) error {
	histogram, err := cached(&m.mu, m.histograms, name, func() (metric.Float64Histogram, error) {
		return m.meter.Float64Histogram(name)
	})
	if err != nil {
		return fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	histogram.Record(ctx, value, opts...)
	return nil
}

// RecordDuration records a duration in milliseconds as a histogram.
func (m *MetricInstruments) RecordDuration(ctx context.Context, name string, milliseconds float64, opts ...metric.RecordOption) error {
	return m.RecordHistogram(ctx, name, milliseconds, opts...)
}

// RecordError increments an error counter tagged with the error type.
func (m *MetricInstruments) RecordError(ctx context.Context, name string, errorType string) error {
	return m.RecordCounter(ctx, name, 1,
		metric.WithAttributes(attribute.String("error.type", errorType)))
}

// RecordSuccess increments a success counter.
func (m *MetricInstruments) RecordSuccess(ctx context.Context, name string) error {
	return m.RecordCounter(ctx, name, 1,
		metric.WithAttributes(attribute.String("status", "success")))
}
