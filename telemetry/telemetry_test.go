package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

func TestPackageAPIWithoutInit(t *testing.T) {
	global.Store(nil)

	// None of these may panic when no provider is installed.
	Counter("run.executions", "status", "completed")
	Add("provider.prompt_tokens", 120)
	Histogram("provider.latency_ms", 42.5)
	Gauge("run.active", 3)
	UpDown("run.active", -1)
	Duration("run.duration_ms", time.Now())
	TimeOperation("run.duration_ms")()
	RecordError("provider.errors", "timeout")
	RecordSuccess("run.executions")
}

func TestToAttributes(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   int
	}{
		{"no labels", nil, 0},
		{"single pair", []string{"status", "ok"}, 1},
		{"two pairs", []string{"status", "ok", "module", "engine"}, 2},
		{"trailing key dropped", []string{"status", "ok", "orphan"}, 1},
		{"lone key dropped", []string{"orphan"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := toAttributes(tt.labels...)
			if len(attrs) != tt.want {
				t.Errorf("toAttributes(%v) = %d attrs, want %d", tt.labels, len(attrs), tt.want)
			}
		})
	}
}

// setupTestMeter installs a manual-reader meter provider so recorded
// values can be collected and inspected.
func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return reader
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("Metric %s is not an int64 sum: %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	t.Fatalf("Metric %s not found", name)
	return 0
}

func TestMetricInstrumentsRecordCounter(t *testing.T) {
	reader := setupTestMeter(t)
	mi := NewMetricInstruments("test-meter")

	ctx := context.Background()
	if err := mi.RecordCounter(ctx, "run.executions", 2); err != nil {
		t.Fatalf("RecordCounter failed: %v", err)
	}
	if err := mi.RecordCounter(ctx, "run.executions", 3); err != nil {
		t.Fatalf("RecordCounter failed: %v", err)
	}

	if got := collectSum(t, reader, "run.executions"); got != 5 {
		t.Errorf("Expected counter total 5, got %d", got)
	}
}

func TestMetricInstrumentsRecordHistogram(t *testing.T) {
	reader := setupTestMeter(t)
	mi := NewMetricInstruments("test-meter")

	ctx := context.Background()
	if err := mi.RecordHistogram(ctx, "provider.latency_ms", 120); err != nil {
		t.Fatalf("RecordHistogram failed: %v", err)
	}
	if err := mi.RecordDuration(ctx, "provider.latency_ms", 80); err != nil {
		t.Fatalf("RecordDuration failed: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	var hist metricdata.Histogram[float64]
	found := false
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == "provider.latency_ms" {
				hist, found = m.Data.(metricdata.Histogram[float64])
			}
		}
	}
	if !found {
		t.Fatal("Histogram provider.latency_ms not found")
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("Expected 2 histogram recordings, got %d", count)
	}
}

func TestMetricInstrumentsConcurrentAccess(t *testing.T) {
	setupTestMeter(t)
	mi := NewMetricInstruments("test-meter")

	ctx := context.Background()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = mi.RecordCounter(ctx, "capability.invocations", 1)
				_ = mi.RecordHistogram(ctx, "capability.duration_ms", float64(j))
				_ = mi.RecordUpDownCounter(ctx, "run.active", 1)
				_ = mi.RecordUpDownCounter(ctx, "run.active", -1)
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}

func TestPackageAPIRoutesToInstruments(t *testing.T) {
	reader := setupTestMeter(t)
	p := &Provider{instruments: NewMetricInstruments("test-meter")}
	global.Store(p)
	defer global.Store(nil)

	Counter("run.executions", "status", "completed")
	Counter("run.executions", "status", "completed")
	Add("provider.prompt_tokens", 250)

	if got := collectSum(t, reader, "run.executions"); got != 2 {
		t.Errorf("Expected 2 executions, got %d", got)
	}
	if got := collectSum(t, reader, "provider.prompt_tokens"); got != 250 {
		t.Errorf("Expected 250 prompt tokens, got %d", got)
	}
}

func TestProviderStdout(t *testing.T) {
	p, err := NewProvider(core.TelemetryConfig{
		ServiceName: "complyagent-test",
		UseStdout:   true,
	})
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if p.meterProvider != nil {
		t.Error("Expected no meter provider on the stdout path")
	}

	ctx, span := p.StartSpan(context.Background(), "run")
	if !HasTraceContext(ctx) {
		t.Error("Expected valid trace context from provider span")
	}
	span.SetAttribute("run.id", "run-1")
	span.SetAttribute("steps", 4)
	span.SetAttribute("quality", 0.85)
	span.SetAttribute("revised", true)
	span.SetAttribute("raw", struct{ A int }{1})
	span.End()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(shutdownCtx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestInitAndGlobalShutdown(t *testing.T) {
	p, err := Init(core.TelemetryConfig{ServiceName: "complyagent-test", UseStdout: true})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if global.Load() != p {
		t.Error("Expected Init to install the global provider")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
	if global.Load() != nil {
		t.Error("Expected Shutdown to clear the global provider")
	}
	// Second shutdown is a no-op.
	if err := Shutdown(ctx); err != nil {
		t.Errorf("Second Shutdown failed: %v", err)
	}
}

func TestTelemetryInterfaceCompliance(t *testing.T) {
	var _ core.Telemetry = (*Provider)(nil)
	var _ core.Telemetry = (*core.NoOpTelemetry)(nil)
}
