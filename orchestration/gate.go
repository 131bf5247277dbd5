package orchestration

import (
	"context"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/resilience"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

// Gate is a counting semaphore bounding in-flight external calls
// (reasoning provider and capability invocations) across all concurrent
// runs. Construct one per process and share it between engines.
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate admitting at most limit concurrent calls.
func NewGate(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{slots: make(chan struct{}, limit)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired with Acquire.
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
		// Release without a matching Acquire is a caller bug; swallowing
		// it beats blocking the run loop forever.
	}
}

// InFlight returns the number of slots currently held.
func (g *Gate) InFlight() int {
	return len(g.slots)
}

// Limit returns the gate capacity.
func (g *Gate) Limit() int {
	return cap(g.slots)
}

// guardedClient wraps the raw reasoning client with the shared gate, the
// circuit breaker, and the per-call timeout. It satisfies core.AIClient
// so the planner, executor, and reflector stay unaware of the plumbing.
type guardedClient struct {
	client  core.AIClient
	gate    *Gate
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func newGuardedClient(client core.AIClient, gate *Gate, breaker *resilience.CircuitBreaker, timeout time.Duration) *guardedClient {
	return &guardedClient{client: client, gate: gate, breaker: breaker, timeout: timeout}
}

func (g *guardedClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	waitStart := time.Now()
	if err := g.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer g.gate.Release()
	telemetry.Duration(telemetry.MetricGateWait, waitStart, "module", telemetry.ModuleEngine)
	telemetry.Gauge(telemetry.MetricGateInFlight, float64(g.gate.InFlight()), "module", telemetry.ModuleEngine)

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var resp *core.AIResponse
	err := g.breaker.Execute(callCtx, func() error {
		var genErr error
		resp, genErr = g.client.GenerateResponse(callCtx, prompt, options)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
