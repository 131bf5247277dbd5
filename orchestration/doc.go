// Package orchestration drives the plan-execute-reflect loop for one
// compliance analysis run.
//
// The Engine plans an ordered list of steps for a task, executes them
// strictly sequentially, grades each result against a quality rubric,
// retries poor steps with explicit feedback, optionally revises the plan
// once when aggregate quality is low, and synthesizes a final
// recommendation. Run never returns an error: every failure mode below
// the run level is folded into the returned RunResult.
//
// Shared infrastructure (the capability registry, the reasoning client,
// the concurrency gate, and the circuit breaker) is constructed once at
// process start and injected. Runs hold no shared mutable state, so any
// number of them may execute concurrently against the same Engine.
package orchestration
