package orchestration

import (
	"context"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// Planner produces an ordered step plan for a task. Hints carry the gap
// feedback aggregated from a prior pass and are only non-empty during
// plan revision. Implementations are expected to degrade to a fixed
// template rather than fail; a returned error means even the template
// could not satisfy the configured plan bounds and the run cannot
// proceed.
type Planner interface {
	Plan(ctx context.Context, task core.Task, entity core.EntityContext, hints []string) ([]core.Step, error)
}

// Executor runs a single step. Failures never surface as errors: they
// are encoded in the returned StepResult so the run loop can keep its
// control flow uniform.
type Executor interface {
	ExecuteStep(ctx context.Context, step core.Step, rc *RunContext) *core.StepResult
}

// Reflector grades one step result against the quality rubric. It never
// returns an error; when grading itself fails it produces a neutral
// Reflection that takes no position.
type Reflector interface {
	Reflect(ctx context.Context, step core.Step, result *core.StepResult) *core.Reflection
}

// RunContext carries the per-run inputs every step sees. Prior holds the
// active result of each completed step in plan order; the executor
// summarizes a bounded window of it into the provider prompt so later
// steps can build on earlier ones.
type RunContext struct {
	RunID            string
	Task             core.Task
	Entity           core.EntityContext
	ExecuteConfirmed bool
	Prior            []*core.StepResult
}

// appendResult records a completed step's active result.
func (rc *RunContext) appendResult(result *core.StepResult) {
	if result == nil {
		return
	}
	rc.Prior = append(rc.Prior, result)
}
