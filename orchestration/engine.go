package orchestration

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/walvekarn/agentic-compliance-agent-sub001/capabilities"
	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/resilience"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

// Dependencies carries the shared infrastructure an Engine runs on.
// Construct these once at process start: the gate and breaker are
// meant to span every concurrent run, not be rebuilt per run. AIClient
// is required; everything else has a working default.
type Dependencies struct {
	AIClient     core.AIClient
	Capabilities *capabilities.Registry
	TagTable     capabilities.TagTable
	Gate         *Gate
	Breaker      *resilience.CircuitBreaker
	Logger       core.Logger
	Telemetry    core.Telemetry
}

// Engine drives the plan-execute-reflect loop for compliance task
// analysis. It is safe for concurrent Run calls; per-run state lives in
// the runState each call builds.
type Engine struct {
	config    core.EngineConfig
	planner   Planner
	executor  Executor
	reflector Reflector
	retry     *retryController
	revision  *revisionController
	client    core.AIClient
	logger    core.Logger
	telemetry core.Telemetry
}

// NewEngine validates the configuration and wires the planner,
// executor, and reflector around a guarded client that applies the
// gate, the circuit breaker, and the per-call timeout to every
// provider call.
func NewEngine(cfg *core.Config, deps Dependencies) (*Engine, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.AIClient == nil {
		return nil, fmt.Errorf("%w: engine requires an AI client", core.ErrInvalidConfiguration)
	}

	logger := deps.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	tel := deps.Telemetry
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	gate := deps.Gate
	if gate == nil {
		gate = NewGate(cfg.Gate.MaxConcurrent)
	}
	table := deps.TagTable
	if table == nil {
		table = capabilities.DefaultTagTable()
	}

	guarded := newGuardedClient(deps.AIClient, gate, deps.Breaker, cfg.Engine.PerCallTimeout)
	selector := NewSelector(deps.Capabilities, logger)

	return &Engine{
		config:    cfg.Engine,
		planner:   NewAIPlanner(guarded, deps.Capabilities, table, cfg.Engine, logger, tel),
		executor:  NewStepExecutor(guarded, deps.Capabilities, selector, gate, cfg.Engine.PerCallTimeout, logger, tel),
		reflector: NewAIReflector(guarded, logger, tel),
		retry:     newRetryController(cfg.Engine.MaxRetriesPerStep, logger),
		revision:  newRevisionController(cfg.Engine.RevisionThreshold, logger),
		client:    guarded,
		logger:    logger,
		telemetry: tel,
	}, nil
}

// runState is the mutable state of one Run call. A run executes on a
// single goroutine; concurrency lives below it in the gated provider
// and capability calls, so no locking is needed here.
type runState struct {
	id       string
	task     core.Task
	entity   core.EntityContext
	rc       *RunContext
	machine  *stateMachine
	recorder *traceRecorder
	plan     []core.Step
	budget   int
	revised  bool
}

// Run executes one complete analysis of task against entity.
// maxIterations caps step executions across the whole run, retries and
// plan revisions included; zero or negative means the configured
// default. Run never returns an error: every failure mode lands in the
// RunResult status and is documented by the trace.
func (e *Engine) Run(ctx context.Context, task core.Task, entity core.EntityContext, maxIterations int) core.RunResult {
	if maxIterations <= 0 {
		maxIterations = e.config.MaxIterations
	}
	runID := uuid.NewString()
	start := time.Now()

	telemetry.UpDown(telemetry.MetricRunsActive, 1, "module", telemetry.ModuleEngine)
	defer telemetry.UpDown(telemetry.MetricRunsActive, -1, "module", telemetry.ModuleEngine)

	runCtx, cancel := context.WithTimeout(ctx, e.config.OverallTimeout)
	defer cancel()

	runCtx, span := e.telemetry.StartSpan(runCtx, "engine.run")
	defer span.End()
	span.SetAttribute("run.id", runID)
	span.SetAttribute("run.max_iterations", maxIterations)
	span.SetAttribute("task.category", task.Category)

	e.logger.Info("Run started", map[string]interface{}{
		"operation":      "run_start",
		"run_id":         runID,
		"task_category":  task.Category,
		"entity":         entity.Name,
		"max_iterations": maxIterations,
	})

	run := &runState{
		id:     runID,
		task:   task,
		entity: entity,
		rc: &RunContext{
			RunID:            runID,
			Task:             task,
			Entity:           entity,
			ExecuteConfirmed: e.config.ExecuteConfirmed,
		},
		machine:  newStateMachine(runID, e.logger),
		recorder: newTraceRecorder(runID, nil),
		budget:   maxIterations,
	}

	result := e.executeRun(runCtx, run)

	span.SetAttribute("run.status", string(result.Status))
	telemetry.Counter(telemetry.MetricRunExecutions,
		"module", telemetry.ModuleEngine, "status", string(result.Status))
	telemetry.Duration(telemetry.MetricRunDuration, start, "module", telemetry.ModuleEngine)
	e.logger.Info("Run completed", map[string]interface{}{
		"operation":   "run_complete",
		"run_id":      runID,
		"status":      string(result.Status),
		"steps":       len(result.StepOutputs),
		"confidence":  result.ConfidenceScore,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result
}

// executeRun drives the state machine to a terminal state. The recover
// turns an internal panic into an error-status result that still
// carries whatever trace the run accumulated.
func (e *Engine) executeRun(ctx context.Context, run *runState) (result core.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Run panicked", map[string]interface{}{
				"operation": "run_panic",
				"run_id":    run.id,
				"panic":     fmt.Sprintf("%v", r),
				"stack":     string(debug.Stack()),
			})
			result = e.failResult(run, core.RunStatusError)
		}
	}()

	if err := run.machine.transition(StatePlanning); err != nil {
		return e.unrecoverable(run, err)
	}
	if ctx.Err() != nil {
		return e.failResult(run, core.RunStatusTimeout)
	}

	plan, err := e.planner.Plan(ctx, run.task, run.entity, nil)
	if err != nil {
		if ctx.Err() != nil {
			return e.failResult(run, core.RunStatusTimeout)
		}
		return e.unrecoverable(run, err)
	}
	run.plan = plan
	run.recorder.setInitialPlan(plan)

	for {
		aborted, err := e.executePlan(ctx, run)
		if err != nil {
			return e.unrecoverable(run, err)
		}
		if aborted {
			return e.failResult(run, core.RunStatusTimeout)
		}

		if err := run.machine.transition(StateAggregateReview); err != nil {
			return e.unrecoverable(run, err)
		}
		revise, quality := e.revision.shouldRevise(run.recorder.active(), run.revised, run.budget)
		if !revise {
			break
		}

		if err := run.machine.transition(StateRevisePlan); err != nil {
			return e.unrecoverable(run, err)
		}
		hints := collectGapHints(run.recorder.active(), maxGapHints)
		revisedPlan, planErr := e.planner.Plan(ctx, run.task, run.entity, hints)
		if planErr != nil {
			if ctx.Err() != nil {
				return e.failResult(run, core.RunStatusTimeout)
			}
			return e.unrecoverable(run, planErr)
		}
		run.recorder.supersedeAll()
		run.recorder.setRevisedPlan(revisedPlan)
		run.plan = revisedPlan
		run.revised = true
		run.rc.Prior = nil
		telemetry.Counter(telemetry.MetricPlanRevisions, "module", telemetry.ModuleEngine)
		e.logger.Info("Plan revised", map[string]interface{}{
			"operation":  "plan_revision",
			"run_id":     run.id,
			"quality":    quality,
			"hint_count": len(hints),
			"step_count": len(revisedPlan),
		})
	}

	return e.finalize(ctx, run)
}

// executePlan runs every step of the current plan in order, consuming
// the iteration budget. aborted reports that the run deadline or the
// caller's context expired mid-plan.
func (e *Engine) executePlan(ctx context.Context, run *runState) (aborted bool, err error) {
	for _, step := range run.plan {
		if ctx.Err() != nil {
			return true, nil
		}
		if err := run.machine.transition(StateExecuting); err != nil {
			return false, err
		}
		if run.budget <= 0 {
			e.recordStarved(run, step)
			continue
		}
		stepAborted, stepErr := e.runStep(ctx, run, step)
		if stepErr != nil {
			return false, stepErr
		}
		if stepAborted {
			return true, nil
		}
	}
	return false, nil
}

// runStep drives one step through execute, reflect, and the retry loop
// under the per-step secondary deadline. aborted reports that the
// run-level context expired; the step's own deadline expiring just
// fails the step and lets the plan proceed.
func (e *Engine) runStep(ctx context.Context, run *runState, step core.Step) (aborted bool, err error) {
	stepCtx, cancel := context.WithTimeout(ctx, e.config.SecondaryTimeout)
	defer cancel()

	current := step
	prevIndex := -1
	for {
		run.budget--
		result := e.executor.ExecuteStep(stepCtx, current, run.rc)
		reflection := e.reflector.Reflect(stepCtx, current, result)

		decision := e.retry.decide(stepCtx, result, reflection, run.budget)
		if decision.barred {
			markSuppressedRetry(result, decision.reason)
		}

		index := run.recorder.record(current, result, reflection)
		if prevIndex >= 0 {
			run.recorder.markRevised(prevIndex)
		}

		if !decision.retry {
			run.rc.appendResult(result)
			return ctx.Err() != nil, nil
		}

		if err := run.machine.transition(StateRetry); err != nil {
			return false, err
		}
		if err := run.machine.transition(StateExecuting); err != nil {
			return false, err
		}
		telemetry.Counter(telemetry.MetricStepRetries, "module", telemetry.ModuleEngine)
		prevIndex = index
		current = core.StepRevision{Original: current, FeedbackNotes: decision.feedback}.Materialize()
	}
}

// recordStarved records a synthesized failure for a step the iteration
// budget never allowed to execute, keeping the trace complete and every
// result paired with a reflection without spending a provider call.
func (e *Engine) recordStarved(run *runState, step core.Step) {
	now := time.Now().UTC()
	result := &core.StepResult{
		StepID:           step.ID,
		Status:           core.StepStatusFailure,
		Findings:         []string{},
		Risks:            []string{},
		CapabilitiesUsed: []string{},
		Errors: []core.StepError{
			core.NewStepError(core.KindExecutionError, "engine",
				errors.New("iteration budget exhausted before step executed")),
		},
		RetryCount: step.Revision,
		StartTime:  now,
		EndTime:    now,
	}
	run.recorder.record(step, result, neutralReflection(step.ID))
	run.rc.appendResult(result)
	telemetry.Counter(telemetry.MetricStepFailures, "module", telemetry.ModuleEngine)
	e.logger.Warn("Step skipped, iteration budget exhausted", map[string]interface{}{
		"operation": "step_skipped",
		"run_id":    run.id,
		"step_id":   step.ID,
	})
}

// markSuppressedRetry downgrades a step whose warranted retry was
// barred by a budget or deadline. The recorded failure carries the bar
// reason alongside whatever errors the attempt already collected.
func markSuppressedRetry(result *core.StepResult, reason string) {
	result.Status = core.StepStatusFailure
	result.Errors = append(result.Errors, core.NewStepError(core.KindExecutionError, "engine",
		fmt.Errorf("retry suppressed: %s", reason)))
}

// finalize assembles the final recommendation and closes the run.
// Synthesis uses the provider while the run deadline allows; a run that
// reaches finalization out of time keeps the deterministic summary and
// reports timeout.
func (e *Engine) finalize(ctx context.Context, run *runState) core.RunResult {
	if err := run.machine.transition(StateFinalize); err != nil {
		return e.unrecoverable(run, err)
	}

	records := run.recorder.active()
	confidence := meanConfidence(records)

	var recommendation string
	if ctx.Err() != nil {
		recommendation = buildRecommendation(run.task, records, true)
	} else {
		recommendation = e.synthesize(ctx, run, records)
	}

	status := core.RunStatusCompleted
	terminal := StateDone
	if ctx.Err() != nil {
		status = core.RunStatusTimeout
		terminal = StateAborted
	}
	if err := run.machine.transition(terminal); err != nil {
		return e.unrecoverable(run, err)
	}
	return e.buildResult(run, status, recommendation, confidence)
}

// synthesize produces the final recommendation, preferring the provider
// and falling back to the deterministic summary on any failure.
func (e *Engine) synthesize(ctx context.Context, run *runState, records []core.TraceRecord) string {
	findings, risks := collectFindings(records)
	failures := failedSteps(records)
	prompt := synthesisPrompt(run.task, run.entity, findings, risks, failures)

	response, err := e.client.GenerateResponse(ctx, prompt, &core.AIOptions{
		Temperature:  0.4,
		MaxTokens:    1500,
		SystemPrompt: synthesisSystemPrompt,
	})
	if err == nil && strings.TrimSpace(response.Content) != "" {
		return strings.TrimSpace(response.Content)
	}

	fields := map[string]interface{}{
		"operation": "final_synthesis",
		"run_id":    run.id,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	e.logger.Warn("Final synthesis failed, using deterministic recommendation", fields)
	return buildRecommendation(run.task, records, ctx.Err() != nil)
}

// failResult ends the run from wherever it is with the degraded
// deterministic recommendation. Used for timeouts, caller cancels, and
// the panic path.
func (e *Engine) failResult(run *runState, status core.RunStatus) core.RunResult {
	if err := run.machine.transition(StateAborted); err != nil {
		e.logger.Debug("Abort transition skipped", map[string]interface{}{
			"operation": "run_abort",
			"run_id":    run.id,
			"error":     err.Error(),
		})
	}
	records := run.recorder.active()
	recommendation := buildRecommendation(run.task, records, true)
	return e.buildResult(run, status, recommendation, meanConfidence(records))
}

// unrecoverable ends the run with status error after logging the cause.
func (e *Engine) unrecoverable(run *runState, cause error) core.RunResult {
	e.logger.Error("Run failed", map[string]interface{}{
		"operation": "run_failed",
		"run_id":    run.id,
		"state":     string(run.machine.current()),
		"error":     cause.Error(),
	})
	return e.failResult(run, core.RunStatusError)
}

// buildResult assembles the caller-facing view from the active trace
// and stamps the outcome onto the full trace.
func (e *Engine) buildResult(run *runState, status core.RunStatus, recommendation string, confidence float64) core.RunResult {
	records := run.recorder.active()
	run.recorder.finalize(status, recommendation, confidence)

	outputs := make([]core.StepResult, 0, len(records))
	reflections := make([]core.Reflection, 0, len(records))
	for _, record := range records {
		if record.Result == nil || record.Reflection == nil {
			continue
		}
		outputs = append(outputs, *record.Result)
		reflections = append(reflections, *record.Reflection)
	}

	return core.RunResult{
		RunID:               run.id,
		Status:              status,
		Plan:                append([]core.Step(nil), run.plan...),
		StepOutputs:         outputs,
		Reflections:         reflections,
		FinalRecommendation: recommendation,
		ConfidenceScore:     confidence,
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
		Trace:               run.recorder.trace,
	}
}
