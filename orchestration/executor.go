package orchestration

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/capabilities"
	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

// defaultConfidence is assumed when the provider omits a confidence
// estimate for a step.
const defaultConfidence = 0.7

// StepExecutor runs one step: capability invocations first, then a
// provider call that reasons over the step, the prior-step window, and
// the capability outputs. All failures are folded into the StepResult.
type StepExecutor struct {
	client    core.AIClient
	registry  *capabilities.Registry
	selector  *Selector
	gate      *Gate
	timeout   time.Duration
	logger    core.Logger
	telemetry core.Telemetry
}

// NewStepExecutor creates an executor. client must already carry the
// per-call timeout for provider calls; timeout here bounds capability
// invocations.
func NewStepExecutor(client core.AIClient, registry *capabilities.Registry, selector *Selector, gate *Gate, timeout time.Duration, logger core.Logger, tel core.Telemetry) *StepExecutor {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	return &StepExecutor{
		client:    client,
		registry:  registry,
		selector:  selector,
		gate:      gate,
		timeout:   timeout,
		logger:    logger,
		telemetry: tel,
	}
}

// ExecuteStep implements Executor. It never returns an error and never
// lets a panic escape: a panicking capability or parser becomes a failed
// StepResult like any other.
func (e *StepExecutor) ExecuteStep(ctx context.Context, step core.Step, rc *RunContext) (result *core.StepResult) {
	start := time.Now()
	result = &core.StepResult{
		StepID:           step.ID,
		Status:           core.StepStatusFailure,
		Findings:         []string{},
		Risks:            []string{},
		CapabilitiesUsed: []string{},
		RetryCount:       step.Revision,
		StartTime:        start,
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Step execution panicked", map[string]interface{}{
				"operation": "step_execute",
				"step_id":   step.ID,
				"panic":     fmt.Sprintf("%v", r),
				"stack":     string(debug.Stack()),
			})
			result.Status = core.StepStatusFailure
			result.Errors = append(result.Errors,
				core.NewStepError(core.KindExecutionError, "executor", fmt.Errorf("panic during step execution: %v", r)))
		}
		result.EndTime = time.Now()
		result.ExecutionTime = result.EndTime.Sub(start)
		if result.Status == core.StepStatusFailure {
			telemetry.Counter(telemetry.MetricStepFailures, "module", telemetry.ModuleEngine)
		}
	}()

	ctx, span := e.telemetry.StartSpan(ctx, "engine.step")
	defer span.End()
	span.SetAttribute("step.id", step.ID)
	span.SetAttribute("step.revision", step.Revision)

	e.logger.Debug("Executing step", map[string]interface{}{
		"operation": "step_execute",
		"run_id":    rc.RunID,
		"step_id":   step.ID,
		"revision":  step.Revision,
	})

	capabilityOutputs := e.invokeCapabilities(ctx, step, rc, result)

	prompt := stepPrompt(step, rc, capabilityOutputs)
	payload, err := e.generateParsed(ctx, prompt, 0.3)
	if err != nil {
		if !errors.Is(err, core.ErrMalformedResponse) {
			result.Errors = append(result.Errors, core.NewStepError(core.KindOf(err), "provider", err))
			return result
		}
		// One stricter re-ask, then the step degrades.
		result.Errors = append(result.Errors, core.NewStepError(core.KindMalformedResponse, "provider", err))
		e.logger.Warn("Step response unparseable, retrying with stricter instruction", map[string]interface{}{
			"operation": "step_execute",
			"step_id":   step.ID,
			"error":     err.Error(),
		})
		payload, err = e.generateParsed(ctx, prompt+strictRetryInstruction, 0.1)
		if err != nil {
			result.Errors = append(result.Errors, core.NewStepError(core.KindOf(err), "provider", err))
			return result
		}
	}

	result.Status = core.StepStatusSuccess
	result.Output = payload.Output
	if payload.Findings != nil {
		result.Findings = payload.Findings
	}
	if payload.Risks != nil {
		result.Risks = payload.Risks
	}
	if payload.Confidence != nil {
		result.Confidence = *payload.Confidence
	} else {
		result.Confidence = defaultConfidence
	}

	span.SetAttribute("step.status", string(result.Status))
	span.SetAttribute("step.confidence", result.Confidence)
	e.logger.Info("Step executed", map[string]interface{}{
		"operation":   "step_execute",
		"run_id":      rc.RunID,
		"step_id":     step.ID,
		"status":      string(result.Status),
		"findings":    len(result.Findings),
		"risks":       len(result.Risks),
		"confidence":  result.Confidence,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result
}

// invokeCapabilities runs every selected capability for the step,
// folding failures into the result's error list without aborting.
// Returned lines feed the provider prompt; CapabilitiesUsed records only
// the modules that actually produced output.
func (e *StepExecutor) invokeCapabilities(ctx context.Context, step core.Step, rc *RunContext, result *core.StepResult) []string {
	if e.selector == nil {
		return nil
	}

	var outputs []string
	for _, module := range e.selector.Select(step, rc.ExecuteConfirmed) {
		name := module.Name()
		capResult, err := e.invokeOne(ctx, name, step, rc)
		if err != nil {
			result.Errors = append(result.Errors,
				core.NewStepError(core.KindOf(err), "capability:"+name, err))
			continue
		}
		if !capResult.Success {
			result.Errors = append(result.Errors,
				core.NewStepError(core.KindExecutionError, "capability:"+name, errors.New(capResult.Error)))
			continue
		}
		result.CapabilitiesUsed = append(result.CapabilitiesUsed, name)
		if capResult.Summary != "" {
			outputs = append(outputs, fmt.Sprintf("[%s] %s", name, capResult.Summary))
		}
	}
	return outputs
}

// invokeOne runs a single capability under the shared gate and the
// per-call timeout.
func (e *StepExecutor) invokeOne(ctx context.Context, name string, step core.Step, rc *RunContext) (*core.CapabilityResult, error) {
	if e.gate != nil {
		if err := e.gate.Acquire(ctx); err != nil {
			return nil, err
		}
		defer e.gate.Release()
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req := core.CapabilityRequest{Step: step, Task: rc.Task, Entity: rc.Entity}
	return e.registry.Invoke(callCtx, name, req)
}

// generateParsed makes one provider call and strictly parses the
// response into the step payload schema.
func (e *StepExecutor) generateParsed(ctx context.Context, prompt string, temperature float32) (*stepPayload, error) {
	resp, err := e.client.GenerateResponse(ctx, prompt, &core.AIOptions{
		Temperature:  temperature,
		MaxTokens:    2000,
		SystemPrompt: executorSystemPrompt,
	})
	if err != nil {
		return nil, err
	}
	return parseStepPayload(resp.Content)
}
