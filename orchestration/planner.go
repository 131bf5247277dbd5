package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/walvekarn/agentic-compliance-agent-sub001/capabilities"
	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

// AIPlanner builds step plans through the reasoning provider. It
// self-heals: a validation failure triggers one regeneration attempt
// with the validation error fed back, then the fixed fallback template.
// Plan only returns an error when even the template violates the
// configured step bounds.
type AIPlanner struct {
	client    core.AIClient
	registry  *capabilities.Registry
	table     capabilities.TagTable
	config    core.EngineConfig
	logger    core.Logger
	telemetry core.Telemetry
}

// NewAIPlanner creates a planner. Nil logger and telemetry fall back to
// no-op implementations; the table defaults to the built-in keyword
// table.
func NewAIPlanner(client core.AIClient, registry *capabilities.Registry, table capabilities.TagTable, config core.EngineConfig, logger core.Logger, tel core.Telemetry) *AIPlanner {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	if table == nil {
		table = capabilities.DefaultTagTable()
	}
	return &AIPlanner{
		client:    client,
		registry:  registry,
		table:     table,
		config:    config,
		logger:    logger,
		telemetry: tel,
	}
}

// Plan implements Planner.
func (p *AIPlanner) Plan(ctx context.Context, task core.Task, entity core.EntityContext, hints []string) ([]core.Step, error) {
	start := time.Now()
	ctx, span := p.telemetry.StartSpan(ctx, "engine.plan")
	defer span.End()
	span.SetAttribute("task.category", task.Category)
	span.SetAttribute("plan.revision", len(hints) > 0)

	p.logger.Debug("Starting plan generation", map[string]interface{}{
		"operation":     "plan_generation_start",
		"task_category": task.Category,
		"hint_count":    len(hints),
	})

	prompt := planningPrompt(task, entity, hints, p.capabilityLines(), p.config.MinPlanSteps, p.config.MaxPlanSteps)

	steps, err := p.generate(ctx, prompt, 0.3)
	if err != nil {
		// A provider transport failure will not get better from a
		// reworded prompt; go straight to the template.
		p.logger.Warn("Plan generation failed, using fallback template", map[string]interface{}{
			"operation": "plan_fallback",
			"error":     err.Error(),
		})
		return p.fallback(span, start)
	}

	if verr := validatePlan(steps, p.config.MinPlanSteps, p.config.MaxPlanSteps); verr != nil {
		p.logger.Warn("Plan failed validation, regenerating", map[string]interface{}{
			"operation": "plan_regeneration",
			"error":     verr.Error(),
		})
		steps, err = p.generate(ctx, regenerationPrompt(prompt, verr), 0.2)
		if err == nil {
			err = validatePlan(steps, p.config.MinPlanSteps, p.config.MaxPlanSteps)
		}
		if err != nil {
			p.logger.Warn("Regenerated plan still invalid, using fallback template", map[string]interface{}{
				"operation": "plan_fallback",
				"error":     err.Error(),
			})
			return p.fallback(span, start)
		}
	}

	plan := p.normalize(steps)
	span.SetAttribute("plan.steps", len(plan))
	p.logger.Info("Plan generated", map[string]interface{}{
		"operation":   "plan_generation_complete",
		"step_count":  len(plan),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return plan, nil
}

// generate makes one provider call and parses the response into steps.
func (p *AIPlanner) generate(ctx context.Context, prompt string, temperature float32) ([]core.Step, error) {
	telemetry.Counter(telemetry.MetricPlanAttempts, "module", telemetry.ModuleEngine)

	resp, err := p.client.GenerateResponse(ctx, prompt, &core.AIOptions{
		Temperature:  temperature,
		MaxTokens:    2000,
		SystemPrompt: plannerSystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPlanningFailed, err)
	}

	p.logger.Debug("Plan response received", map[string]interface{}{
		"operation":       "plan_response",
		"tokens_used":     resp.Usage.TotalTokens,
		"response_length": len(resp.Content),
	})
	return parsePlan(resp.Content)
}

// fallback returns the fixed 4-step template, still subject to the
// configured plan bounds. When the bounds exclude it the planner has
// genuinely failed and the run cannot proceed.
func (p *AIPlanner) fallback(span core.Span, start time.Time) ([]core.Step, error) {
	steps := fallbackPlan()
	if err := validatePlan(steps, p.config.MinPlanSteps, p.config.MaxPlanSteps); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: fallback template rejected: %v", core.ErrPlanningFailed, err)
	}
	plan := p.normalize(steps)
	span.SetAttribute("plan.steps", len(plan))
	span.SetAttribute("plan.fallback", true)
	p.logger.Info("Plan generated from fallback template", map[string]interface{}{
		"operation":   "plan_generation_complete",
		"step_count":  len(plan),
		"fallback":    true,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return plan, nil
}

// normalize fills in step identity and infers capability tags for steps
// the provider left untagged. Tag inference happens here, at plan time;
// dispatch later is by exact tag only.
func (p *AIPlanner) normalize(steps []core.Step) []core.Step {
	plan := make([]core.Step, len(steps))
	for i, step := range steps {
		step.Description = strings.TrimSpace(step.Description)
		step.Rationale = strings.TrimSpace(step.Rationale)
		step.ExpectedOutcome = strings.TrimSpace(step.ExpectedOutcome)
		if step.ID == "" {
			step.ID = uuid.NewString()
		}
		step.Revision = 0
		if len(step.CapabilityTags) == 0 {
			step.CapabilityTags = p.table.Match(step.Description)
		}
		plan[i] = step
	}
	return plan
}

// capabilityLines renders the registered capabilities for the planning
// prompt. A nil registry means planning proceeds without capability
// guidance.
func (p *AIPlanner) capabilityLines() []string {
	if p.registry == nil {
		return nil
	}
	var lines []string
	for _, meta := range p.registry.List() {
		lines = append(lines, fmt.Sprintf("%s (tags: %s): %s", meta.Name, strings.Join(meta.Tags, ", "), meta.Description))
	}
	return lines
}

// validatePlan checks the structural plan invariants. The returned error
// text is fed back into the regeneration prompt, so it names the exact
// problem.
func validatePlan(steps []core.Step, minSteps, maxSteps int) error {
	if len(steps) == 0 {
		return core.ErrEmptyPlan
	}
	if len(steps) < minSteps || len(steps) > maxSteps {
		return fmt.Errorf("%w: got %d steps, need between %d and %d", core.ErrPlanOutOfRange, len(steps), minSteps, maxSteps)
	}
	for i, step := range steps {
		if strings.TrimSpace(step.Description) == "" {
			return fmt.Errorf("%w: step %d has an empty description", core.ErrPlanningFailed, i+1)
		}
	}
	return nil
}

// fallbackPlan is the fixed template used when the provider cannot
// produce a valid plan.
func fallbackPlan() []core.Step {
	return []core.Step{
		{
			Description:     "Identify the regulatory requirements that apply to this task",
			Rationale:       "The applicable obligations determine everything downstream",
			ExpectedOutcome: "List of applicable frameworks and their key obligations",
			CapabilityTags:  []string{"regulatory-lookup"},
		},
		{
			Description:     "Gather organizational context and timeline constraints",
			Rationale:       "Obligations only matter relative to the entity's situation and deadlines",
			ExpectedOutcome: "Entity posture and deadline urgency relevant to the task",
			CapabilityTags:  []string{"deadline-math"},
		},
		{
			Description:     "Assess compliance risks and gaps against the requirements",
			Rationale:       "Prioritization needs an explicit risk picture",
			ExpectedOutcome: "Ranked list of risks and gaps with severity",
			CapabilityTags:  []string{"risk-score"},
		},
		{
			Description:     "Produce a prioritized compliance recommendation",
			Rationale:       "The analysis must end in actionable guidance",
			ExpectedOutcome: "Concrete prioritized recommendation addressing the task",
		},
	}
}
