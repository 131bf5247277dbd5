package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/walvekarn/agentic-compliance-agent-sub001/capabilities"
	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

func plannerConfig(minSteps, maxSteps int) core.EngineConfig {
	cfg := testConfig().Engine
	cfg.MinPlanSteps = minSteps
	cfg.MaxPlanSteps = maxSteps
	return cfg
}

func testTask() core.Task {
	return core.Task{
		ID:          "task-1",
		Description: "Assess GDPR readiness for the new data pipeline",
		Category:    "data-privacy",
		Priority:    core.PriorityHigh,
	}
}

func testEntity() core.EntityContext {
	return core.EntityContext{
		Name:          "Acme Corp",
		Jurisdictions: []string{"EU", "US-CA"},
		Industry:      "software",
		Size:          "mid-market",
	}
}

func TestPlannerHappyPath(t *testing.T) {
	client := newScriptedClient(scripted{content: planResponse(
		"identify applicable regulations",
		"map processing activities",
		"produce recommendation",
	)})
	planner := NewAIPlanner(client, nil, nil, plannerConfig(2, 5), nil, nil)

	steps, err := planner.Plan(context.Background(), testTask(), testEntity(), nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[0].ID != "step-1" {
		t.Errorf("provider step id not preserved: %s", steps[0].ID)
	}
	for i, step := range steps {
		if step.Revision != 0 {
			t.Errorf("step %d revision = %d, want 0", i, step.Revision)
		}
	}

	if client.callCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", client.callCount())
	}
	opts := client.options[0]
	if opts.SystemPrompt != plannerSystemPrompt {
		t.Errorf("unexpected system prompt: %q", opts.SystemPrompt)
	}
	if opts.Temperature != 0.3 {
		t.Errorf("unexpected temperature: %g", opts.Temperature)
	}
	if opts.MaxTokens != 2000 {
		t.Errorf("unexpected max tokens: %d", opts.MaxTokens)
	}
}

func TestPlannerInfersMissingTags(t *testing.T) {
	client := newScriptedClient(scripted{content: planResponse(
		"review the GDPR regulatory framework requirements",
		"compute the filing deadline timeline",
		"summarize conclusions",
	)})
	planner := NewAIPlanner(client, nil, capabilities.DefaultTagTable(), plannerConfig(2, 5), nil, nil)

	steps, err := planner.Plan(context.Background(), testTask(), testEntity(), nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	wantTag := func(step core.Step, tag string) {
		t.Helper()
		for _, got := range step.CapabilityTags {
			if got == tag {
				return
			}
		}
		t.Errorf("step %q missing inferred tag %s, has %v", step.Description, tag, step.CapabilityTags)
	}
	wantTag(steps[0], "regulatory-lookup")
	wantTag(steps[1], "deadline-math")
	if len(steps[2].CapabilityTags) != 0 {
		t.Errorf("untaggable step got tags %v", steps[2].CapabilityTags)
	}
}

func TestPlannerKeepsProviderTags(t *testing.T) {
	content := `{"steps":[
		{"step_id":"s1","description":"check regulatory requirements","capability_tags":["risk-score"]},
		{"step_id":"s2","description":"write recommendation"}
	]}`
	client := newScriptedClient(scripted{content: content})
	planner := NewAIPlanner(client, nil, capabilities.DefaultTagTable(), plannerConfig(1, 5), nil, nil)

	steps, err := planner.Plan(context.Background(), testTask(), testEntity(), nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	// Provider tags win over inference even when keywords disagree.
	if len(steps[0].CapabilityTags) != 1 || steps[0].CapabilityTags[0] != "risk-score" {
		t.Errorf("provider tags replaced: %v", steps[0].CapabilityTags)
	}
}

func TestPlannerRegeneratesOnValidationFailure(t *testing.T) {
	client := newScriptedClient(
		scripted{content: planResponse("only one step")},
		scripted{content: planResponse("step one", "step two", "step three")},
	)
	planner := NewAIPlanner(client, nil, nil, plannerConfig(2, 5), nil, nil)

	steps, err := planner.Plan(context.Background(), testTask(), testEntity(), nil)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected regenerated 3-step plan, got %d", len(steps))
	}
	if client.callCount() != 2 {
		t.Fatalf("expected 2 provider calls, got %d", client.callCount())
	}

	second := client.promptAt(1)
	if !strings.Contains(second, "The previous plan failed validation with error:") {
		t.Error("regeneration prompt missing validation preamble")
	}
	if !strings.Contains(second, "got 1 steps, need between 2 and 5") {
		t.Errorf("regeneration prompt missing the concrete validation error:\n%s", second)
	}
	if client.options[1].Temperature != 0.2 {
		t.Errorf("regeneration temperature = %g, want 0.2", client.options[1].Temperature)
	}
}

func TestPlannerFallbackOnProviderError(t *testing.T) {
	client := newScriptedClient(scripted{err: fmt.Errorf("connection refused")})
	planner := NewAIPlanner(client, nil, nil, plannerConfig(3, 7), nil, nil)

	steps, err := planner.Plan(context.Background(), testTask(), testEntity(), nil)
	if err != nil {
		t.Fatalf("expected fallback plan, got error: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("expected 4 template steps, got %d", len(steps))
	}
	// Transport failures skip regeneration entirely.
	if client.callCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", client.callCount())
	}
	for i, step := range steps {
		if step.ID == "" {
			t.Errorf("template step %d has no id", i)
		}
	}
	if steps[0].CapabilityTags[0] != "regulatory-lookup" {
		t.Errorf("template tags lost: %v", steps[0].CapabilityTags)
	}
}

func TestPlannerFallbackAfterFailedRegeneration(t *testing.T) {
	client := newScriptedClient(
		scripted{content: planResponse("only one step")},
		scripted{content: planResponse("still one step")},
	)
	planner := NewAIPlanner(client, nil, nil, plannerConfig(2, 5), nil, nil)

	steps, err := planner.Plan(context.Background(), testTask(), testEntity(), nil)
	if err != nil {
		t.Fatalf("expected fallback plan, got error: %v", err)
	}
	if len(steps) != 4 {
		t.Fatalf("expected 4 template steps, got %d", len(steps))
	}
	if client.callCount() != 2 {
		t.Errorf("expected 2 provider calls, got %d", client.callCount())
	}
}

func TestPlannerFailsWhenFallbackOutOfBounds(t *testing.T) {
	client := newScriptedClient(scripted{err: fmt.Errorf("connection refused")})
	planner := NewAIPlanner(client, nil, nil, plannerConfig(1, 3), nil, nil)

	_, err := planner.Plan(context.Background(), testTask(), testEntity(), nil)
	if err == nil {
		t.Fatal("expected error when template violates bounds")
	}
	if !errors.Is(err, core.ErrPlanningFailed) {
		t.Errorf("expected ErrPlanningFailed, got %v", err)
	}
}

func TestPlannerHintsReachPrompt(t *testing.T) {
	client := newScriptedClient(scripted{content: planResponse("step one", "step two")})
	planner := NewAIPlanner(client, nil, nil, plannerConfig(2, 5), nil, nil)

	hints := []string{"missing retention schedule", "no DPO assessment"}
	if _, err := planner.Plan(context.Background(), testTask(), testEntity(), hints); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	prompt := client.promptAt(0)
	if !strings.Contains(prompt, "A previous pass of this analysis left gaps") {
		t.Error("hint preamble missing from prompt")
	}
	for _, hint := range hints {
		if !strings.Contains(prompt, hint) {
			t.Errorf("hint %q missing from prompt", hint)
		}
	}
}

func TestPlannerListsCapabilitiesInPrompt(t *testing.T) {
	registry := capabilities.NewRegistry(nil, nil)
	registry.MustRegister(&stubCapability{
		name: "regulatory-lookup",
		tags: []string{"regulatory-lookup"},
	})
	client := newScriptedClient(scripted{content: planResponse("step one", "step two")})
	planner := NewAIPlanner(client, registry, nil, plannerConfig(2, 5), nil, nil)

	if _, err := planner.Plan(context.Background(), testTask(), testEntity(), nil); err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !strings.Contains(client.promptAt(0), "regulatory-lookup") {
		t.Error("registered capability missing from planning prompt")
	}
}

func TestValidatePlan(t *testing.T) {
	valid := testPlan("a", "b", "c")

	if err := validatePlan(valid, 2, 5); err != nil {
		t.Errorf("valid plan rejected: %v", err)
	}
	if err := validatePlan(nil, 2, 5); !errors.Is(err, core.ErrEmptyPlan) {
		t.Errorf("expected ErrEmptyPlan, got %v", err)
	}
	if err := validatePlan(valid, 4, 5); !errors.Is(err, core.ErrPlanOutOfRange) {
		t.Errorf("expected ErrPlanOutOfRange below min, got %v", err)
	}
	if err := validatePlan(valid, 1, 2); !errors.Is(err, core.ErrPlanOutOfRange) {
		t.Errorf("expected ErrPlanOutOfRange above max, got %v", err)
	}

	blank := testPlan("a", "b")
	blank[1].Description = "   "
	if err := validatePlan(blank, 1, 5); !errors.Is(err, core.ErrPlanningFailed) {
		t.Errorf("expected ErrPlanningFailed for blank description, got %v", err)
	}
}
