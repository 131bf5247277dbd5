// Package core provides the shared domain model for the compliance
// analysis assistant. This file defines the task, plan, and run types
// every other package operates on.
//
// The types here are plain data: tasks and entity profiles coming in,
// steps and their results moving through the engine, reflections grading
// each result, and the execution trace plus final RunResult going out.
// Behavior lives in the packages that consume them; core only enforces
// the structural rules (immutable results, append-only traces, revisions
// as new values).
package core

import (
	"fmt"
	"strings"
	"time"
)

// Task is the immutable description of one compliance task to analyze.
type Task struct {
	ID          string     `json:"id,omitempty"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// Common task priorities. Free-form values are accepted; these are the ones
// the planner prompt calls out.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// EntityContext is the immutable organization profile a run analyzes against.
type EntityContext struct {
	Name          string   `json:"name"`
	Jurisdictions []string `json:"jurisdictions"`
	Industry      string   `json:"industry"`
	Size          string   `json:"size"`
	HistoryRefs   []string `json:"history_refs,omitempty"`
}

// Step is one unit of planned work. Steps are never mutated in place: a retry
// materializes a StepRevision into a new Step with the same ID and a bumped
// Revision counter, and the trace tracks which record superseded which.
type Step struct {
	ID              string   `json:"step_id"`
	Description     string   `json:"description"`
	Rationale       string   `json:"rationale"`
	ExpectedOutcome string   `json:"expected_outcome"`
	CapabilityTags  []string `json:"capability_tags,omitempty"`
	Revision        int      `json:"revision,omitempty"`
}

// StepRevision captures why a step is being re-executed: the original step plus
// the reflection feedback that triggered the retry. Modeled as a value object so
// the audit trail records the reason for every change, not just the new text.
type StepRevision struct {
	Original      Step     `json:"original"`
	FeedbackNotes []string `json:"feedback_notes"`
}

// Materialize produces the revised Step: same ID, incremented revision, and the
// feedback appended to the description as explicit context for the provider.
func (r StepRevision) Materialize() Step {
	revised := r.Original
	revised.Revision = r.Original.Revision + 1
	if len(r.FeedbackNotes) > 0 {
		var b strings.Builder
		b.WriteString(r.Original.Description)
		b.WriteString("\n\nAddress the following feedback from the previous attempt:\n")
		for _, note := range r.FeedbackNotes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
		revised.Description = b.String()
	}
	return revised
}

// StepStatus is the terminal status of one step execution.
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailure StepStatus = "failure"
)

// StepError is one recorded failure during a step. Capability failures and
// provider failures both land here; a step accumulates errors without aborting.
type StepError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StepResult is the normalized outcome of executing one step. Immutable once
// recorded: a retry produces a new StepResult that replaces this one in the
// active trace while the original stays in history.
type StepResult struct {
	StepID           string        `json:"step_id"`
	Status           StepStatus    `json:"status"`
	Output           string        `json:"output"`
	Findings         []string      `json:"findings"`
	Risks            []string      `json:"risks"`
	Confidence       float64       `json:"confidence"`
	CapabilitiesUsed []string      `json:"capabilities_used"`
	Errors           []StepError   `json:"errors,omitempty"`
	ExecutionTime    time.Duration `json:"execution_time"`
	RetryCount       int           `json:"retry_count"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
}

// Reflection is the rubric assessment of one StepResult. Exactly one Reflection
// exists per active StepResult.
type Reflection struct {
	StepID             string   `json:"step_id"`
	CorrectnessScore   float64  `json:"correctness_score"`
	CompletenessScore  float64  `json:"completeness_score"`
	RiskAwarenessScore float64  `json:"risk_awareness_score"`
	HallucinationRisk  float64  `json:"hallucination_risk_score"`
	ActionabilityScore float64  `json:"actionability_score"`
	OverallQuality     float64  `json:"overall_quality"`
	ConfidenceScore    float64  `json:"confidence_score"`
	Issues             []string `json:"issues"`
	Suggestions        []string `json:"suggestions"`
	MissingData        []string `json:"missing_data"`
	RequiresRetry      bool     `json:"requires_retry"`
}

// TraceRecord is one (Step, StepResult, Reflection) tuple in the execution
// trace. Superseded records stay in the trace for audit; the active view
// excludes them.
type TraceRecord struct {
	Step       Step        `json:"step"`
	Result     *StepResult `json:"result,omitempty"`
	Reflection *Reflection `json:"reflection,omitempty"`
	Superseded bool        `json:"superseded,omitempty"`
	Revised    bool        `json:"revised,omitempty"`
}

// ExecutionTrace is the full append-only record of a run.
type ExecutionTrace struct {
	RunID               string        `json:"run_id"`
	InitialPlan         []Step        `json:"initial_plan"`
	RevisedPlan         []Step        `json:"revised_plan,omitempty"`
	Records             []TraceRecord `json:"records"`
	FinalRecommendation string        `json:"final_recommendation,omitempty"`
	FinalConfidence     float64       `json:"final_confidence"`
	Status              RunStatus     `json:"status"`
	StartedAt           time.Time     `json:"started_at"`
	CompletedAt         time.Time     `json:"completed_at,omitempty"`
}

// RunStatus is the terminal status of a whole run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusTimeout   RunStatus = "timeout"
	RunStatusError     RunStatus = "error"
)

// RunResult is what Run returns to the caller: always well formed, even when
// the run degraded. The caller records it to the run store afterwards; the
// engine itself never persists anything.
type RunResult struct {
	RunID               string          `json:"run_id"`
	Status              RunStatus       `json:"status"`
	Plan                []Step          `json:"plan"`
	StepOutputs         []StepResult    `json:"step_outputs"`
	Reflections         []Reflection    `json:"reflections"`
	FinalRecommendation string          `json:"final_recommendation"`
	ConfidenceScore     float64         `json:"confidence_score"`
	Timestamp           string          `json:"timestamp"`
	Trace               *ExecutionTrace `json:"trace,omitempty"`
}
