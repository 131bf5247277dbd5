package orchestration

import (
	"context"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// retryDiscretion is the quality ceiling below which the controller
// retries a fair-band step on its own initiative, provided the
// reflection names at least one concrete issue or missing item. Between
// this and goodQuality only an explicit requires_retry flag triggers a
// retry.
const retryDiscretion = 0.60

// retryDecision is the controller's verdict for one executed step.
// barred means a retry was warranted but a budget or deadline blocks
// it; the engine then records the step as failed.
type retryDecision struct {
	retry    bool
	barred   bool
	reason   string
	feedback []string
}

// retryController decides whether a step is re-executed with feedback.
type retryController struct {
	maxRetries int
	logger     core.Logger
}

func newRetryController(maxRetries int, logger core.Logger) *retryController {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &retryController{maxRetries: maxRetries, logger: logger}
}

// decide applies the retry policy: a retry must be warranted by the
// result or the reflection, and both the per-step and the global budget
// must have headroom.
func (c *retryController) decide(ctx context.Context, result *core.StepResult, reflection *core.Reflection, budgetLeft int) retryDecision {
	reason, wants := wantsRetry(result, reflection)
	if !wants {
		return retryDecision{}
	}

	decision := retryDecision{reason: reason, feedback: feedbackNotes(result, reflection)}
	switch {
	case result.RetryCount >= c.maxRetries:
		decision.barred = true
		decision.reason = "per-step retry budget exhausted"
	case budgetLeft <= 0:
		decision.barred = true
		decision.reason = "global iteration budget exhausted"
	case ctx.Err() != nil:
		decision.barred = true
		decision.reason = "step time budget exhausted"
	default:
		decision.retry = true
	}

	if decision.barred {
		c.logger.Warn("Step retry suppressed", map[string]interface{}{
			"operation":   "step_retry",
			"step_id":     result.StepID,
			"retry_count": result.RetryCount,
			"reason":      decision.reason,
			"wanted_for":  reason,
		})
	} else {
		c.logger.Info("Retrying step with feedback", map[string]interface{}{
			"operation":   "step_retry",
			"step_id":     result.StepID,
			"retry_count": result.RetryCount,
			"reason":      reason,
			"feedback":    len(decision.feedback),
		})
	}
	return decision
}

// wantsRetry reports whether anything about the step warrants a retry,
// and why. Failed steps retry only on retryable error kinds: a doubly
// malformed response already had its stricter re-ask and stays
// degraded. Successful steps retry on an explicit reflection flag, or
// in the lower fair band when the reflection backs the low score with
// concrete issues or missing data.
func wantsRetry(result *core.StepResult, reflection *core.Reflection) (string, bool) {
	if result.Status == core.StepStatusFailure {
		if hasRetryableError(result) {
			return "execution_error", true
		}
		return "", false
	}
	if reflection.RequiresRetry {
		return "reflection_flagged", true
	}
	if reflection.OverallQuality < retryDiscretion &&
		len(reflection.Issues)+len(reflection.MissingData) > 0 {
		return "low_quality", true
	}
	return "", false
}

// feedbackNotes assembles the explicit feedback a StepRevision carries:
// error messages for failures, then the reflection's issues,
// suggestions, and missing data.
func feedbackNotes(result *core.StepResult, reflection *core.Reflection) []string {
	var notes []string
	if result.Status == core.StepStatusFailure {
		for _, stepErr := range result.Errors {
			notes = append(notes, "Previous attempt failed: "+stepErr.Message)
		}
	}
	notes = append(notes, reflection.Issues...)
	notes = append(notes, reflection.Suggestions...)
	for _, missing := range reflection.MissingData {
		notes = append(notes, "Missing data: "+missing)
	}
	return notes
}

// hasRetryableError reports whether any recorded error is of a kind the
// controller retries.
func hasRetryableError(result *core.StepResult) bool {
	for _, stepErr := range result.Errors {
		if stepErr.Kind == core.KindExecutionError || stepErr.Kind == core.KindPerCallTimeout {
			return true
		}
	}
	return false
}
