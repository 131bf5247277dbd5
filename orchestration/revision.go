package orchestration

import (
	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// maxGapHints caps how many reflection gaps are fed back into a plan
// revision so the replanning prompt stays focused.
const maxGapHints = 8

// revisionController decides whether the run spends its single plan
// revision. Revision is distinct from a step retry: it throws away the
// remaining plan and asks the planner for a new one informed by the
// gaps the reflections surfaced.
type revisionController struct {
	threshold float64
	logger    core.Logger
}

func newRevisionController(threshold float64, logger core.Logger) *revisionController {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &revisionController{threshold: threshold, logger: logger}
}

// shouldRevise reports whether the aggregate review sends the run back
// to planning, and the quality score it based that on. At most one
// revision per run, and never without iteration budget to execute the
// new plan.
func (c *revisionController) shouldRevise(records []core.TraceRecord, revised bool, budgetLeft int) (bool, float64) {
	quality := aggregateQuality(records)
	fields := map[string]interface{}{
		"operation":   "aggregate_review",
		"quality":     quality,
		"threshold":   c.threshold,
		"revised":     revised,
		"budget_left": budgetLeft,
	}
	if quality >= c.threshold {
		c.logger.Debug("Aggregate review passed", fields)
		return false, quality
	}
	if revised {
		c.logger.Info("Aggregate quality low but plan already revised once, finalizing", fields)
		return false, quality
	}
	if budgetLeft <= 0 {
		c.logger.Info("Aggregate quality low but iteration budget exhausted, finalizing", fields)
		return false, quality
	}
	c.logger.Info("Aggregate quality below threshold, revising plan", fields)
	return true, quality
}

// collectGapHints extracts the concrete gaps the reflections named,
// missing data first, for the replanning prompt.
func collectGapHints(records []core.TraceRecord, limit int) []string {
	seen := make(map[string]struct{})
	var hints []string
	for _, record := range records {
		if record.Reflection == nil {
			continue
		}
		hints = appendUnique(hints, seen, record.Reflection.MissingData)
	}
	for _, record := range records {
		if record.Reflection == nil {
			continue
		}
		hints = appendUnique(hints, seen, record.Reflection.Issues)
	}
	if limit > 0 && len(hints) > limit {
		hints = hints[:limit]
	}
	return hints
}
