package capabilities

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// checkpointOffsets are days before the deadline worth flagging.
var checkpointOffsets = []int{30, 14, 7, 1}

// DeadlineMath computes deadline arithmetic for a task: days remaining,
// overdue state, checkpoint dates, and an urgency band.
type DeadlineMath struct {
	now func() time.Time
}

// NewDeadlineMath creates the module with the wall clock.
func NewDeadlineMath() *DeadlineMath {
	return &DeadlineMath{now: time.Now}
}

func (c *DeadlineMath) Name() string { return "deadline-math" }

func (c *DeadlineMath) Metadata() core.CapabilityMetadata {
	return core.CapabilityMetadata{
		Name:        "deadline-math",
		Description: "Computes days remaining, overdue status, checkpoint dates, and urgency for a task deadline",
		Tags:        []string{"deadline-math", "scheduling"},
		SideEffect:  core.SideEffectReadOnly,
		Parameters: []core.CapabilityParameter{
			{Name: "deadline", Type: "string", Description: "Deadline override in RFC3339 or YYYY-MM-DD form"},
		},
	}
}

// Invoke uses the task deadline, or the deadline param when the task has
// none. A task with no deadline at all is reported as an unsuccessful
// result, not an invocation error.
func (c *DeadlineMath) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	deadline, err := c.resolveDeadline(req)
	if err != nil {
		return &core.CapabilityResult{
			Capability: c.Name(),
			Success:    false,
			Error:      err.Error(),
		}, nil
	}

	now := c.now().UTC()
	deadline = deadline.UTC()
	remaining := deadline.Sub(now)
	daysRemaining := int(math.Ceil(remaining.Hours() / 24))
	overdue := remaining < 0

	var checkpoints []map[string]interface{}
	var nextCheckpoint string
	for _, offset := range checkpointOffsets {
		date := deadline.AddDate(0, 0, -offset)
		passed := !date.After(now)
		checkpoints = append(checkpoints, map[string]interface{}{
			"label":  fmt.Sprintf("T-%d", offset),
			"date":   date.Format("2006-01-02"),
			"passed": passed,
		})
		if !passed && nextCheckpoint == "" {
			nextCheckpoint = fmt.Sprintf("T-%d on %s", offset, date.Format("2006-01-02"))
		}
	}

	urgency := urgencyBand(daysRemaining, overdue)
	outputs := map[string]interface{}{
		"deadline":       deadline.Format(time.RFC3339),
		"days_remaining": daysRemaining,
		"overdue":        overdue,
		"urgency":        urgency,
		"checkpoints":    checkpoints,
	}

	var summary string
	if overdue {
		summary = fmt.Sprintf("Deadline %s passed %d day(s) ago.",
			deadline.Format("2006-01-02"), -daysRemaining)
	} else {
		summary = fmt.Sprintf("Deadline %s is %d day(s) away (urgency: %s).",
			deadline.Format("2006-01-02"), daysRemaining, urgency)
		if nextCheckpoint != "" {
			summary += fmt.Sprintf(" Next checkpoint %s.", nextCheckpoint)
		}
	}

	return &core.CapabilityResult{
		Capability: c.Name(),
		Success:    true,
		Outputs:    outputs,
		Summary:    summary,
	}, nil
}

func (c *DeadlineMath) resolveDeadline(req core.CapabilityRequest) (time.Time, error) {
	if req.Task.Deadline != nil {
		return *req.Task.Deadline, nil
	}
	raw := stringParam(req.Params, "deadline")
	if raw == "" {
		return time.Time{}, fmt.Errorf("task has no deadline and no deadline param was given")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse deadline %q: want RFC3339 or YYYY-MM-DD", raw)
}

func urgencyBand(daysRemaining int, overdue bool) string {
	switch {
	case overdue:
		return "overdue"
	case daysRemaining <= 7:
		return "critical"
	case daysRemaining <= 14:
		return "high"
	case daysRemaining <= 30:
		return "medium"
	default:
		return "low"
	}
}
