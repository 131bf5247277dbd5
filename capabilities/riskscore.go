package capabilities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// RiskScore produces a deterministic 0-100 compliance risk score from
// task priority, deadline pressure, jurisdictional spread, and entity
// history. Same inputs always yield the same score, so reflections can
// sanity-check claims against it.
type RiskScore struct {
	now func() time.Time
}

// NewRiskScore creates the module with the wall clock.
func NewRiskScore() *RiskScore {
	return &RiskScore{now: time.Now}
}

func (c *RiskScore) Name() string { return "risk-score" }

func (c *RiskScore) Metadata() core.CapabilityMetadata {
	return core.CapabilityMetadata{
		Name:        "risk-score",
		Description: "Scores compliance risk 0-100 from priority, deadline pressure, jurisdictions, and history",
		Tags:        []string{"risk-score", "assessment"},
		SideEffect:  core.SideEffectReadOnly,
	}
}

type riskFactor struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

func (c *RiskScore) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	var factors []riskFactor

	priority := strings.ToLower(strings.TrimSpace(req.Task.Priority))
	base, known := map[string]int{
		core.PriorityLow:      10,
		core.PriorityMedium:   25,
		core.PriorityHigh:     40,
		core.PriorityCritical: 55,
	}[priority]
	if !known {
		priority = core.PriorityMedium
		base = 25
	}
	factors = append(factors, riskFactor{
		Name:   "priority",
		Points: base,
		Reason: fmt.Sprintf("task priority is %s", priority),
	})

	factors = append(factors, c.deadlineFactor(req.Task.Deadline))
	factors = append(factors, jurisdictionFactor(req.Entity.Jurisdictions))
	factors = append(factors, historyFactor(req.Entity.HistoryRefs))

	score := 0
	for _, f := range factors {
		score += f.Points
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	band := riskBand(score)

	outputList := make([]map[string]interface{}, len(factors))
	parts := make([]string, len(factors))
	for i, f := range factors {
		outputList[i] = map[string]interface{}{
			"name":   f.Name,
			"points": f.Points,
			"reason": f.Reason,
		}
		parts[i] = fmt.Sprintf("%s %+d", f.Name, f.Points)
	}

	return &core.CapabilityResult{
		Capability: c.Name(),
		Success:    true,
		Outputs: map[string]interface{}{
			"score":   score,
			"band":    band,
			"factors": outputList,
		},
		Summary: fmt.Sprintf("Risk score %d/100 (%s): %s.", score, band, strings.Join(parts, ", ")),
	}, nil
}

func (c *RiskScore) deadlineFactor(deadline *time.Time) riskFactor {
	if deadline == nil {
		return riskFactor{Name: "deadline", Points: 5, Reason: "no deadline set, timeline unknown"}
	}
	days := int(deadline.UTC().Sub(c.now().UTC()).Hours() / 24)
	switch {
	case days < 0:
		return riskFactor{Name: "deadline", Points: 30, Reason: "deadline has passed"}
	case days < 7:
		return riskFactor{Name: "deadline", Points: 25, Reason: "deadline within 7 days"}
	case days < 14:
		return riskFactor{Name: "deadline", Points: 18, Reason: "deadline within 14 days"}
	case days < 30:
		return riskFactor{Name: "deadline", Points: 10, Reason: "deadline within 30 days"}
	default:
		return riskFactor{Name: "deadline", Points: 0, Reason: "deadline more than 30 days out"}
	}
}

func jurisdictionFactor(jurisdictions []string) riskFactor {
	extra := len(jurisdictions) - 1
	if extra <= 0 {
		return riskFactor{Name: "jurisdictions", Points: 0, Reason: "single jurisdiction"}
	}
	points := extra * 5
	if points > 15 {
		points = 15
	}
	return riskFactor{
		Name:   "jurisdictions",
		Points: points,
		Reason: fmt.Sprintf("%d jurisdictions multiply obligations", len(jurisdictions)),
	}
}

func historyFactor(refs []string) riskFactor {
	if len(refs) == 0 {
		return riskFactor{Name: "history", Points: 10, Reason: "no compliance history on record"}
	}
	return riskFactor{
		Name:   "history",
		Points: -5,
		Reason: fmt.Sprintf("%d prior compliance reference(s) available", len(refs)),
	}
}

func riskBand(score int) string {
	switch {
	case score >= 75:
		return "critical"
	case score >= 50:
		return "high"
	case score >= 25:
		return "medium"
	default:
		return "low"
	}
}
