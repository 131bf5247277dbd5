package orchestration

import (
	"fmt"
	"strings"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// aggregateQuality is the plan-level quality signal the revision check
// runs on: the mean of (correctness+completeness)/2 across the active
// reflections. An empty trace scores 1.0 so a run that recorded no work
// never stacks a plan revision on top of whatever already failed it.
func aggregateQuality(records []core.TraceRecord) float64 {
	var sum float64
	var count int
	for _, record := range records {
		if record.Reflection == nil {
			continue
		}
		sum += (record.Reflection.CorrectnessScore + record.Reflection.CompletenessScore) / 2
		count++
	}
	if count == 0 {
		return 1.0
	}
	return sum / float64(count)
}

// meanConfidence averages step confidence over the active results.
// Failed steps count at their recorded confidence, which is how a run
// with casualties ends up with a visibly lower score.
func meanConfidence(records []core.TraceRecord) float64 {
	var sum float64
	var count int
	for _, record := range records {
		if record.Result == nil {
			continue
		}
		sum += record.Result.Confidence
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// collectFindings gathers deduplicated findings and risks from the
// successful active results, in step order.
func collectFindings(records []core.TraceRecord) (findings, risks []string) {
	seenFindings := make(map[string]struct{})
	seenRisks := make(map[string]struct{})
	for _, record := range records {
		if record.Result == nil || record.Result.Status != core.StepStatusSuccess {
			continue
		}
		findings = appendUnique(findings, seenFindings, record.Result.Findings)
		risks = appendUnique(risks, seenRisks, record.Result.Risks)
	}
	return findings, risks
}

// failedSteps lists the active steps whose result is a failure.
func failedSteps(records []core.TraceRecord) []string {
	var failed []string
	for _, record := range records {
		if record.Result != nil && record.Result.Status == core.StepStatusFailure {
			failed = append(failed, fmt.Sprintf("step %s: %s", record.Step.ID, truncate(record.Step.Description, 120)))
		}
	}
	return failed
}

// buildRecommendation assembles the deterministic recommendation from
// the trace alone, with no provider call. It is the final answer for
// aborted runs and the fallback when the synthesis call fails.
func buildRecommendation(task core.Task, records []core.TraceRecord, degraded bool) string {
	findings, risks := collectFindings(records)
	failed := failedSteps(records)

	var builder strings.Builder
	if degraded {
		fmt.Fprintf(&builder, "Partial analysis of %q", task.Description)
	} else {
		fmt.Fprintf(&builder, "Analysis of %q", task.Description)
	}
	if task.Category != "" {
		fmt.Fprintf(&builder, " (%s)", task.Category)
	}
	builder.WriteString(".")
	if degraded {
		builder.WriteString(" The run stopped before every planned step completed; the conclusions below cover only the finished portion and should be re-run before acting on them.")
	}
	builder.WriteString("\n")
	if task.Deadline != nil {
		fmt.Fprintf(&builder, "Deadline on record: %s.\n", task.Deadline.Format("2006-01-02"))
	}

	if len(findings) > 0 {
		builder.WriteString("\nFindings:\n")
		for _, finding := range findings {
			builder.WriteString("- " + finding + "\n")
		}
	} else {
		builder.WriteString("\nNo findings were produced.\n")
	}

	if len(risks) > 0 {
		builder.WriteString("\nRisks:\n")
		for _, risk := range risks {
			builder.WriteString("- " + risk + "\n")
		}
	}

	if len(failed) > 0 {
		builder.WriteString("\nUnresolved steps:\n")
		for _, step := range failed {
			builder.WriteString("- " + step + "\n")
		}
	}

	return strings.TrimSpace(builder.String())
}

func appendUnique(dst []string, seen map[string]struct{}, values []string) []string {
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		dst = append(dst, value)
	}
	return dst
}
