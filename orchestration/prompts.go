package orchestration

import (
	"fmt"
	"strings"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// priorWindow is how many completed step results the executor summarizes
// into the prompt for the current step.
const priorWindow = 3

// outputExcerptLimit bounds how much of a prior step's output is quoted.
const outputExcerptLimit = 400

const plannerSystemPrompt = "You are a compliance planning assistant that breaks regulatory tasks into ordered, verifiable analysis steps."

const executorSystemPrompt = "You are a compliance analyst executing one step of an analysis plan. Be precise and ground every claim in the provided context."

const reflectorSystemPrompt = "You are a strict reviewer grading compliance analysis output. Score conservatively and name concrete problems."

const synthesisSystemPrompt = "You are a compliance advisor writing final recommendations for busy stakeholders."

const planFormatInstructions = `Respond with ONLY valid JSON in this exact format:
{
  "steps": [
    {
      "step_id": "step-1",
      "description": "What this step does",
      "rationale": "Why this step is needed",
      "expected_outcome": "What the step should produce",
      "capability_tags": ["regulatory-lookup"]
    }
  ]
}`

// planningPrompt builds the plan generation prompt. capabilityLines
// describes the registered capability modules; hints are gap feedback
// from a prior pass and are only present during plan revision.
func planningPrompt(task core.Task, entity core.EntityContext, hints []string, capabilityLines []string, minSteps, maxSteps int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan a compliance analysis as %d to %d ordered steps.\n\n", minSteps, maxSteps)
	b.WriteString(renderTask(task))
	b.WriteString("\n")
	b.WriteString(renderEntity(entity))

	if len(capabilityLines) > 0 {
		b.WriteString("\nAvailable capabilities (tag the steps that should use them):\n")
		for _, line := range capabilityLines {
			b.WriteString("- " + line + "\n")
		}
	}

	if len(hints) > 0 {
		b.WriteString("\nA previous pass of this analysis left gaps. The new plan must address each of these explicitly:\n")
		for _, hint := range hints {
			b.WriteString("- " + hint + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(planFormatInstructions)
	fmt.Fprintf(&b, `

Requirements:
1. Between %d and %d steps, ordered so later steps build on earlier results.
2. Every step has a non-empty description, rationale, and expected_outcome.
3. capability_tags may be empty; use only tags from the capability list above.
4. The final step produces the overall recommendation.`, minSteps, maxSteps)

	return b.String()
}

// regenerationPrompt appends the validation failure to the original
// planning prompt so the provider can correct the specific problem.
func regenerationPrompt(original string, validationErr error) string {
	return fmt.Sprintf("%s\n\nThe previous plan failed validation with error: %s\n\nPlease generate a corrected plan that addresses this error.", original, validationErr)
}

const stepFormatInstructions = `Respond with ONLY valid JSON in this exact format:
{
  "output": "Your complete analysis for this step",
  "findings": ["Concrete facts this step established"],
  "risks": ["Risks identified by this step"],
  "confidence": 0.8
}`

// strictRetryInstruction is appended when the first response could not
// be parsed.
const strictRetryInstruction = "\n\nIMPORTANT: Your previous response could not be parsed. Respond with ONLY the JSON object. No prose, no markdown fences, no text before or after the JSON."

// stepPrompt builds the execution prompt for one step: the step itself,
// the run inputs, a bounded window of prior step results, and the
// outputs of the capabilities invoked for this step.
func stepPrompt(step core.Step, rc *RunContext, capabilityOutputs []string) string {
	var b strings.Builder

	b.WriteString("Execute one step of a compliance analysis.\n\n")
	b.WriteString(renderTask(rc.Task))
	b.WriteString("\n")
	b.WriteString(renderEntity(rc.Entity))

	fmt.Fprintf(&b, "\nStep: %s\n", step.Description)
	if step.Rationale != "" {
		fmt.Fprintf(&b, "Rationale: %s\n", step.Rationale)
	}
	if step.ExpectedOutcome != "" {
		fmt.Fprintf(&b, "Expected outcome: %s\n", step.ExpectedOutcome)
	}

	if prior := priorSummaries(rc.Prior); len(prior) > 0 {
		b.WriteString("\nResults from earlier steps:\n")
		for _, line := range prior {
			b.WriteString(line + "\n")
		}
	}

	if len(capabilityOutputs) > 0 {
		b.WriteString("\nCapability outputs for this step:\n")
		for _, line := range capabilityOutputs {
			b.WriteString("- " + line + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(stepFormatInstructions)
	b.WriteString(`

Requirements:
1. output contains the complete analysis text for this step.
2. Ground findings in the capability outputs and earlier results where available.
3. confidence is your own 0 to 1 estimate; omit it if you cannot judge.`)

	return b.String()
}

// priorSummaries renders the last priorWindow completed results.
func priorSummaries(prior []*core.StepResult) []string {
	if len(prior) == 0 {
		return nil
	}
	start := 0
	if len(prior) > priorWindow {
		start = len(prior) - priorWindow
	}
	var lines []string
	for _, res := range prior[start:] {
		excerpt := truncate(res.Output, outputExcerptLimit)
		if excerpt == "" {
			excerpt = "(no output)"
		}
		lines = append(lines, fmt.Sprintf("- step %s (%s): %s", res.StepID, res.Status, excerpt))
	}
	return lines
}

const reflectionFormatInstructions = `Score each dimension from 0 to 1 and respond with ONLY valid JSON in this exact format:
{
  "correctness": 0.9,
  "completeness": 0.8,
  "risk_awareness": 0.7,
  "hallucination_risk": 0.1,
  "actionability": 0.8,
  "confidence": 0.8,
  "issues": ["Concrete problems found"],
  "suggestions": ["How a retry should improve the output"],
  "missing_data": ["Information the step needed but did not have"],
  "requires_retry": false
}`

// reflectionPrompt builds the grading prompt for one step result.
func reflectionPrompt(step core.Step, result *core.StepResult) string {
	var b strings.Builder

	b.WriteString("Review the quality of one compliance analysis step.\n\n")
	fmt.Fprintf(&b, "Step: %s\n", step.Description)
	if step.ExpectedOutcome != "" {
		fmt.Fprintf(&b, "Expected outcome: %s\n", step.ExpectedOutcome)
	}
	fmt.Fprintf(&b, "Status: %s\n", result.Status)

	if result.Output != "" {
		fmt.Fprintf(&b, "\nStep output:\n%s\n", truncate(result.Output, 2000))
	} else {
		b.WriteString("\nStep output: (none)\n")
	}
	if len(result.Findings) > 0 {
		fmt.Fprintf(&b, "\nFindings:\n%s\n", renderBullets(result.Findings))
	}
	if len(result.Risks) > 0 {
		fmt.Fprintf(&b, "\nRisks:\n%s\n", renderBullets(result.Risks))
	}
	if len(result.Errors) > 0 {
		b.WriteString("\nErrors recorded during execution:\n")
		for _, stepErr := range result.Errors {
			fmt.Fprintf(&b, "- [%s] %s\n", stepErr.Kind, stepErr.Message)
		}
	}

	b.WriteString("\n")
	b.WriteString(reflectionFormatInstructions)
	b.WriteString(`

Judge correctness and completeness against the expected outcome, hallucination_risk by how much of the output lacks grounding in the provided context, and set requires_retry only when a retry with feedback could realistically produce a better result.`)

	return b.String()
}

// synthesisPrompt builds the final recommendation prompt from the
// aggregated findings and risks of all active steps.
func synthesisPrompt(task core.Task, entity core.EntityContext, findings, risks, failures []string) string {
	var b strings.Builder

	b.WriteString("Write the final recommendation for a completed compliance analysis.\n\n")
	b.WriteString(renderTask(task))
	b.WriteString("\n")
	b.WriteString(renderEntity(entity))

	if len(findings) > 0 {
		fmt.Fprintf(&b, "\nKey findings:\n%s\n", renderBullets(findings))
	}
	if len(risks) > 0 {
		fmt.Fprintf(&b, "\nIdentified risks:\n%s\n", renderBullets(risks))
	}
	if len(failures) > 0 {
		fmt.Fprintf(&b, "\nSteps that did not complete (treat their areas as open gaps):\n%s\n", renderBullets(failures))
	}

	b.WriteString(`
Write two to four paragraphs of plain prose: what the organization must do, in priority order, citing the specific obligations and deadlines found above. Name the open gaps from incomplete steps. No JSON, no markdown headers.`)

	return b.String()
}

// renderTask formats the task block shared by all prompts.
func renderTask(task core.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Description)
	if task.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", task.Category)
	}
	if task.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", task.Priority)
	}
	if task.Deadline != nil {
		fmt.Fprintf(&b, "Deadline: %s\n", task.Deadline.Format("2006-01-02"))
	}
	return b.String()
}

// renderEntity formats the organization block shared by all prompts.
func renderEntity(entity core.EntityContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Organization: %s\n", entity.Name)
	if len(entity.Jurisdictions) > 0 {
		fmt.Fprintf(&b, "Jurisdictions: %s\n", strings.Join(entity.Jurisdictions, ", "))
	}
	if entity.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", entity.Industry)
	}
	if entity.Size != "" {
		fmt.Fprintf(&b, "Size: %s\n", entity.Size)
	}
	if len(entity.HistoryRefs) > 0 {
		fmt.Fprintf(&b, "Compliance history: %s\n", strings.Join(entity.HistoryRefs, "; "))
	}
	return b.String()
}

func renderBullets(items []string) string {
	var lines []string
	for _, item := range items {
		lines = append(lines, "- "+item)
	}
	return strings.Join(lines, "\n")
}

// truncate cuts s to at most max runes, marking the cut.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
