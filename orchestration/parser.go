package orchestration

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// extractJSON pulls the first JSON object out of a provider response,
// tolerating markdown code fences and surrounding prose. Returns "" when
// no balanced object is found.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	start := findJSONStart(content)
	if start == -1 {
		return ""
	}
	end := findJSONEnd(content[start:])
	if end == -1 {
		return ""
	}
	return content[start : start+end]
}

// findJSONStart finds the first opening brace.
func findJSONStart(s string) int {
	return strings.Index(s, "{")
}

// findJSONEnd finds the end of the JSON object by counting brace depth.
// The input must start at an opening brace.
func findJSONEnd(s string) int {
	depth := 0
	for i, ch := range s {
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// planEnvelope is the wire shape the planner asks the provider for.
type planEnvelope struct {
	Steps []core.Step `json:"steps"`
}

// parsePlan decodes a provider response into a step list. Length bounds
// are checked separately by the planner so the validation error can be
// fed back into the regeneration prompt.
func parsePlan(content string) ([]core.Step, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in provider response", core.ErrMalformedResponse)
	}

	var envelope planEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid plan JSON: %v", core.ErrMalformedResponse, err)
	}
	if len(envelope.Steps) == 0 {
		return nil, fmt.Errorf("%w: plan JSON has no steps", core.ErrEmptyPlan)
	}
	return envelope.Steps, nil
}

// stepPayload is the wire shape the executor asks the provider for.
// Confidence is a pointer so omission is distinguishable from zero.
type stepPayload struct {
	Output     string   `json:"output"`
	Findings   []string `json:"findings"`
	Risks      []string `json:"risks"`
	Confidence *float64 `json:"confidence"`
}

// parseStepPayload strictly decodes a step execution response. A missing
// or empty output field is malformed: the executor must never fabricate
// analysis content.
func parseStepPayload(content string) (*stepPayload, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in provider response", core.ErrMalformedResponse)
	}

	var payload stepPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid step JSON: %v", core.ErrMalformedResponse, err)
	}
	if strings.TrimSpace(payload.Output) == "" {
		return nil, fmt.Errorf("%w: step JSON missing output", core.ErrMalformedResponse)
	}
	if payload.Confidence != nil {
		*payload.Confidence = clampScore(*payload.Confidence)
	}
	return &payload, nil
}

// reflectionPayload is the wire shape the reflector asks the provider
// for. All five rubric dimensions are required; issues, suggestions, and
// missing_data may be empty but the fields are part of the contract.
type reflectionPayload struct {
	Correctness       *float64 `json:"correctness"`
	Completeness      *float64 `json:"completeness"`
	RiskAwareness     *float64 `json:"risk_awareness"`
	HallucinationRisk *float64 `json:"hallucination_risk"`
	Actionability     *float64 `json:"actionability"`
	Confidence        *float64 `json:"confidence"`
	Issues            []string `json:"issues"`
	Suggestions       []string `json:"suggestions"`
	MissingData       []string `json:"missing_data"`
	RequiresRetry     bool     `json:"requires_retry"`
}

// parseReflection strictly decodes a reflection response.
func parseReflection(content string) (*reflectionPayload, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in provider response", core.ErrMalformedResponse)
	}

	var payload reflectionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid reflection JSON: %v", core.ErrMalformedResponse, err)
	}

	dims := map[string]*float64{
		"correctness":        payload.Correctness,
		"completeness":       payload.Completeness,
		"risk_awareness":     payload.RiskAwareness,
		"hallucination_risk": payload.HallucinationRisk,
		"actionability":      payload.Actionability,
	}
	for name, score := range dims {
		if score == nil {
			return nil, fmt.Errorf("%w: reflection JSON missing %s", core.ErrMalformedResponse, name)
		}
		*score = clampScore(*score)
	}
	if payload.Confidence != nil {
		*payload.Confidence = clampScore(*payload.Confidence)
	}
	return &payload, nil
}

// clampScore forces a score into [0,1].
func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
