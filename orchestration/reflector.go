package orchestration

import (
	"context"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// Rubric weights for the overall quality score. Hallucination risk is
// reported but deliberately carries no weight: it is a flag for the
// reader, not a retry signal on its own.
const (
	weightCorrectness   = 0.4
	weightCompleteness  = 0.3
	weightRiskAwareness = 0.2
	weightActionability = 0.1
)

// Quality thresholds. At and above goodQuality a step stands as-is;
// below poorQuality a retry is always requested. The band between
// fairQuality and goodQuality is at the retry controller's discretion.
const (
	excellentQuality = 0.85
	goodQuality      = 0.70
	fairQuality      = 0.50
)

// AIReflector grades step results through the reasoning provider. It
// computes the overall quality locally from the parsed dimension scores
// rather than trusting any aggregate the provider reports.
type AIReflector struct {
	client    core.AIClient
	logger    core.Logger
	telemetry core.Telemetry
}

// NewAIReflector creates a reflector.
func NewAIReflector(client core.AIClient, logger core.Logger, tel core.Telemetry) *AIReflector {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	return &AIReflector{client: client, logger: logger, telemetry: tel}
}

// Reflect implements Reflector. Grading failures degrade to a neutral
// Reflection that neither blocks nor triggers anything; they never
// abort the run.
func (r *AIReflector) Reflect(ctx context.Context, step core.Step, result *core.StepResult) *core.Reflection {
	start := time.Now()
	ctx, span := r.telemetry.StartSpan(ctx, "engine.reflect")
	defer span.End()
	span.SetAttribute("step.id", step.ID)

	resp, err := r.client.GenerateResponse(ctx, reflectionPrompt(step, result), &core.AIOptions{
		Temperature:  0.2,
		MaxTokens:    1000,
		SystemPrompt: reflectorSystemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("Reflection provider call failed, using neutral default", map[string]interface{}{
			"operation": "step_reflect",
			"step_id":   step.ID,
			"error":     err.Error(),
		})
		return neutralReflection(step.ID)
	}

	payload, err := parseReflection(resp.Content)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn("Reflection response unparseable, using neutral default", map[string]interface{}{
			"operation": "step_reflect",
			"step_id":   step.ID,
			"error":     err.Error(),
		})
		return neutralReflection(step.ID)
	}

	quality := overallQuality(*payload.Correctness, *payload.Completeness, *payload.RiskAwareness, *payload.Actionability)
	confidence := quality
	if payload.Confidence != nil {
		confidence = *payload.Confidence
	}

	reflection := &core.Reflection{
		StepID:             step.ID,
		CorrectnessScore:   *payload.Correctness,
		CompletenessScore:  *payload.Completeness,
		RiskAwarenessScore: *payload.RiskAwareness,
		HallucinationRisk:  *payload.HallucinationRisk,
		ActionabilityScore: *payload.Actionability,
		OverallQuality:     quality,
		ConfidenceScore:    confidence,
		Issues:             emptyIfNil(payload.Issues),
		Suggestions:        emptyIfNil(payload.Suggestions),
		MissingData:        emptyIfNil(payload.MissingData),
		RequiresRetry:      requiresRetry(quality, payload.RequiresRetry),
	}

	span.SetAttribute("reflection.quality", quality)
	span.SetAttribute("reflection.band", qualityBand(quality))
	span.SetAttribute("reflection.requires_retry", reflection.RequiresRetry)
	r.logger.Debug("Step reflected", map[string]interface{}{
		"operation":      "step_reflect",
		"step_id":        step.ID,
		"quality":        quality,
		"band":           qualityBand(quality),
		"requires_retry": reflection.RequiresRetry,
		"issues":         len(reflection.Issues),
		"duration_ms":    time.Since(start).Milliseconds(),
	})
	return reflection
}

// qualityBand names the threshold band a score falls in.
func qualityBand(quality float64) string {
	switch {
	case quality >= excellentQuality:
		return "excellent"
	case quality >= goodQuality:
		return "good"
	case quality >= fairQuality:
		return "fair"
	default:
		return "poor"
	}
}

// overallQuality is the weighted rubric combination.
func overallQuality(correctness, completeness, riskAwareness, actionability float64) float64 {
	return clampScore(weightCorrectness*correctness +
		weightCompleteness*completeness +
		weightRiskAwareness*riskAwareness +
		weightActionability*actionability)
}

// requiresRetry applies the threshold policy: below 0.50 a retry is
// mandatory; in the fair band the provider's own judgement is honored;
// at or above 0.70 it is overridden so the retry flag stays monotone
// with quality.
func requiresRetry(quality float64, providerFlag bool) bool {
	if quality < fairQuality {
		return true
	}
	if quality < goodQuality {
		return providerFlag
	}
	return false
}

// neutralReflection takes no position: every score is 0.5 and no retry
// is requested, so a broken reflector can never spin the run.
func neutralReflection(stepID string) *core.Reflection {
	return &core.Reflection{
		StepID:             stepID,
		CorrectnessScore:   0.5,
		CompletenessScore:  0.5,
		RiskAwarenessScore: 0.5,
		HallucinationRisk:  0.5,
		ActionabilityScore: 0.5,
		OverallQuality:     0.5,
		ConfidenceScore:    0.5,
		Issues:             []string{},
		Suggestions:        []string{},
		MissingData:        []string{},
		RequiresRetry:      false,
	}
}

func emptyIfNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
