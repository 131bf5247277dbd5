package orchestration

import (
	"context"
	"fmt"
	"testing"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

func TestReflectorComputesQualityLocally(t *testing.T) {
	// Provider reports no overall quality; the reflector derives it from
	// the weighted dimensions.
	content := `{"correctness":1.0,"completeness":0.5,"risk_awareness":0.5,"hallucination_risk":0.2,"actionability":1.0,"issues":[],"suggestions":[],"missing_data":[],"requires_retry":false}`
	client := newScriptedClient(scripted{content: content})
	reflector := NewAIReflector(client, nil, nil)

	refl := reflector.Reflect(context.Background(), core.Step{ID: "s1", Description: "d"}, successResult("s1", "out", 0.8))

	want := 0.4*1.0 + 0.3*0.5 + 0.2*0.5 + 0.1*1.0 // 0.75
	if diff := refl.OverallQuality - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("overall quality = %g, want %g", refl.OverallQuality, want)
	}
	if refl.ConfidenceScore != refl.OverallQuality {
		t.Errorf("confidence should default to quality, got %g", refl.ConfidenceScore)
	}
	if refl.RequiresRetry {
		t.Error("quality 0.75 must not require retry")
	}

	opts := client.options[0]
	if opts.SystemPrompt != reflectorSystemPrompt {
		t.Errorf("unexpected system prompt: %q", opts.SystemPrompt)
	}
	if opts.Temperature != 0.2 {
		t.Errorf("unexpected temperature: %g", opts.Temperature)
	}
}

func TestReflectorHonorsProviderConfidence(t *testing.T) {
	client := newScriptedClient(scripted{content: reflectionResponse(0.8, false)})
	reflector := NewAIReflector(client, nil, nil)

	refl := reflector.Reflect(context.Background(), core.Step{ID: "s1"}, successResult("s1", "out", 0.8))

	if refl.ConfidenceScore != 0.8 {
		t.Errorf("provider confidence lost: %g", refl.ConfidenceScore)
	}
}

func TestRequiresRetryThresholds(t *testing.T) {
	tests := []struct {
		quality      float64
		providerFlag bool
		want         bool
	}{
		{0.2, false, true},  // poor band always retries
		{0.49, false, true},
		{0.5, false, false}, // fair band follows the provider
		{0.5, true, true},
		{0.65, true, true},
		{0.65, false, false},
		{0.7, true, false}, // good band overrides the provider
		{0.9, true, false},
	}
	for _, tt := range tests {
		got := requiresRetry(tt.quality, tt.providerFlag)
		if got != tt.want {
			t.Errorf("requiresRetry(%g, %t) = %t, want %t", tt.quality, tt.providerFlag, got, tt.want)
		}
	}
}

func TestRequiresRetryMonotoneWithQuality(t *testing.T) {
	// requires_retry implies quality below the good threshold, whatever
	// the provider claims.
	for _, flag := range []bool{true, false} {
		for q := 0.70; q <= 1.0; q += 0.05 {
			if requiresRetry(q, flag) {
				t.Errorf("requiresRetry(%g, %t) = true above good threshold", q, flag)
			}
		}
	}
}

func TestReflectorNeutralOnProviderError(t *testing.T) {
	client := newScriptedClient(scripted{err: fmt.Errorf("provider down")})
	reflector := NewAIReflector(client, nil, nil)

	refl := reflector.Reflect(context.Background(), core.Step{ID: "s1"}, successResult("s1", "out", 0.8))

	if refl.OverallQuality != 0.5 {
		t.Errorf("neutral quality = %g, want 0.5", refl.OverallQuality)
	}
	if refl.RequiresRetry {
		t.Error("neutral reflection must not request a retry")
	}
	if refl.Issues == nil || refl.Suggestions == nil || refl.MissingData == nil {
		t.Error("neutral reflection lists must be empty, not nil")
	}
	if refl.StepID != "s1" {
		t.Errorf("step id lost: %q", refl.StepID)
	}
}

func TestReflectorNeutralOnUnparseableResponse(t *testing.T) {
	client := newScriptedClient(scripted{content: "The step looks pretty good to me overall."})
	reflector := NewAIReflector(client, nil, nil)

	refl := reflector.Reflect(context.Background(), core.Step{ID: "s1"}, successResult("s1", "out", 0.8))

	if refl.OverallQuality != 0.5 {
		t.Errorf("neutral quality = %g, want 0.5", refl.OverallQuality)
	}
	if refl.RequiresRetry {
		t.Error("neutral reflection must not request a retry")
	}
	// Unlike the executor, the reflector gets no second ask.
	if client.callCount() != 1 {
		t.Errorf("expected 1 provider call, got %d", client.callCount())
	}
}

func TestReflectorPropagatesLists(t *testing.T) {
	content := `{"correctness":0.4,"completeness":0.4,"risk_awareness":0.4,"hallucination_risk":0.6,"actionability":0.4,"issues":["finding 2 is unsupported"],"suggestions":["cite the statute"],"missing_data":["retention schedule"],"requires_retry":true}`
	client := newScriptedClient(scripted{content: content})
	reflector := NewAIReflector(client, nil, nil)

	refl := reflector.Reflect(context.Background(), core.Step{ID: "s1"}, successResult("s1", "out", 0.5))

	if len(refl.Issues) != 1 || refl.Issues[0] != "finding 2 is unsupported" {
		t.Errorf("issues lost: %v", refl.Issues)
	}
	if len(refl.Suggestions) != 1 || len(refl.MissingData) != 1 {
		t.Errorf("suggestions/missing_data lost: %v %v", refl.Suggestions, refl.MissingData)
	}
	if !refl.RequiresRetry {
		t.Error("quality 0.4 must require retry")
	}
}

func TestQualityBand(t *testing.T) {
	cases := map[float64]string{
		0.9:  "excellent",
		0.85: "excellent",
		0.75: "good",
		0.7:  "good",
		0.6:  "fair",
		0.5:  "fair",
		0.3:  "poor",
	}
	for quality, want := range cases {
		if got := qualityBand(quality); got != want {
			t.Errorf("qualityBand(%g) = %s, want %s", quality, got, want)
		}
	}
}

func TestOverallQualityBounds(t *testing.T) {
	if q := overallQuality(1, 1, 1, 1); q < 0.999 || q > 1.0 {
		t.Errorf("full scores should give ~1.0, got %g", q)
	}
	if q := overallQuality(0, 0, 0, 0); q != 0.0 {
		t.Errorf("zero scores should give 0.0, got %g", q)
	}
}
