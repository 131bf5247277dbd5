// Package anthropic implements the reasoning provider for the Anthropic
// Messages API using the official SDK.
package anthropic

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/reasoning/providers"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

const (
	providerName   = "anthropic"
	defaultModel   = string(sdk.ModelClaudeSonnet4_20250514)
	defaultTimeout = 60 * time.Second
)

// Client calls the Messages API. Retries are handled by the SDK, the
// embedded BaseClient supplies the instrumented HTTP transport, option
// defaulting, and logging. Safe for concurrent use.
type Client struct {
	*providers.BaseClient
	api sdk.Client
}

// NewClient creates an Anthropic client. An empty baseURL selects the
// public API endpoint.
func NewClient(apiKey, baseURL string, maxRetries int, logger core.Logger, tel core.Telemetry) *Client {
	base := providers.NewBaseClient(defaultTimeout, logger, tel)
	base.APIKey = apiKey
	base.BaseURL = baseURL
	base.DefaultModel = defaultModel

	opts := []option.RequestOption{option.WithHTTPClient(base.HTTPClient)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if maxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(maxRetries))
	}

	return &Client{BaseClient: base, api: sdk.NewClient(opts...)}
}

// GenerateResponse sends the prompt as a single-turn message.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic api key", core.ErrMissingConfiguration)
	}

	ctx, span := c.Telemetry.StartSpan(ctx, "reasoning.generate")
	defer span.End()

	opts := c.ApplyDefaults(options)
	span.SetAttribute("provider.name", providerName)
	span.SetAttribute("provider.model", opts.Model)
	span.SetAttribute("prompt.length", len(prompt))

	params := sdk.MessageNewParams{
		Model:     sdk.Model(opts.Model),
		MaxTokens: int64(opts.MaxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if opts.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: opts.SystemPrompt}}
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(float64(opts.Temperature))
	}

	c.LogRequest(providerName, opts.Model, prompt)
	start := time.Now()

	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		telemetry.Counter(telemetry.MetricProviderErrors,
			"module", telemetry.ModuleReasoning, "provider", providerName)
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}

	content := extractText(resp)
	if content == "" {
		err := fmt.Errorf("anthropic returned no text content")
		span.RecordError(err)
		return nil, err
	}

	usage := core.TokenUsage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}

	telemetry.Counter(telemetry.MetricProviderRequests,
		"module", telemetry.ModuleReasoning, "provider", providerName)
	telemetry.Duration(telemetry.MetricProviderLatency, start,
		"module", telemetry.ModuleReasoning, "provider", providerName)
	telemetry.Add(telemetry.MetricPromptTokens, int64(usage.PromptTokens),
		"module", telemetry.ModuleReasoning, "provider", providerName)
	telemetry.Add(telemetry.MetricCompletionTokens, int64(usage.CompletionTokens),
		"module", telemetry.ModuleReasoning, "provider", providerName)

	span.SetAttribute("prompt.tokens", usage.PromptTokens)
	span.SetAttribute("completion.tokens", usage.CompletionTokens)
	c.LogResponse(providerName, string(resp.Model), usage, time.Since(start))

	return &core.AIResponse{
		Content: content,
		Model:   string(resp.Model),
		Usage:   usage,
	}, nil
}

func extractText(msg *sdk.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(sdk.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}
