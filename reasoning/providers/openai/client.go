// Package openai implements the reasoning provider for OpenAI chat
// completions. The client also works against OpenAI-compatible
// endpoints when a custom base URL is configured.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/reasoning/providers"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

const (
	providerName   = "openai"
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

// Client calls the chat completions API. Safe for concurrent use.
type Client struct {
	*providers.BaseClient
}

// NewClient creates an OpenAI client. An empty baseURL selects the
// public OpenAI endpoint.
func NewClient(apiKey, baseURL string, logger core.Logger, tel core.Telemetry) *Client {
	base := providers.NewBaseClient(defaultTimeout, logger, tel)
	base.APIKey = apiKey
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	base.BaseURL = strings.TrimSuffix(baseURL, "/")
	base.DefaultModel = defaultModel
	return &Client{BaseClient: base}
}

// GenerateResponse sends the prompt as a single-turn chat completion.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: openai api key", core.ErrMissingConfiguration)
	}

	ctx, span := c.Telemetry.StartSpan(ctx, "reasoning.generate")
	defer span.End()

	opts := c.ApplyDefaults(options)
	span.SetAttribute("provider.name", providerName)
	span.SetAttribute("provider.model", opts.Model)
	span.SetAttribute("prompt.length", len(prompt))

	messages := make([]chatMessage, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	c.LogRequest(providerName, opts.Model, prompt)
	start := time.Now()

	resp, err := c.ExecuteWithRetry(ctx, req)
	if err != nil {
		span.RecordError(err)
		telemetry.Counter(telemetry.MetricProviderErrors,
			"module", telemetry.ModuleReasoning, "provider", providerName)
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := c.HandleError(providerName, resp.StatusCode, body)
		span.RecordError(apiErr)
		telemetry.Counter(telemetry.MetricProviderErrors,
			"module", telemetry.ModuleReasoning, "provider", providerName)
		return nil, apiErr
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decoding openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		err := fmt.Errorf("openai returned no choices")
		span.RecordError(err)
		return nil, err
	}

	usage := core.TokenUsage{
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
		TotalTokens:      parsed.Usage.TotalTokens,
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
	c.LogResponse(providerName, parsed.Model, usage, time.Since(start))

	return &core.AIResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage:   usage,
	}, nil
}
