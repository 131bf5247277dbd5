// Package mock provides a scripted reasoning provider for tests and
// offline runs. It is registered like any other provider but is never
// auto-detected, so it only serves when selected explicitly.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/reasoning"
)

func init() {
	reasoning.MustRegister(&Factory{})
}

// Factory creates mock clients.
type Factory struct{}

// Name returns the provider identifier.
func (f *Factory) Name() string {
	return "mock"
}

// Description returns a short provider summary.
func (f *Factory) Description() string {
	return "Scripted provider for tests and offline runs"
}

// DetectEnvironment always reports unavailable so the mock never wins
// auto-detection.
func (f *Factory) DetectEnvironment() (int, bool) {
	return 0, false
}

// Create builds a mock client.
func (f *Factory) Create(config *reasoning.ClientConfig) (core.AIClient, error) {
	client := NewClient()
	if config != nil && config.Model != "" {
		client.Model = config.Model
	}
	return client, nil
}

// Client returns scripted responses in order. Exported fields may be
// inspected once the exercised code has finished calling it.
type Client struct {
	mu sync.Mutex

	Model         string
	Responses     []string
	ResponseIndex int
	Error         error
	CallCount     int
	LastPrompt    string
	LastOptions   *core.AIOptions
}

// NewClient creates a mock client with a single canned response.
func NewClient() *Client {
	return &Client{
		Model:     "mock-model",
		Responses: []string{"Mock response"},
	}
}

// GenerateResponse returns the next scripted response, or the
// configured error. Running out of responses is an error so tests catch
// code that calls the provider more often than expected.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CallCount++
	c.LastPrompt = prompt
	c.LastOptions = options

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if c.Error != nil {
		return nil, c.Error
	}
	if c.ResponseIndex >= len(c.Responses) {
		return nil, errors.New("no more mock responses")
	}

	response := c.Responses[c.ResponseIndex]
	c.ResponseIndex++

	model := c.Model
	if options != nil && options.Model != "" {
		model = options.Model
	}

	return &core.AIResponse{
		Content: response,
		Model:   model,
		Usage: core.TokenUsage{
			PromptTokens:     len(prompt) / 4,
			CompletionTokens: len(response) / 4,
			TotalTokens:      (len(prompt) + len(response)) / 4,
		},
	}, nil
}

// SetResponses replaces the scripted responses and rewinds.
func (c *Client) SetResponses(responses ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses = responses
	c.ResponseIndex = 0
}

// SetError makes every subsequent call fail with err.
func (c *Client) SetError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Error = err
}

// Reset clears recorded state and rewinds the script.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResponseIndex = 0
	c.CallCount = 0
	c.LastPrompt = ""
	c.LastOptions = nil
	c.Error = nil
}
