package openai

import (
	"os"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/reasoning"
)

// Factory creates OpenAI clients and registers the provider on import.
type Factory struct{}

func init() {
	reasoning.MustRegister(&Factory{})
}

// Name returns the provider identifier.
func (f *Factory) Name() string {
	return providerName
}

// Description returns a short provider summary.
func (f *Factory) Description() string {
	return "OpenAI chat completions (also serves OpenAI-compatible endpoints via base_url)"
}

// DetectEnvironment reports availability based on OPENAI_API_KEY.
func (f *Factory) DetectEnvironment() (int, bool) {
	if os.Getenv("OPENAI_API_KEY") != "" {
		return 100, true
	}
	return 0, false
}

// Create builds a client from the resolved configuration, falling back
// to environment variables for credentials and endpoint.
func (f *Factory) Create(config *reasoning.ClientConfig) (core.AIClient, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}

	client := NewClient(apiKey, baseURL, config.Logger, config.Telemetry)
	if config.Timeout > 0 {
		client.HTTPClient.Timeout = config.Timeout
	}
	if config.MaxRetries > 0 {
		client.MaxRetries = config.MaxRetries
	}
	if config.Model != "" {
		client.DefaultModel = config.Model
	}
	if config.Temperature > 0 {
		client.DefaultTemperature = config.Temperature
	}
	if config.MaxTokens > 0 {
		client.DefaultMaxTokens = config.MaxTokens
	}
	return client, nil
}
