package anthropic

import (
	"os"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/reasoning"
)

// Factory creates Anthropic clients and registers the provider on import.
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
	return "Anthropic Messages API via the official SDK"
}

// DetectEnvironment reports availability based on ANTHROPIC_API_KEY.
func (f *Factory) DetectEnvironment() (int, bool) {
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return 80, true
	}
	return 0, false
}

// Create builds a client from the resolved configuration, falling back
// to the environment for credentials.
func (f *Factory) Create(config *reasoning.ClientConfig) (core.AIClient, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	client := NewClient(apiKey, config.BaseURL, config.MaxRetries, config.Logger, config.Telemetry)
	if config.Timeout > 0 {
		client.HTTPClient.Timeout = config.Timeout
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
