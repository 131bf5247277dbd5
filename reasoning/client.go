// Package reasoning provides the AI provider layer behind the analysis
// engine. It exposes a provider registry with environment auto-detection
// and a factory that turns provider configuration into a core.AIClient.
//
// Providers register themselves on import:
//
//	import (
//		_ "github.com/walvekarn/agentic-compliance-agent-sub001/reasoning/providers/anthropic"
//		_ "github.com/walvekarn/agentic-compliance-agent-sub001/reasoning/providers/openai"
//	)
//
//	client, err := reasoning.NewClient(&reasoning.ClientConfig{
//		ProviderConfig: cfg.Provider,
//		Logger:         logger,
//	})
package reasoning

import (
	"fmt"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// ProviderAuto selects the highest-priority provider whose credentials
// are present in the environment.
const ProviderAuto = "auto"

// ClientConfig carries the resolved provider configuration plus the
// ambient dependencies a client needs. Nil Logger and Telemetry fall
// back to no-op implementations.
type ClientConfig struct {
	core.ProviderConfig

	Logger    core.Logger
	Telemetry core.Telemetry
}

// NewClient builds an AI client from cfg. When the provider is "auto"
// or empty, it scans registered providers and picks the best available
// one. The returned client is safe for concurrent use.
func NewClient(cfg *ClientConfig) (core.AIClient, error) {
	if cfg == nil {
		cfg = &ClientConfig{ProviderConfig: core.DefaultConfig().Provider}
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NoOpLogger{}
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &core.NoOpTelemetry{}
	}

	name := cfg.Provider
	if name == "" || name == ProviderAuto {
		detected, err := detectBestProvider(cfg.Logger)
		if err != nil {
			return nil, err
		}
		name = detected
	}

	factory, err := GetProvider(name)
	if err != nil {
		return nil, err
	}

	client, err := factory.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", name, err)
	}

	cfg.Logger.Info("Reasoning client ready", map[string]interface{}{
		"operation": "client_init",
		"provider":  name,
		"model":     cfg.Model,
	})
	return client, nil
}

// MustNewClient is like NewClient but panics on error. Intended for
// program startup where a missing provider is fatal anyway.
func MustNewClient(cfg *ClientConfig) core.AIClient {
	client, err := NewClient(cfg)
	if err != nil {
		panic(fmt.Sprintf("reasoning: %v", err))
	}
	return client
}
