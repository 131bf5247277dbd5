package core

import (
	"context"
)

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// Telemetry interface - optional telemetry support
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a telemetry span
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// AIClient is the reasoning provider contract: one prompt in, raw text out.
// Callers parse the text; the client guarantees nothing about its shape.
type AIClient interface {
	GenerateResponse(ctx context.Context, prompt string, options *AIOptions) (*AIResponse, error)
}

// AIOptions for AI generation
type AIOptions struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// AIResponse from AI client
type AIResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage for AI responses
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// SideEffectClass declares what a capability touches. The selector excludes
// anything other than read-only unless the run is execute-confirmed.
type SideEffectClass string

const (
	SideEffectReadOnly     SideEffectClass = "read-only"
	SideEffectNetworkWrite SideEffectClass = "network-write"
	SideEffectStateWrite   SideEffectClass = "state-write"
)

// CapabilityParameter describes one input a capability accepts.
type CapabilityParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// CapabilityMetadata is the static declaration a capability registers with.
type CapabilityMetadata struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Tags        []string              `json:"tags"`
	SideEffect  SideEffectClass       `json:"side_effect"`
	Parameters  []CapabilityParameter `json:"parameters,omitempty"`
}

// CapabilityRequest carries the step context into a capability invocation.
type CapabilityRequest struct {
	Step   Step                   `json:"step"`
	Task   Task                   `json:"task"`
	Entity EntityContext          `json:"entity"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// CapabilityResult is the uniform invocation result. Summary is the
// prompt-injectable rendering of Outputs.
type CapabilityResult struct {
	Capability string                 `json:"capability"`
	Success    bool                   `json:"success"`
	Outputs    map[string]interface{} `json:"outputs,omitempty"`
	Summary    string                 `json:"summary,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// CapabilityModule is an independently invokable unit of functionality.
// Implementations must be safe for concurrent use across runs.
type CapabilityModule interface {
	Name() string
	Metadata() CapabilityMetadata
	Invoke(ctx context.Context, req CapabilityRequest) (*CapabilityResult, error)
}

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// NoOpTelemetry provides a no-op telemetry implementation
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan provides a no-op span implementation
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}
