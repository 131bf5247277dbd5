// Package providers contains the shared plumbing for reasoning provider
// clients. Concrete providers embed BaseClient and add their wire format.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// BaseClient provides common functionality for all reasoning providers:
// an instrumented HTTP client, retry with exponential backoff, option
// defaulting, and request/response logging.
type BaseClient struct {
	HTTPClient *http.Client
	Logger     core.Logger
	Telemetry  core.Telemetry

	APIKey  string
	BaseURL string

	MaxRetries int
	RetryDelay time.Duration

	DefaultModel        string
	DefaultTemperature  float32
	DefaultMaxTokens    int
	DefaultSystemPrompt string
}

// NewBaseClient creates a base client with defaults. Nil logger and
// telemetry fall back to no-op implementations.
func NewBaseClient(timeout time.Duration, logger core.Logger, telemetry core.Telemetry) *BaseClient {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}

	return &BaseClient{
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Logger:             logger,
		Telemetry:          telemetry,
		MaxRetries:         3,
		RetryDelay:         time.Second,
		DefaultTemperature: 0.3,
		DefaultMaxTokens:   2000,
	}
}

// ExecuteWithRetry performs an HTTP request with exponential backoff.
// Responses with non-retryable client statuses are returned as-is for
// the caller to turn into an API error. The request body is recreated
// via GetBody on each retry, so requests must be built with a
// replayable body (http.NewRequestWithContext with a bytes.Reader
// provides one).
func (b *BaseClient) ExecuteWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= b.MaxRetries; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("recreating request body: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := b.HTTPClient.Do(attemptReq)
		if err == nil && resp.StatusCode < 400 {
			if attempt > 0 {
				b.Logger.Info("Provider request succeeded after retry", map[string]interface{}{
					"operation": "provider_request_recovery",
					"attempts":  attempt + 1,
				})
			}
			return resp, nil
		}

		// 4xx other than 429 will not get better on retry.
		if err == nil && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			_ = resp.Body.Close()
		}

		if attempt < b.MaxRetries {
			shift := uint(attempt)
			if shift > 31 {
				shift = 31
			}
			delay := b.RetryDelay * time.Duration(1<<shift)

			b.Logger.Warn("Provider request failed, retrying", map[string]interface{}{
				"operation":      "provider_request_retry",
				"attempt":        attempt + 1,
				"max_retries":    b.MaxRetries,
				"retry_delay_ms": delay.Milliseconds(),
				"error":          lastErr.Error(),
			})

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	b.Logger.Error("Provider request failed after all retries", map[string]interface{}{
		"operation": "provider_request_failure",
		"attempts":  b.MaxRetries + 1,
		"error":     lastErr.Error(),
	})
	return nil, fmt.Errorf("request failed after %d retries: %w", b.MaxRetries, lastErr)
}

// ApplyDefaults fills unset option fields from the client defaults.
// The caller's options value is not modified.
func (b *BaseClient) ApplyDefaults(options *core.AIOptions) *core.AIOptions {
	resolved := core.AIOptions{}
	if options != nil {
		resolved = *options
	}

	if resolved.Model == "" && b.DefaultModel != "" {
		resolved.Model = b.DefaultModel
	}
	if resolved.Temperature == 0 {
		resolved.Temperature = b.DefaultTemperature
	}
	if resolved.MaxTokens == 0 {
		resolved.MaxTokens = b.DefaultMaxTokens
	}
	if resolved.SystemPrompt == "" && b.DefaultSystemPrompt != "" {
		resolved.SystemPrompt = b.DefaultSystemPrompt
	}

	return &resolved
}

// HandleError turns an API error response into an error value.
func (b *BaseClient) HandleError(provider string, statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s api error: invalid or missing api key", provider)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s api error: rate limit exceeded", provider)
	case http.StatusBadRequest:
		return fmt.Errorf("%s api error: invalid request: %s", provider, string(body))
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%s api error: service temporarily unavailable (status %d)", provider, statusCode)
	default:
		return fmt.Errorf("%s api error (status %d): %s", provider, statusCode, string(body))
	}
}

// LogRequest logs an outgoing provider request.
func (b *BaseClient) LogRequest(provider, model, prompt string) {
	b.Logger.Debug("Provider request initiated", map[string]interface{}{
		"operation":     "provider_request",
		"provider":      provider,
		"model":         model,
		"prompt_length": len(prompt),
	})
}

// LogResponse logs a completed provider request.
func (b *BaseClient) LogResponse(provider, model string, tokens core.TokenUsage, duration time.Duration) {
	b.Logger.Info("Provider response received", map[string]interface{}{
		"operation":         "provider_response",
		"provider":          provider,
		"model":             model,
		"prompt_tokens":     tokens.PromptTokens,
		"completion_tokens": tokens.CompletionTokens,
		"total_tokens":      tokens.TotalTokens,
		"duration_ms":       duration.Milliseconds(),
	})
}
