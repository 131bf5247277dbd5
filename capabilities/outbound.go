package capabilities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/resilience"
)

// OutboundNotifier posts step findings to a configured webhook. It is
// classified network-write, so the registry only offers it to steps when
// the run is execute-confirmed.
type OutboundNotifier struct {
	endpoint string
	client   *http.Client
	logger   core.Logger
}

// NewOutboundNotifier creates the notifier for the given endpoint. The
// HTTP client propagates trace context on outgoing requests.
func NewOutboundNotifier(endpoint string, logger core.Logger) *OutboundNotifier {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &OutboundNotifier{
		endpoint: endpoint,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

func (c *OutboundNotifier) Name() string { return "outbound-notify" }

func (c *OutboundNotifier) Metadata() core.CapabilityMetadata {
	return core.CapabilityMetadata{
		Name:        "outbound-notify",
		Description: "Delivers a notification about the current task to the configured webhook",
		Tags:        []string{"notify", "escalation"},
		SideEffect:  core.SideEffectNetworkWrite,
		Parameters: []core.CapabilityParameter{
			{Name: "message", Type: "string", Description: "Notification body, defaults to the step description"},
			{Name: "severity", Type: "string", Description: "Notification severity",
				Enum: []string{"info", "warning", "critical"}},
		},
	}
}

type notificationPayload struct {
	TaskID   string `json:"task_id"`
	StepID   string `json:"step_id"`
	Entity   string `json:"entity,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	SentAt   string `json:"sent_at"`
}

// Invoke delivers the notification, retrying on network errors and 5xx
// responses. Delivery failures come back as unsuccessful results; the
// error return is reserved for missing configuration and context
// cancellation, which the engine handles differently.
func (c *OutboundNotifier) Invoke(ctx context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("%w: webhook endpoint", core.ErrMissingConfiguration)
	}

	message := stringParam(req.Params, "message")
	if message == "" {
		message = req.Step.Description
	}
	severity := stringParam(req.Params, "severity")
	if severity == "" {
		severity = "info"
	}

	body, err := json.Marshal(notificationPayload{
		TaskID:   req.Task.ID,
		StepID:   req.Step.ID,
		Entity:   req.Entity.Name,
		Severity: severity,
		Message:  message,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}

	var status int
	deliverErr := resilience.Retry(ctx, retryCfg, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)

		status = resp.StatusCode
		// 5xx is worth retrying, anything else is final.
		if resp.StatusCode >= 500 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil
	})

	if deliverErr != nil {
		if errors.Is(deliverErr, context.Canceled) || errors.Is(deliverErr, context.DeadlineExceeded) {
			return nil, deliverErr
		}
		c.logger.Warn("Notification delivery failed", map[string]interface{}{
			"operation": "outbound_notify",
			"task_id":   req.Task.ID,
			"step_id":   req.Step.ID,
			"error":     deliverErr.Error(),
		})
		return &core.CapabilityResult{
			Capability: c.Name(),
			Success:    false,
			Outputs:    map[string]interface{}{"endpoint": c.endpoint},
			Error:      deliverErr.Error(),
		}, nil
	}

	if status < 200 || status >= 300 {
		return &core.CapabilityResult{
			Capability: c.Name(),
			Success:    false,
			Outputs: map[string]interface{}{
				"endpoint":    c.endpoint,
				"status_code": status,
			},
			Error: fmt.Sprintf("webhook returned status %d", status),
		}, nil
	}

	c.logger.Info("Notification delivered", map[string]interface{}{
		"operation":   "outbound_notify",
		"task_id":     req.Task.ID,
		"step_id":     req.Step.ID,
		"status_code": status,
		"severity":    severity,
	})
	return &core.CapabilityResult{
		Capability: c.Name(),
		Success:    true,
		Outputs: map[string]interface{}{
			"endpoint":    c.endpoint,
			"status_code": status,
			"delivered":   true,
		},
		Summary: fmt.Sprintf("Notification delivered (severity %s, status %d).", severity, status),
	}, nil
}
