package reasoning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

type stubClient struct {
	name string
}

func (c *stubClient) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	return &core.AIResponse{Content: "stub:" + c.name, Model: "stub"}, nil
}

type stubFactory struct {
	name      string
	priority  int
	available bool
	createErr error
	gotConfig *ClientConfig
}

func (f *stubFactory) Create(config *ClientConfig) (core.AIClient, error) {
	f.gotConfig = config
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &stubClient{name: f.name}, nil
}

func (f *stubFactory) DetectEnvironment() (int, bool) {
	return f.priority, f.available
}

func (f *stubFactory) Name() string {
	return f.name
}

func (f *stubFactory) Description() string {
	return "stub factory " + f.name
}

// Runs before any test registers an available factory, so auto-detection
// has nothing to pick from.
func TestNewClientNoProviderAvailable(t *testing.T) {
	_, err := NewClient(&ClientConfig{
		ProviderConfig: core.ProviderConfig{Provider: ProviderAuto},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProviderUnavailable))
}

func TestNewClientExplicitProvider(t *testing.T) {
	factory := &stubFactory{name: "t-client-explicit"}
	require.NoError(t, Register(factory))

	client, err := NewClient(&ClientConfig{
		ProviderConfig: core.ProviderConfig{Provider: "t-client-explicit", Model: "custom-model"},
	})
	require.NoError(t, err)

	resp, err := client.GenerateResponse(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub:t-client-explicit", resp.Content)

	require.NotNil(t, factory.gotConfig)
	assert.NotNil(t, factory.gotConfig.Logger)
	assert.NotNil(t, factory.gotConfig.Telemetry)
	assert.Equal(t, "custom-model", factory.gotConfig.Model)
}

func TestNewClientAutoDetection(t *testing.T) {
	require.NoError(t, Register(&stubFactory{name: "t-auto-low", priority: 9999, available: true}))
	require.NoError(t, Register(&stubFactory{name: "t-auto-high", priority: 10000, available: true}))

	client, err := NewClient(&ClientConfig{
		ProviderConfig: core.ProviderConfig{Provider: ProviderAuto},
	})
	require.NoError(t, err)

	resp, err := client.GenerateResponse(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub:t-auto-high", resp.Content)
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient(&ClientConfig{
		ProviderConfig: core.ProviderConfig{Provider: "t-client-nonexistent"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProviderUnavailable))
	assert.Contains(t, err.Error(), "not registered")
}

func TestNewClientFactoryError(t *testing.T) {
	require.NoError(t, Register(&stubFactory{
		name:      "t-client-broken",
		createErr: errors.New("bad credentials file"),
	}))

	_, err := NewClient(&ClientConfig{
		ProviderConfig: core.ProviderConfig{Provider: "t-client-broken"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating t-client-broken client")
	assert.Contains(t, err.Error(), "bad credentials file")
}

func TestMustNewClientPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustNewClient(&ClientConfig{
			ProviderConfig: core.ProviderConfig{Provider: "t-client-missing"},
		})
	})
}
