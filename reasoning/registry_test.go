package reasoning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

func TestRegisterNilFactory(t *testing.T) {
	err := Register(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}

func TestRegisterEmptyName(t *testing.T) {
	err := Register(&stubFactory{name: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestRegisterDuplicate(t *testing.T) {
	require.NoError(t, Register(&stubFactory{name: "t-reg-dup"}))

	err := Register(&stubFactory{name: "t-reg-dup"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	MustRegister(&stubFactory{name: "t-reg-must"})
	assert.Panics(t, func() {
		MustRegister(&stubFactory{name: "t-reg-must"})
	})
}

func TestGetProvider(t *testing.T) {
	factory := &stubFactory{name: "t-reg-get"}
	require.NoError(t, Register(factory))

	got, err := GetProvider("t-reg-get")
	require.NoError(t, err)
	assert.Equal(t, factory, got)
}

func TestGetProviderNotRegistered(t *testing.T) {
	_, err := GetProvider("t-reg-absent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProviderUnavailable))
}

func TestListProvidersSorted(t *testing.T) {
	require.NoError(t, Register(&stubFactory{name: "t-reg-list-b"}))
	require.NoError(t, Register(&stubFactory{name: "t-reg-list-a"}))

	names := ListProviders()
	indexA, indexB := -1, -1
	for i, name := range names {
		switch name {
		case "t-reg-list-a":
			indexA = i
		case "t-reg-list-b":
			indexB = i
		}
	}
	require.NotEqual(t, -1, indexA)
	require.NotEqual(t, -1, indexB)
	assert.Less(t, indexA, indexB)
	assert.IsIncreasing(t, names)
}

func TestGetProviderInfo(t *testing.T) {
	require.NoError(t, Register(&stubFactory{name: "t-reg-info", priority: 42, available: true}))

	var found ProviderInfo
	var ok bool
	for _, info := range GetProviderInfo() {
		if info.Name == "t-reg-info" {
			found, ok = info, true
			break
		}
	}
	require.True(t, ok)
	assert.Equal(t, 42, found.Priority)
	assert.True(t, found.Available)
	assert.Contains(t, found.Description, "t-reg-info")
}

func TestDetectBestProviderPicksHighestPriority(t *testing.T) {
	require.NoError(t, Register(&stubFactory{name: "t-detect-mid", priority: 20000, available: true}))
	require.NoError(t, Register(&stubFactory{name: "t-detect-top", priority: 20001, available: true}))
	require.NoError(t, Register(&stubFactory{name: "t-detect-off", priority: 30000, available: false}))

	name, err := detectBestProvider(&core.NoOpLogger{})
	require.NoError(t, err)
	assert.Equal(t, "t-detect-top", name)
}

func TestDetectBestProviderTieBreaksAlphabetically(t *testing.T) {
	require.NoError(t, Register(&stubFactory{name: "t-tie-b", priority: 20002, available: true}))
	require.NoError(t, Register(&stubFactory{name: "t-tie-a", priority: 20002, available: true}))

	name, err := detectBestProvider(&core.NoOpLogger{})
	require.NoError(t, err)
	assert.Equal(t, "t-tie-a", name)
}
