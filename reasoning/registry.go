package reasoning

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// ProviderFactory creates reasoning clients for a specific AI provider.
// Implementations live in reasoning/providers/* and register themselves
// in their package init, so importing a provider package makes it
// available for selection.
type ProviderFactory interface {
	// Create builds a client from the resolved configuration. A missing
	// API key is not an error here; the client reports it on first use.
	Create(config *ClientConfig) (core.AIClient, error)

	// DetectEnvironment reports whether the provider can run with the
	// current environment (credentials present) and its selection
	// priority. Higher priority wins during auto-detection.
	DetectEnvironment() (priority int, available bool)

	// Name returns the provider identifier used in configuration.
	Name() string

	// Description returns a short human-readable summary.
	Description() string
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]ProviderFactory)
)

// Register adds a provider factory to the registry. It fails on nil
// factories, empty names, and duplicate registrations.
func Register(factory ProviderFactory) error {
	if factory == nil {
		return fmt.Errorf("provider factory cannot be nil")
	}
	name := factory.Name()
	if name == "" {
		return fmt.Errorf("provider factory name cannot be empty")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	registry[name] = factory
	return nil
}

// MustRegister is like Register but panics on error. Provider packages
// call it from init, where a registration failure is a programming bug.
func MustRegister(factory ProviderFactory) {
	if err := Register(factory); err != nil {
		panic(fmt.Sprintf("reasoning: %v", err))
	}
}

// GetProvider returns the factory registered under name.
func GetProvider(name string) (ProviderFactory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, exists := registry[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q not registered (registered: %s)",
			core.ErrProviderUnavailable, name, strings.Join(listLocked(), ", "))
	}
	return factory, nil
}

// ListProviders returns the names of all registered providers, sorted.
func ListProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return listLocked()
}

func listLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderInfo describes a registered provider and its detection state.
type ProviderInfo struct {
	Name        string
	Description string
	Priority    int
	Available   bool
}

// GetProviderInfo reports every registered provider with its current
// environment detection result, sorted by name.
func GetProviderInfo() []ProviderInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	infos := make([]ProviderInfo, 0, len(registry))
	for name, factory := range registry {
		priority, available := factory.DetectEnvironment()
		infos = append(infos, ProviderInfo{
			Name:        name,
			Description: factory.Description(),
			Priority:    priority,
			Available:   available,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// detectBestProvider scans registered factories and picks the available
// one with the highest priority. Ties break alphabetically so detection
// is deterministic.
func detectBestProvider(logger core.Logger) (string, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	type candidate struct {
		name     string
		priority int
	}
	var candidates []candidate
	for name, factory := range registry {
		if priority, available := factory.DetectEnvironment(); available {
			candidates = append(candidates, candidate{name: name, priority: priority})
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no provider credentials found in environment (registered: %s)",
			core.ErrProviderUnavailable, strings.Join(listLocked(), ", "))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority > candidates[j].priority
		}
		return candidates[i].name < candidates[j].name
	})

	best := candidates[0]
	logger.Info("Auto-detected reasoning provider", map[string]interface{}{
		"operation":  "provider_detection",
		"provider":   best.name,
		"priority":   best.priority,
		"candidates": len(candidates),
	})
	return best.name, nil
}
