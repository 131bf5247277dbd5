package orchestration

import (
	"github.com/walvekarn/agentic-compliance-agent-sub001/capabilities"
	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
)

// Selector resolves a step's capability tags to registered modules and
// enforces the side-effect policy: anything that writes is excluded
// unless the run is execute-confirmed. Exclusion is logged, never
// silent, so an auditor can see what the run chose not to do.
type Selector struct {
	registry *capabilities.Registry
	logger   core.Logger
}

// NewSelector creates a selector over the shared registry.
func NewSelector(registry *capabilities.Registry, logger core.Logger) *Selector {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Selector{registry: registry, logger: logger}
}

// Select returns the modules matching the step's tags, in name order.
// Dispatch is by exact tag only; a step without tags selects nothing.
func (s *Selector) Select(step core.Step, executeConfirmed bool) []core.CapabilityModule {
	if s.registry == nil || len(step.CapabilityTags) == 0 {
		return nil
	}

	selected, excluded := s.registry.Match(step.CapabilityTags, executeConfirmed)
	for _, meta := range excluded {
		s.logger.Info("Capability excluded by side-effect policy", map[string]interface{}{
			"operation":   "capability_select",
			"step_id":     step.ID,
			"capability":  meta.Name,
			"side_effect": string(meta.SideEffect),
		})
	}
	if len(selected) > 0 {
		s.logger.Debug("Capabilities selected for step", map[string]interface{}{
			"operation":    "capability_select",
			"step_id":      step.ID,
			"capabilities": moduleNames(selected),
		})
	}
	return selected
}

func moduleNames(modules []core.CapabilityModule) []string {
	names := make([]string, len(modules))
	for i, module := range modules {
		names[i] = module.Name()
	}
	return names
}
