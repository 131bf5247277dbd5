// Package capabilities provides the built-in capability modules and the
// registry the engine selects them from. A capability is an independently
// invokable unit of functionality declared through core.CapabilityMetadata;
// the registry matches step tags against those declarations and enforces
// the side-effect policy at selection time.
package capabilities

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/walvekarn/agentic-compliance-agent-sub001/core"
	"github.com/walvekarn/agentic-compliance-agent-sub001/telemetry"
)

// Registry holds the capability modules available to a process.
// All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	modules   map[string]core.CapabilityModule
	logger    core.Logger
	telemetry core.Telemetry
}

// NewRegistry creates an empty registry. Nil dependencies fall back to
// no-op implementations.
func NewRegistry(logger core.Logger, tel core.Telemetry) *Registry {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if tel == nil {
		tel = &core.NoOpTelemetry{}
	}
	return &Registry{
		modules:   make(map[string]core.CapabilityModule),
		logger:    logger,
		telemetry: tel,
	}
}

// Register adds a module to the registry.
func (r *Registry) Register(module core.CapabilityModule) error {
	if module == nil {
		return fmt.Errorf("module cannot be nil")
	}
	name := module.Name()
	if name == "" {
		return fmt.Errorf("module.Name() cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("capability '%s' already registered", name)
	}
	r.modules[name] = module

	meta := module.Metadata()
	r.logger.Info("Capability registered", map[string]interface{}{
		"operation":   "capability_register",
		"capability":  name,
		"side_effect": string(meta.SideEffect),
		"tags":        meta.Tags,
	})
	return nil
}

// MustRegister registers a module and panics on error.
// Use this in wiring code where errors cannot be handled.
func (r *Registry) MustRegister(module core.CapabilityModule) {
	if err := r.Register(module); err != nil {
		panic(fmt.Sprintf("failed to register capability: %v", err))
	}
}

// Get retrieves a module by name.
func (r *Registry) Get(name string) (core.CapabilityModule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	module, exists := r.modules[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrCapabilityNotFound, name)
	}
	return module, nil
}

// List returns the metadata of all registered modules, sorted by name.
func (r *Registry) List() []core.CapabilityMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.CapabilityMetadata, 0, len(r.modules))
	for _, module := range r.modules {
		out = append(out, module.Metadata())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Match returns the modules whose declared tags intersect tags, sorted by
// name. Modules that write anywhere are returned in excluded instead of
// selected unless executeConfirmed is set; selection is the enforcement
// point for the side-effect policy, Invoke itself does not check.
func (r *Registry) Match(tags []string, executeConfirmed bool) (selected []core.CapabilityModule, excluded []core.CapabilityMetadata) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, module := range r.modules {
		meta := module.Metadata()
		if !tagsOverlap(meta.Tags, tags) {
			continue
		}
		if meta.SideEffect != core.SideEffectReadOnly && !executeConfirmed {
			excluded = append(excluded, meta)
			continue
		}
		selected = append(selected, module)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Name() < selected[j].Name() })
	sort.Slice(excluded, func(i, j int) bool { return excluded[i].Name < excluded[j].Name })
	return selected, excluded
}

// Invoke runs a registered module by name, wrapping the call in a span
// and recording invocation metrics. Module errors pass through unchanged.
func (r *Registry) Invoke(ctx context.Context, name string, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	module, err := r.Get(name)
	if err != nil {
		return nil, err
	}

	ctx, span := r.telemetry.StartSpan(ctx, fmt.Sprintf("capability.%s", name))
	defer span.End()
	span.SetAttribute("capability.name", name)
	span.SetAttribute("step.id", req.Step.ID)

	start := time.Now()
	result, err := module.Invoke(ctx, req)
	elapsed := time.Since(start)

	telemetry.Counter(telemetry.MetricCapabilityInvocations,
		"module", telemetry.ModuleCapabilities,
		"capability", name,
	)
	telemetry.Duration(telemetry.MetricCapabilityDuration, start,
		"module", telemetry.ModuleCapabilities,
		"capability", name,
	)

	if err != nil {
		span.RecordError(err)
		telemetry.Counter(telemetry.MetricCapabilityErrors,
			"module", telemetry.ModuleCapabilities,
			"capability", name,
		)
		r.logger.Error("Capability invocation failed", map[string]interface{}{
			"operation":   "capability_invoke",
			"capability":  name,
			"step_id":     req.Step.ID,
			"duration_ms": elapsed.Milliseconds(),
			"error":       err.Error(),
		})
		return nil, err
	}

	span.SetAttribute("capability.success", result.Success)
	r.logger.Debug("Capability invoked", map[string]interface{}{
		"operation":   "capability_invoke",
		"capability":  name,
		"step_id":     req.Step.ID,
		"success":     result.Success,
		"duration_ms": elapsed.Milliseconds(),
	})
	return result, nil
}

// RegisterDefaults registers the built-in modules. The outbound notifier
// is only registered when a webhook endpoint is configured.
func RegisterDefaults(r *Registry, cfg core.CapabilitiesConfig, logger core.Logger) error {
	modules := []core.CapabilityModule{
		NewRegulatoryLookup(),
		NewDeadlineMath(),
		NewRiskScore(),
		NewWatchlist(logger),
	}
	if cfg.WebhookURL != "" {
		modules = append(modules, NewOutboundNotifier(cfg.WebhookURL, logger))
	}
	for _, module := range modules {
		if err := r.Register(module); err != nil {
			return err
		}
	}
	return nil
}

func tagsOverlap(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}
