package registry

import (
	"context"
	"fmt"

	"github.com/shadowscan/shadowscan/internal/platform"
)

// CollectorRegistry holds all registered collector definitions.
type CollectorRegistry struct {
	definitions map[platform.Platform]CollectorDefinition
	order       []platform.Platform // display order
}

func NewRegistry() *CollectorRegistry {
	return &CollectorRegistry{
		definitions: make(map[platform.Platform]CollectorDefinition),
	}
}

// Register adds a collector definition. Duplicate platforms are an error.
func (r *CollectorRegistry) Register(def CollectorDefinition) error {
	p := def.Platform()
	if !p.Valid() {
		return fmt.Errorf("collector definition has invalid platform %q", p)
	}
	if _, exists := r.definitions[p]; exists {
		return fmt.Errorf("platform %q already registered", p)
	}
	r.definitions[p] = def
	r.order = append(r.order, p)
	return nil
}

// Get retrieves a definition by platform.
func (r *CollectorRegistry) Get(p platform.Platform) (CollectorDefinition, bool) {
	def, ok := r.definitions[p]
	return def, ok
}

// All returns registered definitions in registration order.
func (r *CollectorRegistry) All() []CollectorDefinition {
	defs := make([]CollectorDefinition, 0, len(r.order))
	for _, p := range r.order {
		defs = append(defs, r.definitions[p])
	}
	return defs
}

// ConfigRow is a stored collector configuration.
type ConfigRow struct {
	Platform platform.Platform
	Enabled  bool
	Config   []byte
}

// ConfigSource yields stored collector configurations; implemented by the
// store.
type ConfigSource interface {
	ListCollectorConfigs(ctx context.Context) ([]ConfigRow, error)
}

// CollectorState is the decoded configuration state of one definition.
type CollectorState struct {
	Definition CollectorDefinition
	Enabled    bool
	Configured bool
	Config     any
	SourceName string
}

// LoadStates decodes the stored configuration for every registered
// definition, in registration order. Definitions with no stored row come
// back disabled and unconfigured.
func (r *CollectorRegistry) LoadStates(ctx context.Context, src ConfigSource) ([]CollectorState, error) {
	rows, err := src.ListCollectorConfigs(ctx)
	if err != nil {
		return nil, err
	}

	rowMap := make(map[platform.Platform]ConfigRow, len(rows))
	for _, row := range rows {
		rowMap[row.Platform] = row
	}

	states := make([]CollectorState, 0, len(r.order))
	for _, p := range r.order {
		def := r.definitions[p]
		state := CollectorState{Definition: def}

		if row, ok := rowMap[p]; ok {
			cfg, err := def.DecodeConfig(row.Config)
			if err != nil {
				return nil, fmt.Errorf("decode config for %s: %w", p, err)
			}
			state.Enabled = row.Enabled
			state.Config = cfg
			state.Configured = def.IsConfigured(cfg)
			state.SourceName = def.SourceName(cfg)
		}

		states = append(states, state)
	}
	return states, nil
}
