// Package registry is the central registry for platform collectors. A
// collector definition describes one workspace platform connection kind;
// a collector is a configured instance that can list candidate automations.
package registry

import (
	"context"

	"github.com/shadowscan/shadowscan/internal/discovery"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// CollectorDefinition defines behavior and metadata for one platform kind.
type CollectorDefinition interface {
	Platform() platform.Platform
	DisplayName() string

	DecodeConfig(raw []byte) (any, error)
	ValidateConfig(cfg any) error
	IsConfigured(cfg any) bool
	SourceName(cfg any) string // e.g. workspace domain, org slug, tenant id

	// NewCollector builds a collector from an already secret-resolved config.
	NewCollector(cfg any) (Collector, error)
}

// Collector lists candidate automations from one platform connection.
// ListCandidates is one network round trip boundary: it honors ctx
// cancellation and returns a platform-level error on collection failure.
type Collector interface {
	Platform() platform.Platform
	SourceName() string
	ListCandidates(ctx context.Context) ([]discovery.Candidate, error)
}
