package googleworkspace

import (
	"fmt"

	"github.com/shadowscan/shadowscan/internal/collectors/configstore"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// Definition registers the Google Workspace collector kind.
type Definition struct{}

func (Definition) Platform() platform.Platform { return platform.GoogleWorkspace }

func (Definition) DisplayName() string { return "Google Workspace" }

func (Definition) DecodeConfig(raw []byte) (any, error) {
	return configstore.DecodeGoogleWorkspaceConfig(raw)
}

func (Definition) ValidateConfig(cfg any) error {
	typed, err := asConfig(cfg)
	if err != nil {
		return err
	}
	return typed.Validate()
}

func (Definition) IsConfigured(cfg any) bool {
	typed, err := asConfig(cfg)
	if err != nil {
		return false
	}
	return typed.Validate() == nil
}

func (Definition) SourceName(cfg any) string {
	typed, err := asConfig(cfg)
	if err != nil {
		return ""
	}
	if typed.PrimaryDomain != "" {
		return typed.PrimaryDomain
	}
	return typed.CustomerID
}

func (d Definition) NewCollector(cfg any) (registry.Collector, error) {
	typed, err := asConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(typed)
	if err != nil {
		return nil, err
	}
	return NewCollector(client, d.SourceName(typed)), nil
}

func asConfig(cfg any) (configstore.GoogleWorkspaceConfig, error) {
	typed, ok := cfg.(configstore.GoogleWorkspaceConfig)
	if !ok {
		return configstore.GoogleWorkspaceConfig{}, fmt.Errorf("unexpected config type %T", cfg)
	}
	return typed.Normalized(), nil
}
