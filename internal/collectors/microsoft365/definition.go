package microsoft365

import (
	"fmt"

	"github.com/shadowscan/shadowscan/internal/collectors/configstore"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// Definition registers the Microsoft 365 collector kind.
type Definition struct{}

func (Definition) Platform() platform.Platform { return platform.Microsoft365 }

func (Definition) DisplayName() string { return "Microsoft 365" }

func (Definition) DecodeConfig(raw []byte) (any, error) {
	return configstore.DecodeMicrosoft365Config(raw)
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
	return typed.TenantID
}

func (Definition) NewCollector(cfg any) (registry.Collector, error) {
	typed, err := asConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(typed)
	if err != nil {
		return nil, err
	}
	return NewCollector(client, typed.TenantID), nil
}

func asConfig(cfg any) (configstore.Microsoft365Config, error) {
	typed, ok := cfg.(configstore.Microsoft365Config)
	if !ok {
		return configstore.Microsoft365Config{}, fmt.Errorf("unexpected config type %T", cfg)
	}
	return typed.Normalized(), nil
}
