package okta

import (
	"fmt"

	"github.com/shadowscan/shadowscan/internal/collectors/configstore"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// Definition registers the Okta collector kind.
type Definition struct{}

func (Definition) Platform() platform.Platform { return platform.Okta }

func (Definition) DisplayName() string { return "Okta" }

func (Definition) DecodeConfig(raw []byte) (any, error) {
	return configstore.DecodeOktaConfig(raw)
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
	return typed.Domain
}

func (Definition) NewCollector(cfg any) (registry.Collector, error) {
	typed, err := asConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := New(typed.BaseURL(), typed.Token)
	if err != nil {
		return nil, err
	}
	return NewCollector(client, typed.Domain), nil
}

func asConfig(cfg any) (configstore.OktaConfig, error) {
	typed, ok := cfg.(configstore.OktaConfig)
	if !ok {
		return configstore.OktaConfig{}, fmt.Errorf("unexpected config type %T", cfg)
	}
	return typed.Normalized(), nil
}
