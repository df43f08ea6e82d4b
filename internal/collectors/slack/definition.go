package slack

import (
	"fmt"

	"github.com/shadowscan/shadowscan/internal/collectors/configstore"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// Definition registers the Slack collector kind.
type Definition struct{}

func (Definition) Platform() platform.Platform { return platform.Slack }

func (Definition) DisplayName() string { return "Slack" }

func (Definition) DecodeConfig(raw []byte) (any, error) {
	return configstore.DecodeSlackConfig(raw)
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
	return typed.TeamID
}

func (d Definition) NewCollector(cfg any) (registry.Collector, error) {
	typed, err := asConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := New("", typed.Token)
	if err != nil {
		return nil, err
	}
	return NewCollector(client, d.SourceName(typed)), nil
}

func asConfig(cfg any) (configstore.SlackConfig, error) {
	typed, ok := cfg.(configstore.SlackConfig)
	if !ok {
		return configstore.SlackConfig{}, fmt.Errorf("unexpected config type %T", cfg)
	}
	return typed.Normalized(), nil
}
