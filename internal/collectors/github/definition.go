package github

import (
	"fmt"

	"github.com/shadowscan/shadowscan/internal/collectors/configstore"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// Definition registers the GitHub collector kind.
type Definition struct{}

func (Definition) Platform() platform.Platform { return platform.GitHub }

func (Definition) DisplayName() string { return "GitHub" }

func (Definition) DecodeConfig(raw []byte) (any, error) {
	return configstore.DecodeGitHubConfig(raw)
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
	return typed.Org
}

func (Definition) NewCollector(cfg any) (registry.Collector, error) {
	typed, err := asConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := New(typed.APIBase, typed.Token)
	if err != nil {
		return nil, err
	}
	return NewCollector(client, typed.Org), nil
}

func asConfig(cfg any) (configstore.GitHubConfig, error) {
	typed, ok := cfg.(configstore.GitHubConfig)
	if !ok {
		return configstore.GitHubConfig{}, fmt.Errorf("unexpected config type %T", cfg)
	}
	return typed.Normalized(), nil
}
