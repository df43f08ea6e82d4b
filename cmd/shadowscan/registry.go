package main

import (
	"github.com/shadowscan/shadowscan/internal/collectors/configstore"
	"github.com/shadowscan/shadowscan/internal/collectors/github"
	"github.com/shadowscan/shadowscan/internal/collectors/googleworkspace"
	"github.com/shadowscan/shadowscan/internal/collectors/microsoft365"
	"github.com/shadowscan/shadowscan/internal/collectors/okta"
	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/collectors/slack"
	"github.com/shadowscan/shadowscan/internal/config"
)

func buildCollectorRegistry() (*registry.CollectorRegistry, error) {
	reg := registry.NewRegistry()
	if err := reg.Register(googleworkspace.Definition{}); err != nil {
		return nil, err
	}
	if err := reg.Register(slack.Definition{}); err != nil {
		return nil, err
	}
	if err := reg.Register(microsoft365.Definition{}); err != nil {
		return nil, err
	}
	if err := reg.Register(github.Definition{}); err != nil {
		return nil, err
	}
	if err := reg.Register(okta.Definition{}); err != nil {
		return nil, err
	}
	return reg, nil
}

func buildSecretResolver(cfg config.Config) (configstore.SecretResolver, error) {
	if cfg.VaultAddr == "" {
		return nil, nil
	}
	return configstore.NewVaultResolver(cfg.VaultAddr, cfg.VaultToken)
}
