// Package configstore holds the JSON-encoded per-platform collector
// configurations and their validation. Secret-valued fields may hold a
// Vault reference instead of a literal; see secrets.go.
package configstore

import (
	"encoding/json"
	"errors"
	"strings"
)

type GoogleWorkspaceConfig struct {
	CustomerID          string `json:"customer_id"`
	PrimaryDomain       string `json:"primary_domain"`
	DelegatedAdminEmail string `json:"delegated_admin_email"`
	ServiceAccountJSON  string `json:"service_account_json"`
}

func (c GoogleWorkspaceConfig) Normalized() GoogleWorkspaceConfig {
	out := c
	out.CustomerID = strings.TrimSpace(out.CustomerID)
	out.PrimaryDomain = strings.ToLower(strings.TrimSpace(out.PrimaryDomain))
	out.DelegatedAdminEmail = strings.TrimSpace(out.DelegatedAdminEmail)
	out.ServiceAccountJSON = strings.TrimSpace(out.ServiceAccountJSON)
	return out
}

func (c GoogleWorkspaceConfig) Validate() error {
	c = c.Normalized()
	if c.CustomerID == "" {
		return errors.New("Google Workspace customer id is required")
	}
	if c.DelegatedAdminEmail == "" {
		return errors.New("Google Workspace delegated admin email is required")
	}
	if c.ServiceAccountJSON == "" {
		return errors.New("Google Workspace service account JSON is required")
	}
	return nil
}

type SlackConfig struct {
	Token  string `json:"token"`
	TeamID string `json:"team_id"`
}

func (c SlackConfig) Normalized() SlackConfig {
	out := c
	out.Token = strings.TrimSpace(out.Token)
	out.TeamID = strings.TrimSpace(out.TeamID)
	return out
}

func (c SlackConfig) Validate() error {
	c = c.Normalized()
	if c.Token == "" {
		return errors.New("Slack token is required")
	}
	if c.TeamID == "" {
		return errors.New("Slack team id is required")
	}
	return nil
}

type Microsoft365Config struct {
	TenantID     string `json:"tenant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (c Microsoft365Config) Normalized() Microsoft365Config {
	out := c
	out.TenantID = strings.TrimSpace(out.TenantID)
	out.ClientID = strings.TrimSpace(out.ClientID)
	out.ClientSecret = strings.TrimSpace(out.ClientSecret)
	return out
}

func (c Microsoft365Config) Validate() error {
	c = c.Normalized()
	if c.TenantID == "" {
		return errors.New("Microsoft 365 tenant id is required")
	}
	if c.ClientID == "" {
		return errors.New("Microsoft 365 client id is required")
	}
	if c.ClientSecret == "" {
		return errors.New("Microsoft 365 client secret is required")
	}
	return nil
}

type GitHubConfig struct {
	Token   string `json:"token"`
	Org     string `json:"org"`
	APIBase string `json:"api_base"`
}

const defaultGitHubAPIBase = "https://api.github.com"

func (c GitHubConfig) Normalized() GitHubConfig {
	out := c
	out.Token = strings.TrimSpace(out.Token)
	out.Org = strings.TrimSpace(out.Org)
	out.APIBase = strings.TrimSpace(out.APIBase)
	if out.APIBase == "" {
		out.APIBase = defaultGitHubAPIBase
	}
	out.APIBase = strings.TrimRight(out.APIBase, "/")
	return out
}

func (c GitHubConfig) Validate() error {
	c = c.Normalized()
	if c.Token == "" {
		return errors.New("GitHub token is required")
	}
	if c.Org == "" {
		return errors.New("GitHub org is required")
	}
	return nil
}

type OktaConfig struct {
	Domain string `json:"domain"`
	Token  string `json:"token"`
}

func (c OktaConfig) Normalized() OktaConfig {
	out := c
	out.Domain = strings.TrimSpace(out.Domain)
	out.Token = strings.TrimSpace(out.Token)
	return out
}

func (c OktaConfig) BaseURL() string {
	base := strings.TrimSpace(c.Domain)
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}

func (c OktaConfig) Validate() error {
	c = c.Normalized()
	if c.Domain == "" {
		return errors.New("Okta domain is required")
	}
	if c.Token == "" {
		return errors.New("Okta token is required")
	}
	return nil
}

func DecodeGoogleWorkspaceConfig(raw []byte) (GoogleWorkspaceConfig, error) {
	var cfg GoogleWorkspaceConfig
	if err := decode(raw, &cfg); err != nil {
		return GoogleWorkspaceConfig{}, err
	}
	return cfg.Normalized(), nil
}

func DecodeSlackConfig(raw []byte) (SlackConfig, error) {
	var cfg SlackConfig
	if err := decode(raw, &cfg); err != nil {
		return SlackConfig{}, err
	}
	return cfg.Normalized(), nil
}

func DecodeMicrosoft365Config(raw []byte) (Microsoft365Config, error) {
	var cfg Microsoft365Config
	if err := decode(raw, &cfg); err != nil {
		return Microsoft365Config{}, err
	}
	return cfg.Normalized(), nil
}

func DecodeGitHubConfig(raw []byte) (GitHubConfig, error) {
	var cfg GitHubConfig
	if err := decode(raw, &cfg); err != nil {
		return GitHubConfig{}, err
	}
	return cfg.Normalized(), nil
}

func DecodeOktaConfig(raw []byte) (OktaConfig, error) {
	var cfg OktaConfig
	if err := decode(raw, &cfg); err != nil {
		return OktaConfig{}, err
	}
	return cfg.Normalized(), nil
}

func decode(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
