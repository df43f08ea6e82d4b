package configstore

import (
	"context"
	"errors"
	"testing"
)

func TestDecodeSlackConfig(t *testing.T) {
	t.Parallel()

	cfg, err := DecodeSlackConfig([]byte(`{"token":"  xoxb-1  ","team_id":"T0444"}`))
	if err != nil {
		t.Fatalf("DecodeSlackConfig() error = %v", err)
	}
	if cfg.Token != "xoxb-1" {
		t.Fatalf("Token = %q, want trimmed", cfg.Token)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
	}{
		{name: "slack", err: SlackConfig{}.Validate()},
		{name: "google", err: GoogleWorkspaceConfig{}.Validate()},
		{name: "microsoft", err: Microsoft365Config{}.Validate()},
		{name: "github", err: GitHubConfig{}.Validate()},
		{name: "okta", err: OktaConfig{}.Validate()},
	}
	for _, tc := range cases {
		if tc.err == nil {
			t.Fatalf("%s: expected validation error for empty config", tc.name)
		}
	}
}

func TestGitHubConfig_DefaultAPIBase(t *testing.T) {
	t.Parallel()

	cfg := GitHubConfig{Token: "t", Org: "acme"}.Normalized()
	if cfg.APIBase != "https://api.github.com" {
		t.Fatalf("APIBase = %q", cfg.APIBase)
	}
}

func TestOktaConfig_BaseURL(t *testing.T) {
	t.Parallel()

	cfg := OktaConfig{Domain: "acme.okta.com", Token: "t"}
	if got := cfg.BaseURL(); got != "https://acme.okta.com" {
		t.Fatalf("BaseURL() = %q", got)
	}
	cfg.Domain = "https://acme.okta.com/"
	if got := cfg.BaseURL(); got != "https://acme.okta.com" {
		t.Fatalf("BaseURL() = %q", got)
	}
}

type mapResolver map[string]string

func (m mapResolver) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := m[ref]
	if !ok {
		return "", errors.New("unknown ref")
	}
	return v, nil
}

func TestResolveFields(t *testing.T) {
	t.Parallel()

	resolver := mapResolver{"vault:secret/data/shadowscan#slack_token": "xoxb-real"}

	token := "vault:secret/data/shadowscan#slack_token"
	literal := "already-plain"
	if err := ResolveFields(context.Background(), resolver, &token, &literal); err != nil {
		t.Fatalf("ResolveFields() error = %v", err)
	}
	if token != "xoxb-real" {
		t.Fatalf("token = %q, want resolved value", token)
	}
	if literal != "already-plain" {
		t.Fatalf("literal = %q, want untouched", literal)
	}
}

func TestResolveFields_RefWithoutResolver(t *testing.T) {
	t.Parallel()

	token := "vault:secret/data/shadowscan#slack_token"
	if err := ResolveFields(context.Background(), nil, &token); err == nil {
		t.Fatal("expected error for reference without resolver")
	}
}

func TestParseSecretRef(t *testing.T) {
	t.Parallel()

	path, field, err := parseSecretRef("vault:secret/data/shadowscan#okta_token")
	if err != nil {
		t.Fatalf("parseSecretRef() error = %v", err)
	}
	if path != "secret/data/shadowscan" || field != "okta_token" {
		t.Fatalf("parseSecretRef() = %q, %q", path, field)
	}

	if _, _, err := parseSecretRef("vault:missing-field"); err == nil {
		t.Fatal("expected malformed reference error")
	}
}
