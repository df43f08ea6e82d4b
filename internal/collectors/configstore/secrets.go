package configstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	vaultapi "github.com/hashicorp/vault/api"
)

// Secret-valued config fields may hold a reference of the form
// "vault:<path>#<field>" instead of a literal. References are resolved at
// collector-build time so plaintext secrets never sit in the config table.
const secretRefPrefix = "vault:"

func IsSecretRef(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), secretRefPrefix)
}

// SecretResolver resolves secret references to their literal values.
type SecretResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// VaultResolver resolves references against a HashiCorp Vault KV store.
type VaultResolver struct {
	client *vaultapi.Client
}

func NewVaultResolver(addr, token string) (*VaultResolver, error) {
	addr = strings.TrimSpace(addr)
	token = strings.TrimSpace(token)
	if addr == "" {
		return nil, errors.New("vault address is required")
	}
	if token == "" {
		return nil, errors.New("vault token is required")
	}

	cfg := vaultapi.DefaultConfig()
	cfg.Address = addr
	client, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client: %w", err)
	}
	client.SetToken(token)
	return &VaultResolver{client: client}, nil
}

func (r *VaultResolver) Resolve(ctx context.Context, ref string) (string, error) {
	path, field, err := parseSecretRef(ref)
	if err != nil {
		return "", err
	}

	secret, err := r.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("vault secret %s not found", path)
	}

	data := secret.Data
	// KV v2 nests the payload under "data".
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}
	value, ok := data[field].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("vault secret %s has no string field %q", path, field)
	}
	return value, nil
}

func parseSecretRef(ref string) (path, field string, err error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, secretRefPrefix) {
		return "", "", fmt.Errorf("not a secret reference: %q", ref)
	}
	rest := strings.TrimPrefix(ref, secretRefPrefix)
	path, field, ok := strings.Cut(rest, "#")
	path = strings.TrimSpace(path)
	field = strings.TrimSpace(field)
	if !ok || path == "" || field == "" {
		return "", "", fmt.Errorf("malformed secret reference %q, want vault:<path>#<field>", ref)
	}
	return path, field, nil
}

// ResolveFields replaces every referenced value in place. A reference with a
// nil resolver is a configuration error, not a silent passthrough.
func ResolveFields(ctx context.Context, resolver SecretResolver, fields ...*string) error {
	for _, field := range fields {
		if field == nil || !IsSecretRef(*field) {
			continue
		}
		if resolver == nil {
			return fmt.Errorf("secret reference %q requires a configured vault resolver", *field)
		}
		value, err := resolver.Resolve(ctx, *field)
		if err != nil {
			return err
		}
		*field = value
	}
	return nil
}
