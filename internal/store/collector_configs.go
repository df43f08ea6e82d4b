package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/shadowscan/shadowscan/internal/collectors/registry"
	"github.com/shadowscan/shadowscan/internal/platform"
)

// ListCollectorConfigs implements registry.ConfigSource.
func (s *Store) ListCollectorConfigs(ctx context.Context) ([]registry.ConfigRow, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT platform, enabled, config
		FROM collector_configs
		ORDER BY platform
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.ConfigRow
	for rows.Next() {
		var row registry.ConfigRow
		var rawPlatform string
		if err := rows.Scan(&rawPlatform, &row.Enabled, &row.Config); err != nil {
			return nil, err
		}
		row.Platform = platform.Platform(rawPlatform)
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetCollectorConfig fetches one stored configuration.
func (s *Store) GetCollectorConfig(ctx context.Context, p platform.Platform) (registry.ConfigRow, error) {
	row := registry.ConfigRow{Platform: p}
	err := s.Pool.QueryRow(ctx, `
		SELECT enabled, config
		FROM collector_configs
		WHERE platform = $1
	`, p.String()).Scan(&row.Enabled, &row.Config)
	if errors.Is(err, pgx.ErrNoRows) {
		return registry.ConfigRow{}, ErrNotFound
	}
	if err != nil {
		return registry.ConfigRow{}, err
	}
	return row, nil
}

// SetCollectorConfig stores or replaces a platform configuration.
func (s *Store) SetCollectorConfig(ctx context.Context, p platform.Platform, enabled bool, config []byte) error {
	if len(config) == 0 {
		config = []byte("{}")
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO collector_configs (platform, enabled, config, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (platform) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			config = EXCLUDED.config,
			updated_at = now()
	`, p.String(), enabled, config)
	return err
}

// SetCollectorEnabled flips the enabled flag without touching the config.
func (s *Store) SetCollectorEnabled(ctx context.Context, p platform.Platform, enabled bool) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE collector_configs SET enabled = $2, updated_at = now()
		WHERE platform = $1
	`, p.String(), enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
