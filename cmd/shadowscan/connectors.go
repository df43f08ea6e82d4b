package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shadowscan/shadowscan/internal/config"
	"github.com/shadowscan/shadowscan/internal/platform"
	"github.com/shadowscan/shadowscan/internal/store"
)

// secretField maps each platform to the config key its credential lives in.
var secretField = map[platform.Platform]string{
	platform.GoogleWorkspace: "service_account_json",
	platform.Slack:           "token",
	platform.Microsoft365:    "client_secret",
	platform.GitHub:          "token",
	platform.Okta:            "token",
}

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "Inspect and configure platform connectors.",
}

var connectorsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connector configuration state.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		reg, err := buildCollectorRegistry()
		if err != nil {
			return err
		}
		states, err := reg.LoadStates(ctx, st)
		if err != nil {
			return err
		}

		for _, state := range states {
			status := "unconfigured"
			if state.Configured {
				status = "configured"
			}
			enabled := "disabled"
			if state.Enabled {
				enabled = "enabled"
			}
			line := fmt.Sprintf("%-18s %-11s %-13s", state.Definition.Platform(), enabled, status)
			if state.SourceName != "" {
				line += " " + state.SourceName
			}
			cmd.Println(strings.TrimRight(line, " "))
		}
		return nil
	},
}

var connectorsEnableCmd = &cobra.Command{
	Use:   "enable <platform>",
	Short: "Enable a connector.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConnectorEnabled(cmd.Context(), args[0], true)
	},
}

var connectorsDisableCmd = &cobra.Command{
	Use:   "disable <platform>",
	Short: "Disable a connector.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setConnectorEnabled(cmd.Context(), args[0], false)
	},
}

var connectorsSetSecretCmd = &cobra.Command{
	Use:   "set-secret <platform>",
	Short: "Store a connector credential without echoing it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := platform.Parse(args[0])
		if err != nil {
			return err
		}
		field, ok := secretField[p]
		if !ok {
			return fmt.Errorf("platform %q has no credential field", p)
		}

		secret, err := readSecret(cmd, field)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		enabled, raw, err := loadConnectorConfig(ctx, st, p)
		if err != nil {
			return err
		}
		raw[field] = secret

		updated, err := json.Marshal(raw)
		if err != nil {
			return err
		}
		if err := st.SetCollectorConfig(ctx, p, enabled, updated); err != nil {
			return err
		}
		cmd.Printf("%s %s updated\n", p, field)
		return nil
	},
}

func setConnectorEnabled(ctx context.Context, rawPlatform string, enabled bool) error {
	p, err := platform.Parse(rawPlatform)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	st, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SetCollectorEnabled(ctx, p, enabled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("connector %q has no stored config yet, set a credential first", p)
		}
		return err
	}
	return nil
}

func loadConnectorConfig(ctx context.Context, st *store.Store, p platform.Platform) (bool, map[string]any, error) {
	row, err := st.GetCollectorConfig(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return false, map[string]any{}, nil
	}
	if err != nil {
		return false, nil, err
	}

	raw := map[string]any{}
	if len(row.Config) > 0 {
		if err := json.Unmarshal(row.Config, &raw); err != nil {
			return false, nil, fmt.Errorf("stored config for %s is not valid JSON: %w", p, err)
		}
	}
	return row.Enabled, raw, nil
}

func readSecret(cmd *cobra.Command, field string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		value := strings.TrimRight(string(raw), "\r\n")
		if value == "" {
			return "", errors.New("value is empty")
		}
		return value, nil
	}

	cmd.Printf("%s: ", field)
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	cmd.Println()
	if err != nil {
		return "", err
	}
	if len(value) == 0 {
		return "", errors.New("value is empty")
	}
	return string(value), nil
}

func init() {
	connectorsCmd.AddCommand(connectorsListCmd, connectorsEnableCmd, connectorsDisableCmd, connectorsSetSecretCmd)
}
