package main

import "testing"

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"serve", "discover", "migrate", "connectors"} {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("%s command not registered: cmd=%v err=%v", name, cmd, err)
		}
	}
}

func TestConnectorsSubcommands(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"list", "enable", "disable", "set-secret"} {
		cmd, _, err := rootCmd.Find([]string{"connectors", name})
		if err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("connectors %s command not registered: cmd=%v err=%v", name, cmd, err)
		}
	}
}

func TestBuildCollectorRegistryCoversEveryPlatform(t *testing.T) {
	t.Parallel()

	reg, err := buildCollectorRegistry()
	if err != nil {
		t.Fatalf("buildCollectorRegistry() error = %v", err)
	}
	if got := len(reg.All()); got != 5 {
		t.Fatalf("registered definitions = %d, want 5", got)
	}
}
