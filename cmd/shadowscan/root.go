package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:           "shadowscan",
	Short:         "Shadowscan finds the third-party and AI integrations your workspace users authorized.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, discoverCmd, migrateCmd, connectorsCmd)
}
