// Package app wires the CLI commands together.
package app

import (
	"github.com/spf13/cobra"
)

var (
	serverURL string

	// RootCmd is the root command for bosswatch.
	RootCmd = &cobra.Command{
		Use:   "bosswatch",
		Short: "Boss respawn tracking server with webhook notifications",
		Long: `bosswatch tracks boss kill times and respawn windows, fans kill
notifications out to Discord webhooks, and keeps multiple installations
in sync through a shared remote endpoint.

Quick Start:
  1. bosswatch serve
  2. Open http://localhost:8080/ for the live dashboard
  3. bosswatch record --boss 巴洛古 --channel 3

Examples:
  # Run the server with a durable local state file
  bosswatch serve

  # Record a kill against a running server
  bosswatch record --boss 巴洛古 --channel 3 --time 1350

  # Export and re-import a backup
  bosswatch export --type boss > backup.json
  bosswatch import backup.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the bosswatch server")
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}
