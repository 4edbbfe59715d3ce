// Command lumenctl runs maintenance tasks against the Lumen database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lumenctl",
		Short: "Maintenance commands for the Lumen backend",
		Long: `lumenctl manages a Lumen deployment from the command line.
It reads the same configuration as the API (CONFIG_FILE, .env and
environment variables).`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newPromoteCmd(),
		newSeedGiftsCmd(),
		newRebuildLeaderboardCmd(),
	)
	return root
}
