// execgatectl is the command-line client for the execgate status API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/execgate/cmd/execgatectl/commands"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "execgatectl",
		Short: "Control and inspect a running execgate service",
		Long: `execgatectl queries a running execgate admission service over its
status API.

Examples:
  # Show the admission-state snapshot
  execgatectl status

  # Check liveness and readiness
  execgatectl health

  # Query a remote service
  execgatectl status --server http://execgate.internal:8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&commands.ServerURL, "server", "http://localhost:8080",
		"Base URL of the execgate API")

	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.HealthCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("execgatectl %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
