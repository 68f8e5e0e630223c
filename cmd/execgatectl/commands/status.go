// Package commands implements the execgatectl subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/execgate/pkg/apiclient"
)

// ServerURL is the base URL of the execgate API, set by the root command's
// --server flag.
var ServerURL string

// StatusCmd prints the admission-state snapshot.
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the admission-state snapshot",
	Long: `Show one consistent snapshot of the admission state: checkpoint
watermarks, the effective backpressure flag, and cache occupancy.

Examples:
  # Local service
  execgatectl status

  # Remote service
  execgatectl status --server http://execgate.internal:8080`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := apiclient.New(ServerURL)

	status, err := client.GetStatus()
	if err != nil {
		return err
	}

	flag := "inactive"
	if status.Backpressure {
		flag = "ACTIVE"
	}

	fmt.Println("Watermarks:")
	fmt.Printf("  Executed:   %d\n", status.Watermarks.Executed)
	fmt.Printf("  Certified:  %d\n", status.Watermarks.Certified)
	fmt.Printf("Backpressure: %s\n", flag)
	fmt.Println("Cache:")
	fmt.Printf("  Pending waiters: %d\n", status.Cache.PendingWaiters)
	fmt.Printf("  Pending keys:    %d\n", status.Cache.PendingKeys)
	fmt.Printf("  Dirty entries:   %d\n", status.Cache.DirtyEntries)
	fmt.Printf("  Cached entries:  %d\n", status.Cache.CachedEntries)
	fmt.Printf("  Markers:         %d\n", status.Cache.Markers)
	fmt.Printf("  Footprint:       %s\n", status.Footprint)

	return nil
}
