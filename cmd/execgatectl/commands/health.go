package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/execgate/pkg/apiclient"
)

// HealthCmd checks liveness and readiness of a running service.
var HealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check service liveness and readiness",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := apiclient.New(ServerURL)

	if err := client.CheckHealth(); err != nil {
		return fmt.Errorf("liveness check failed: %w", err)
	}
	fmt.Println("Liveness:  ok")

	ready, err := client.GetReadiness()
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.IsUnavailable() {
			fmt.Println("Readiness: not ready")
			fmt.Printf("  %s\n", apiErr.Message)
			return nil
		}
		return fmt.Errorf("readiness check failed: %w", err)
	}

	fmt.Println("Readiness: ok")
	fmt.Printf("  Dirty entries:  %d\n", ready.DirtyEntries)
	fmt.Printf("  Cached entries: %d\n", ready.CachedEntries)

	return nil
}
