package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the service is up",
	Long: `Report the service status. Always bypasses the query cache.

Examples:
  lexicon health
  lexicon health --api-url http://localhost:8000 -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		h, err := GetClient().Health(ctx)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		if structuredOutputRequested() {
			return printResult(ctx, h)
		}

		out := stdoutFromContext(ctx)
		fmt.Fprintf(out, "Service: %s\n", apiURL)
		fmt.Fprintf(out, "Status: %s\n", h.Status)
		if h.ServiceInitialized {
			fmt.Fprintln(out, "Initialized: yes")
		} else {
			fmt.Fprintln(out, "Initialized: no")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
