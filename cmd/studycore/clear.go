package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all local data",
	Long: `Delete everything the service keeps locally: the key-value store, every
offline cache generation and the legacy source. Each part is reported on its
own line; a failure in one part does not stop the others.

Examples:
  # Wipe local data, keep serving from the network
  studycore clear --yes

  # Also stop the offline cache from answering requests until reinstalled
  studycore clear --yes --unregister`,
	GroupID: "maint",
	RunE:    runClear,
}

func init() {
	clearCmd.Flags().Bool("yes", false, "Confirm deletion")
	clearCmd.Flags().Bool("unregister", false, "Detach the offline cache as well")
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("refusing to delete local data without --yes")
	}
	unregister, _ := cmd.Flags().GetBool("unregister")

	ctx := cmd.Context()
	svc, err := openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := openStore(ctx, svc); err != nil {
		return err
	}

	out := svc.Storage.ClearAllStorage(ctx, unregister)
	parts := make([]string, 0, len(out))
	for k := range out {
		parts = append(parts, k)
	}
	sort.Strings(parts)

	failed := false
	for _, k := range parts {
		status := "ok"
		if !out[k] {
			status, failed = "failed", true
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", k, status)
	}
	if failed {
		return fmt.Errorf("some parts could not be cleared")
	}
	return nil
}
