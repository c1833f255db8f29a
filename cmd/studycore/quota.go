package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:     "quota",
	Short:   "Show storage usage against the quota",
	GroupID: "maint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		svc, err := openService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		if err := openStore(ctx, svc); err != nil {
			return err
		}
		est := svc.Storage.EstimateQuota(ctx)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(est)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "usage:   %.2f MB\n", float64(est.Usage)/(1<<20))
		fmt.Fprintf(cmd.OutOrStdout(), "quota:   %.2f MB\n", float64(est.Quota)/(1<<20))
		fmt.Fprintf(cmd.OutOrStdout(), "used:    %.1f%%\n", est.PercentUsed)
		fmt.Fprintf(cmd.OutOrStdout(), "source:  %s\n", est.Source)
		return nil
	},
}

func init() {
	quotaCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(quotaCmd)
}
