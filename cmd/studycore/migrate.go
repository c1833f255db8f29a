package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kochabx/studycore/errors"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Open the store and migrate legacy data",
	Long: `Open the key-value store and copy every entry of the configured legacy
source into it. The migration runs once: after it completes a marker is
written and later runs only report it. Entries that fail are skipped and
counted.`,
	GroupID: "maint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		res := svc.Init(cmd.Context())
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		if res.Reason == errors.ReasonStoreUnavailable {
			return res.Err()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
