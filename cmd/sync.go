package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/venue-locator/internal/location"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the venue catalog from the directory",
	Long:  "Forces a directory sync, bypassing the throttle, and prints the sync status as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		env, err := initEngine(ctx, cfg, location.IdleProvider{})
		if err != nil {
			return err
		}
		defer env.Close()

		syncErr := env.Sync.Sync(ctx, true)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(env.Sync.Status()); err != nil {
			return eris.Wrap(err, "sync: write status")
		}
		return eris.Wrap(syncErr, "sync")
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
