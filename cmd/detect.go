package main

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/location"
)

var (
	detectLat float64
	detectLng float64
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Resolve one position to a venue",
	Long:  "Syncs the directory if configured, resolves the given coordinate and prints the detection result as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("detect"); err != nil {
			return err
		}
		if err := validateCoordinate(detectLat, detectLng); err != nil {
			return err
		}

		env, err := initEngine(ctx, cfg, location.NewStaticProvider(detectLat, detectLng))
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Sync != nil {
			if err := env.Sync.Sync(ctx, false); err != nil {
				zap.L().Warn("directory sync failed, using local catalog", zap.Error(err))
			}
		}

		res := env.Engine.Resolve(ctx, location.Fix{Lat: detectLat, Lng: detectLng, Timestamp: time.Now()})

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(res), "detect: write result")
	},
}

func init() {
	detectCmd.Flags().Float64Var(&detectLat, "lat", 0, "latitude in decimal degrees")
	detectCmd.Flags().Float64Var(&detectLng, "lng", 0, "longitude in decimal degrees")
	_ = detectCmd.MarkFlagRequired("lat")
	_ = detectCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(detectCmd)
}
