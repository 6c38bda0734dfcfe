package main

import (
	"encoding/json"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/engine"
)

var watchFlags providerFlags

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run continuous detection and print each update",
	Long: `Starts the engine with a location source and prints every location update
as one JSON object per line. With --replay the command exits after the last
recorded fix; otherwise it runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("watch"); err != nil {
			return err
		}
		provider, err := watchFlags.provider(cmd)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, cfg, provider)
		if err != nil {
			return err
		}
		defer env.Close()

		var mu sync.Mutex
		enc := json.NewEncoder(cmd.OutOrStdout())
		env.Engine.AddLocationListener(func(u engine.Update) {
			mu.Lock()
			defer mu.Unlock()
			if err := enc.Encode(u); err != nil {
				zap.L().Warn("watch: write update", zap.Error(err))
			}
		})

		if !env.Engine.Initialize(ctx) {
			return eris.New("watch: location permission denied")
		}

		select {
		case <-ctx.Done():
		case <-env.Engine.WatchDone():
		}
		return nil
	},
}

func init() {
	watchFlags.register(watchCmd)
	rootCmd.AddCommand(watchCmd)
}
