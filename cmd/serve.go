package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/venue-locator/internal/server"
)

var (
	servePort  int
	serveFlags providerFlags
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the venue detection HTTP API",
	Long: `Serves the venue API: health, venue listing and lookup, the current
detection, manual overrides, position resolution, and a server-sent event
stream of location updates. Fixes arrive through POST /resolve, or from
--replay / --lat --lng when given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		provider, err := serveFlags.provider(cmd)
		if err != nil {
			return err
		}

		env, err := initEngine(ctx, cfg, provider)
		if err != nil {
			return err
		}
		defer env.Close()

		if !env.Engine.Initialize(ctx) {
			return eris.New("serve: location permission denied")
		}

		srv := server.New(env.Engine, server.Config{
			Port:           cfg.Server.Port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Metrics:        env.Registry,
		})
		return srv.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveFlags.register(serveCmd)
	rootCmd.AddCommand(serveCmd)
}
