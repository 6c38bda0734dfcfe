package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/config"
)

var (
	cfg       *config.Config
	rootFlags globalFlags
)

// globalFlags override config values for a single invocation.
type globalFlags struct {
	databaseURL string
	offline     bool
	sessionPath string
	seedFile    string
	logLevel    string
}

func (gf *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&gf.databaseURL, "database-url", "", "venue directory DSN (overrides directory.database_url)")
	pf.BoolVar(&gf.offline, "offline", false, "ignore the venue directory and use the local catalog only")
	pf.StringVar(&gf.sessionPath, "session", "", `session database path, "" keeps the session in memory`)
	pf.StringVar(&gf.seedFile, "seed-file", "", "YAML file of extra venues")
	pf.StringVar(&gf.logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// apply copies the flags the user set onto c. --offline wins over
// --database-url.
func (gf *globalFlags) apply(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("database-url") {
		c.Directory.DatabaseURL = gf.databaseURL
	}
	if flags.Changed("session") {
		c.Session.Path = gf.sessionPath
	}
	if flags.Changed("seed-file") {
		c.Catalog.SeedFile = gf.seedFile
	}
	if flags.Changed("log-level") {
		c.Log.Level = gf.logLevel
	}
	if gf.offline {
		c.Directory.DatabaseURL = ""
	}
}

var rootCmd = &cobra.Command{
	Use:   "venue-locator",
	Short: "Detect which sailing venue a device is at",
	Long:  "Resolves GPS fixes against a directory of geofenced venues, falling back to a local catalog when the directory is unreachable, and tracks the current venue across restarts.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		rootFlags.apply(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootFlags.register(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
