package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Sync      SyncConfig      `yaml:"sync" mapstructure:"sync"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DirectoryConfig configures the remote venue directory. An empty
// DatabaseURL runs detection offline on the local catalog.
type DirectoryConfig struct {
	DatabaseURL         string  `yaml:"database_url" mapstructure:"database_url"`
	TimeoutSecs         int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SearchRadiusKM      float64 `yaml:"search_radius_km" mapstructure:"search_radius_km"`
	RateLimit           float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxConns            int     `yaml:"max_conns" mapstructure:"max_conns"`
	BreakerThreshold    int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
	CacheTTLSecs        int     `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// Timeout returns the per-call timeout.
func (c DirectoryConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// CacheTTL returns how long directory lookups are cached. Zero disables
// the cache.
func (c DirectoryConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// SyncConfig configures catalog refreshes from the directory.
type SyncConfig struct {
	ThrottleSecs     int `yaml:"throttle_secs" mapstructure:"throttle_secs"`
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSecs     int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
	RetryAttempts    int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// Throttle returns the minimum time between successful syncs.
func (c SyncConfig) Throttle() time.Duration {
	return time.Duration(c.ThrottleSecs) * time.Second
}

// SessionConfig configures the last-venue cache.
type SessionConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// TTL returns the cache freshness window.
func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// MonitorConfig configures the continuous location watch.
type MonitorConfig struct {
	IntervalSecs   int     `yaml:"interval_secs" mapstructure:"interval_secs"`
	DistanceMeters float64 `yaml:"distance_meters" mapstructure:"distance_meters"`
}

// Interval returns the minimum time between watch callbacks.
func (c MonitorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSecs) * time.Second
}

// CatalogConfig configures the local venue catalog.
type CatalogConfig struct {
	SeedFile string `yaml:"seed_file" mapstructure:"seed_file"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. Variables in a .env
// file in the working directory are added to the environment first; it
// never overrides variables that are already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("directory.database_url", "")
	v.SetDefault("directory.timeout_secs", 8)
	v.SetDefault("directory.search_radius_km", 50)
	v.SetDefault("directory.rate_limit", 5)
	v.SetDefault("directory.max_conns", 4)
	v.SetDefault("directory.breaker_threshold", 3)
	v.SetDefault("directory.breaker_cooldown_secs", 60)
	v.SetDefault("directory.cache_ttl_secs", 60)
	v.SetDefault("sync.throttle_secs", 300)
	v.SetDefault("sync.failure_threshold", 1)
	v.SetDefault("sync.cooldown_secs", 300)
	v.SetDefault("sync.retry_attempts", 2)
	v.SetDefault("session.path", "venue-session.db")
	v.SetDefault("session.ttl_hours", 24)
	v.SetDefault("monitor.interval_secs", 30)
	v.SetDefault("monitor.distance_meters", 100)
	v.SetDefault("catalog.seed_file", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "detect", "watch", "venues":
	case "sync":
		if c.Directory.DatabaseURL == "" {
			errs = append(errs, "directory.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Directory.TimeoutSecs <= 0 {
		errs = append(errs, "directory.timeout_secs must be > 0")
	}
	if c.Directory.SearchRadiusKM <= 0 {
		errs = append(errs, "directory.search_radius_km must be > 0")
	}
	if c.Directory.RateLimit < 0 {
		errs = append(errs, "directory.rate_limit must be >= 0")
	}
	if c.Directory.MaxConns < 1 {
		errs = append(errs, "directory.max_conns must be >= 1")
	}
	if c.Directory.BreakerThreshold < 1 || c.Sync.FailureThreshold < 1 {
		errs = append(errs, "breaker failure thresholds must be >= 1")
	}
	if c.Directory.CacheTTLSecs < 0 {
		errs = append(errs, "directory.cache_ttl_secs must be >= 0")
	}
	if c.Sync.ThrottleSecs < 0 || c.Sync.CooldownSecs < 0 || c.Directory.BreakerCooldownSecs < 0 {
		errs = append(errs, "sync and breaker durations must be >= 0")
	}
	if c.Sync.RetryAttempts < 1 {
		errs = append(errs, "sync.retry_attempts must be >= 1")
	}
	if c.Session.TTLHours <= 0 {
		errs = append(errs, "session.ttl_hours must be > 0")
	}
	if c.Monitor.IntervalSecs <= 0 || c.Monitor.DistanceMeters <= 0 {
		errs = append(errs, "monitor.interval_secs and monitor.distance_meters must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
