package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/config"
	"github.com/sells-group/venue-locator/internal/db"
	"github.com/sells-group/venue-locator/internal/detect"
	"github.com/sells-group/venue-locator/internal/directory"
	"github.com/sells-group/venue-locator/internal/dirsync"
	"github.com/sells-group/venue-locator/internal/engine"
	"github.com/sells-group/venue-locator/internal/location"
	"github.com/sells-group/venue-locator/internal/metrics"
	"github.com/sells-group/venue-locator/internal/resilience"
	"github.com/sells-group/venue-locator/internal/session"
	"github.com/sells-group/venue-locator/internal/venue"
)

// engineEnv holds the engine and the resources behind it.
type engineEnv struct {
	Engine   *engine.Engine
	Catalog  *venue.Catalog
	Sync     *dirsync.Manager // nil when offline
	Breakers *resilience.ServiceBreakers
	Registry *prometheus.Registry

	pool  *pgxpool.Pool
	store *session.SQLiteStore
}

// Close releases the directory pool and the session database.
func (ee *engineEnv) Close() {
	if ee.Engine != nil {
		ee.Engine.Cleanup()
	}
	if ee.pool != nil {
		ee.pool.Close()
	}
	if ee.store != nil {
		if err := ee.store.Close(); err != nil {
			zap.L().Debug("close session store", zap.Error(err))
		}
	}
}

// loadCatalog builds the seeded catalog plus any venues from the seed file.
func loadCatalog(c *config.Config) (*venue.Catalog, error) {
	catalog := venue.NewCatalog()
	catalog.Seed()
	if c.Catalog.SeedFile == "" {
		return catalog, nil
	}

	extra, err := venue.LoadSeedFile(c.Catalog.SeedFile)
	if err != nil {
		return nil, eris.Wrap(err, "load seed file")
	}
	catalog.UpsertMany(extra)
	zap.L().Info("seed file loaded",
		zap.String("path", c.Catalog.SeedFile),
		zap.Int("venues", len(extra)),
	)
	return catalog, nil
}

// initEngine wires the catalog, directory, sync manager, session cache and
// location provider into an Engine. Callers should defer env.Close().
func initEngine(ctx context.Context, c *config.Config, provider location.Provider) (*engineEnv, error) {
	catalog, err := loadCatalog(c)
	if err != nil {
		return nil, err
	}

	env := &engineEnv{
		Catalog:  catalog,
		Breakers: resilience.NewServiceBreakers(resilience.FromCircuitConfig(c.Directory.BreakerThreshold, c.Directory.BreakerCooldownSecs)),
		Registry: prometheus.NewRegistry(),
	}
	env.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(env.Registry)
	m.TrackCatalog(catalog.Len)
	m.TrackBreakers(env.Breakers)

	deps := engine.Deps{
		Catalog:  catalog,
		Provider: provider,
		Breakers: env.Breakers,
		Metrics:  m,
		Watch: location.WatchOptions{
			Interval:       c.Monitor.Interval(),
			DistanceMeters: c.Monitor.DistanceMeters,
		},
	}

	if c.Directory.DatabaseURL != "" {
		pool, err := db.Open(ctx, c.Directory.DatabaseURL, db.PoolConfig{MaxConns: int32(c.Directory.MaxConns)})
		if err != nil {
			return nil, eris.Wrap(err, "open directory")
		}
		env.pool = pool

		pg := directory.NewPostgres(pool,
			directory.WithTimeout(c.Directory.Timeout()),
			directory.WithRateLimit(c.Directory.RateLimit),
		)
		var dir directory.Directory = pg
		if ttl := c.Directory.CacheTTL(); ttl > 0 {
			dir = directory.NewCached(pg, ttl)
		}
		syncBreaker := env.Breakers.Add(engine.BreakerSync, resilience.FromCircuitConfig(c.Sync.FailureThreshold, c.Sync.CooldownSecs))
		env.Sync = dirsync.NewManager(pg, catalog, syncBreaker, dirsync.Config{
			Throttle: c.Sync.Throttle(),
			Retry:    resilience.FromRetryConfig(c.Sync.RetryAttempts, 0),
		})

		deps.Directory = dir
		deps.Sync = env.Sync
		deps.Remote = detect.NewRemoteResolver(dir, catalog, env.Breakers.Get(engine.BreakerSearch), c.Directory.SearchRadiusKM)
	} else {
		zap.L().Info("directory not configured, running offline on the local catalog")
	}

	var store session.Store
	if c.Session.Path == "" {
		store = session.NewMemoryStore()
	} else {
		sqlStore, err := session.NewSQLite(ctx, c.Session.Path)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "open session store")
		}
		env.store = sqlStore
		store = sqlStore
	}
	deps.Cache = session.NewCache(store, c.Session.TTL())

	env.Engine = engine.New(deps)
	return env, nil
}
