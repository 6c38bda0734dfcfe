// Package dirsync refreshes the venue catalog from the remote directory.
// Refreshes are throttled after success, de-duplicated while in flight, and
// suspended by a circuit breaker after failure, so detection keeps running
// on the catalog it already has.
package dirsync

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/venue-locator/internal/resilience"
	"github.com/sells-group/venue-locator/internal/venue"
)

// DefaultThrottle is the minimum time between successful syncs.
const DefaultThrottle = 5 * time.Minute

// Lister fetches the full directory.
type Lister interface {
	List(ctx context.Context) ([]venue.Row, error)
}

// Config tunes a Manager.
type Config struct {
	Throttle time.Duration
	Timeout  time.Duration
	Retry    resilience.RetryConfig
}

// Status is a snapshot of sync health.
type Status struct {
	Ready      bool      `json:"ready"`
	LastSync   time.Time `json:"last_sync,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	Breaker    string    `json:"breaker"`
	VenueCount int       `json:"venue_count"`
}

// Manager owns catalog refreshes.
type Manager struct {
	dir     Lister
	catalog *venue.Catalog
	breaker *resilience.CircuitBreaker
	cfg     Config
	group   singleflight.Group

	mu       sync.Mutex
	ready    bool
	lastSync time.Time
	lastErr  error

	nowFunc func() time.Time
}

// NewManager creates a Manager. breaker must not be nil.
func NewManager(dir Lister, catalog *venue.Catalog, breaker *resilience.CircuitBreaker, cfg Config) *Manager {
	if cfg.Throttle <= 0 {
		cfg.Throttle = DefaultThrottle
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Manager{
		dir:     dir,
		catalog: catalog,
		breaker: breaker,
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// Sync refreshes the catalog. Without force it is a no-op when the last
// successful sync is younger than the throttle. Concurrent callers share
// one fetch. While the breaker is open Sync fails fast with
// resilience.ErrCircuitOpen.
func (m *Manager) Sync(ctx context.Context, force bool) error {
	if !force && m.fresh() {
		return nil
	}

	// The shared fetch must outlive any single caller's cancellation.
	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan("sync", func() (any, error) {
		return nil, m.run(detached)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready reports whether the last sync attempt succeeded.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Status returns a snapshot of sync health.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		Ready:      m.ready,
		LastSync:   m.lastSync,
		Breaker:    m.breaker.State().String(),
		VenueCount: m.catalog.Len(),
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	return s
}

func (m *Manager) fresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready && !m.lastSync.IsZero() && m.nowFunc().Sub(m.lastSync) < m.cfg.Throttle
}

func (m *Manager) run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	start := m.nowFunc()
	rows, err := resilience.ExecuteVal(ctx, m.breaker, func(ctx context.Context) ([]venue.Row, error) {
		retry := m.cfg.Retry
		if retry.OnRetry == nil {
			retry.OnRetry = resilience.RetryLogger("directory.list")
		}
		return resilience.DoVal(ctx, retry, m.dir.List)
	})
	if err != nil {
		m.fail(err)
		return eris.Wrap(err, "dirsync: fetch directory")
	}

	venues, dropped := venue.MapRows(rows)
	m.catalog.UpsertMany(venues)

	m.mu.Lock()
	m.ready = true
	m.lastErr = nil
	m.lastSync = m.nowFunc()
	m.mu.Unlock()

	zap.L().Info("directory sync complete",
		zap.Int("venues", len(venues)),
		zap.Int("dropped", dropped),
		zap.Int("catalog_size", m.catalog.Len()),
		zap.Duration("duration", m.nowFunc().Sub(start)),
	)
	return nil
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = false
	if eris.Is(err, resilience.ErrCircuitOpen) && m.lastErr != nil {
		return
	}
	m.lastErr = err
	zap.L().Warn("directory sync failed", zap.Error(err))
}
