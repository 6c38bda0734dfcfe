// Package engine owns venue detection state: it resolves fixes, tracks the
// current venue, persists it, and notifies listeners when it changes.
//
// No method returns an error. Remote and cache failures degrade detection to
// local or cached data and are logged.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/detect"
	"github.com/sells-group/venue-locator/internal/directory"
	"github.com/sells-group/venue-locator/internal/dirsync"
	"github.com/sells-group/venue-locator/internal/location"
	"github.com/sells-group/venue-locator/internal/metrics"
	"github.com/sells-group/venue-locator/internal/notify"
	"github.com/sells-group/venue-locator/internal/resilience"
	"github.com/sells-group/venue-locator/internal/session"
	"github.com/sells-group/venue-locator/internal/venue"
)

// Breaker names registered in Deps.Breakers.
const (
	BreakerSearch = "directory.search"
	BreakerSync   = "directory.sync"
)

// Update is published after every resolution and manual override.
type Update struct {
	Fix       *location.Fix `json:"fix"`
	Venue     *venue.Venue  `json:"venue"`
	Changed   bool          `json:"changed"`
	Method    detect.Method `json:"method"`
	Timestamp time.Time     `json:"timestamp"`
}

// Deps are the collaborators of an Engine. Catalog and Provider are
// required. Without Directory the engine runs offline on the catalog.
type Deps struct {
	Catalog   *venue.Catalog
	Provider  location.Provider
	Watch     location.WatchOptions
	Directory directory.Directory
	Remote    *detect.RemoteResolver
	Sync      *dirsync.Manager
	Cache     *session.Cache
	Breakers  *resilience.ServiceBreakers
	Metrics   *metrics.Metrics
}

// Engine is the venue detection service.
type Engine struct {
	catalog  *venue.Catalog
	local    *detect.LocalResolver
	remote   *detect.RemoteResolver
	dir      directory.Directory
	sync     *dirsync.Manager
	cache    *session.Cache
	breakers *resilience.ServiceBreakers
	provider location.Provider
	monitor  *location.Monitor
	notifier *notify.Notifier[Update]
	metrics  *metrics.Metrics

	// resolveMu serializes Resolve and SetManualVenue.
	resolveMu sync.Mutex

	mu       sync.RWMutex
	current  detect.Result
	resolved bool
	lastFix  *location.Fix

	nowFunc func() time.Time
}

// New creates an Engine. Call Initialize to start detection.
func New(d Deps) *Engine {
	if d.Breakers == nil {
		d.Breakers = resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	}
	return &Engine{
		catalog:  d.Catalog,
		local:    detect.NewLocalResolver(d.Catalog),
		remote:   d.Remote,
		dir:      d.Directory,
		sync:     d.Sync,
		cache:    d.Cache,
		breakers: d.Breakers,
		provider: d.Provider,
		monitor:  location.NewMonitor(d.Provider, d.Watch),
		notifier: notify.New[Update](),
		metrics:  d.Metrics,
		current:  detect.NoMatch(detect.MethodLocal, time.Time{}),
		nowFunc:  time.Now,
	}
}

// Initialize requests location permission, rehydrates the cached venue,
// syncs the directory, resolves an initial fix and starts the continuous
// watch. The watch runs until ctx is done or Cleanup is called. It returns
// false only when permission is denied.
func (e *Engine) Initialize(ctx context.Context) bool {
	granted, err := e.provider.RequestPermission(ctx)
	if err != nil || !granted {
		zap.L().Warn("engine: location permission denied", zap.Error(err))
		return false
	}

	entry, fresh := e.loadCache(ctx)

	if e.sync != nil {
		if err := e.sync.Sync(ctx, false); err != nil {
			zap.L().Warn("engine: directory sync failed, using local catalog", zap.Error(err))
		}
	}

	if fresh {
		e.rehydrate(entry)
	}

	fix, err := e.monitor.Current(ctx)
	switch {
	case err == nil:
		e.Resolve(ctx, fix)
	case isPermissionDenied(err):
		zap.L().Warn("engine: location permission denied", zap.Error(err))
		return false
	default:
		zap.L().Warn("engine: initial fix unavailable", zap.Error(err))
	}

	if err := e.monitor.Start(ctx, func(ctx context.Context, fix location.Fix) {
		e.Resolve(ctx, fix)
	}); err != nil {
		if isPermissionDenied(err) {
			zap.L().Warn("engine: location permission denied", zap.Error(err))
			return false
		}
		zap.L().Warn("engine: location watch unavailable", zap.Error(err))
	}
	return true
}

// Resolve matches fix against the directory, falling back to the local
// catalog, and commits the result. Listeners run synchronously and must
// not call Resolve or SetManualVenue.
func (e *Engine) Resolve(ctx context.Context, fix location.Fix) detect.Result {
	e.resolveMu.Lock()
	defer e.resolveMu.Unlock()

	start := time.Now()
	if fix.Timestamp.IsZero() {
		fix.Timestamp = e.nowFunc()
	}

	var res detect.Result
	if e.remote != nil {
		if r := e.remote.Resolve(ctx, fix.Point()); r != nil {
			res = *r
		}
	}
	if res.Method == "" {
		res = e.local.Resolve(fix.Point())
	}

	changed := e.commit(ctx, res, &fix)
	e.metrics.ObserveResolve(string(res.Method), changed, time.Since(start))
	return res
}

// SetManualVenue pins the current venue to id, fetching it from the
// directory when it is not in the catalog. It reports whether the venue
// was found.
func (e *Engine) SetManualVenue(ctx context.Context, id string) bool {
	e.resolveMu.Lock()
	defer e.resolveMu.Unlock()

	v, ok := e.lookup(ctx, id)
	if !ok {
		return false
	}

	e.mu.RLock()
	fix := e.lastFix
	e.mu.RUnlock()

	changed := e.commit(ctx, detect.Assigned(v, detect.MethodManual, e.nowFunc()), fix)
	e.metrics.ObserveResolve(string(detect.MethodManual), changed, 0)
	return true
}

// CurrentVenue returns the current venue, or nil.
func (e *Engine) CurrentVenue() *venue.Venue {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current.Venue == nil {
		return nil
	}
	v := *e.current.Venue
	return &v
}

// CurrentDetection returns the most recent result.
func (e *Engine) CurrentDetection() detect.Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// AllVenues returns the catalog sorted by name.
func (e *Engine) AllVenues() []venue.Venue {
	return e.catalog.All()
}

// VenuesByRegion returns the catalog venues in region.
func (e *Engine) VenuesByRegion(region venue.Region) []venue.Venue {
	return e.catalog.ByRegion(region)
}

// VenueByID returns the catalog venue with id, or nil.
func (e *Engine) VenueByID(id string) *venue.Venue {
	v, ok := e.catalog.Get(id)
	if !ok {
		return nil
	}
	return &v
}

// SearchVenues runs a catalog search.
func (e *Engine) SearchVenues(query string) []venue.Venue {
	return e.catalog.Search(query)
}

// AddLocationListener registers fn for updates and returns its handle.
func (e *Engine) AddLocationListener(fn func(Update)) uuid.UUID {
	return e.notifier.Subscribe(fn)
}

// RemoveLocationListener unregisters the listener with handle id.
func (e *Engine) RemoveLocationListener(id uuid.UUID) bool {
	return e.notifier.Unsubscribe(id)
}

// SyncStatus returns directory sync health, or nil when running offline.
func (e *Engine) SyncStatus() *dirsync.Status {
	if e.sync == nil {
		return nil
	}
	s := e.sync.Status()
	return &s
}

// BreakerStates returns the state of every registered circuit breaker.
func (e *Engine) BreakerStates() map[string]string {
	states := e.breakers.States()
	out := make(map[string]string, len(states))
	for name, s := range states {
		out[name] = s.String()
	}
	return out
}

// WatchDone returns a channel closed when the continuous watch ends, or nil
// if no watch is running.
func (e *Engine) WatchDone() <-chan struct{} {
	return e.monitor.Done()
}

// Cleanup stops the watch and drops every listener. No listener is called
// after Cleanup returns.
func (e *Engine) Cleanup() {
	e.monitor.Stop()
	e.notifier.Close()
}

// commit records res as the current result, persists a venue change and
// publishes an update. It reports whether the venue changed. Callers hold
// resolveMu.
func (e *Engine) commit(ctx context.Context, res detect.Result, fix *location.Fix) bool {
	e.mu.Lock()
	prev := e.current.VenueID()
	changed := !e.resolved || prev != res.VenueID()
	e.current = res
	e.resolved = true
	if fix != nil {
		e.lastFix = fix
	}
	e.mu.Unlock()

	if changed {
		zap.L().Info("engine: venue changed",
			zap.String("from", prev),
			zap.String("to", res.VenueID()),
			zap.String("method", string(res.Method)),
			zap.Float64("confidence", res.Confidence),
		)
		e.persist(ctx, res.VenueID())
	}

	e.notifier.Publish(Update{
		Fix:       fix,
		Venue:     res.Venue,
		Changed:   changed,
		Method:    res.Method,
		Timestamp: res.DetectedAt,
	})
	return changed
}

// lookup finds id in the catalog or fetches it from the directory.
func (e *Engine) lookup(ctx context.Context, id string) (venue.Venue, bool) {
	if v, ok := e.catalog.Get(id); ok {
		return v, true
	}
	if e.dir == nil {
		return venue.Venue{}, false
	}

	// An unknown id is not a directory failure.
	row, err := resilience.ExecuteVal(ctx, e.breakers.Get(BreakerSearch), func(ctx context.Context) (venue.Row, error) {
		row, err := e.dir.GetByID(ctx, id)
		if eris.Is(err, directory.ErrNotFound) {
			return nil, nil
		}
		return row, err
	})
	if err != nil {
		zap.L().Debug("engine: venue lookup failed", zap.String("venue_id", id), zap.Error(err))
		return venue.Venue{}, false
	}
	if row == nil {
		zap.L().Debug("engine: venue not in directory", zap.String("venue_id", id))
		return venue.Venue{}, false
	}
	v, err := venue.FromRow(row)
	if err != nil {
		zap.L().Debug("engine: dropping fetched venue", zap.String("venue_id", id), zap.Error(err))
		return venue.Venue{}, false
	}
	e.catalog.Upsert(v)
	return v, true
}

func isPermissionDenied(err error) bool {
	return eris.Is(err, location.ErrPermissionDenied)
}
