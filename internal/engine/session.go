package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/detect"
	"github.com/sells-group/venue-locator/internal/session"
)

// loadCache reads the session entry. Read failures count as a miss.
func (e *Engine) loadCache(ctx context.Context) (session.Entry, bool) {
	if e.cache == nil {
		return session.Entry{}, false
	}
	entry, fresh, err := e.cache.Load(ctx)
	if err != nil {
		zap.L().Debug("engine: session cache unreadable", zap.Error(err))
		return session.Entry{}, false
	}
	if !fresh && entry.VenueID != "" {
		zap.L().Debug("engine: session cache expired", zap.String("venue_id", entry.VenueID))
	}
	return entry, fresh
}

// rehydrate restores the cached venue without publishing. The entry is
// ignored when its venue is not in the catalog.
func (e *Engine) rehydrate(entry session.Entry) {
	v, ok := e.catalog.Get(entry.VenueID)
	if !ok {
		zap.L().Debug("engine: cached venue not in catalog", zap.String("venue_id", entry.VenueID))
		return
	}

	e.mu.Lock()
	e.current = detect.Assigned(v, detect.MethodCached, entry.Time())
	e.mu.Unlock()

	zap.L().Info("engine: rehydrated cached venue",
		zap.String("venue_id", v.ID),
		zap.Time("cached_at", entry.Time()),
	)
}

// persist saves venueID, or clears the entry when it is empty. Failures
// are logged and dropped.
func (e *Engine) persist(ctx context.Context, venueID string) {
	if e.cache == nil {
		return
	}
	var err error
	if venueID == "" {
		err = e.cache.Clear(ctx)
	} else {
		err = e.cache.Save(ctx, venueID)
	}
	if err != nil {
		zap.L().Debug("engine: session cache write failed", zap.String("venue_id", venueID), zap.Error(err))
	}
}
