package detect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/directory"
	"github.com/sells-group/venue-locator/internal/geo"
	"github.com/sells-group/venue-locator/internal/resilience"
	"github.com/sells-group/venue-locator/internal/venue"
)

// DefaultSearchRadiusKM is the radius passed to the directory search.
const DefaultSearchRadiusKM = 50.0

// RemoteResolver matches fixes with the directory's spatial search and
// merges every returned venue into the catalog.
type RemoteResolver struct {
	dir      directory.Directory
	catalog  *venue.Catalog
	breaker  *resilience.CircuitBreaker
	radiusKM float64
	nowFunc  func() time.Time
}

// NewRemoteResolver creates a RemoteResolver. A nil breaker disables
// circuit breaking; a non-positive radius uses DefaultSearchRadiusKM.
func NewRemoteResolver(dir directory.Directory, catalog *venue.Catalog, breaker *resilience.CircuitBreaker, radiusKM float64) *RemoteResolver {
	if radiusKM <= 0 {
		radiusKM = DefaultSearchRadiusKM
	}
	return &RemoteResolver{
		dir:      dir,
		catalog:  catalog,
		breaker:  breaker,
		radiusKM: radiusKM,
		nowFunc:  time.Now,
	}
}

// Resolve queries the directory around fix. It returns nil when the
// directory fails, returns nothing, or returns no venue whose geofence
// contains fix; the caller then falls back to local resolution.
func (r *RemoteResolver) Resolve(ctx context.Context, fix geo.Point) *Result {
	search := func(ctx context.Context) ([]venue.Row, error) {
		return r.search(ctx, fix)
	}

	var rows []venue.Row
	var err error
	if r.breaker != nil {
		rows, err = resilience.ExecuteVal(ctx, r.breaker, search)
	} else {
		rows, err = search(ctx)
	}
	if err != nil {
		zap.L().Warn("remote resolve failed, using local catalog", zap.Error(err))
		return nil
	}
	if len(rows) == 0 {
		zap.L().Debug("remote resolve returned no venues")
		return nil
	}

	var venues []venue.Venue
	var matches []Match
	for _, row := range rows {
		v, err := venue.FromRow(row)
		if err != nil {
			zap.L().Debug("remote resolve: dropping row", zap.Error(err))
			continue
		}
		venues = append(venues, v)

		d, ok := serverDistance(row)
		if !ok {
			if v.Location.Unknown() {
				continue
			}
			d = geo.DistanceMeters(fix, v.Location)
		}
		if d > v.RadiusMeters {
			continue
		}
		matches = append(matches, Match{
			Venue:          v,
			DistanceMeters: d,
			Confidence:     geo.Confidence(d, v.RadiusMeters),
		})
	}
	r.catalog.UpsertMany(venues)

	if len(matches) == 0 {
		return nil
	}
	res := build(matches, MethodNetwork, r.nowFunc())
	return &res
}

// search calls the radius procedure, falling back once to a bounding-box
// query when the procedure does not exist.
func (r *RemoteResolver) search(ctx context.Context, fix geo.Point) ([]venue.Row, error) {
	rows, err := r.dir.SearchRadius(ctx, fix, r.radiusKM)
	if err == nil || !resilience.IsProcedureMissing(err) {
		return rows, err
	}

	zap.L().Debug("radius procedure unavailable, using bounding box", zap.Error(err))
	b := geo.BoundsAround(fix, r.radiusKM)
	return r.dir.SearchBBox(ctx, b.Min(1), b.Min(0), b.Max(1), b.Max(0))
}

func serverDistance(row venue.Row) (float64, bool) {
	km, ok := row.Float("distance_km")
	if !ok || km < 0 {
		return 0, false
	}
	return km * 1000, true
}
