package detect

import (
	"time"

	"github.com/sells-group/venue-locator/internal/geo"
	"github.com/sells-group/venue-locator/internal/venue"
)

// LocalResolver matches fixes against the in-memory catalog.
type LocalResolver struct {
	catalog *venue.Catalog
	nowFunc func() time.Time
}

// NewLocalResolver creates a LocalResolver over catalog.
func NewLocalResolver(catalog *venue.Catalog) *LocalResolver {
	return &LocalResolver{catalog: catalog, nowFunc: time.Now}
}

// Resolve returns the best venue whose geofence contains fix, with
// confidence-ranked alternates. The boundary is inclusive.
func (r *LocalResolver) Resolve(fix geo.Point) Result {
	var matches []Match
	for _, v := range r.catalog.All() {
		inside, d := v.Contains(fix)
		if !inside {
			continue
		}
		matches = append(matches, Match{
			Venue:          v,
			DistanceMeters: d,
			Confidence:     geo.Confidence(d, v.RadiusMeters),
		})
	}
	return build(matches, MethodLocal, r.nowFunc())
}
