package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sells-group/venue-locator/internal/geo"
	"github.com/sells-group/venue-locator/internal/venue"
)

// DefaultCacheTTL is how long CachedDirectory keeps search and lookup
// results.
const DefaultCacheTTL = time.Minute

// CachedDirectory memoizes searches and lookups of another Directory for a
// short TTL. Search keys are rounded to three decimal places (about 100 m)
// so consecutive nearby fixes share one query. List and errors are never
// cached.
type CachedDirectory struct {
	next  Directory
	cache *cache.Cache
}

// NewCached wraps next. A non-positive ttl uses DefaultCacheTTL.
func NewCached(next Directory, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedDirectory{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

// SearchRadius implements Directory.
func (c *CachedDirectory) SearchRadius(ctx context.Context, center geo.Point, radiusKM float64) ([]venue.Row, error) {
	key := fmt.Sprintf("radius:%.3f:%.3f:%g", center.Lat, center.Lng, radiusKM)
	return c.rows(key, func() ([]venue.Row, error) {
		return c.next.SearchRadius(ctx, center, radiusKM)
	})
}

// SearchBBox implements Directory.
func (c *CachedDirectory) SearchBBox(ctx context.Context, minLat, minLng, maxLat, maxLng float64) ([]venue.Row, error) {
	key := fmt.Sprintf("bbox:%.3f:%.3f:%.3f:%.3f", minLat, minLng, maxLat, maxLng)
	return c.rows(key, func() ([]venue.Row, error) {
		return c.next.SearchBBox(ctx, minLat, minLng, maxLat, maxLng)
	})
}

// GetByID implements Directory.
func (c *CachedDirectory) GetByID(ctx context.Context, id string) (venue.Row, error) {
	key := "id:" + id
	if cached, found := c.cache.Get(key); found {
		return cached.(venue.Row), nil
	}
	row, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, row, cache.DefaultExpiration)
	return row, nil
}

// List implements Directory. It always reaches the wrapped directory.
func (c *CachedDirectory) List(ctx context.Context) ([]venue.Row, error) {
	return c.next.List(ctx)
}

// Flush drops every cached entry.
func (c *CachedDirectory) Flush() {
	c.cache.Flush()
}

func (c *CachedDirectory) rows(key string, load func() ([]venue.Row, error)) ([]venue.Row, error) {
	if cached, found := c.cache.Get(key); found {
		return cached.([]venue.Row), nil
	}
	rows, err := load()
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, rows, cache.DefaultExpiration)
	return rows, nil
}
