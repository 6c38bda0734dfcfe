package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultTTL is how long a cached venue stays eligible for rehydration.
const DefaultTTL = 24 * time.Hour

// cacheKey is the Store key holding the session entry.
const cacheKey = "venue_session"

// Entry is the persisted session record.
type Entry struct {
	VenueID   string `json:"venue_id"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Time returns the entry timestamp.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Cache reads and writes the session entry. Every method returns its
// error; callers that treat the cache as best-effort discard them.
type Cache struct {
	store   Store
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewCache creates a Cache over store. A non-positive ttl uses DefaultTTL.
func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, nowFunc: time.Now}
}

// Load returns the cached entry if one exists and is younger than the TTL.
func (c *Cache) Load(ctx context.Context) (Entry, bool, error) {
	data, err := c.store.Get(ctx, cacheKey)
	if err != nil {
		return Entry{}, false, err
	}
	if data == nil {
		return Entry{}, false, nil
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, eris.Wrap(err, "session: decode entry")
	}
	if e.VenueID == "" {
		return Entry{}, false, nil
	}
	if c.nowFunc().Sub(e.Time()) >= c.ttl {
		return e, false, nil
	}
	return e, true, nil
}

// Save records venueID as the current venue.
func (c *Cache) Save(ctx context.Context, venueID string) error {
	data, err := json.Marshal(Entry{VenueID: venueID, Timestamp: c.nowFunc().UnixMilli()})
	if err != nil {
		return eris.Wrap(err, "session: encode entry")
	}
	return c.store.Set(ctx, cacheKey, data)
}

// Clear removes the cached entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Remove(ctx, cacheKey)
}
