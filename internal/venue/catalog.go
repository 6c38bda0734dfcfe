package venue

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Catalog is the authoritative in-memory set of venues, keyed by id.
// It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	venues map[string]Venue
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{venues: make(map[string]Venue)}
}

// Seed loads the built-in venues, replacing any with the same ids.
func (c *Catalog) Seed() {
	venues, _ := MapRows(seedRows)
	c.UpsertMany(venues)
}

// Upsert inserts v or replaces the venue with the same id.
func (c *Catalog) Upsert(v Venue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.venues[v.ID] = v
}

// UpsertMany upserts every venue under a single lock.
func (c *Catalog) UpsertMany(venues []Venue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range venues {
		c.venues[v.ID] = v
	}
}

// Get returns the venue with the given id.
func (c *Catalog) Get(id string) (Venue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.venues[id]
	return v, ok
}

// Len returns the number of venues.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.venues)
}

// All returns every venue ordered by name.
func (c *Catalog) All() []Venue {
	return c.filter(func(Venue) bool { return true })
}

// ByRegion returns the venues in region ordered by name.
func (c *Catalog) ByRegion(region Region) []Venue {
	return c.filter(func(v Venue) bool { return v.Region == region })
}

// Search returns venues whose name, city, or country contains query,
// ignoring case. Championship venues sort first, then by name. An empty
// query matches nothing.
func (c *Catalog) Search(query string) []Venue {
	folder := cases.Fold()
	q := folder.String(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	c.mu.RLock()
	var out []Venue
	for _, v := range c.venues {
		if strings.Contains(folder.String(v.Name), q) ||
			strings.Contains(folder.String(v.City), q) ||
			strings.Contains(folder.String(v.Country), q) {
			out = append(out, v)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		ci := out[i].Classification == ClassChampionship
		cj := out[j].Classification == ClassChampionship
		if ci != cj {
			return ci
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (c *Catalog) filter(keep func(Venue) bool) []Venue {
	c.mu.RLock()
	out := make([]Venue, 0, len(c.venues))
	for _, v := range c.venues {
		if keep(v) {
			out = append(out, v)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}
