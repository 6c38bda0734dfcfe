package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/venue-locator/internal/geo"
	"github.com/sells-group/venue-locator/internal/venue"
)

// countingDirectory counts calls and returns canned results.
type countingDirectory struct {
	radius, bbox, byID, list int
	err                      error
}

func (d *countingDirectory) SearchRadius(context.Context, geo.Point, float64) ([]venue.Row, error) {
	d.radius++
	if d.err != nil {
		return nil, d.err
	}
	return []venue.Row{{"id": "a", "name": "A"}}, nil
}

func (d *countingDirectory) SearchBBox(context.Context, float64, float64, float64, float64) ([]venue.Row, error) {
	d.bbox++
	return []venue.Row{{"id": "b", "name": "B"}}, d.err
}

func (d *countingDirectory) GetByID(_ context.Context, id string) (venue.Row, error) {
	d.byID++
	if id == "ghost" {
		return nil, ErrNotFound
	}
	return venue.Row{"id": id, "name": "X"}, nil
}

func (d *countingDirectory) List(context.Context) ([]venue.Row, error) {
	d.list++
	return nil, nil
}

func TestCachedDirectory_SearchRadius(t *testing.T) {
	next := &countingDirectory{}
	c := NewCached(next, time.Minute)
	ctx := context.Background()

	_, err := c.SearchRadius(ctx, geo.Point{Lat: 22.31931, Lng: 114.16941}, 50)
	require.NoError(t, err)
	// Within the same ~100 m cell.
	rows, err := c.SearchRadius(ctx, geo.Point{Lat: 22.31928, Lng: 114.16938}, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, next.radius)

	_, err = c.SearchRadius(ctx, geo.Point{Lat: 22.33, Lng: 114.17}, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, next.radius)

	c.Flush()
	_, err = c.SearchRadius(ctx, geo.Point{Lat: 22.31931, Lng: 114.16941}, 50)
	require.NoError(t, err)
	assert.Equal(t, 3, next.radius)
}

func TestCachedDirectory_ErrorsNotCached(t *testing.T) {
	next := &countingDirectory{err: errors.New("connection reset")}
	c := NewCached(next, time.Minute)
	ctx := context.Background()

	_, err := c.SearchRadius(ctx, geo.Point{Lat: 1, Lng: 1}, 50)
	require.Error(t, err)
	_, err = c.SearchRadius(ctx, geo.Point{Lat: 1, Lng: 1}, 50)
	require.Error(t, err)
	assert.Equal(t, 2, next.radius)

	next.err = nil
	_, err = c.SearchRadius(ctx, geo.Point{Lat: 1, Lng: 1}, 50)
	require.NoError(t, err)
}

func TestCachedDirectory_BBoxAndByID(t *testing.T) {
	next := &countingDirectory{}
	c := NewCached(next, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.SearchBBox(ctx, 21, 113, 23, 115)
		require.NoError(t, err)
		row, err := c.GetByID(ctx, "solent-cowes")
		require.NoError(t, err)
		assert.Equal(t, "solent-cowes", row.String("id"))
	}
	assert.Equal(t, 1, next.bbox)
	assert.Equal(t, 1, next.byID)

	_, err := c.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 3, next.byID)
}

func TestCachedDirectory_ListPassesThrough(t *testing.T) {
	next := &countingDirectory{}
	c := NewCached(next, time.Minute)

	_, _ = c.List(context.Background())
	_, _ = c.List(context.Background())
	assert.Equal(t, 2, next.list)
}
