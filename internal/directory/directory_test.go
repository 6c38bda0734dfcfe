package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/venue-locator/internal/geo"
	"github.com/sells-group/venue-locator/internal/resilience"
	"github.com/sells-group/venue-locator/internal/venue"
)

func newTestDirectory(t *testing.T) (*PostgresDirectory, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgres(mock, WithRateLimit(0), WithTimeout(time.Second)), mock
}

func jsonRows(objs ...string) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"row_to_json"})
	for _, o := range objs {
		rows.AddRow([]byte(o))
	}
	return rows
}

func TestSearchRadius(t *testing.T) {
	d, mock := newTestDirectory(t)

	mock.ExpectQuery(`SELECT row_to_json\(r\) FROM venues_within_radius`).
		WithArgs(22.3193, 114.1694, 50.0).
		WillReturnRows(jsonRows(
			`{"id":"hong-kong-victoria-harbor","name":"Victoria Harbour","distance_km":0.4}`,
			`{"id":"aberdeen","name":"Aberdeen Harbour","distance_km":7.25}`,
		))

	rows, err := d.SearchRadius(context.Background(), geo.Point{Lat: 22.3193, Lng: 114.1694}, 50)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "hong-kong-victoria-harbor", rows[0].String("id"))

	km, ok := rows[1].Float("distance_km")
	require.True(t, ok)
	assert.InDelta(t, 7.25, km, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchRadius_ProcedureMissing(t *testing.T) {
	d, mock := newTestDirectory(t)

	mock.ExpectQuery(`venues_within_radius`).
		WithArgs(1.0, 2.0, 50.0).
		WillReturnError(&pgconn.PgError{Code: "42883", Message: "function venues_within_radius does not exist"})

	_, err := d.SearchRadius(context.Background(), geo.Point{Lat: 1, Lng: 2}, 50)
	require.Error(t, err)
	assert.True(t, resilience.IsProcedureMissing(err))
	assert.Contains(t, err.Error(), "radius search")
}

func TestSearchBBox(t *testing.T) {
	d, mock := newTestDirectory(t)

	mock.ExpectQuery(`SELECT row_to_json\(v\) FROM venues v WHERE v.latitude BETWEEN`).
		WithArgs(21.0, 23.0, 113.0, 115.0).
		WillReturnRows(jsonRows(`{"id":"a","name":"A","latitude":22,"longitude":114}`))

	rows, err := d.SearchBBox(context.Background(), 21, 113, 23, 115)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	v, err := venue.FromRow(rows[0])
	require.NoError(t, err)
	assert.Equal(t, 22.0, v.Location.Lat)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID(t *testing.T) {
	d, mock := newTestDirectory(t)

	mock.ExpectQuery(`FROM venues v WHERE v.id = \$1`).
		WithArgs("solent-cowes").
		WillReturnRows(jsonRows(`{"id":"solent-cowes","name":"The Solent"}`))

	row, err := d.GetByID(context.Background(), "solent-cowes")
	require.NoError(t, err)
	assert.Equal(t, "The Solent", row.String("name"))
}

func TestGetByID_NotFound(t *testing.T) {
	d, mock := newTestDirectory(t)

	mock.ExpectQuery(`FROM venues v WHERE v.id = \$1`).
		WithArgs("ghost").
		WillReturnRows(jsonRows())

	_, err := d.GetByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList_SkipsNonObjects(t *testing.T) {
	d, mock := newTestDirectory(t)

	mock.ExpectQuery(`FROM venues v ORDER BY v.name`).
		WillReturnRows(jsonRows(
			`{"id":"a","name":"A"}`,
			`null`,
			`[1,2]`,
			`{"id":"b","name":"B"}`,
		))

	rows, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].String("id"))
}

func TestList_QueryError(t *testing.T) {
	d, mock := newTestDirectory(t)

	mock.ExpectQuery(`FROM venues v ORDER BY v.name`).
		WillReturnError(errors.New("connection refused"))

	_, err := d.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list venues")
}

func TestList_RowError(t *testing.T) {
	d, mock := newTestDirectory(t)

	mock.ExpectQuery(`FROM venues v ORDER BY v.name`).
		WillReturnRows(jsonRows(`{"id":"a","name":"A"}`).RowError(0, errors.New("broken stream")))

	_, err := d.List(context.Background())
	require.Error(t, err)
}
