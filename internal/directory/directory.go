// Package directory queries the remote venue directory: a Postgres database
// exposing a venues table and a venues_within_radius(lat, lng, radius_km)
// function. Rows are returned loosely typed, as JSON objects, and mapped by
// the venue package.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/venue-locator/internal/db"
	"github.com/sells-group/venue-locator/internal/geo"
	"github.com/sells-group/venue-locator/internal/venue"
)

// ErrNotFound is returned by GetByID when no row matches.
var ErrNotFound = eris.New("directory: venue not found")

// Directory is the remote venue directory.
type Directory interface {
	// SearchRadius calls the radius search procedure. Rows carry the
	// server-computed distance_km.
	SearchRadius(ctx context.Context, center geo.Point, radiusKM float64) ([]venue.Row, error)

	// SearchBBox returns rows whose coordinates fall inside the box.
	SearchBBox(ctx context.Context, minLat, minLng, maxLat, maxLng float64) ([]venue.Row, error)

	// GetByID returns the row with the given id, or ErrNotFound.
	GetByID(ctx context.Context, id string) (venue.Row, error)

	// List returns every row in the directory.
	List(ctx context.Context) ([]venue.Row, error)
}

const radiusSQL = `SELECT row_to_json(r) FROM venues_within_radius($1, $2, $3) r`

// venuesQuery selects whole venues table rows as JSON objects.
var venuesQuery = squirrel.StatementBuilder.
	PlaceholderFormat(squirrel.Dollar).
	Select("row_to_json(v)").
	From("venues v")

// Option configures a PostgresDirectory.
type Option func(*PostgresDirectory)

// WithTimeout bounds every directory call.
func WithTimeout(d time.Duration) Option {
	return func(p *PostgresDirectory) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRateLimit sets the requests-per-second limit for directory calls.
func WithRateLimit(rps float64) Option {
	return func(p *PostgresDirectory) {
		if rps <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// PostgresDirectory implements Directory over a Postgres pool.
type PostgresDirectory struct {
	pool    db.Pool
	timeout time.Duration
	limiter *rate.Limiter
}

// NewPostgres creates a PostgresDirectory with an 8s timeout and a limit
// of 5 requests per second unless overridden.
func NewPostgres(pool db.Pool, opts ...Option) *PostgresDirectory {
	p := &PostgresDirectory{
		pool:    pool,
		timeout: 8 * time.Second,
		limiter: rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SearchRadius implements Directory.
func (p *PostgresDirectory) SearchRadius(ctx context.Context, center geo.Point, radiusKM float64) ([]venue.Row, error) {
	rows, err := p.query(ctx, radiusSQL, center.Lat, center.Lng, radiusKM)
	return rows, eris.Wrap(err, "directory: radius search")
}

// SearchBBox implements Directory.
func (p *PostgresDirectory) SearchBBox(ctx context.Context, minLat, minLng, maxLat, maxLng float64) ([]venue.Row, error) {
	sql, args, err := venuesQuery.
		Where(squirrel.Expr("v.latitude BETWEEN ? AND ?", minLat, maxLat)).
		Where(squirrel.Expr("v.longitude BETWEEN ? AND ?", minLng, maxLng)).
		ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "directory: build bbox query")
	}
	rows, err := p.query(ctx, sql, args...)
	return rows, eris.Wrap(err, "directory: bbox search")
}

// GetByID implements Directory.
func (p *PostgresDirectory) GetByID(ctx context.Context, id string) (venue.Row, error) {
	sql, args, err := venuesQuery.Where(squirrel.Eq{"v.id": id}).ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "directory: build lookup query")
	}
	rows, err := p.query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "directory: get venue %s", id)
	}
	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return rows[0], nil
}

// List implements Directory.
func (p *PostgresDirectory) List(ctx context.Context) ([]venue.Row, error) {
	sql, args, err := venuesQuery.OrderBy("v.name").ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "directory: build list query")
	}
	rows, err := p.query(ctx, sql, args...)
	return rows, eris.Wrap(err, "directory: list venues")
}

func (p *PostgresDirectory) query(ctx context.Context, sql string, args ...any) ([]venue.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit")
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return collectRows(rows)
}

// collectRows decodes each row_to_json column. Rows that are not JSON
// objects are skipped.
func collectRows(rows pgx.Rows) ([]venue.Row, error) {
	defer rows.Close()

	var out []venue.Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "scan row")
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row venue.Row
		if err := dec.Decode(&row); err != nil || row == nil {
			continue
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate rows")
	}
	return out, nil
}
