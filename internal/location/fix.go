// Package location acquires position fixes and gates how often they reach
// the resolver.
package location

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/venue-locator/internal/geo"
)

// Defaults for the continuous watch gates.
const (
	DefaultInterval       = 30 * time.Second
	DefaultDistanceMeters = 100.0
)

// ErrPermissionDenied is returned when the provider refuses location access.
var ErrPermissionDenied = eris.New("location: permission denied")

// Fix is one position reading.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Point returns the fix coordinate.
func (f Fix) Point() geo.Point {
	return geo.Point{Lat: f.Lat, Lng: f.Lng}
}

// WatchOptions are hints to a provider's continuous watch. Providers may
// ignore them; Monitor enforces both gates regardless.
type WatchOptions struct {
	Interval       time.Duration
	DistanceMeters float64
}

// Provider is a source of position fixes.
type Provider interface {
	// RequestPermission reports whether location access is granted.
	RequestPermission(ctx context.Context) (bool, error)
	// CurrentFix returns a single fix.
	CurrentFix(ctx context.Context) (Fix, error)
	// Watch streams fixes and closes the channel when ctx is done or the
	// source is exhausted.
	Watch(ctx context.Context, opts WatchOptions) (<-chan Fix, error)
}
