// Package geo provides the geometry behind venue detection: great-circle
// distance, geofence confidence scoring, and bounding boxes for radius searches.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// kmPerDegreeLat is the approximate length of one degree of latitude.
const kmPerDegreeLat = 111.32

// minCosLat keeps longitude deltas finite near the poles.
const minCosLat = 0.01

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Unknown reports whether p is the (0,0) placeholder used when a record
// carries no parseable coordinates.
func (p Point) Unknown() bool {
	return p.Lat == 0 && p.Lng == 0
}

// DistanceMeters returns the haversine distance between a and b in meters.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// BoundsAround returns a lng/lat bounding box that encloses a circle of
// radiusKM around center. The longitude delta is widened by 1/cos(lat).
func BoundsAround(center Point, radiusKM float64) *geom.Bounds {
	dLat := radiusKM / kmPerDegreeLat
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat < minCosLat {
		cosLat = minCosLat
	}
	dLng := radiusKM / (kmPerDegreeLat * cosLat)

	return geom.NewBounds(geom.XY).Set(
		center.Lng-dLng, center.Lat-dLat,
		center.Lng+dLng, center.Lat+dLat,
	)
}
