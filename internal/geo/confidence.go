package geo

import "math"

// Confidence breakpoints, as fractions of the geofence radius.
const (
	coreFraction  = 0.1 // confidence 1.0
	innerFraction = 0.3 // confidence 0.9
	midFraction   = 0.5 // confidence 0.8
	outerFraction = 0.8 // confidence 0.6
)

// MinConfidence is the floor returned near or beyond the geofence edge.
const MinConfidence = 0.1

// Confidence maps a distance from a venue center to a score in [0,1].
// Rules:
//   - d <= 10% of radius: 1.0
//   - d <= 30%: 0.9
//   - d <= 50%: 0.8
//   - d <= 80%: 0.6
//   - otherwise: max(0.1, 1 - d/r)
//
// A point outside the radius always scores MinConfidence. A non-positive
// radius scores 0.
func Confidence(distance, radius float64) float64 {
	if radius <= 0 || math.IsNaN(distance) {
		return 0
	}
	if distance < 0 {
		distance = 0
	}

	switch ratio := distance / radius; {
	case ratio <= coreFraction:
		return 1.0
	case ratio <= innerFraction:
		return 0.9
	case ratio <= midFraction:
		return 0.8
	case ratio <= outerFraction:
		return 0.6
	default:
		return math.Max(MinConfidence, 1-ratio)
	}
}
