// Package detect turns position fixes into detection results, either from
// the local catalog or from the remote directory.
package detect

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/sells-group/venue-locator/internal/venue"
)

// MaxAlternates is the number of runner-up venues kept on a Result.
const MaxAlternates = 3

// Method records how a Result was produced.
type Method string

// Detection methods.
const (
	MethodNetwork Method = "network"
	MethodLocal   Method = "gps-local"
	MethodManual  Method = "manual"
	MethodCached  Method = "cached"
)

// Match is a candidate venue for a fix.
type Match struct {
	Venue          venue.Venue `json:"venue"`
	DistanceMeters float64     `json:"distance_m"`
	Confidence     float64     `json:"confidence"`
}

// Result is the outcome of one resolution. Results are values and are
// replaced, never updated, by the next resolution.
type Result struct {
	Venue          *venue.Venue
	Confidence     float64
	DistanceMeters float64
	Alternates     []Match
	Method         Method
	DetectedAt     time.Time
}

// NoMatch returns the Result for a fix inside no geofence.
func NoMatch(method Method, at time.Time) Result {
	return Result{
		DistanceMeters: math.Inf(1),
		Method:         method,
		DetectedAt:     at,
	}
}

// Assigned returns a Result that pins v without geometry, as used for
// manual overrides and cache rehydration.
func Assigned(v venue.Venue, method Method, at time.Time) Result {
	return Result{
		Venue:      &v,
		Confidence: 1.0,
		Method:     method,
		DetectedAt: at,
	}
}

// VenueID returns the matched venue id, or "" for no match.
func (r Result) VenueID() string {
	if r.Venue == nil {
		return ""
	}
	return r.Venue.ID
}

// MarshalJSON encodes an infinite distance as null.
func (r Result) MarshalJSON() ([]byte, error) {
	var distance *float64
	if !math.IsInf(r.DistanceMeters, 0) && !math.IsNaN(r.DistanceMeters) {
		d := r.DistanceMeters
		distance = &d
	}
	alternates := r.Alternates
	if alternates == nil {
		alternates = []Match{}
	}
	return json.Marshal(struct {
		Venue          *venue.Venue `json:"venue"`
		Confidence     float64      `json:"confidence"`
		DistanceMeters *float64     `json:"distance_m"`
		Alternates     []Match      `json:"alternates"`
		Method         Method       `json:"method"`
		DetectedAt     time.Time    `json:"detected_at"`
	}{r.Venue, r.Confidence, distance, alternates, r.Method, r.DetectedAt})
}

// rank orders matches by confidence, then by distance.
func rank(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})
}

// build ranks matches and returns the best one with up to MaxAlternates
// runners-up.
func build(matches []Match, method Method, at time.Time) Result {
	if len(matches) == 0 {
		return NoMatch(method, at)
	}
	rank(matches)

	best := matches[0]
	var alternates []Match
	if rest := matches[1:]; len(rest) > 0 {
		if len(rest) > MaxAlternates {
			rest = rest[:MaxAlternates]
		}
		alternates = append([]Match(nil), rest...)
	}

	v := best.Venue
	return Result{
		Venue:          &v,
		Confidence:     best.Confidence,
		DistanceMeters: best.DistanceMeters,
		Alternates:     alternates,
		Method:         method,
		DetectedAt:     at,
	}
}
