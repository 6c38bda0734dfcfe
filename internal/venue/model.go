// Package venue holds the venue model, the mapping from loosely-typed
// directory rows into venues, and the in-memory Catalog.
package venue

import (
	"github.com/sells-group/venue-locator/internal/geo"
)

// Geofence radius limits in meters.
const (
	MinRadiusMeters     = 1000.0
	DefaultRadiusMeters = 5000.0
)

// Region is the closed set of venue regions.
type Region string

// Venue regions.
const (
	RegionNorthAmerica Region = "north-america"
	RegionSouthAmerica Region = "south-america"
	RegionEurope       Region = "europe"
	RegionAsiaPacific  Region = "asia-pacific"
	RegionOceania      Region = "oceania"
	RegionAfrica       Region = "africa"
	RegionMiddleEast   Region = "middle-east"
	RegionGlobal       Region = "global"
)

var knownRegions = map[Region]bool{
	RegionNorthAmerica: true,
	RegionSouthAmerica: true,
	RegionEurope:       true,
	RegionAsiaPacific:  true,
	RegionOceania:      true,
	RegionAfrica:       true,
	RegionMiddleEast:   true,
	RegionGlobal:       true,
}

// ParseRegion returns the Region for s, or RegionGlobal when s is not recognized.
func ParseRegion(s string) Region {
	r := Region(normalizeToken(s))
	if knownRegions[r] {
		return r
	}
	return RegionGlobal
}

// Classification ranks venues by significance.
type Classification string

// Venue classifications.
const (
	ClassChampionship Classification = "championship"
	ClassPremier      Classification = "premier"
	ClassRegional     Classification = "regional"
	ClassEmerging     Classification = "emerging"
)

// venueTypeClasses maps upstream venue_type values onto classifications.
var venueTypeClasses = map[string]Classification{
	"championship":       ClassChampionship,
	"championship-venue": ClassChampionship,
	"world-class":        ClassChampionship,
	"premier":            ClassPremier,
	"premier-venue":      ClassPremier,
	"major":              ClassPremier,
	"regional":           ClassRegional,
	"regional-venue":     ClassRegional,
	"club":               ClassRegional,
	"local":              ClassEmerging,
	"emerging":           ClassEmerging,
}

// Classify maps a free-text venue type to a Classification. Unrecognized
// values are ClassEmerging.
func Classify(venueType string) Classification {
	if c, ok := venueTypeClasses[normalizeToken(venueType)]; ok {
		return c
	}
	return ClassEmerging
}

// Characteristics describes the physical venue.
type Characteristics struct {
	PrimaryUse    string  `json:"primary_use"`
	WaterType     string  `json:"water_type"`
	Protection    string  `json:"protection_level"`
	AverageDepthM float64 `json:"average_depth_m"`
	TidalRangeM   float64 `json:"tidal_range_m"`
}

// LocalKnowledge is free-text guidance about a venue. Every field is
// populated, falling back to generic placeholders.
type LocalKnowledge struct {
	BestConditions string   `json:"best_conditions"`
	Hazards        []string `json:"hazards"`
	Safety         []string `json:"safety_considerations"`
	CulturalNotes  []string `json:"cultural_notes"`
	Tips           []string `json:"tips"`
}

// Venue is a geofenced place of interest.
type Venue struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Region         Region          `json:"region"`
	Country        string          `json:"country"`
	City           string          `json:"city"`
	Timezone       string          `json:"timezone"`
	Languages      []string        `json:"languages"`
	Location       geo.Point       `json:"location"`
	RadiusMeters   float64         `json:"radius_m"`
	Classification Classification  `json:"classification"`
	Traits         Characteristics `json:"characteristics"`
	Knowledge      LocalKnowledge  `json:"local_knowledge"`
}

// Contains reports whether p lies within the venue geofence, returning the
// distance to the venue center. Venues with unknown coordinates contain nothing.
func (v *Venue) Contains(p geo.Point) (bool, float64) {
	d := geo.DistanceMeters(p, v.Location)
	if v.Location.Unknown() {
		return false, d
	}
	return d <= v.RadiusMeters, d
}
