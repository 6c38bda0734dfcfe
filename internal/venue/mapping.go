package venue

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/geo"
)

// ErrMalformedRecord is returned for rows that cannot become a Venue.
var ErrMalformedRecord = eris.New("venue: malformed record")

// Defaults applied when a directory row omits a field.
const (
	DefaultTimezone   = "UTC"
	DefaultPrimaryUse = "racing"
	DefaultWaterType  = "coastal"
	DefaultProtection = "moderate"
	DefaultDepthM     = 10.0
	DefaultTidalM     = 1.5

	DefaultBestConditions = "Conditions vary through the season; check the local forecast before heading out."
)

var (
	defaultLanguages = []string{"en"}
	defaultHazards   = []string{"Check local notices to mariners for current hazards."}
	defaultSafety    = []string{"Follow local safety regulations and carry required safety equipment."}
	defaultCultural  = []string{"Respect local customs and club etiquette."}
	defaultTips      = []string{"Arrive early to get familiar with the venue."}
)

// FromRow maps an untrusted directory row into a Venue. Missing or invalid
// optional fields resolve to defaults; rows without an id or name are
// rejected with ErrMalformedRecord.
func FromRow(row Row) (Venue, error) {
	id := row.String("id", "venue_id")
	if id == "" {
		return Venue{}, eris.Wrap(ErrMalformedRecord, "missing id")
	}
	name := row.String("name", "venue_name")
	if name == "" {
		return Venue{}, eris.Wrapf(ErrMalformedRecord, "venue %s: missing name", id)
	}

	v := Venue{
		ID:             id,
		Name:           name,
		Region:         ParseRegion(row.String("region")),
		Country:        row.String("country"),
		City:           row.String("city"),
		Timezone:       orDefault(row.String("timezone", "time_zone"), DefaultTimezone),
		Languages:      listOrDefault(row.Strings("languages"), defaultLanguages),
		Location:       extractPoint(row),
		RadiusMeters:   radius(row),
		Classification: Classify(row.String("venue_type", "type")),
		Traits: Characteristics{
			PrimaryUse:    orDefault(row.String("primary_use"), DefaultPrimaryUse),
			WaterType:     orDefault(row.String("water_type", "body_type"), DefaultWaterType),
			Protection:    orDefault(row.String("protection_level"), DefaultProtection),
			AverageDepthM: floatOrDefault(row, DefaultDepthM, "average_depth", "average_depth_m"),
			TidalRangeM:   floatOrDefault(row, DefaultTidalM, "tidal_range", "tidal_range_m"),
		},
		Knowledge: LocalKnowledge{
			BestConditions: orDefault(row.String("best_conditions"), DefaultBestConditions),
			Hazards:        listOrDefault(row.Strings("hazards"), defaultHazards),
			Safety:         listOrDefault(row.Strings("safety_considerations"), defaultSafety),
			CulturalNotes:  listOrDefault(row.Strings("cultural_notes"), defaultCultural),
			Tips:           listOrDefault(row.Strings("tips"), defaultTips),
		},
	}
	return v, nil
}

// MapRows maps every row, dropping malformed ones. It returns the venues
// and the number of rows dropped.
func MapRows(rows []Row) ([]Venue, int) {
	venues := make([]Venue, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		v, err := FromRow(row)
		if err != nil {
			dropped++
			zap.L().Debug("venue: dropping row", zap.Error(err))
			continue
		}
		venues = append(venues, v)
	}
	return venues, dropped
}

// radius returns the detection radius, defaulting invalid values and
// enforcing the minimum.
func radius(row Row) float64 {
	r, ok := row.Float("detection_radius", "detection_radius_m", "radius_m", "radius")
	if !ok || r <= 0 {
		r = DefaultRadiusMeters
	}
	if r < MinRadiusMeters {
		r = MinRadiusMeters
	}
	return r
}

// extractPoint reads coordinates from explicit columns, a GeoJSON-style
// coordinates object, or a bare [lon, lat] array, in that order. Rows with
// none of these yield the unknown (0,0) point.
func extractPoint(row Row) geo.Point {
	lat, latOK := row.Float("latitude", "lat")
	lng, lngOK := row.Float("longitude", "lng", "lon")
	if latOK && lngOK && validLatLng(lat, lng) {
		return geo.Point{Lat: lat, Lng: lng}
	}

	switch c := row["coordinates"].(type) {
	case map[string]any:
		if p, ok := pointFromGeoJSON(c); ok {
			return p
		}
		if p, ok := pointFromPair(c["coordinates"]); ok {
			return p
		}
	case Row:
		if p, ok := pointFromGeoJSON(c); ok {
			return p
		}
		if p, ok := pointFromPair(c["coordinates"]); ok {
			return p
		}
	default:
		if p, ok := pointFromPair(c); ok {
			return p
		}
	}
	return geo.Point{}
}

func pointFromGeoJSON(obj map[string]any) (geo.Point, bool) {
	if _, ok := obj["type"]; !ok {
		return geo.Point{}, false
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return geo.Point{}, false
	}
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return geo.Point{}, false
	}
	pt, ok := g.(*geom.Point)
	if !ok || pt.Empty() {
		return geo.Point{}, false
	}
	if !validLatLng(pt.Y(), pt.X()) {
		return geo.Point{}, false
	}
	return geo.Point{Lat: pt.Y(), Lng: pt.X()}, true
}

// pointFromPair parses a [lon, lat] pair.
func pointFromPair(v any) (geo.Point, bool) {
	var pair []any
	switch p := v.(type) {
	case []any:
		pair = p
	case []float64:
		for _, f := range p {
			pair = append(pair, f)
		}
	default:
		return geo.Point{}, false
	}
	if len(pair) < 2 {
		return geo.Point{}, false
	}
	lng, lngOK := toFloat(pair[0])
	lat, latOK := toFloat(pair[1])
	if !lngOK || !latOK || !validLatLng(lat, lng) {
		return geo.Point{}, false
	}
	return geo.Point{Lat: lat, Lng: lng}, true
}

func validLatLng(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func floatOrDefault(row Row, def float64, keys ...string) float64 {
	if f, ok := row.Float(keys...); ok && f >= 0 {
		return f
	}
	return def
}

// listOrDefault returns list, or a copy of def so callers cannot mutate
// the shared placeholders.
func listOrDefault(list, def []string) []string {
	if len(list) > 0 {
		return list
	}
	return append([]string(nil), def...)
}
