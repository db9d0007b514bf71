package normalize

import (
	"github.com/jonathan/parts-dashboard/internal/types"
)

// maxCoordinateDepth bounds how deep nested location objects are searched.
const maxCoordinateDepth = 3

// coordinatePairKeys are flat (latitude, longitude) key pairs in priority order.
var coordinatePairKeys = [][2]string{
	{"latitude", "longitude"},
	{"lat", "lng"},
	{"lat", "lon"},
	{"Latitude", "Longitude"},
}

// coordinateArrayKeys hold two-element arrays whose first element is the latitude.
var coordinateArrayKeys = []string{
	"geo_cordinates",
	"geo_coordinates",
	"geoCoordinates",
	"coordinates",
}

// coordinateObjectKeys are nested objects searched for coordinates, in priority order.
var coordinateObjectKeys = []string{
	"location",
	"job_address",
	"jobAddress",
	"customer_address",
	"address",
	"geo",
}

// Single flat coordinate values, used when no complete pair exists.
var (
	latitudeRules  = Rules{{"latitude", number}, {"lat", number}}
	longitudeRules = Rules{{"longitude", number}, {"lng", number}, {"lon", number}}
)

// resolveCoordinates finds a (latitude, longitude) pair in raw. A pair is only
// taken from one source. When no complete pair exists, flat single values are
// returned as found.
func resolveCoordinates(raw types.RawRecord) (*float64, *float64) {
	if lat, lon, ok := coordinatesIn(raw, maxCoordinateDepth); ok {
		return &lat, &lon
	}
	var lat, lon *float64
	if v, ok := latitudeRules.Resolve(raw); ok {
		f := v.(float64)
		lat = &f
	}
	if v, ok := longitudeRules.Resolve(raw); ok {
		f := v.(float64)
		lon = &f
	}
	return lat, lon
}

func coordinatesIn(m map[string]any, depth int) (float64, float64, bool) {
	for _, keys := range coordinatePairKeys {
		lat, latOK := number(m[keys[0]])
		lon, lonOK := number(m[keys[1]])
		if latOK && lonOK {
			return lat.(float64), lon.(float64), true
		}
	}
	for _, key := range coordinateArrayKeys {
		if lat, lon, ok := coordinateArray(m[key]); ok {
			return lat, lon, true
		}
	}
	if depth <= 1 {
		return 0, 0, false
	}
	for _, key := range coordinateObjectKeys {
		nested, ok := asMap(m[key])
		if !ok {
			continue
		}
		if lat, lon, ok := coordinatesIn(nested, depth-1); ok {
			return lat, lon, true
		}
	}
	return 0, 0, false
}

// coordinateArray reads [lat, lon]. [0, 0] means "not geocoded" and counts as missing.
func coordinateArray(v any) (float64, float64, bool) {
	list, ok := v.([]any)
	if !ok || len(list) < 2 {
		return 0, 0, false
	}
	lat, latOK := number(list[0])
	lon, lonOK := number(list[1])
	if !latOK || !lonOK {
		return 0, 0, false
	}
	latF, lonF := lat.(float64), lon.(float64)
	if latF == 0 && lonF == 0 {
		return 0, 0, false
	}
	return latF, lonF, true
}
