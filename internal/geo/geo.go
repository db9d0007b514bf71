// Package geo provides coordinate validation, bounding boxes and distance helpers.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// earthRadiusKm is the mean Earth radius used by Distance.
const earthRadiusKm = 6371.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DefaultCenter is used when there is nothing to center on (Berlin).
var DefaultCenter = Point{Lat: 52.5, Lon: 13.4}

// BoundingBox is an inclusive latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `toml:"min_lat" json:"min_lat"`
	MaxLat float64 `toml:"max_lat" json:"max_lat"`
	MinLon float64 `toml:"min_lon" json:"min_lon"`
	MaxLon float64 `toml:"max_lon" json:"max_lon"`
}

// EuropeBounds covers the EU service area (35–72°N, 11°W–40°E).
var EuropeBounds = BoundingBox{MinLat: 35.0, MaxLat: 72.0, MinLon: -11.0, MaxLon: 40.0}

// Contains reports whether both coordinates are present and inside the box.
func (b BoundingBox) Contains(lat, lon *float64) bool {
	if lat == nil || lon == nil {
		return false
	}
	return b.MinLat <= *lat && *lat <= b.MaxLat && b.MinLon <= *lon && *lon <= b.MaxLon
}

// Validate checks that the box is well formed and within GPS ranges.
func (b BoundingBox) Validate() error {
	if b.MinLat >= b.MaxLat {
		return fmt.Errorf("min_lat (%v) must be less than max_lat (%v)", b.MinLat, b.MaxLat)
	}
	if b.MinLon >= b.MaxLon {
		return fmt.Errorf("min_lon (%v) must be less than max_lon (%v)", b.MinLon, b.MaxLon)
	}
	if !ValidCoordinates(b.MinLat, b.MinLon) || !ValidCoordinates(b.MaxLat, b.MaxLon) {
		return fmt.Errorf("bounding box corners must be valid GPS coordinates")
	}
	return nil
}

// ValidCoordinates reports whether lat/lon are inside the GPS ranges.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Distance returns the great-circle distance in kilometers (haversine).
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Center returns the arithmetic mean of the given points, or DefaultCenter when empty.
func Center(points []Point) Point {
	if len(points) == 0 {
		return DefaultCenter
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	return Point{Lat: sumLat / n, Lon: sumLon / n}
}

// ZoomLevel picks a map zoom level suited to the number of markers.
func ZoomLevel(markers int) int {
	switch {
	case markers == 0:
		return 4
	case markers == 1:
		return 13
	case markers < 10:
		return 8
	case markers < 50:
		return 6
	default:
		return 4
	}
}

// countryBox is a rough rectangle used by ApproxCountry.
type countryBox struct {
	name string
	box  BoundingBox
}

// Order matters: the first matching rectangle wins.
var countryBoxes = []countryBox{
	{"Netherlands", BoundingBox{MinLat: 50, MaxLat: 54, MinLon: 3, MaxLon: 7}},
	{"Belgium", BoundingBox{MinLat: 49, MaxLat: 51.5, MinLon: 2, MaxLon: 6}},
	{"Germany", BoundingBox{MinLat: 47, MaxLat: 55, MinLon: 5, MaxLon: 15}},
	{"France", BoundingBox{MinLat: 42, MaxLat: 51, MinLon: -5, MaxLon: 9}},
	{"United Kingdom", BoundingBox{MinLat: 49.5, MaxLat: 52, MinLon: -6, MaxLon: 2}},
	{"Scandinavia", BoundingBox{MinLat: 55, MaxLat: 69, MinLon: 5, MaxLon: 31}},
	{"Italy/Switzerland", BoundingBox{MinLat: 36, MaxLat: 47, MinLon: 6, MaxLon: 19}},
	{"Spain/Portugal", BoundingBox{MinLat: 36, MaxLat: 43.5, MinLon: -9, MaxLon: 4}},
	{"Poland/Czech Republic", BoundingBox{MinLat: 44, MaxLat: 54, MinLon: 12, MaxLon: 24}},
}

// ApproxCountry gives a coarse country label for display purposes only.
// It is not geocoding.
func ApproxCountry(lat, lon float64) string {
	if !ValidCoordinates(lat, lon) {
		return "Unknown"
	}
	for _, c := range countryBoxes {
		if c.box.Contains(&lat, &lon) {
			return c.name
		}
	}
	return "Europe"
}

// ParseCoordinates parses "52.3676, 4.9041" into a Point.
func ParseCoordinates(s string) (Point, error) {
	parts := strings.Split(strings.ReplaceAll(s, " ", ""), ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("expected \"lat,lon\", got %q", s)
	}
	lat, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	lon, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	if !ValidCoordinates(lat, lon) {
		return Point{}, fmt.Errorf("coordinates out of range: %v,%v", lat, lon)
	}
	return Point{Lat: lat, Lon: lon}, nil
}
