package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestBoundingBox_Contains(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon *float64
		expected bool
	}{
		{name: "netherlands inside", lat: ptr(52), lon: ptr(5), expected: true},
		{name: "gulf of guinea outside", lat: ptr(10), lon: ptr(10), expected: false},
		{name: "edge inclusive", lat: ptr(35), lon: ptr(-11), expected: true},
		{name: "missing latitude", lat: nil, lon: ptr(5), expected: false},
		{name: "missing longitude", lat: ptr(52), lon: nil, expected: false},
		{name: "too far east", lat: ptr(50), lon: ptr(41), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EuropeBounds.Contains(tt.lat, tt.lon))
		})
	}
}

func TestBoundingBox_Validate(t *testing.T) {
	assert.NoError(t, EuropeBounds.Validate())
	assert.Error(t, BoundingBox{MinLat: 10, MaxLat: 5, MinLon: 0, MaxLon: 1}.Validate())
	assert.Error(t, BoundingBox{MinLat: 0, MaxLat: 5, MinLon: 3, MaxLon: 1}.Validate())
	assert.Error(t, BoundingBox{MinLat: 0, MaxLat: 95, MinLon: 0, MaxLon: 1}.Validate())
}

func TestDistance_AmsterdamBerlin(t *testing.T) {
	amsterdam := Point{Lat: 52.3676, Lon: 4.9041}
	berlin := Point{Lat: 52.52, Lon: 13.405}

	d := Distance(amsterdam, berlin)
	assert.InDelta(t, 577, d, 5)
	assert.InDelta(t, 0, Distance(berlin, berlin), 0.0001)
}

func TestCenter(t *testing.T) {
	assert.Equal(t, DefaultCenter, Center(nil))

	c := Center([]Point{{Lat: 50, Lon: 4}, {Lat: 52, Lon: 6}})
	assert.InDelta(t, 51, c.Lat, 0.0001)
	assert.InDelta(t, 5, c.Lon, 0.0001)
}

func TestZoomLevel(t *testing.T) {
	assert.Equal(t, 4, ZoomLevel(0))
	assert.Equal(t, 13, ZoomLevel(1))
	assert.Equal(t, 8, ZoomLevel(5))
	assert.Equal(t, 6, ZoomLevel(20))
	assert.Equal(t, 4, ZoomLevel(500))
}

func TestApproxCountry(t *testing.T) {
	assert.Equal(t, "Netherlands", ApproxCountry(52.2, 5.5))
	assert.Equal(t, "Europe", ApproxCountry(65, -5))
	assert.Equal(t, "Unknown", ApproxCountry(120, 5))
}

func TestParseCoordinates(t *testing.T) {
	p, err := ParseCoordinates("52.3676, 4.9041")
	require.NoError(t, err)
	assert.InDelta(t, 52.3676, p.Lat, 0.00001)
	assert.InDelta(t, 4.9041, p.Lon, 0.00001)

	_, err = ParseCoordinates("52.3676")
	assert.Error(t, err)

	_, err = ParseCoordinates("abc,4")
	assert.Error(t, err)

	_, err = ParseCoordinates("95,4")
	assert.Error(t, err)
}
