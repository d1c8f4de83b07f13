package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"

	"meetpoint/internal/models"
)

func TestDistanceMeters(t *testing.T) {
	gangnam := models.Coordinates{Lat: 37.4979, Lng: 127.0276}
	hongdae := models.Coordinates{Lat: 37.5563, Lng: 126.9236}

	assert.Equal(t, 0.0, DistanceMeters(gangnam, gangnam))
	assert.Equal(t, DistanceMeters(gangnam, hongdae), DistanceMeters(hongdae, gangnam))

	// Gangnam to Hongdae is roughly 11 km as the crow flies
	assert.InDelta(t, 11300, DistanceMeters(gangnam, hongdae), 300)

	// One degree of latitude
	assert.InDelta(t, 111195, DistanceMeters(models.Coordinates{Lat: 0, Lng: 0}, models.Coordinates{Lat: 1, Lng: 0}), 1)
}

func TestGridOffsets(t *testing.T) {
	center := models.Coordinates{Lat: 37.51, Lng: 127.01}

	withCenter := GridOffsets(center, DefaultGridSteps, true)
	assert.Len(t, withCenter, 25)

	without := GridOffsets(center, DefaultGridSteps, false)
	require.Len(t, without, 24)
	for _, p := range without {
		assert.False(t, p == center, "center must be skipped")
	}

	// latitude outer, longitude inner
	assert.InDelta(t, 37.505, without[0].Lat, 1e-9)
	assert.InDelta(t, 127.005, without[0].Lng, 1e-9)
	assert.InDelta(t, 37.505, without[1].Lat, 1e-9)
	assert.InDelta(t, 127.007, without[1].Lng, 1e-9)
	assert.InDelta(t, 37.515, without[23].Lat, 1e-9)
	assert.InDelta(t, 127.015, without[23].Lng, 1e-9)
}

func TestCentroid(t *testing.T) {
	c, ok := Centroid([]models.Coordinates{{Lat: 37.50, Lng: 127.00}, {Lat: 37.52, Lng: 127.02}})
	require.True(t, ok)
	assert.InDelta(t, 37.51, c.Lat, 1e-9)
	assert.InDelta(t, 127.01, c.Lng, 1e-9)

	_, ok = Centroid(nil)
	assert.False(t, ok)
}

func TestDecodePolyline(t *testing.T) {
	encoded := string(polyline.EncodeCoords([][]float64{{37.4979, 127.0276}, {37.5000, 127.0300}, {37.5100, 127.0400}}))

	points, err := DecodePolyline(encoded)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 37.4979, points[0].Lat, 1e-5)
	assert.InDelta(t, 127.04, points[2].Lng, 1e-5)

	total := PathLengthMeters(points, 0, 2)
	assert.InDelta(t, DistanceMeters(points[0], points[1])+DistanceMeters(points[1], points[2]), total, 1e-6)
	assert.Equal(t, 0.0, PathLengthMeters(points, 1, 1))

	empty, err := DecodePolyline("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
