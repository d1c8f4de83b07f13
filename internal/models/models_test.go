package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinatesValidate(t *testing.T) {
	assert.NoError(t, Coordinates{Lat: 37.5665, Lng: 126.9780}.Validate())
	assert.NoError(t, Coordinates{Lat: -90, Lng: 180}.Validate())

	err := Coordinates{Lat: 91, Lng: 0}.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	err = Coordinates{Lat: 0, Lng: -180.5}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, 37.51235, RoundCoordinate(37.512345678))
	assert.Equal(t, -74.00601, RoundCoordinate(-74.006012345))
}

func TestParseTransportMode(t *testing.T) {
	mode, err := ParseTransportMode("walk")
	require.NoError(t, err)
	assert.Equal(t, ModeWalk, mode)

	mode, err = ParseTransportMode(" PUBLIC_TRANSPORT ")
	require.NoError(t, err)
	assert.Equal(t, ModePublicTransport, mode)

	for _, rejected := range []string{"SUBWAY", "BUS", ""} {
		_, err := ParseTransportMode(rejected)
		assert.True(t, errors.Is(err, ErrInvalidInput), rejected)
	}
}

func TestClassifyCongestion(t *testing.T) {
	assert.Equal(t, TrafficSmooth, ClassifyCongestion(0.1))
	assert.Equal(t, TrafficSlow, ClassifyCongestion(0.2))
	assert.Equal(t, TrafficDelayed, ClassifyCongestion(0.45))
	assert.Equal(t, TrafficCongested, ClassifyCongestion(0.6))
}

func TestBoundsContainsIsExclusive(t *testing.T) {
	b := Bounds{MinLat: 37.52, MaxLat: 37.60, MinLng: 126.95, MaxLng: 127.05}
	assert.True(t, b.Contains(Coordinates{Lat: 37.55, Lng: 127.0}))
	assert.False(t, b.Contains(Coordinates{Lat: 37.52, Lng: 127.0}))
	assert.False(t, b.Contains(Coordinates{Lat: 37.55, Lng: 127.05}))
}

func TestErrorKindMatching(t *testing.T) {
	cause := fmt.Errorf("dial tcp: timeout")
	err := fmt.Errorf("resolve origins: %w", NewError(KindUnavailable, "geocode", "upstream unavailable", cause))

	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
	assert.Contains(t, err.Error(), "geocode: upstream unavailable")
}

func TestOriginRequestHasCoordinates(t *testing.T) {
	lat, lng := 37.5, 127.0
	assert.True(t, OriginRequest{Latitude: &lat, Longitude: &lng}.HasCoordinates())
	assert.False(t, OriginRequest{Latitude: &lat}.HasCoordinates())
	assert.False(t, OriginRequest{Address: "Gangnam Station"}.HasCoordinates())
}
