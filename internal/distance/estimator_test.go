package distance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetpoint/internal/geo"
	"meetpoint/internal/models"
)

func TestEstimateTransfers(t *testing.T) {
	assert.Equal(t, 0, EstimateTransfers(4999))
	assert.Equal(t, 1, EstimateTransfers(5000))
	assert.Equal(t, 1, EstimateTransfers(10000))
	assert.Equal(t, 2, EstimateTransfers(10001))
	assert.Equal(t, 3, EstimateTransfers(25000))
}

func TestEstimateFare(t *testing.T) {
	tests := []struct {
		name     string
		mode     models.TransportMode
		distance float64
		want     int
	}{
		{"transit short", models.ModePublicTransport, 3000, 1500},
		{"transit with transfer", models.ModePublicTransport, 8000, 1700},
		{"transit mid band", models.ModePublicTransport, 15000, 2200},
		{"transit long band", models.ModePublicTransport, 30000, 2700},
		{"car base plus distance", models.ModeCar, 2000, 4000},
		{"car zero distance", models.ModeCar, 0, 3000},
		{"walk is free", models.ModeWalk, 12000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateFare(tt.mode, tt.distance))
		})
	}
}

func TestFallbackDurationUsesModeSpeed(t *testing.T) {
	origin := models.Coordinates{Lat: 37.50, Lng: 127.00}
	dest := models.Coordinates{Lat: 37.52, Lng: 127.02}
	dist := geo.DistanceMeters(origin, dest)

	f := NewFallbackEstimator()
	speeds := map[models.TransportMode]float64{
		models.ModePublicTransport: 25,
		models.ModeCar:             35,
		models.ModeWalk:            5,
	}

	for mode, speed := range speeds {
		est := f.Fallback(origin, dest, mode)
		assert.InDelta(t, dist/1000/speed*60, est.DurationMinutes, 1e-9, mode)
		assert.Equal(t, dist, est.DistanceMeters)
		assert.False(t, est.IsRealTime)
		assert.Equal(t, models.SourceEstimate, est.Source)
	}
}

func TestFallbackTrafficState(t *testing.T) {
	f := NewFallbackEstimator()
	a := models.Coordinates{Lat: 37.5, Lng: 127.0}
	b := models.Coordinates{Lat: 37.6, Lng: 127.1}

	assert.Equal(t, models.TrafficNotApplicable, f.Fallback(a, b, models.ModeWalk).TrafficState)
	assert.Equal(t, models.TrafficSmooth, f.Fallback(a, b, models.ModePublicTransport).TrafficState)
	assert.Equal(t, models.TrafficUnknown, f.Fallback(a, b, models.ModeCar).TrafficState)
}

func TestFallbackEstimatorSatisfiesInterface(t *testing.T) {
	var estimator RouteEstimator = NewFallbackEstimator()

	est, err := estimator.Estimate(context.Background(), gangnam, gangnam, models.ModeCar)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.DurationMinutes)
	assert.Equal(t, 3000, est.Fare)
}

func TestRouteKey(t *testing.T) {
	key := RouteKey(
		models.Coordinates{Lat: 37.5000001, Lng: 127.0},
		models.Coordinates{Lat: 37.51, Lng: 127.010004},
		models.ModeWalk,
	)
	assert.Equal(t, "route:37.50000,127.00000->37.51000,127.01000:WALK", key)
}
