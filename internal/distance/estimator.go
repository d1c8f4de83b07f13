package distance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"meetpoint/internal/geo"
	"meetpoint/internal/models"
)

// RouteEstimator estimates the travel cost between two points for a mode
type RouteEstimator interface {
	Estimate(ctx context.Context, origin, dest models.Coordinates, mode models.TransportMode) (*models.RouteEstimate, error)
}

// ErrUnsupportedMode is returned by providers that cannot route a mode.
// It does not count against the routing circuit breaker.
var ErrUnsupportedMode = errors.New("transport mode not supported by provider")

// ErrDistanceCalculationFailed is returned when a routing provider request fails
type ErrDistanceCalculationFailed struct {
	Origin models.Coordinates
	Dest   models.Coordinates
	Reason string
	Err    error
}

func (e *ErrDistanceCalculationFailed) Error() string {
	return fmt.Sprintf("distance calculation failed: %s", e.Reason)
}

func (e *ErrDistanceCalculationFailed) Unwrap() error {
	return e.Err
}

// ModeProfile holds the per-mode constants used by the fallback estimator and fare models
type ModeProfile struct {
	SpeedKmh     float64
	BaseFare     int
	FarePerKm    int
	TransferFare int
}

// ModeProfiles are the Seoul defaults
var ModeProfiles = map[models.TransportMode]ModeProfile{
	models.ModePublicTransport: {SpeedKmh: 25, BaseFare: 1500, TransferFare: 200},
	models.ModeCar:             {SpeedKmh: 35, BaseFare: 3000, FarePerKm: 500},
	models.ModeWalk:            {SpeedKmh: 5},
}

// RouteKey is the cache key for a route lookup, rounded to ~1m
func RouteKey(origin, dest models.Coordinates, mode models.TransportMode) string {
	return fmt.Sprintf("route:%.5f,%.5f->%.5f,%.5f:%s",
		models.RoundCoordinate(origin.Lat),
		models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat),
		models.RoundCoordinate(dest.Lng),
		mode,
	)
}

func samePoint(a, b models.Coordinates) bool {
	return models.RoundCoordinate(a.Lat) == models.RoundCoordinate(b.Lat) &&
		models.RoundCoordinate(a.Lng) == models.RoundCoordinate(b.Lng)
}

// EstimateTransfers approximates public transport transfers from straight-line distance
func EstimateTransfers(distanceMeters float64) int {
	km := distanceMeters / 1000
	if km < 5 {
		return 0
	}
	return int(math.Ceil(km / 10))
}

// EstimateFare applies the fare model of mode to a route distance
func EstimateFare(mode models.TransportMode, distanceMeters float64) int {
	profile := ModeProfiles[mode]
	switch mode {
	case models.ModePublicTransport:
		var fare int
		switch {
		case distanceMeters < 10000:
			fare = 1500
		case distanceMeters < 20000:
			fare = 1800
		default:
			fare = 2100
		}
		return fare + EstimateTransfers(distanceMeters)*profile.TransferFare
	case models.ModeCar:
		return profile.BaseFare + int(distanceMeters/1000*float64(profile.FarePerKm))
	default:
		return 0
	}
}

// FallbackEstimator derives a route from straight-line distance and the mode's average speed
type FallbackEstimator struct {
	Profiles map[models.TransportMode]ModeProfile
}

// NewFallbackEstimator uses ModeProfiles
func NewFallbackEstimator() *FallbackEstimator {
	return &FallbackEstimator{Profiles: ModeProfiles}
}

// Fallback never fails; unknown modes use the public transport speed
func (f *FallbackEstimator) Fallback(origin, dest models.Coordinates, mode models.TransportMode) models.RouteEstimate {
	profiles := f.Profiles
	if profiles == nil {
		profiles = ModeProfiles
	}
	profile, ok := profiles[mode]
	if !ok {
		profile = profiles[models.ModePublicTransport]
	}

	dist := geo.DistanceMeters(origin, dest)
	minutes := 0.0
	if profile.SpeedKmh > 0 {
		minutes = dist / 1000 / profile.SpeedKmh * 60
	}

	return models.RouteEstimate{
		DurationMinutes: minutes,
		DistanceMeters:  dist,
		Fare:            EstimateFare(mode, dist),
		TrafficState:    fallbackTraffic(mode),
		IsRealTime:      false,
		Source:          models.SourceEstimate,
	}
}

// Estimate satisfies RouteEstimator so the fallback can stand in for a provider
func (f *FallbackEstimator) Estimate(_ context.Context, origin, dest models.Coordinates, mode models.TransportMode) (*models.RouteEstimate, error) {
	est := f.Fallback(origin, dest, mode)
	return &est, nil
}

func fallbackTraffic(mode models.TransportMode) models.TrafficState {
	switch mode {
	case models.ModeWalk:
		return models.TrafficNotApplicable
	case models.ModePublicTransport:
		return models.TrafficSmooth
	default:
		return models.TrafficUnknown
	}
}
