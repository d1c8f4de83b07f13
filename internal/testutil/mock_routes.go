package testutil

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"meetpoint/internal/models"
)

// RouteCall tracks a call to the route estimator
type RouteCall struct {
	Origin models.Coordinates
	Dest   models.Coordinates
	Mode   models.TransportMode
}

// MockRouteEstimator is a deterministic RouteEstimator for tests.
// It calculates Euclidean distance (scaled) between coordinates and a constant speed.
type MockRouteEstimator struct {
	ScaleFactor float64
	SpeedKmh    float64
	// Delay is applied to every call and honors ctx cancellation
	Delay time.Duration
	// Err, when set, is returned for every pair without an override
	Err error

	mu        sync.Mutex
	overrides map[string]*models.RouteEstimate
	failures  map[string]error
	calls     []RouteCall
}

func NewMockRouteEstimator() *MockRouteEstimator {
	return &MockRouteEstimator{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
		SpeedKmh:    30,
		overrides:   make(map[string]*models.RouteEstimate),
		failures:    make(map[string]error),
	}
}

func (m *MockRouteEstimator) makeKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

// SetRoute sets a custom estimate for a specific origin-destination pair
func (m *MockRouteEstimator) SetRoute(origin, dest models.Coordinates, est models.RouteEstimate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[m.makeKey(origin, dest)] = &est
}

// FailRoute makes a specific pair return err
func (m *MockRouteEstimator) FailRoute(origin, dest models.Coordinates, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[m.makeKey(origin, dest)] = err
}

func (m *MockRouteEstimator) Estimate(ctx context.Context, origin, dest models.Coordinates, mode models.TransportMode) (*models.RouteEstimate, error) {
	m.mu.Lock()
	m.calls = append(m.calls, RouteCall{Origin: origin, Dest: dest, Mode: mode})
	key := m.makeKey(origin, dest)
	override := m.overrides[key]
	failure := m.failures[key]
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if override != nil {
		est := *override
		return &est, nil
	}
	if failure != nil {
		return nil, failure
	}
	if m.Err != nil {
		return nil, m.Err
	}

	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	dist := math.Sqrt(dLat*dLat+dLng*dLng) * m.ScaleFactor

	return &models.RouteEstimate{
		DurationMinutes: dist / 1000 / m.SpeedKmh * 60,
		DistanceMeters:  dist,
		TrafficState:    models.TrafficUnknown,
		IsRealTime:      true,
		Source:          "mock",
	}, nil
}

// Calls returns a copy of the recorded calls
func (m *MockRouteEstimator) Calls() []RouteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RouteCall(nil), m.calls...)
}

// CallCount returns the number of recorded calls
func (m *MockRouteEstimator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// ResetCalls clears the recorded calls
func (m *MockRouteEstimator) ResetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
