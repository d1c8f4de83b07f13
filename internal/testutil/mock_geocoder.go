package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"meetpoint/internal/geocoding"
	"meetpoint/internal/models"
)

// MockGeocoder resolves addresses from a fixed table and names every reverse lookup
// after its coordinates unless told otherwise.
type MockGeocoder struct {
	// ReverseErr and ForwardErr, when set, fail every call of that kind
	ReverseErr error
	ForwardErr error

	mu             sync.Mutex
	addresses      map[string]models.Coordinates
	places         map[string]models.NamedLocation
	reverseFailsAt map[string]error
	forwardCalls   int
	reverseCalls   int
}

func NewMockGeocoder() *MockGeocoder {
	return &MockGeocoder{
		addresses:      make(map[string]models.Coordinates),
		places:         make(map[string]models.NamedLocation),
		reverseFailsAt: make(map[string]error),
	}
}

func pointKey(p models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f", models.RoundCoordinate(p.Lat), models.RoundCoordinate(p.Lng))
}

// AddAddress registers a forward-geocodable address
func (m *MockGeocoder) AddAddress(address string, coords models.Coordinates) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[strings.ToLower(address)] = coords
}

// SetPlace sets the reverse result for a point
func (m *MockGeocoder) SetPlace(loc models.NamedLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.places[pointKey(loc.Coordinates)] = loc
}

// FailReverseAt makes reverse lookups of a single point return err
func (m *MockGeocoder) FailReverseAt(p models.Coordinates, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reverseFailsAt[pointKey(p)] = err
}

func (m *MockGeocoder) Forward(ctx context.Context, address string) ([]geocoding.ForwardResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwardCalls++

	if m.ForwardErr != nil {
		return nil, m.ForwardErr
	}
	coords, ok := m.addresses[strings.ToLower(address)]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "geocoding.forward", "no results for "+address, nil)
	}
	return []geocoding.ForwardResult{{Coords: coords, DisplayName: address}}, nil
}

func (m *MockGeocoder) Reverse(ctx context.Context, point models.Coordinates) (*models.NamedLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reverseCalls++

	if err := m.reverseFailsAt[pointKey(point)]; err != nil {
		return nil, err
	}
	if m.ReverseErr != nil {
		return nil, m.ReverseErr
	}
	if loc, ok := m.places[pointKey(point)]; ok {
		loc.Coordinates = point
		return &loc, nil
	}
	return &models.NamedLocation{
		Coordinates: point,
		Address:     "Seoul " + pointKey(point),
		PlaceName:   "place " + pointKey(point),
	}, nil
}

// ForwardCalls returns the number of forward lookups
func (m *MockGeocoder) ForwardCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forwardCalls
}

// ReverseCalls returns the number of reverse lookups
func (m *MockGeocoder) ReverseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reverseCalls
}
