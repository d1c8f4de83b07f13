package geocoding

import (
	"context"
	"errors"
	"fmt"

	"meetpoint/internal/models"
)

// ForwardResult contains one candidate match for an address
type ForwardResult struct {
	Coords      models.Coordinates
	DisplayName string
}

// Geocoder converts between addresses and coordinates
type Geocoder interface {
	// Forward returns matches for address, best first. No match is a NotFound error.
	Forward(ctx context.Context, address string) ([]ForwardResult, error)
	// Reverse resolves a point to an address. No match is a NotFound error.
	Reverse(ctx context.Context, point models.Coordinates) (*models.NamedLocation, error)
}

// ErrRateLimitWait marks a call that gave up while waiting for the client rate limiter
var ErrRateLimitWait = errors.New("geocoding rate limit wait interrupted")

// ErrGeocodingFailed is returned when the provider request itself fails
type ErrGeocodingFailed struct {
	Query  string
	Reason string
	Err    error
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for %s - %s", e.Query, e.Reason)
}

func (e *ErrGeocodingFailed) Unwrap() error {
	return e.Err
}

func notFound(op, query string) error {
	return models.NewError(models.KindNotFound, op, fmt.Sprintf("no geocoding results for %s", query), nil)
}

// Disabled is used when no geocoding provider is configured
type Disabled struct{}

var errDisabled = models.NewError(models.KindUnavailable, "geocoding", "no geocoding provider configured", nil)

func (Disabled) Forward(context.Context, string) ([]ForwardResult, error) {
	return nil, errDisabled
}

func (Disabled) Reverse(context.Context, models.Coordinates) (*models.NamedLocation, error) {
	return nil, errDisabled
}
