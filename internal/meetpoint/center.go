package meetpoint

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"meetpoint/internal/geo"
	"meetpoint/internal/models"
)

// Synthetic names used when reverse geocoding fails
const (
	centerAddressFormat    = "center point (%.6f, %.6f)"
	centerPlaceName        = "geometric center"
	candidateAddressFormat = "recommended point (%.6f, %.6f)"
	candidatePlaceName     = "meeting point"
)

// ResolveCenter returns the arithmetic centroid of origins with a best-effort address
func (e *Engine) ResolveCenter(ctx context.Context, origins []models.Coordinates) (models.NamedLocation, error) {
	centroid, ok := geo.Centroid(origins)
	if !ok {
		return models.NamedLocation{}, models.NewError(models.KindInvalidInput, "meetpoint.center", "at least one origin is required", nil)
	}

	ctx, span := e.tracer.Start(ctx, "meetpoint.ResolveCenter", trace.WithAttributes(
		attribute.Float64("center.lat", centroid.Lat),
		attribute.Float64("center.lng", centroid.Lng),
	))
	defer span.End()

	return e.nameLocation(ctx, centroid, centerAddressFormat, centerPlaceName), nil
}

// nameLocation reverse-geocodes point and falls back to a synthetic name on any failure
func (e *Engine) nameLocation(ctx context.Context, point models.Coordinates, addressFormat, placeName string) models.NamedLocation {
	loc, err := e.geocoder.Reverse(ctx, point)
	if err == nil && loc != nil && loc.Address != "" {
		named := *loc
		named.Coordinates = point
		if named.PlaceName == "" {
			named.PlaceName = placeName
		}
		return named
	}

	e.logger.Debug("reverse geocoding failed, using coordinates",
		zap.Float64("lat", point.Lat),
		zap.Float64("lng", point.Lng),
		zap.Error(err))
	return models.NamedLocation{
		Coordinates: point,
		Address:     fmt.Sprintf(addressFormat, point.Lat, point.Lng),
		PlaceName:   placeName,
	}
}
