package meetpoint

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"meetpoint/internal/models"
)

// ResolveOrigins turns caller-supplied origins into coordinates. Origins with both
// coordinates are used as given; address-only origins are forward geocoded and the
// first result wins. There is no fallback here, so geocoding failures are returned.
func (e *Engine) ResolveOrigins(ctx context.Context, reqs []models.OriginRequest) ([]models.Coordinates, error) {
	if len(reqs) == 0 {
		return nil, models.NewError(models.KindInvalidInput, "meetpoint.origins", "at least one origin is required", nil)
	}

	origins := make([]models.Coordinates, len(reqs))
	for i, req := range reqs {
		point, err := e.resolveOrigin(ctx, i, req)
		if err != nil {
			return nil, err
		}
		origins[i] = point
	}
	return origins, nil
}

func (e *Engine) resolveOrigin(ctx context.Context, i int, req models.OriginRequest) (models.Coordinates, error) {
	op := fmt.Sprintf("meetpoint.origins[%d]", i)

	if req.HasCoordinates() {
		point := models.Coordinates{Lat: *req.Latitude, Lng: *req.Longitude}
		if err := point.Validate(); err != nil {
			return models.Coordinates{}, models.NewError(models.KindInvalidInput, op, "invalid coordinates", err)
		}
		return point, nil
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		return models.Coordinates{}, models.NewError(models.KindInvalidInput, op, "either coordinates or an address is required", nil)
	}

	results, err := e.geocoder.Forward(ctx, address)
	if err != nil {
		kind := models.KindOf(err)
		if kind != models.KindNotFound {
			kind = models.KindUnavailable
		}
		e.logger.Warn("origin geocoding failed", zap.String("address", address), zap.Error(err))
		return models.Coordinates{}, models.NewError(kind, op, "could not geocode "+address, err)
	}
	if len(results) == 0 {
		return models.Coordinates{}, models.NewError(models.KindNotFound, op, "no results for "+address, nil)
	}

	point := results[0].Coords
	if err := point.Validate(); err != nil {
		return models.Coordinates{}, models.NewError(models.KindNotFound, op, "geocoder returned an invalid point", nil)
	}
	e.logger.Debug("origin geocoded",
		zap.String("address", address),
		zap.Float64("lat", point.Lat),
		zap.Float64("lng", point.Lng))
	return point, nil
}
