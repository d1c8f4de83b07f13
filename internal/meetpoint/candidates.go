package meetpoint

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"meetpoint/internal/geo"
	"meetpoint/internal/models"
)

// GenerateCandidates returns center as candidate 0 followed by the grid cells around it.
// Each cell is named independently; one failed lookup only affects that cell.
func (e *Engine) GenerateCandidates(ctx context.Context, origins []models.Coordinates, center models.NamedLocation) []models.CandidateLocation {
	cells := geo.GridOffsets(center.Coordinates, e.cfg.GridSteps, false)

	ctx, span := e.tracer.Start(ctx, "meetpoint.GenerateCandidates", trace.WithAttributes(
		attribute.Int("candidates", len(cells)+1),
		attribute.Int("origins", len(origins)),
	))
	defer span.End()

	candidates := make([]models.CandidateLocation, len(cells)+1)
	candidates[0] = models.CandidateLocation{NamedLocation: center, Index: 0}

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, cell := range cells {
		idx := i + 1
		g.Go(func() error {
			candidates[idx] = models.CandidateLocation{
				NamedLocation: e.nameLocation(ctx, cell, candidateAddressFormat, candidatePlaceName),
				Index:         idx,
			}
			return nil
		})
	}
	_ = g.Wait()

	return candidates
}
