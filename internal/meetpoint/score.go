package meetpoint

import (
	"context"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meetpoint/internal/models"
)

// Overall score weights
const (
	travelWeight     = 0.6
	commercialWeight = 0.4
	// minutesPenalty is the travel score lost per average minute
	minutesPenalty = 2.0
)

// Score fills travel time, commercial and overall scores for every candidate.
// One route lookup runs per (candidate, origin) pair. Pairs that fail, or that
// have not completed when ctx ends, use the straight-line estimate.
func (e *Engine) Score(ctx context.Context, candidates []models.CandidateLocation, origins []models.Coordinates, mode models.TransportMode) []models.CandidateLocation {
	ctx, span := e.tracer.Start(ctx, "meetpoint.Score", trace.WithAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("origins", len(origins)),
		attribute.String("mode", string(mode)),
	))
	defer span.End()

	routes := make([][]models.RouteEstimate, len(candidates))
	for i := range routes {
		routes[i] = make([]models.RouteEstimate, len(origins))
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrency)
	for ci := range candidates {
		dest := candidates[ci].Coordinates
		for oi, origin := range origins {
			g.Go(func() error {
				routes[ci][oi] = e.route(ctx, origin, dest, mode)
				return nil
			})
		}
	}
	_ = g.Wait()

	scored := make([]models.CandidateLocation, len(candidates))
	for ci, c := range candidates {
		avg := averageDuration(routes[ci])
		commercial := CommercialScore(c.Coordinates, e.cfg.CommercialAreas, e.cfg.RegionBonuses)

		c.Routes = routes[ci]
		c.AverageTravelTimeMinutes = avg
		c.CommercialScore = commercial
		c.OverallScore = OverallScore(avg, commercial)
		scored[ci] = c
	}
	return scored
}

// route looks up one pair and never fails
func (e *Engine) route(ctx context.Context, origin, dest models.Coordinates, mode models.TransportMode) models.RouteEstimate {
	if ctx.Err() == nil {
		est, err := e.routes.Estimate(ctx, origin, dest, mode)
		if err == nil && est != nil {
			e.observer.RouteResolved(mode, est.Source)
			return *est
		}
		if ctx.Err() == nil {
			e.logger.Debug("route lookup failed, using estimate",
				zap.String("origin", origin.String()),
				zap.String("dest", dest.String()),
				zap.String("mode", string(mode)),
				zap.Error(err))
		}
	}

	est := e.fallback.Fallback(origin, dest, mode)
	e.observer.RouteResolved(mode, est.Source)
	return est
}

func averageDuration(routes []models.RouteEstimate) float64 {
	if len(routes) == 0 {
		return 0
	}
	var total float64
	for _, r := range routes {
		total += r.DurationMinutes
	}
	return total / float64(len(routes))
}

// OverallScore combines average travel minutes and commercial appeal into [0, 100]
func OverallScore(avgMinutes, commercial float64) float64 {
	travel := clamp(100-minutesPenalty*avgMinutes, 0, 100)
	return clamp(travelWeight*travel+commercialWeight*commercial, 0, 100)
}

// FairnessScore is 100 when every participant travels equally long and falls
// with the coefficient of variation of the durations.
func FairnessScore(durations []float64) float64 {
	if len(durations) < 2 {
		return 100
	}
	var sum float64
	for _, d := range durations {
		sum += d
	}
	mean := sum / float64(len(durations))
	if mean <= 0 {
		return 100
	}
	var variance float64
	for _, d := range durations {
		variance += (d - mean) * (d - mean)
	}
	stddev := math.Sqrt(variance / float64(len(durations)))
	return clamp(100*(1-stddev/mean), 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
