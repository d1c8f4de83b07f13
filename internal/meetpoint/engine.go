// Package meetpoint computes a fair shared meeting point for a group of origins.
//
// The engine resolves the centroid of the origins, expands it into a grid of
// candidates, scores every candidate by travel time and commercial appeal, and
// returns the best candidates. External lookups (reverse geocoding and routing)
// are expected to be guarded by the caller; lookup failures are absorbed here
// with synthetic names and straight-line estimates.
package meetpoint

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"meetpoint/internal/distance"
	"meetpoint/internal/geo"
	"meetpoint/internal/geocoding"
	"meetpoint/internal/models"
)

// Algorithm is reported in every result
const Algorithm = "geometric-centroid+grid-search"

// Config holds the tunables of the engine
type Config struct {
	TopK            int
	GridSteps       []float64
	RequestTimeout  time.Duration
	MaxConcurrency  int
	CommercialAreas []models.CommercialArea
	RegionBonuses   []models.RegionBonus
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		TopK:            5,
		GridSteps:       geo.DefaultGridSteps,
		RequestTimeout:  20 * time.Second,
		MaxConcurrency:  8,
		CommercialAreas: DefaultCommercialAreas,
		RegionBonuses:   DefaultRegionBonuses,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if len(c.GridSteps) == 0 {
		c.GridSteps = d.GridSteps
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	if c.CommercialAreas == nil {
		c.CommercialAreas = d.CommercialAreas
	}
	if c.RegionBonuses == nil {
		c.RegionBonuses = d.RegionBonuses
	}
	return c
}

// Observer is notified about route resolution and finished computations
type Observer interface {
	RouteResolved(mode models.TransportMode, source string)
	ComputeFinished(mode models.TransportMode, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) RouteResolved(models.TransportMode, string)                 {}
func (nopObserver) ComputeFinished(models.TransportMode, time.Duration, error) {}

// Engine computes meeting points
type Engine struct {
	geocoder geocoding.Geocoder
	routes   distance.RouteEstimator
	fallback *distance.FallbackEstimator
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
	observer Observer
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		if tracer != nil {
			e.tracer = tracer
		}
	}
}

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithFallback replaces the straight-line estimator used when routing fails
func WithFallback(f *distance.FallbackEstimator) Option {
	return func(e *Engine) {
		if f != nil {
			e.fallback = f
		}
	}
}

// NewEngine builds an engine. geocoder and routes should already be guarded.
func NewEngine(geocoder geocoding.Geocoder, routes distance.RouteEstimator, cfg Config, opts ...Option) *Engine {
	if geocoder == nil {
		geocoder = geocoding.Disabled{}
	}
	if routes == nil {
		routes = distance.NewFallbackEstimator()
	}
	e := &Engine{
		geocoder: geocoder,
		routes:   routes,
		fallback: distance.NewFallbackEstimator(),
		cfg:      cfg.withDefaults(),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("meetpoint"),
		observer: nopObserver{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("engine")
	return e
}

// Config returns the effective configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// ComputeForRequest resolves request origins and computes the meeting point
func (e *Engine) ComputeForRequest(ctx context.Context, req models.MeetingPointRequest) (*models.MeetingPointResult, error) {
	mode, err := models.ParseTransportMode(req.TransportationType)
	if err != nil {
		return nil, err
	}
	origins, err := e.ResolveOrigins(ctx, req.Origins)
	if err != nil {
		return nil, err
	}
	return e.Compute(ctx, origins, mode)
}

// Compute finds the best meeting points for origins. Lookup failures and the
// request deadline degrade results but never fail the call.
func (e *Engine) Compute(ctx context.Context, origins []models.Coordinates, mode models.TransportMode) (*models.MeetingPointResult, error) {
	start := e.now()
	requestID := uuid.NewString()

	ctx, span := e.tracer.Start(ctx, "meetpoint.Compute", trace.WithAttributes(
		attribute.String("request.id", requestID),
		attribute.String("mode", string(mode)),
		attribute.Int("participants", len(origins)),
	))
	defer span.End()

	result, err := e.compute(ctx, requestID, origins, mode, start)
	elapsed := e.now().Sub(start)
	e.observer.ComputeFinished(mode, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("meeting point calculation failed",
			zap.String("request_id", requestID),
			zap.String("mode", string(mode)),
			zap.Int("participants", len(origins)),
			zap.Error(err))
		return nil, err
	}

	e.logger.Info("meeting point calculated",
		zap.String("request_id", requestID),
		zap.String("mode", string(mode)),
		zap.Int("participants", len(origins)),
		zap.Int("candidates", result.Meta.CandidateCount),
		zap.Int("estimated_routes", result.Meta.EstimatedRoutes),
		zap.Int64("elapsed_ms", result.Meta.ElapsedMs))
	return result, nil
}

func (e *Engine) compute(ctx context.Context, requestID string, origins []models.Coordinates, mode models.TransportMode, start time.Time) (*models.MeetingPointResult, error) {
	if len(origins) == 0 {
		return nil, models.NewError(models.KindInvalidInput, "meetpoint.compute", "at least one origin is required", nil)
	}
	for _, o := range origins {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}
	if _, err := models.ParseTransportMode(string(mode)); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	center, err := e.ResolveCenter(ctx, origins)
	if err != nil {
		return nil, asCalculationFailed(err)
	}

	candidates := e.GenerateCandidates(ctx, origins, center)
	scored := e.Score(ctx, candidates, origins, mode)

	ranked, err := Select(scored, e.cfg.TopK)
	if err != nil {
		return nil, asCalculationFailed(err)
	}

	realTime, estimated := countRouteSources(scored)
	optimal := ranked[0]

	return &models.MeetingPointResult{
		Optimal:    optimal,
		Candidates: ranked,
		Origins:    origins,
		Meta: models.ResultMeta{
			RequestID:        requestID,
			ParticipantCount: len(origins),
			Mode:             mode,
			ElapsedMs:        e.now().Sub(start).Milliseconds(),
			Algorithm:        Algorithm,
			FairnessScore:    FairnessScore(routeDurations(optimal.Routes)),
			CandidateCount:   len(scored),
			RealTimeRoutes:   realTime,
			EstimatedRoutes:  estimated,
		},
	}, nil
}

// asCalculationFailed keeps the structural kinds and wraps everything else
func asCalculationFailed(err error) error {
	if errors.Is(err, models.ErrInvalidInput) || errors.Is(err, models.ErrEmptyCandidateSet) {
		return err
	}
	return models.NewError(models.KindCalculationFailed, "meetpoint.compute", "meeting point calculation failed", err)
}

func countRouteSources(candidates []models.CandidateLocation) (realTime, estimated int) {
	for _, c := range candidates {
		for _, r := range c.Routes {
			if r.IsRealTime {
				realTime++
			} else {
				estimated++
			}
		}
	}
	return realTime, estimated
}

func routeDurations(routes []models.RouteEstimate) []float64 {
	out := make([]float64, len(routes))
	for i, r := range routes {
		out[i] = r.DurationMinutes
	}
	return out
}
