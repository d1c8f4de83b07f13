package distance

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"meetpoint/internal/cache"
	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

// DefaultRouteTimeout bounds each routing attempt
const DefaultRouteTimeout = 10 * time.Second

// GuardedConfig configures a Guarded route estimator
type GuardedConfig struct {
	Breaker  *resilience.CircuitBreaker
	Retry    resilience.RetryPolicy
	Timeout  time.Duration
	Routes   cache.Store[models.RouteEstimate] // may be nil
	Logger   *zap.Logger
	Observer resilience.Observer
}

// Guarded wraps a RouteEstimator with cache-by-key, retries and the routing breaker.
// It never falls back itself; callers decide what a failed lookup means.
type Guarded struct {
	inner  RouteEstimator
	guard  *resilience.Guard
	routes cache.Store[models.RouteEstimate]
	logger *zap.Logger
}

// IsFailure reports whether a routing error counts against the breaker.
// An unsupported mode is a property of the provider, not a sign of ill health.
func IsFailure(err error) bool {
	return !errors.Is(err, ErrUnsupportedMode)
}

// NewGuarded wraps inner. The breaker is owned by the caller.
func NewGuarded(inner RouteEstimator, cfg GuardedConfig) *Guarded {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRouteTimeout
	}
	return &Guarded{
		inner: inner,
		guard: &resilience.Guard{
			Name:      "routing",
			Breaker:   cfg.Breaker,
			Retry:     cfg.Retry,
			Timeout:   cfg.Timeout,
			IsFailure: IsFailure,
			Logger:    logger,
			Observer:  cfg.Observer,
		},
		routes: cfg.Routes,
		logger: logger,
	}
}

func (g *Guarded) Estimate(ctx context.Context, origin, dest models.Coordinates, mode models.TransportMode) (*models.RouteEstimate, error) {
	key := RouteKey(origin, dest, mode)
	if g.routes != nil {
		if cached, ok, err := g.routes.Get(ctx, key); err == nil && ok {
			return &cached, nil
		}
	}

	est, err := resilience.Call(ctx, g.guard, "route", func(ctx context.Context) (*models.RouteEstimate, error) {
		return g.inner.Estimate(ctx, origin, dest, mode)
	})
	if err != nil {
		return nil, err
	}

	if g.routes != nil {
		if err := g.routes.Set(ctx, key, *est); err != nil {
			g.logger.Warn("route cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return est, nil
}
