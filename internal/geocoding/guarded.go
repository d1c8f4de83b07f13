package geocoding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"meetpoint/internal/cache"
	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

// Default per-operation timeouts
const (
	DefaultForwardTimeout = 10 * time.Second
	DefaultReverseTimeout = 5 * time.Second
)

// GuardedConfig configures a Guarded geocoder
type GuardedConfig struct {
	Breaker        *resilience.CircuitBreaker
	Retry          resilience.RetryPolicy
	ForwardTimeout time.Duration
	ReverseTimeout time.Duration
	// Places caches reverse lookups; Addresses caches forward lookups. Either may be nil.
	Places    cache.Store[models.NamedLocation]
	Addresses cache.Store[[]ForwardResult]
	Logger    *zap.Logger
	Observer  resilience.Observer
}

// Guarded wraps a Geocoder with cache-by-key, retries and a shared circuit breaker
type Guarded struct {
	inner     Geocoder
	forward   *resilience.Guard
	reverse   *resilience.Guard
	places    cache.Store[models.NamedLocation]
	addresses cache.Store[[]ForwardResult]
	logger    *zap.Logger
}

// IsFailure reports whether a geocoding error should count against the breaker.
// A NotFound answer or a rate-limiter wait says nothing about upstream health.
func IsFailure(err error) bool {
	return !errors.Is(err, models.ErrNotFound) && !errors.Is(err, ErrRateLimitWait)
}

func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimitWait) {
		return false
	}
	return resilience.IsRetryable(err)
}

// NewGuarded wraps inner. The breaker is owned by the caller and may be shared.
func NewGuarded(inner Geocoder, cfg GuardedConfig) *Guarded {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = DefaultForwardTimeout
	}
	if cfg.ReverseTimeout <= 0 {
		cfg.ReverseTimeout = DefaultReverseTimeout
	}
	retry := cfg.Retry
	if retry.Retryable == nil {
		retry.Retryable = isRetryable
	}

	newGuard := func(timeout time.Duration) *resilience.Guard {
		return &resilience.Guard{
			Name:      "geocoding",
			Breaker:   cfg.Breaker,
			Retry:     retry,
			Timeout:   timeout,
			IsFailure: IsFailure,
			Logger:    logger,
			Observer:  cfg.Observer,
		}
	}

	return &Guarded{
		inner:     inner,
		forward:   newGuard(cfg.ForwardTimeout),
		reverse:   newGuard(cfg.ReverseTimeout),
		places:    cfg.Places,
		addresses: cfg.Addresses,
		logger:    logger,
	}
}

// PlaceKey is the cache key for a reverse lookup
func PlaceKey(point models.Coordinates) string {
	return fmt.Sprintf("place:%.5f,%.5f", models.RoundCoordinate(point.Lat), models.RoundCoordinate(point.Lng))
}

// AddressKey is the cache key for a forward lookup
func AddressKey(address string) string {
	return "geocode:" + strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func (g *Guarded) Forward(ctx context.Context, address string) ([]ForwardResult, error) {
	key := AddressKey(address)
	if g.addresses != nil {
		if cached, ok, err := g.addresses.Get(ctx, key); err == nil && ok {
			return cached, nil
		}
	}

	results, err := resilience.Call(ctx, g.forward, "forward", func(ctx context.Context) ([]ForwardResult, error) {
		return g.inner.Forward(ctx, address)
	})
	if err != nil {
		return nil, err
	}

	if g.addresses != nil {
		if err := g.addresses.Set(ctx, key, results); err != nil {
			g.logger.Warn("geocode cache write failed", zap.String("address", address), zap.Error(err))
		}
	}
	return results, nil
}

func (g *Guarded) Reverse(ctx context.Context, point models.Coordinates) (*models.NamedLocation, error) {
	key := PlaceKey(point)
	if g.places != nil {
		if cached, ok, err := g.places.Get(ctx, key); err == nil && ok {
			cached.Coordinates = point
			return &cached, nil
		}
	}

	loc, err := resilience.Call(ctx, g.reverse, "reverse", func(ctx context.Context) (*models.NamedLocation, error) {
		return g.inner.Reverse(ctx, point)
	})
	if err != nil {
		return nil, err
	}

	if g.places != nil {
		if err := g.places.Set(ctx, key, *loc); err != nil {
			g.logger.Warn("place cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return loc, nil
}
