package distance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetpoint/internal/cache"
	"meetpoint/internal/models"
	"meetpoint/internal/resilience"
)

type countingEstimator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *countingEstimator) Estimate(ctx context.Context, origin, dest models.Coordinates, mode models.TransportMode) (*models.RouteEstimate, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &models.RouteEstimate{DurationMinutes: 12, DistanceMeters: 3000, IsRealTime: true, Source: models.SourceOSRM}, nil
}

func noSleepRetry() resilience.RetryPolicy {
	p := resilience.DefaultRetryPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func TestGuardedEstimateUsesRouteCache(t *testing.T) {
	inner := &countingEstimator{}
	routes := cache.NewMemory[models.RouteEstimate](time.Minute)
	defer routes.Close()

	g := NewGuarded(inner, GuardedConfig{Retry: noSleepRetry(), Routes: routes})

	first, err := g.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.NoError(t, err)
	second, err := g.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, inner.calls)

	_, err = g.Estimate(context.Background(), gangnam, jamsil, models.ModeWalk)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "mode is part of the cache key")
}

func TestGuardedRetriesTransientFailures(t *testing.T) {
	inner := &countingEstimator{err: &ErrDistanceCalculationFailed{
		Reason: "HTTP 503",
		Err:    &resilience.HTTPStatusError{StatusCode: 503},
	}}
	g := NewGuarded(inner, GuardedConfig{Retry: noSleepRetry()})

	_, err := g.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUnavailable))
	assert.Equal(t, 3, inner.calls)
}

func TestGuardedUnsupportedModeDoesNotTripBreaker(t *testing.T) {
	inner := &countingEstimator{err: fmt.Errorf("osrm: %w", ErrUnsupportedMode)}
	breaker := resilience.NewCircuitBreaker("routing", resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	g := NewGuarded(inner, GuardedConfig{Breaker: breaker, Retry: noSleepRetry()})

	for i := 0; i < 3; i++ {
		_, err := g.Estimate(context.Background(), gangnam, jamsil, models.ModePublicTransport)
		assert.True(t, errors.Is(err, ErrUnsupportedMode))
	}
	assert.Equal(t, resilience.StateClosed, breaker.State())
	assert.Equal(t, 3, inner.calls)
}

func TestGuardedOpenBreakerRejectsWithoutCalling(t *testing.T) {
	inner := &countingEstimator{err: errors.New("connection reset")}
	breaker := resilience.NewCircuitBreaker("routing", resilience.BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	g := NewGuarded(inner, GuardedConfig{Breaker: breaker, Retry: noSleepRetry()})

	for i := 0; i < 2; i++ {
		_, err := g.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, breaker.State())
	callsBefore := inner.calls

	_, err := g.Estimate(context.Background(), gangnam, jamsil, models.ModeCar)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, callsBefore, inner.calls)
}
