package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"meetpoint/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), DefaultDBFileName), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", DefaultDBFileName)

	store, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.HealthCheck(context.Background()))
	require.NoError(t, store.Close())

	store, err = New(path, nil)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, path, store.Path())
}

func TestRouteCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewRouteCache(newTestStore(t), time.Hour)

	_, ok, err := c.Get(ctx, "route:missing")
	require.NoError(t, err)
	assert.False(t, ok)

	est := models.RouteEstimate{
		DurationMinutes: 12.5,
		DistanceMeters:  4200,
		Fare:            1500,
		TrafficState:    models.TrafficSlow,
		IsRealTime:      true,
		Source:          models.SourceOSRM,
	}
	require.NoError(t, c.Set(ctx, "route:a", est))

	got, ok, err := c.Get(ctx, "route:a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, est, got)

	// replace keeps a single row
	est.DurationMinutes = 13
	require.NoError(t, c.Set(ctx, "route:a", est))
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Clear(ctx))
	n, err = c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRouteCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewRouteCache(newTestStore(t), time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "route:old", models.RouteEstimate{Source: models.SourceEstimate, TrafficState: models.TrafficUnknown}))

	now = now.Add(2 * time.Hour)
	_, ok, err := c.Get(ctx, "route:old")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestPlaceCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewPlaceCache(newTestStore(t), 0)

	loc := models.NamedLocation{
		Coordinates: models.Coordinates{Lat: 37.4979, Lng: 127.0276},
		Address:     "Gangnam-daero 396, Seoul",
		PlaceName:   "Gangnam Station",
	}
	require.NoError(t, c.Set(ctx, "place:37.49790,127.02760", loc))

	got, ok, err := c.Get(ctx, "place:37.49790,127.02760")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, loc, got)

	removed, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}
