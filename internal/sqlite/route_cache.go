package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meetpoint/internal/models"
)

// RouteCache persists route estimates keyed by origin, destination and mode
type RouteCache struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

type routeRow struct {
	CacheKey        string  `db:"cache_key"`
	DurationMinutes float64 `db:"duration_minutes"`
	DistanceMeters  float64 `db:"distance_meters"`
	Fare            int     `db:"fare"`
	TollFare        int     `db:"toll_fare"`
	TrafficState    string  `db:"traffic_state"`
	IsRealTime      bool    `db:"is_real_time"`
	Source          string  `db:"source"`
	CachedAt        int64   `db:"cached_at"`
}

// NewRouteCache returns a route cache whose entries expire after ttl
func NewRouteCache(store *Store, ttl time.Duration) *RouteCache {
	return &RouteCache{store: store, ttl: ttl, now: time.Now}
}

func (c *RouteCache) cutoff() int64 {
	if c.ttl <= 0 {
		return 0
	}
	return c.now().Add(-c.ttl).Unix()
}

func (c *RouteCache) Get(ctx context.Context, key string) (models.RouteEstimate, bool, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	query := `SELECT cache_key, duration_minutes, distance_meters, fare, toll_fare,
	                 traffic_state, is_real_time, source, cached_at
	          FROM route_cache
	          WHERE cache_key = ? AND cached_at >= ?`

	var row routeRow
	err := c.store.db.GetContext(ctx, &row, query, key, c.cutoff())
	if errors.Is(err, sql.ErrNoRows) {
		return models.RouteEstimate{}, false, nil
	}
	if err != nil {
		return models.RouteEstimate{}, false, fmt.Errorf("failed to get route cache entry: %w", err)
	}

	return models.RouteEstimate{
		DurationMinutes: row.DurationMinutes,
		DistanceMeters:  row.DistanceMeters,
		Fare:            row.Fare,
		TollFare:        row.TollFare,
		TrafficState:    models.TrafficState(row.TrafficState),
		IsRealTime:      row.IsRealTime,
		Source:          row.Source,
	}, true, nil
}

func (c *RouteCache) Set(ctx context.Context, key string, est models.RouteEstimate) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	query := `INSERT OR REPLACE INTO route_cache
	          (cache_key, duration_minutes, distance_meters, fare, toll_fare,
	           traffic_state, is_real_time, source, cached_at)
	          VALUES (:cache_key, :duration_minutes, :distance_meters, :fare, :toll_fare,
	                  :traffic_state, :is_real_time, :source, :cached_at)`

	row := routeRow{
		CacheKey:        key,
		DurationMinutes: est.DurationMinutes,
		DistanceMeters:  est.DistanceMeters,
		Fare:            est.Fare,
		TollFare:        est.TollFare,
		TrafficState:    string(est.TrafficState),
		IsRealTime:      est.IsRealTime,
		Source:          est.Source,
		CachedAt:        c.now().Unix(),
	}
	if _, err := c.store.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to set route cache entry: %w", err)
	}
	return nil
}

// Purge deletes expired entries and reports how many were removed
func (c *RouteCache) Purge(ctx context.Context) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	res, err := c.store.db.ExecContext(ctx, "DELETE FROM route_cache WHERE cached_at < ?", c.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to purge route cache: %w", err)
	}
	return res.RowsAffected()
}

func (c *RouteCache) Clear(ctx context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	if _, err := c.store.db.ExecContext(ctx, "DELETE FROM route_cache"); err != nil {
		return fmt.Errorf("failed to clear route cache: %w", err)
	}
	return nil
}

// Count returns the number of stored entries including expired ones
func (c *RouteCache) Count(ctx context.Context) (int, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	var n int
	if err := c.store.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM route_cache"); err != nil {
		return 0, fmt.Errorf("failed to count route cache: %w", err)
	}
	return n, nil
}
