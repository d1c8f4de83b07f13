package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"meetpoint/internal/models"
)

// PlaceCache persists reverse geocoding results keyed by rounded coordinate
type PlaceCache struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

type placeRow struct {
	CacheKey  string  `db:"cache_key"`
	Lat       float64 `db:"lat"`
	Lng       float64 `db:"lng"`
	Address   string  `db:"address"`
	PlaceName string  `db:"place_name"`
	CachedAt  int64   `db:"cached_at"`
}

// NewPlaceCache returns a place cache whose entries expire after ttl
func NewPlaceCache(store *Store, ttl time.Duration) *PlaceCache {
	return &PlaceCache{store: store, ttl: ttl, now: time.Now}
}

func (c *PlaceCache) cutoff() int64 {
	if c.ttl <= 0 {
		return 0
	}
	return c.now().Add(-c.ttl).Unix()
}

func (c *PlaceCache) Get(ctx context.Context, key string) (models.NamedLocation, bool, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	var row placeRow
	err := c.store.db.GetContext(ctx, &row,
		`SELECT cache_key, lat, lng, address, place_name, cached_at
		 FROM place_cache WHERE cache_key = ? AND cached_at >= ?`, key, c.cutoff())
	if errors.Is(err, sql.ErrNoRows) {
		return models.NamedLocation{}, false, nil
	}
	if err != nil {
		return models.NamedLocation{}, false, fmt.Errorf("failed to get place cache entry: %w", err)
	}

	return models.NamedLocation{
		Coordinates: models.Coordinates{Lat: row.Lat, Lng: row.Lng},
		Address:     row.Address,
		PlaceName:   row.PlaceName,
	}, true, nil
}

func (c *PlaceCache) Set(ctx context.Context, key string, loc models.NamedLocation) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	row := placeRow{
		CacheKey:  key,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		Address:   loc.Address,
		PlaceName: loc.PlaceName,
		CachedAt:  c.now().Unix(),
	}
	_, err := c.store.db.NamedExecContext(ctx,
		`INSERT OR REPLACE INTO place_cache (cache_key, lat, lng, address, place_name, cached_at)
		 VALUES (:cache_key, :lat, :lng, :address, :place_name, :cached_at)`, row)
	if err != nil {
		return fmt.Errorf("failed to set place cache entry: %w", err)
	}
	return nil
}

// Purge deletes expired entries and reports how many were removed
func (c *PlaceCache) Purge(ctx context.Context) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	res, err := c.store.db.ExecContext(ctx, "DELETE FROM place_cache WHERE cached_at < ?", c.cutoff())
	if err != nil {
		return 0, fmt.Errorf("failed to purge place cache: %w", err)
	}
	return res.RowsAffected()
}
