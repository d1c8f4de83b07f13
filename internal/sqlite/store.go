package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "meetpoint-cache.db"
	schemaVersion     = 1
)

// Store is a SQLite database holding the persistent lookup caches
type Store struct {
	db     *sqlx.DB
	dbPath string
	mu     sync.RWMutex
	logger *zap.Logger
}

// New opens (or creates) the SQLite store at dbPath
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	logger.Info("opening sqlite cache", zap.String("path", dbPath))

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// writes are serialised by mu; one connection keeps pragmas consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	if err := s.db.Get(&version, "SELECT version FROM schema_version LIMIT 1"); err != nil {
		return s.createSchema()
	}
	if version < schemaVersion {
		_, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion)
		return err
	}
	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	CREATE TABLE IF NOT EXISTS route_cache (
		cache_key TEXT PRIMARY KEY,
		duration_minutes REAL NOT NULL,
		distance_meters REAL NOT NULL,
		fare INTEGER NOT NULL DEFAULT 0,
		toll_fare INTEGER NOT NULL DEFAULT 0,
		traffic_state TEXT NOT NULL,
		is_real_time INTEGER NOT NULL DEFAULT 0,
		source TEXT NOT NULL,
		cached_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS place_cache (
		cache_key TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		address TEXT NOT NULL,
		place_name TEXT NOT NULL DEFAULT '',
		cached_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_route_cache_cached_at ON route_cache(cached_at);
	CREATE INDEX IF NOT EXISTS idx_place_cache_cached_at ON place_cache(cached_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Info("sqlite schema initialized", zap.Int("version", schemaVersion))
	return nil
}

// Close checkpoints the WAL and closes the database
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
