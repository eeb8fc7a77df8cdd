package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"turf-assistant/internal/database"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "cache.db"
	schemaVersion     = 1
)

// timeLayout keeps the UTC offset so cached timestamps keep their wall clock
const timeLayout = time.RFC3339

// Store is a SQLite-based cache implementing database.DataStore
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	zoneRepo  database.ZoneCacheRepository
	visitRepo database.VisitCacheRepository
	routeRepo database.RouteCacheRepository
}

// New creates a new SQLite store at the specified path
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	log.Printf("Opening SQLite cache at: %s", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
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
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.zoneRepo = &zoneCacheRepository{store: store}
	store.visitRepo = &visitCacheRepository{store: store}
	store.routeRepo = &routeCacheRepository{store: store}

	return store, nil
}

// GetDBPath returns the current database file path
func (s *Store) GetDBPath() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// no version table yet
		return s.createSchema()
	}

	if version < schemaVersion {
		if _, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	-- One row per cached area listing; zones reference it
	CREATE TABLE IF NOT EXISTS zone_areas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		round_id INTEGER NOT NULL,
		ne_lat REAL NOT NULL,
		ne_lon REAL NOT NULL,
		sw_lat REAL NOT NULL,
		sw_lon REAL NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (round_id, ne_lat, ne_lon, sw_lat, sw_lon)
	);

	CREATE TABLE IF NOT EXISTS zones (
		area_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		zone_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		lat REAL NOT NULL,
		lon REAL NOT NULL,
		takeover_points INTEGER NOT NULL,
		points_per_hour INTEGER NOT NULL,
		created_at TEXT,
		total_takeovers INTEGER NOT NULL DEFAULT 0,
		owner_id INTEGER,
		owner_name TEXT,
		PRIMARY KEY (area_id, position),
		FOREIGN KEY (area_id) REFERENCES zone_areas(id) ON DELETE CASCADE
	);

	-- One row per scraped log, even when the log is empty
	CREATE TABLE IF NOT EXISTS visit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zone_name TEXT NOT NULL,
		round_id INTEGER NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (zone_name, round_id)
	);

	CREATE TABLE IF NOT EXISTS visit_records (
		log_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		holder TEXT NOT NULL,
		points INTEGER NOT NULL,
		duration_secs INTEGER NOT NULL,
		visited_at TEXT,
		PRIMARY KEY (log_id, position),
		FOREIGN KEY (log_id) REFERENCES visit_logs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS route_cache (
		from_lat REAL NOT NULL,
		from_lon REAL NOT NULL,
		to_lat REAL NOT NULL,
		to_lon REAL NOT NULL,
		distance_meters REAL NOT NULL,
		duration_ms INTEGER NOT NULL,
		ascend REAL NOT NULL DEFAULT 0,
		descend REAL NOT NULL DEFAULT 0,
		points_json TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (from_lat, from_lon, to_lat, to_lon)
	);

	CREATE INDEX IF NOT EXISTS idx_zones_name ON zones(name);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("SQLite schema initialized (version %d)", schemaVersion)
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		// Checkpoint WAL before closing
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repository accessors
func (s *Store) Zones() database.ZoneCacheRepository   { return s.zoneRepo }
func (s *Store) Visits() database.VisitCacheRepository { return s.visitRepo }
func (s *Store) Routes() database.RouteCacheRepository { return s.routeRepo }

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(timeLayout), Valid: true}
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s.String)
}
