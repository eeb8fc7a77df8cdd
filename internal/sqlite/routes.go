package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"turf-assistant/internal/models"
)

type routeCacheRepository struct {
	store *Store
}

func (r *routeCacheRepository) Get(ctx context.Context, from, to models.Coordinate) (*models.BikeRoute, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT from_lat, from_lon, to_lat, to_lon, distance_meters, duration_ms, ascend, descend, points_json
	          FROM route_cache
	          WHERE from_lat = ? AND from_lon = ? AND to_lat = ? AND to_lon = ?`

	f, t := from.Rounded(), to.Rounded()

	var route models.BikeRoute
	var durationMs int64
	var pointsJSON string
	err := r.store.db.QueryRowContext(ctx, query, f.Lat, f.Lon, t.Lat, t.Lon).Scan(
		&route.From.Lat, &route.From.Lon,
		&route.To.Lat, &route.To.Lon,
		&route.DistanceMeters, &durationMs, &route.Ascend, &route.Descend, &pointsJSON,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route cache entry: %w", err)
	}

	route.Duration = time.Duration(durationMs) * time.Millisecond
	if err := json.Unmarshal([]byte(pointsJSON), &route.Points); err != nil {
		return nil, fmt.Errorf("failed to decode route points: %w", err)
	}

	return &route, nil
}

func (r *routeCacheRepository) Set(ctx context.Context, route *models.BikeRoute) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	points := route.Points
	if points == nil {
		points = []models.Coordinate{}
	}
	pointsJSON, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to encode route points: %w", err)
	}

	query := `INSERT OR REPLACE INTO route_cache
	          (from_lat, from_lon, to_lat, to_lon, distance_meters, duration_ms, ascend, descend, points_json)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	f, t := route.From.Rounded(), route.To.Rounded()
	_, err = r.store.db.ExecContext(ctx, query,
		f.Lat, f.Lon, t.Lat, t.Lon,
		route.DistanceMeters, route.Duration.Milliseconds(), route.Ascend, route.Descend, string(pointsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to set route cache entry: %w", err)
	}

	return nil
}

func (r *routeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, "DELETE FROM route_cache")
	if err != nil {
		return fmt.Errorf("failed to clear route cache: %w", err)
	}

	return nil
}
