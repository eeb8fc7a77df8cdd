package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"turf-assistant/internal/database"
	"turf-assistant/internal/models"
)

type zoneCacheRepository struct {
	store *Store
}

func areaKey(box models.BoundingBox) (neLat, neLon, swLat, swLon float64) {
	ne, sw := box.NorthEast.Rounded(), box.SouthWest.Rounded()
	return ne.Lat, ne.Lon, sw.Lat, sw.Lon
}

func (r *zoneCacheRepository) Get(ctx context.Context, box models.BoundingBox, roundID int) ([]models.Zone, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	neLat, neLon, swLat, swLon := areaKey(box)

	var areaID int64
	err := r.store.db.QueryRowContext(ctx,
		`SELECT id FROM zone_areas
		 WHERE round_id = ? AND ne_lat = ? AND ne_lon = ? AND sw_lat = ? AND sw_lon = ?`,
		roundID, neLat, neLon, swLat, swLon,
	).Scan(&areaID)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone area: %w", err)
	}

	query := `SELECT zone_id, name, lat, lon, takeover_points, points_per_hour,
	                 created_at, total_takeovers, owner_id, owner_name
	          FROM zones
	          WHERE area_id = ?
	          ORDER BY position`

	rows, err := r.store.db.QueryContext(ctx, query, areaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	zones := []models.Zone{}
	for rows.Next() {
		var z models.Zone
		var createdAt, ownerName sql.NullString
		var ownerID sql.NullInt64
		if err := rows.Scan(
			&z.ID, &z.Name, &z.Coords.Lat, &z.Coords.Lon, &z.TakeoverPoints, &z.PointsPerHour,
			&createdAt, &z.TotalTakeovers, &ownerID, &ownerName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		if z.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("invalid created_at for zone %s: %w", z.Name, err)
		}
		if ownerID.Valid {
			z.CurrentOwner = &models.User{ID: ownerID.Int64, Name: ownerName.String}
		}
		zones = append(zones, z)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zones: %w", err)
	}

	return zones, nil
}

func (r *zoneCacheRepository) Set(ctx context.Context, box models.BoundingBox, roundID int, zones []models.Zone) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	neLat, neLon, swLat, swLon := areaKey(box)
	match := `round_id = ? AND ne_lat = ? AND ne_lon = ? AND sw_lat = ? AND sw_lon = ?`

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM zones WHERE area_id IN (SELECT id FROM zone_areas WHERE `+match+`)`,
		roundID, neLat, neLon, swLat, swLon); err != nil {
		return fmt.Errorf("failed to delete cached zones: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM zone_areas WHERE `+match,
		roundID, neLat, neLon, swLat, swLon); err != nil {
		return fmt.Errorf("failed to delete cached area: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO zone_areas (round_id, ne_lat, ne_lon, sw_lat, sw_lon) VALUES (?, ?, ?, ?, ?)`,
		roundID, neLat, neLon, swLat, swLon)
	if err != nil {
		return fmt.Errorf("failed to insert zone area: %w", err)
	}
	areaID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get area ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO zones (area_id, position, zone_id, name, lat, lon, takeover_points, points_per_hour,
		                    created_at, total_takeovers, owner_id, owner_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, z := range zones {
		var ownerID sql.NullInt64
		var ownerName sql.NullString
		if z.CurrentOwner != nil {
			ownerID = sql.NullInt64{Int64: z.CurrentOwner.ID, Valid: true}
			ownerName = sql.NullString{String: z.CurrentOwner.Name, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, areaID, i, z.ID, z.Name, z.Coords.Lat, z.Coords.Lon,
			z.TakeoverPoints, z.PointsPerHour, formatTime(z.CreatedAt), z.TotalTakeovers,
			ownerID, ownerName); err != nil {
			return fmt.Errorf("failed to insert zone %s: %w", z.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *zoneCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM zones"); err != nil {
		return fmt.Errorf("failed to clear zone cache: %w", err)
	}
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM zone_areas"); err != nil {
		return fmt.Errorf("failed to clear zone cache: %w", err)
	}

	return nil
}
