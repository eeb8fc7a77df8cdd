package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"turf-assistant/internal/database"
	"turf-assistant/internal/models"
)

type visitCacheRepository struct {
	store *Store
}

func (r *visitCacheRepository) Get(ctx context.Context, zoneName string, roundID int) ([]models.VisitRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var logID int64
	err := r.store.db.QueryRowContext(ctx,
		`SELECT id FROM visit_logs WHERE zone_name = ? AND round_id = ?`,
		zoneName, roundID,
	).Scan(&logID)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit log: %w", err)
	}

	query := `SELECT holder, points, duration_secs, visited_at
	          FROM visit_records
	          WHERE log_id = ?
	          ORDER BY position`

	rows, err := r.store.db.QueryContext(ctx, query, logID)
	if err != nil {
		return nil, fmt.Errorf("failed to query visit records: %w", err)
	}
	defer rows.Close()

	records := []models.VisitRecord{}
	for rows.Next() {
		var v models.VisitRecord
		var durationSecs int64
		var visitedAt sql.NullString
		if err := rows.Scan(&v.Holder, &v.Points, &durationSecs, &visitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan visit record: %w", err)
		}
		v.Duration = time.Duration(durationSecs) * time.Second
		if v.Timestamp, err = parseTime(visitedAt); err != nil {
			return nil, fmt.Errorf("invalid visited_at for zone %s: %w", zoneName, err)
		}
		records = append(records, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visit records: %w", err)
	}

	return records, nil
}

func (r *visitCacheRepository) Set(ctx context.Context, zoneName string, roundID int, records []models.VisitRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM visit_records WHERE log_id IN (SELECT id FROM visit_logs WHERE zone_name = ? AND round_id = ?)`,
		zoneName, roundID); err != nil {
		return fmt.Errorf("failed to delete cached visits: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM visit_logs WHERE zone_name = ? AND round_id = ?`,
		zoneName, roundID); err != nil {
		return fmt.Errorf("failed to delete cached visit log: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO visit_logs (zone_name, round_id) VALUES (?, ?)`, zoneName, roundID)
	if err != nil {
		return fmt.Errorf("failed to insert visit log: %w", err)
	}
	logID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get visit log ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO visit_records (log_id, position, holder, points, duration_secs, visited_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range records {
		if _, err := stmt.ExecContext(ctx, logID, i, v.Holder, v.Points,
			int64(v.Duration/time.Second), formatTime(v.Timestamp)); err != nil {
			return fmt.Errorf("failed to insert visit record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *visitCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM visit_records"); err != nil {
		return fmt.Errorf("failed to clear visit cache: %w", err)
	}
	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM visit_logs"); err != nil {
		return fmt.Errorf("failed to clear visit cache: %w", err)
	}

	return nil
}
