package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ShayCichocki/intentflow/internal/slots"
)

// RecordFilling appends one slot-filling record.
func (db *DB) RecordFilling(ctx context.Context, r slots.Record) error {
	entities, err := json.Marshal(r.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO filling_history (user_id, intent_type, entities_json, ts)
		VALUES (?, ?, ?, ?)
	`, r.UserID, r.IntentType, string(entities), formatTime(ts))
	if err != nil {
		return fmt.Errorf("insert filling history: %w", err)
	}
	return nil
}

// RecentFillings returns up to limit records for the user and intent type,
// newest first. An empty intentType matches every intent.
func (db *DB) RecentFillings(ctx context.Context, userID, intentType string, limit int) ([]slots.Record, error) {
	if limit <= 0 {
		limit = 20
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, intent_type, entities_json, ts
		FROM filling_history
		WHERE user_id = ? AND (? = '' OR intent_type = ?)
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, userID, intentType, intentType, limit)
	if err != nil {
		return nil, fmt.Errorf("query filling history: %w", err)
	}
	defer rows.Close()

	var out []slots.Record
	for rows.Next() {
		var (
			r        slots.Record
			entities string
			ts       string
		)
		if err := rows.Scan(&r.UserID, &r.IntentType, &entities, &ts); err != nil {
			return nil, fmt.Errorf("scan filling history: %w", err)
		}
		if err := json.Unmarshal([]byte(entities), &r.Entities); err != nil {
			return nil, fmt.Errorf("unmarshal entities: %w", err)
		}
		if r.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("parse timestamp: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PurgeFillingHistory deletes records older than olderThan and returns the
// number removed.
func (db *DB) PurgeFillingHistory(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec(`DELETE FROM filling_history WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge filling history: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
