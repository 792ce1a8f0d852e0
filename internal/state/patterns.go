package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/intentflow/internal/decompose"
)

// PatternRecord is a stored decomposition pattern with usage data.
type PatternRecord struct {
	decompose.Pattern
	Hits       int
	CreatedAt  time.Time
	LastUsedAt *time.Time
}

// FindPattern returns the pattern stored under signature and bumps its hit
// count. A miss returns nil, nil.
func (db *DB) FindPattern(ctx context.Context, signature string) (*decompose.Pattern, error) {
	var found *decompose.Pattern
	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		var (
			p        decompose.Pattern
			subtasks string
		)
		err := tx.QueryRowContext(ctx, `
			SELECT signature, task_type, subtasks_json
			FROM decomposition_patterns WHERE signature = ?
		`, signature).Scan(&p.Signature, &p.TaskType, &subtasks)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("query pattern: %w", err)
		}
		if err := json.Unmarshal([]byte(subtasks), &p.Subtasks); err != nil {
			return fmt.Errorf("unmarshal subtasks: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE decomposition_patterns SET hits = hits + 1, last_used_at = ? WHERE signature = ?
		`, formatTime(time.Now()), signature); err != nil {
			return fmt.Errorf("update pattern hits: %w", err)
		}
		found = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// SavePattern inserts or replaces the pattern for its signature, keeping
// the hit count of an existing row.
func (db *DB) SavePattern(ctx context.Context, p decompose.Pattern) error {
	if p.Signature == "" {
		return errors.New("pattern signature is required")
	}
	subtasks, err := json.Marshal(p.Subtasks)
	if err != nil {
		return fmt.Errorf("marshal subtasks: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO decomposition_patterns (signature, task_type, subtasks_json, hits, created_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT(signature) DO UPDATE SET
			task_type = excluded.task_type,
			subtasks_json = excluded.subtasks_json
	`, p.Signature, p.TaskType, string(subtasks), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save pattern: %w", err)
	}
	return nil
}

// ListPatterns returns stored patterns, most used first.
func (db *DB) ListPatterns(ctx context.Context, limit int) ([]PatternRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.QueryContext(ctx, `
		SELECT signature, task_type, subtasks_json, hits, created_at, last_used_at
		FROM decomposition_patterns
		ORDER BY hits DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	defer rows.Close()

	var out []PatternRecord
	for rows.Next() {
		var (
			r        PatternRecord
			subtasks string
			created  string
			lastUsed sql.NullString
		)
		if err := rows.Scan(&r.Signature, &r.TaskType, &subtasks, &r.Hits, &created, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if err := json.Unmarshal([]byte(subtasks), &r.Subtasks); err != nil {
			return nil, fmt.Errorf("unmarshal subtasks: %w", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		r.LastUsedAt = parseNullableTime(lastUsed)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeletePattern removes the pattern stored under signature.
func (db *DB) DeletePattern(ctx context.Context, signature string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM decomposition_patterns WHERE signature = ?`, signature); err != nil {
		return fmt.Errorf("delete pattern: %w", err)
	}
	return nil
}
