package automation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// History persists action settlements.
type History interface {
	Record(ctx context.Context, s Settlement) error
	ListByScene(ctx context.Context, sceneName string, limit int) ([]Settlement, error)
}

// SQLiteHistory implements History on the action_executions table.
//
// Rows are keyed by scene name rather than id because ids are assigned per
// process run and are not stable across restarts.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory creates a new SQLite-backed history.
func NewSQLiteHistory(db *sql.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

// Record inserts one settlement.
func (h *SQLiteHistory) Record(ctx context.Context, s Settlement) error {
	query := `
		INSERT INTO action_executions (
			id, scene_name, action, reason, started_at, settled_at, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := h.db.ExecContext(ctx, query,
		s.TaskID,
		s.SceneName,
		s.Action,
		string(s.Reason),
		nullableTime(s.StartedAt),
		s.SettledAt.UTC().Format(time.RFC3339Nano),
		s.DurationMS,
		nullableString(s.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting action execution: %w", err)
	}
	return nil
}

// ListByScene returns the most recent settlements of a scene, newest first.
// limit defaults to 10 and is capped at 100.
func (h *SQLiteHistory) ListByScene(ctx context.Context, sceneName string, limit int) ([]Settlement, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	query := `
		SELECT id, scene_name, action, reason, started_at, settled_at, duration_ms, error
		FROM action_executions
		WHERE scene_name = ?
		ORDER BY settled_at DESC
		LIMIT ?`

	rows, err := h.db.QueryContext(ctx, query, sceneName, limit)
	if err != nil {
		return nil, fmt.Errorf("querying action executions: %w", err)
	}
	defer rows.Close()

	var out []Settlement
	for rows.Next() {
		var (
			s         Settlement
			reason    string
			startedAt sql.NullString
			settledAt string
			errText   sql.NullString
		)
		if err := rows.Scan(&s.TaskID, &s.SceneName, &s.Action, &reason,
			&startedAt, &settledAt, &s.DurationMS, &errText); err != nil {
			return nil, fmt.Errorf("scanning action execution: %w", err)
		}
		s.Reason = StopReason(reason)
		if startedAt.Valid {
			s.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt.String)
		}
		s.SettledAt, _ = time.Parse(time.RFC3339Nano, settledAt)
		s.Error = errText.String
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action executions: %w", err)
	}
	return out, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}
