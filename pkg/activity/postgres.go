package activity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conclave-hq/conclave/pkg/logging"
)

// PostgresStore persists audit entries.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresStore creates an audit store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger logging.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With(logging.F("component", "activity_store")),
	}
}

// Record appends an entry.
func (s *PostgresStore) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `
		INSERT INTO activity_log (
			id, kind, action, actor_id, actor_name, task_id, meeting_id,
			prev_state, new_state, output, tokens, outcome, error, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, query,
		e.ID, string(e.Kind), e.Action, e.ActorID, e.ActorName,
		e.TaskID, e.MeetingID, e.PrevState, e.NewState,
		e.Output, e.Tokens, string(e.Outcome), e.Error,
	).Scan(&e.CreatedAt); err != nil {
		s.logger.Error("Failed to record activity", logging.Err(err), logging.F("action", e.Action))
		return fmt.Errorf("recording activity: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.ActorID != "" {
		args = append(args, f.ActorID)
		where = append(where, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if f.TaskID != "" {
		args = append(args, f.TaskID)
		where = append(where, fmt.Sprintf("task_id = $%d", len(args)))
	}

	query := `
		SELECT id, kind, action, actor_id, actor_name, task_id, meeting_id,
			prev_state, new_state, output, tokens, outcome, error, created_at
		FROM activity_log
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var kind, outcome string
		if err := rows.Scan(
			&e.ID, &kind, &e.Action, &e.ActorID, &e.ActorName,
			&e.TaskID, &e.MeetingID, &e.PrevState, &e.NewState,
			&e.Output, &e.Tokens, &outcome, &e.Error, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning activity entry: %w", err)
		}
		e.Kind = Kind(kind)
		e.Outcome = Outcome(outcome)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Schema returns the DDL for the activity_log table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS activity_log (
	id UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	action TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	actor_name TEXT NOT NULL DEFAULT '',
	task_id TEXT NOT NULL DEFAULT '',
	meeting_id TEXT NOT NULL DEFAULT '',
	prev_state TEXT NOT NULL DEFAULT '',
	new_state TEXT NOT NULL DEFAULT '',
	output TEXT NOT NULL DEFAULT '',
	tokens INTEGER NOT NULL DEFAULT 0,
	outcome TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_activity_log_created_at ON activity_log (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_activity_log_task_id ON activity_log (task_id) WHERE task_id <> '';
`
}

var _ Store = (*PostgresStore)(nil)
