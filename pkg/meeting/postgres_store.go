package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/logging"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore persists meetings in a single table with the task list stored
// as a JSONB document, preserving the record's exclusive ownership of its
// tasks. The version column backs the optimistic save.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresStore creates a meeting store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger logging.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With(logging.F("component", "meeting_store")),
	}
}

// Create inserts a new meeting.
func (s *PostgresStore) Create(ctx context.Context, m *Meeting) (*Meeting, error) {
	tasksJSON, err := json.Marshal(m.Tasks)
	if err != nil {
		return nil, fmt.Errorf("marshaling tasks: %w", err)
	}

	query := `
		INSERT INTO meetings (
			id, title, description, date, status,
			audio_ref, summary, tasks, version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, 1, NOW(), NOW()
		)
		RETURNING version, created_at, updated_at
	`

	cp := m.Clone()
	err = s.pool.QueryRow(ctx, query,
		m.ID, m.Title, m.Description, m.Date, string(m.Status),
		m.AudioRef, m.Summary, tasksJSON,
	).Scan(&cp.Version, &cp.CreatedAt, &cp.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("meeting %s: %w", m.ID, cverrors.ErrConflict)
		}
		s.logger.Error("Failed to create meeting", logging.Err(err), logging.F("meeting_id", m.ID))
		return nil, fmt.Errorf("creating meeting: %w", err)
	}

	s.logger.Debug("Meeting created", logging.F("meeting_id", m.ID))
	return cp, nil
}

// Get resolves a meeting by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Meeting, error) {
	query := `
		SELECT id, title, description, date, status,
		       audio_ref, summary, tasks, version, created_at, updated_at
		FROM meetings
		WHERE id = $1
	`

	m, err := scanMeeting(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("meeting %s: %w", id, cverrors.ErrNotFound)
		}
		return nil, fmt.Errorf("getting meeting: %w", err)
	}
	return m, nil
}

// Save persists the meeting under an optimistic version check: the update only
// matches when the stored version equals the version the caller loaded.
func (s *PostgresStore) Save(ctx context.Context, m *Meeting) (*Meeting, error) {
	tasksJSON, err := json.Marshal(m.Tasks)
	if err != nil {
		return nil, fmt.Errorf("marshaling tasks: %w", err)
	}

	query := `
		UPDATE meetings SET
			title = $2, description = $3, date = $4, status = $5,
			audio_ref = $6, summary = $7, tasks = $8,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $9
		RETURNING version, updated_at
	`

	cp := m.Clone()
	err = s.pool.QueryRow(ctx, query,
		m.ID, m.Title, m.Description, m.Date, string(m.Status),
		m.AudioRef, m.Summary, tasksJSON, m.Version,
	).Scan(&cp.Version, &cp.UpdatedAt)
	if err == nil {
		return cp, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		s.logger.Error("Failed to save meeting", logging.Err(err), logging.F("meeting_id", m.ID))
		return nil, fmt.Errorf("saving meeting: %w", err)
	}

	// No row matched: either the meeting is gone or another writer advanced
	// the version first.
	var exists bool
	if probeErr := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM meetings WHERE id = $1)`, m.ID).Scan(&exists); probeErr != nil {
		return nil, fmt.Errorf("saving meeting: %w", probeErr)
	}
	if !exists {
		return nil, fmt.Errorf("meeting %s: %w", m.ID, cverrors.ErrNotFound)
	}
	return nil, fmt.Errorf("meeting %s version %d: %w", m.ID, m.Version, cverrors.ErrConflict)
}

// List returns all meetings, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]*Meeting, error) {
	query := `
		SELECT id, title, description, date, status,
		       audio_ref, summary, tasks, version, created_at, updated_at
		FROM meetings
		ORDER BY date DESC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	defer rows.Close()

	var out []*Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning meeting: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing meetings: %w", err)
	}
	return out, nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeeting(row rowScanner) (*Meeting, error) {
	var (
		m         Meeting
		status    string
		tasksJSON []byte
		date      time.Time
	)
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &date, &status,
		&m.AudioRef, &m.Summary, &tasksJSON, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Date = date
	m.Status = Status(status)
	if len(tasksJSON) > 0 {
		if err := json.Unmarshal(tasksJSON, &m.Tasks); err != nil {
			return nil, fmt.Errorf("unmarshaling tasks: %w", err)
		}
	}
	if m.Tasks == nil {
		m.Tasks = []Task{}
	}
	return &m, nil
}

// Schema returns the DDL for the meetings table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS meetings (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	date        TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL DEFAULT 'scheduled',
	audio_ref   TEXT NOT NULL DEFAULT '',
	summary     TEXT NOT NULL DEFAULT '',
	tasks       JSONB NOT NULL DEFAULT '[]',
	version     BIGINT NOT NULL DEFAULT 1,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_meetings_date ON meetings (date DESC);
CREATE INDEX IF NOT EXISTS idx_meetings_status ON meetings (status);
`
}

// Verify interface compliance
var _ Store = (*PostgresStore)(nil)
