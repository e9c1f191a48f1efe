package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/logging"
)

// PostgresStore persists notifications in a single table with metadata as JSONB.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresStore creates a notification store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool, logger logging.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		logger: logger.With(logging.F("component", "notify_store")),
	}
}

// Notify stores a new notification.
func (s *PostgresStore) Notify(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	metadataJSON, err := json.Marshal(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	query := `
		INSERT INTO notifications (id, type, title, message, link, unread, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, NOW())
		RETURNING created_at
	`
	if err := s.pool.QueryRow(ctx, query,
		n.ID, string(n.Type), n.Title, n.Message, n.Link, metadataJSON,
	).Scan(&n.CreatedAt); err != nil {
		s.logger.Error("Failed to create notification", logging.Err(err), logging.F("type", string(n.Type)))
		return fmt.Errorf("creating notification: %w", err)
	}
	n.Unread = true
	return nil
}

// List returns all notifications, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]*Notification, error) {
	query := `
		SELECT id, type, title, message, link, unread, metadata, created_at
		FROM notifications
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead marks one notification as read.
func (s *PostgresStore) MarkRead(ctx context.Context, id string) (*Notification, error) {
	query := `
		UPDATE notifications SET unread = FALSE
		WHERE id = $1
		RETURNING id, type, title, message, link, unread, metadata, created_at
	`
	n, err := scanNotification(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("notification %s: %w", id, cverrors.ErrNotFound)
		}
		return nil, fmt.Errorf("marking notification read: %w", err)
	}
	return n, nil
}

// MarkAllRead marks every unread notification as read.
func (s *PostgresStore) MarkAllRead(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `UPDATE notifications SET unread = FALSE WHERE unread`); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Delete removes a notification.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var n Notification
	var typ string
	var metadataJSON []byte
	if err := row.Scan(&n.ID, &typ, &n.Title, &n.Message, &n.Link, &n.Unread, &metadataJSON, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = Type(typ)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &n.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	return &n, nil
}

// Schema returns the DDL for the notifications table.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	title TEXT NOT NULL,
	message TEXT NOT NULL,
	link TEXT NOT NULL DEFAULT '',
	unread BOOLEAN NOT NULL DEFAULT TRUE,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications (created_at DESC);
`
}

var _ Store = (*PostgresStore)(nil)
