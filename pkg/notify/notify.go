// Package notify stores and delivers in-app notifications emitted by the
// summarization pipeline and the neutralization engine.
package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

// Type categorizes a notification.
type Type string

const (
	TypeSummary  Type = "summary"
	TypeTask     Type = "task"
	TypeReminder Type = "reminder"
	TypeSystem   Type = "system"
)

// Notification is a single in-app notification.
type Notification struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Link      string            `json:"link,omitempty"`
	Unread    bool              `json:"unread"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notifier is the write-side used by pipelines. Delivery is best-effort:
// callers log and continue on error, they never fail the operation.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// Store is the full notification CRUD surface.
type Store interface {
	Notifier

	// List returns all notifications, newest first.
	List(ctx context.Context) ([]*Notification, error)

	// MarkRead marks one notification as read.
	MarkRead(ctx context.Context, id string) (*Notification, error)

	// MarkAllRead marks every unread notification as read.
	MarkAllRead(ctx context.Context) error

	// Delete removes a notification. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process notification store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Notification

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Notification),
		now:   time.Now,
	}
}

// Notify stores a new notification, assigning ID and timestamp.
func (s *MemoryStore) Notify(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *n
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Unread = true
	stored.CreatedAt = s.now()
	s.items[stored.ID] = &stored

	n.ID = stored.ID
	n.CreatedAt = stored.CreatedAt
	n.Unread = true
	return nil
}

// List returns all notifications, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Notification, 0, len(s.items))
	for _, n := range s.items {
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// MarkRead marks one notification as read.
func (s *MemoryStore) MarkRead(_ context.Context, id string) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.items[id]
	if !ok {
		return nil, cverrors.ErrNotFound
	}
	n.Unread = false
	cp := *n
	return &cp, nil
}

// MarkAllRead marks every unread notification as read.
func (s *MemoryStore) MarkAllRead(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.items {
		n.Unread = false
	}
	return nil
}

// Delete removes a notification.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

var _ Store = (*MemoryStore)(nil)
