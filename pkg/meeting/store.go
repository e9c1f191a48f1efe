package meeting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

// Store is the artifact store adapter the core depends on. Save performs an
// optimistic write: it fails with ErrConflict when another writer bumped the
// record's version since it was loaded, which is how per-task exclusivity is
// enforced without a separate distributed lock.
type Store interface {
	// Create inserts a new meeting. Fails with ErrConflict if the id exists.
	Create(ctx context.Context, m *Meeting) (*Meeting, error)

	// Get resolves a meeting by id. Fails with ErrNotFound.
	Get(ctx context.Context, id string) (*Meeting, error)

	// Save persists the meeting if its version still matches the stored one,
	// then bumps the version. Fails with ErrNotFound or ErrConflict.
	Save(ctx context.Context, m *Meeting) (*Meeting, error)

	// List returns all meetings, newest first.
	List(ctx context.Context) ([]*Meeting, error)
}

// MemoryStore is an in-process Store used by tests and single-node setups.
type MemoryStore struct {
	mu       sync.RWMutex
	meetings map[string]*Meeting
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{meetings: make(map[string]*Meeting)}
}

// Create inserts a new meeting.
func (s *MemoryStore) Create(ctx context.Context, m *Meeting) (*Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.meetings[m.ID]; ok {
		return nil, fmt.Errorf("meeting %s: %w", m.ID, cverrors.ErrConflict)
	}

	cp := m.Clone()
	now := time.Now()
	cp.Version = 1
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.meetings[cp.ID] = cp
	return cp.Clone(), nil
}

// Get resolves a meeting by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.meetings[id]
	if !ok {
		return nil, fmt.Errorf("meeting %s: %w", id, cverrors.ErrNotFound)
	}
	return m.Clone(), nil
}

// Save persists the meeting under an optimistic version check.
func (s *MemoryStore) Save(ctx context.Context, m *Meeting) (*Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.meetings[m.ID]
	if !ok {
		return nil, fmt.Errorf("meeting %s: %w", m.ID, cverrors.ErrNotFound)
	}
	if stored.Version != m.Version {
		return nil, fmt.Errorf("meeting %s version %d (stored %d): %w",
			m.ID, m.Version, stored.Version, cverrors.ErrConflict)
	}

	cp := m.Clone()
	cp.Version = stored.Version + 1
	cp.CreatedAt = stored.CreatedAt
	cp.UpdatedAt = time.Now()
	s.meetings[cp.ID] = cp
	return cp.Clone(), nil
}

// List returns all meetings, newest first.
func (s *MemoryStore) List(ctx context.Context) ([]*Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// Verify interface compliance
var _ Store = (*MemoryStore)(nil)
