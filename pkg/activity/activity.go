// Package activity records an audit trail of privileged operations:
// task neutralizations, system events, and authentication activity.
package activity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind categorizes an audit entry.
type Kind string

const (
	KindNeutralization Kind = "neutralization"
	KindSystem         Kind = "system"
	KindAuth           Kind = "auth"
)

// Outcome is the result recorded on an entry.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Entry is a single audit record. Fields beyond Kind, Action, Actor and
// Outcome are optional and depend on the kind.
type Entry struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actor_id"`
	ActorName string    `json:"actor_name,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	MeetingID string    `json:"meeting_id,omitempty"`
	PrevState string    `json:"prev_state,omitempty"`
	NewState  string    `json:"new_state,omitempty"`
	Output    string    `json:"output,omitempty"`
	Tokens    int       `json:"tokens,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows a List call. Zero values match everything.
type Filter struct {
	Kind    Kind
	ActorID string
	TaskID  string
	Limit   int
}

// Recorder is the write-side of the audit trail. Recording failures must not
// fail the audited operation; callers log and continue.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
}

// Store is the full audit trail surface.
type Store interface {
	Recorder

	// List returns entries matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]*Entry, error)
}

// MemoryStore is an in-process audit store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// Record appends an entry, assigning ID and timestamp.
func (s *MemoryStore) Record(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *e
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = s.now()
	s.entries = append(s.entries, &stored)

	e.ID = stored.ID
	e.CreatedAt = stored.CreatedAt
	return nil
}

// List returns matching entries, newest first.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if !matches(e, f) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(e *Entry, f Filter) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.TaskID != "" && e.TaskID != f.TaskID {
		return false
	}
	return true
}

var _ Store = (*MemoryStore)(nil)
