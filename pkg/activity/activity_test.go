package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RecordAssignsIDAndTimestamp(t *testing.T) {
	s := NewMemoryStore()
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	e := &Entry{
		Kind:    KindNeutralization,
		Action:  "neutralize_task",
		ActorID: "user-1",
		Outcome: OutcomeSuccess,
	}
	require.NoError(t, s.Record(context.Background(), e))

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, fixed, e.CreatedAt)
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := base
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, &Entry{Kind: KindAuth, Action: "login", ActorID: "a", Outcome: OutcomeSuccess}))
	clock = base.Add(time.Minute)
	require.NoError(t, s.Record(ctx, &Entry{Kind: KindAuth, Action: "logout", ActorID: "a", Outcome: OutcomeSuccess}))

	list, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "logout", list[0].Action)
	assert.Equal(t, "login", list[1].Action)
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	entries := []*Entry{
		{Kind: KindNeutralization, Action: "neutralize_task", ActorID: "alice", TaskID: "t1", Outcome: OutcomeSuccess},
		{Kind: KindNeutralization, Action: "neutralize_task", ActorID: "bob", TaskID: "t2", Outcome: OutcomeFailure},
		{Kind: KindSystem, Action: "summarize_meeting", ActorID: "system", Outcome: OutcomeSuccess},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(ctx, e))
	}

	byKind, err := s.List(ctx, Filter{Kind: KindNeutralization})
	require.NoError(t, err)
	assert.Len(t, byKind, 2)

	byActor, err := s.List(ctx, Filter{ActorID: "bob"})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, "t2", byActor[0].TaskID)

	byTask, err := s.List(ctx, Filter{TaskID: "t1"})
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	assert.Equal(t, "alice", byTask[0].ActorID)
}

func TestMemoryStore_ListLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(ctx, &Entry{Kind: KindSystem, Action: "tick", ActorID: "system", Outcome: OutcomeSuccess}))
	}

	list, err := s.List(ctx, Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, &Entry{Kind: KindSystem, Action: "original", ActorID: "system", Outcome: OutcomeSuccess}))

	list, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	list[0].Action = "mutated"

	again, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Action)
}
