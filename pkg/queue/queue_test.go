package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	return cfg
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(testConfig())
	ctx := context.Background()

	ok, err := q.Enqueue(ctx, Job{MeetingID: "m1", Trigger: TriggerExplicit})
	require.NoError(t, err)
	assert.True(t, ok)

	jobs, err := q.Dequeue(ctx, 1, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "m1", jobs[0].Job.MeetingID)
	assert.Equal(t, TriggerExplicit, jobs[0].Job.Trigger)
}

func TestMemoryQueue_DedupPerMeeting(t *testing.T) {
	q := NewMemoryQueue(testConfig())
	ctx := context.Background()

	ok, err := q.Enqueue(ctx, Job{MeetingID: "m1", Trigger: TriggerLazyPoll})
	require.NoError(t, err)
	assert.True(t, ok)

	// Second enqueue for the same meeting is a no-op.
	ok, err = q.Enqueue(ctx, Job{MeetingID: "m1", Trigger: TriggerLazyPoll})
	require.NoError(t, err)
	assert.False(t, ok)

	// Other meetings are unaffected.
	ok, err = q.Enqueue(ctx, Job{MeetingID: "m2", Trigger: TriggerLazyPoll})
	require.NoError(t, err)
	assert.True(t, ok)

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestMemoryQueue_DedupHeldWhileInFlight(t *testing.T) {
	q := NewMemoryQueue(testConfig())
	ctx := context.Background()

	_, err := q.Enqueue(ctx, Job{MeetingID: "m1"})
	require.NoError(t, err)

	jobs, err := q.Dequeue(ctx, 1, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// Still deduplicated while the job is processing.
	ok, err := q.Enqueue(ctx, Job{MeetingID: "m1"})
	require.NoError(t, err)
	assert.False(t, ok)

	// Ack releases the slot.
	require.NoError(t, q.Ack(ctx, jobs[0].ID))
	ok, err = q.Enqueue(ctx, Job{MeetingID: "m1"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryQueue_NackRequeuesWithBackoff(t *testing.T) {
	q := NewMemoryQueue(testConfig())
	ctx := context.Background()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return current }

	_, err := q.Enqueue(ctx, Job{MeetingID: "m1"})
	require.NoError(t, err)

	jobs, err := q.Dequeue(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, q.Nack(ctx, jobs[0].ID))

	// Not visible until the backoff elapses.
	jobs, err = q.Dequeue(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	current = current.Add(time.Minute)
	jobs, err = q.Dequeue(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].RetryCount)
}

func TestMemoryQueue_ExhaustedRetriesDeadLetter(t *testing.T) {
	q := NewMemoryQueue(testConfig())
	ctx := context.Background()
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return current }

	_, err := q.Enqueue(ctx, Job{MeetingID: "m1"})
	require.NoError(t, err)

	jobs, err := q.Dequeue(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, q.Nack(ctx, jobs[0].ID))

	current = current.Add(time.Minute)
	jobs, err = q.Dequeue(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, q.Nack(ctx, jobs[0].ID))

	// MaxRetries=2 reached: job is dead-lettered and the slot is free.
	assert.Len(t, q.DeadLetters(), 1)
	ok, err := q.Enqueue(ctx, Job{MeetingID: "m1"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryQueue_AckUnknownJob(t *testing.T) {
	q := NewMemoryQueue(testConfig())
	assert.ErrorIs(t, q.Ack(context.Background(), "nope"), ErrJobNotFound)
}

func TestMemberCodec(t *testing.T) {
	jobID, meetingID := decodeMember(encodeMember("job-1", "meeting-9"))
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "meeting-9", meetingID)

	// A member written before meeting IDs were embedded decodes to an
	// empty meeting ID, so no dedup slot gets released for it.
	jobID, meetingID = decodeMember("bare-job-id")
	assert.Equal(t, "bare-job-id", jobID)
	assert.Empty(t, meetingID)
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue(testConfig())
	ctx := context.Background()

	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := q.Enqueue(ctx, Job{MeetingID: id})
		require.NoError(t, err)
	}

	jobs, err := q.Dequeue(ctx, 3, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "m1", jobs[0].Job.MeetingID)
	assert.Equal(t, "m2", jobs[1].Job.MeetingID)
	assert.Equal(t, "m3", jobs[2].Job.MeetingID)
}
