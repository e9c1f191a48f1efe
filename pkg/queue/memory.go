package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue for tests and single-node deployments.
type MemoryQueue struct {
	mu       sync.Mutex
	config   Config
	ready    []*QueuedJob          // FIFO, honoring VisibleAfter
	inFlight map[string]*QueuedJob // by job ID
	pending  map[string]bool       // meeting IDs with a live job
	dead     []*QueuedJob

	now func() time.Time
}

// NewMemoryQueue creates an in-memory queue.
func NewMemoryQueue(config Config) *MemoryQueue {
	return &MemoryQueue{
		config:   config,
		inFlight: make(map[string]*QueuedJob),
		pending:  make(map[string]bool),
		now:      time.Now,
	}
}

// Enqueue schedules a job unless one is already live for the meeting.
func (q *MemoryQueue) Enqueue(_ context.Context, job Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending[job.MeetingID] {
		return false, nil
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now()
	}
	q.pending[job.MeetingID] = true
	q.ready = append(q.ready, &QueuedJob{
		ID:         uuid.NewString(),
		Job:        job,
		EnqueuedAt: job.EnqueuedAt,
	})
	return true, nil
}

// Dequeue retrieves up to max visible jobs, polling until wait elapses.
func (q *MemoryQueue) Dequeue(ctx context.Context, max int, wait time.Duration) ([]*QueuedJob, error) {
	if max <= 0 {
		max = 1
	}
	deadline := q.now().Add(wait)

	for {
		jobs := q.takeVisible(max)
		if len(jobs) > 0 {
			return jobs, nil
		}
		if !q.now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (q *MemoryQueue) takeVisible(max int) []*QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var taken []*QueuedJob
	var remaining []*QueuedJob
	for _, j := range q.ready {
		if len(taken) < max && !j.VisibleAfter.After(now) {
			j.VisibleAfter = now.Add(q.config.VisibilityTimeout)
			q.inFlight[j.ID] = j
			taken = append(taken, j)
			continue
		}
		remaining = append(remaining, j)
	}
	q.ready = remaining
	return taken
}

// Ack removes a processed job and frees the meeting's dedup slot.
func (q *MemoryQueue) Ack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.inFlight[jobID]
	if !ok {
		return ErrJobNotFound
	}
	delete(q.inFlight, jobID)
	delete(q.pending, j.Job.MeetingID)
	return nil
}

// Nack re-schedules a failed job with backoff, or dead-letters it.
func (q *MemoryQueue) Nack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.inFlight[jobID]
	if !ok {
		return ErrJobNotFound
	}
	delete(q.inFlight, jobID)

	j.RetryCount++
	if j.RetryCount >= q.config.MaxRetries {
		q.dead = append(q.dead, j)
		delete(q.pending, j.Job.MeetingID)
		return nil
	}

	j.VisibleAfter = q.now().Add(calculateBackoff(j.RetryCount))
	q.ready = append(q.ready, j)
	return nil
}

// Depth returns the number of jobs waiting.
func (q *MemoryQueue) Depth(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.ready)), nil
}

// DeadLetters returns dead-lettered jobs. Test helper.
func (q *MemoryQueue) DeadLetters() []*QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*QueuedJob, len(q.dead))
	copy(out, q.dead)
	return out
}

// Close is a no-op for the in-memory queue.
func (q *MemoryQueue) Close() error { return nil }

var _ Queue = (*MemoryQueue)(nil)
