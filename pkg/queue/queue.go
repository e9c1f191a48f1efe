// Package queue provides the summarization job queue: a Redis-backed
// implementation for deployments and an in-memory one for tests.
//
// Jobs are deduplicated per meeting: while a job for a meeting is pending or
// being processed, further enqueues for the same meeting are no-ops. This is
// what keeps concurrent status polls from scheduling duplicate pipeline runs.
package queue

import (
	"context"
	"errors"
	"time"
)

// Trigger records why a summarization job was scheduled.
type Trigger string

const (
	// TriggerLazyPoll is a job scheduled by a summary status query that
	// found an unsummarized meeting with audio.
	TriggerLazyPoll Trigger = "lazy_poll"
	// TriggerExplicit is a job scheduled by a direct re-trigger request.
	TriggerExplicit Trigger = "explicit"
	// TriggerAudioAttach is a job scheduled when audio lands on a meeting.
	TriggerAudioAttach Trigger = "audio_attach"
)

// Job describes one summarization request.
type Job struct {
	MeetingID   string    `json:"meeting_id"`
	Trigger     Trigger   `json:"trigger"`
	RequestedBy string    `json:"requested_by"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// QueuedJob wraps a job with queue metadata.
type QueuedJob struct {
	ID           string    `json:"id"`
	Job          Job       `json:"job"`
	RetryCount   int       `json:"retry_count"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
	VisibleAfter time.Time `json:"visible_after,omitempty"`
}

// ErrJobNotFound is returned when acking or nacking an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// Config holds queue tuning knobs.
type Config struct {
	// Name namespaces the queue's keys.
	Name string
	// MaxRetries before a job lands in the dead letter queue.
	MaxRetries int
	// VisibilityTimeout bounds how long a dequeued job may process before
	// it is considered stale and eligible for recovery.
	VisibilityTimeout time.Duration
	// RetentionPeriod bounds how long job payloads are kept.
	RetentionPeriod time.Duration
}

// DefaultConfig returns queue settings suitable for summarization jobs.
func DefaultConfig() Config {
	return Config{
		Name:              "summarize",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Minute,
		RetentionPeriod:   24 * time.Hour,
	}
}

// Queue is the summarization job queue.
type Queue interface {
	// Enqueue schedules a job. It reports false without error when a job
	// for the same meeting is already pending or in flight.
	Enqueue(ctx context.Context, job Job) (bool, error)

	// Dequeue retrieves up to max jobs, waiting up to wait for at least one.
	Dequeue(ctx context.Context, max int, wait time.Duration) ([]*QueuedJob, error)

	// Ack marks a job as successfully processed and releases the
	// meeting's dedup slot.
	Ack(ctx context.Context, jobID string) error

	// Nack re-schedules a failed job with backoff, or moves it to the
	// dead letter queue once retries are exhausted.
	Nack(ctx context.Context, jobID string) error

	// Depth returns the number of jobs waiting (not in flight).
	Depth(ctx context.Context) (int64, error)

	// Close releases queue resources.
	Close() error
}

// calculateBackoff returns exponential backoff for a retry: 2s, 4s, 8s...
// capped at five minutes.
func calculateBackoff(retryCount int) time.Duration {
	backoff := time.Second * (1 << uint(retryCount))
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	return backoff
}
