package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes.
const (
	keyPrefixQueue      = "queue:"      // Waiting jobs (sorted set by enqueue time)
	keyPrefixProcessing = "processing:" // Jobs being processed (sorted set by visibility deadline)
	keyPrefixJob        = "job:"        // Job payloads
	keyPrefixPending    = "pending:"    // Meeting IDs with a live job (set)
	keyPrefixDLQ        = "dlq:"        // Dead letter queue
)

// RedisQueue implements Queue using Redis sorted sets, with a per-meeting
// dedup set so at most one job per meeting is live at a time.
type RedisQueue struct {
	client *redis.Client
	name   string
	config Config
}

// NewRedisQueue creates a Redis-backed queue.
func NewRedisQueue(client *redis.Client, config Config) *RedisQueue {
	return &RedisQueue{
		client: client,
		name:   config.Name,
		config: config,
	}
}

func (q *RedisQueue) queueKey() string      { return keyPrefixQueue + q.name }
func (q *RedisQueue) processingKey() string { return keyPrefixProcessing + q.name }
func (q *RedisQueue) pendingKey() string    { return keyPrefixPending + q.name }
func (q *RedisQueue) dlqKey() string        { return keyPrefixDLQ + q.name }
func (q *RedisQueue) jobKey(id string) string {
	return keyPrefixJob + q.name + ":" + id
}

// Sorted-set members carry the meeting ID alongside the job ID. The dedup
// slot must be releasable even after the job payload has expired, and the
// payload is the only other place the meeting ID lives.
func encodeMember(jobID, meetingID string) string {
	return jobID + "|" + meetingID
}

func decodeMember(member string) (jobID, meetingID string) {
	if i := strings.IndexByte(member, '|'); i >= 0 {
		return member[:i], member[i+1:]
	}
	return member, ""
}

// Enqueue schedules a job unless one is already live for the meeting.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) (bool, error) {
	// Claim the meeting's dedup slot first. Losing the race means a job
	// is already live and this enqueue is a no-op.
	claimed, err := q.client.SAdd(ctx, q.pendingKey(), job.MeetingID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim dedup slot: %w", err)
	}
	if claimed == 0 {
		return false, nil
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	qj := &QueuedJob{
		ID:         uuid.NewString(),
		Job:        job,
		EnqueuedAt: job.EnqueuedAt,
	}
	data, err := json.Marshal(qj)
	if err != nil {
		return false, fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.jobKey(qj.ID), data, q.config.RetentionPeriod)
	pipe.ZAdd(ctx, q.queueKey(), redis.Z{
		Score:  float64(job.EnqueuedAt.UnixNano()),
		Member: encodeMember(qj.ID, job.MeetingID),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		// Roll the dedup claim back so a later enqueue can succeed.
		q.client.SRem(ctx, q.pendingKey(), job.MeetingID)
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return true, nil
}

// Dequeue retrieves up to max jobs, waiting up to wait for at least one.
func (q *RedisQueue) Dequeue(ctx context.Context, max int, wait time.Duration) ([]*QueuedJob, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.Now().Add(wait)

	var jobs []*QueuedJob
	for len(jobs) < max {
		result, err := q.client.ZPopMin(ctx, q.queueKey(), 1).Result()
		if err != nil && err != redis.Nil {
			return jobs, fmt.Errorf("failed to pop from queue: %w", err)
		}
		if len(result) == 0 {
			if len(jobs) > 0 || !time.Now().Before(deadline) {
				return jobs, nil
			}
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-ctx.Done():
				return jobs, ctx.Err()
			}
		}

		member := result[0].Member.(string)
		jobID, meetingID := decodeMember(member)
		data, err := q.client.Get(ctx, q.jobKey(jobID)).Bytes()
		if err == redis.Nil {
			// Payload expired; release the dedup slot so the meeting can
			// be enqueued again.
			if meetingID != "" {
				q.client.SRem(ctx, q.pendingKey(), meetingID)
			}
			continue
		}
		if err != nil {
			return jobs, fmt.Errorf("failed to get job data: %w", err)
		}

		var qj QueuedJob
		if err := json.Unmarshal(data, &qj); err != nil {
			return jobs, fmt.Errorf("failed to unmarshal job: %w", err)
		}

		qj.VisibleAfter = time.Now().Add(q.config.VisibilityTimeout)
		updated, _ := json.Marshal(&qj)

		pipe := q.client.TxPipeline()
		pipe.Set(ctx, q.jobKey(jobID), updated, q.config.RetentionPeriod)
		pipe.ZAdd(ctx, q.processingKey(), redis.Z{
			Score:  float64(qj.VisibleAfter.UnixNano()),
			Member: member,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return jobs, fmt.Errorf("failed to move job to processing: %w", err)
		}

		jobs = append(jobs, &qj)
	}

	return jobs, nil
}

// Ack removes a processed job and frees the meeting's dedup slot.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	qj, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.processingKey(), encodeMember(jobID, qj.Job.MeetingID))
	pipe.Del(ctx, q.jobKey(jobID))
	pipe.SRem(ctx, q.pendingKey(), qj.Job.MeetingID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack re-schedules a failed job with backoff, or dead-letters it once
// retries are exhausted.
func (q *RedisQueue) Nack(ctx context.Context, jobID string) error {
	qj, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}

	qj.RetryCount++
	if qj.RetryCount >= q.config.MaxRetries {
		return q.moveToDeadLetter(ctx, qj, "max retries exceeded")
	}

	qj.VisibleAfter = time.Now().Add(calculateBackoff(qj.RetryCount))
	updated, _ := json.Marshal(qj)

	member := encodeMember(jobID, qj.Job.MeetingID)
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.processingKey(), member)
	pipe.Set(ctx, q.jobKey(jobID), updated, q.config.RetentionPeriod)
	pipe.ZAdd(ctx, q.queueKey(), redis.Z{
		Score:  float64(qj.VisibleAfter.UnixNano()),
		Member: member,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to nack job: %w", err)
	}
	return nil
}

func (q *RedisQueue) loadJob(ctx context.Context, jobID string) (*QueuedJob, error) {
	data, err := q.client.Get(ctx, q.jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var qj QueuedJob
	if err := json.Unmarshal(data, &qj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &qj, nil
}

func (q *RedisQueue) moveToDeadLetter(ctx context.Context, qj *QueuedJob, reason string) error {
	entry := map[string]interface{}{
		"job":      qj,
		"reason":   reason,
		"moved_at": time.Now().Format(time.RFC3339),
	}
	data, _ := json.Marshal(entry)

	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.processingKey(), encodeMember(qj.ID, qj.Job.MeetingID))
	pipe.Del(ctx, q.jobKey(qj.ID))
	pipe.SRem(ctx, q.pendingKey(), qj.Job.MeetingID)
	pipe.ZAdd(ctx, q.dlqKey(), redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: string(data),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to move job to DLQ: %w", err)
	}
	return nil
}

// Depth returns the number of jobs waiting.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, q.queueKey()).Result()
}

// RecoverStaleJobs re-queues jobs whose visibility timeout expired.
// Called periodically by the worker supervisor.
func (q *RedisQueue) RecoverStaleJobs(ctx context.Context) error {
	now := float64(time.Now().UnixNano())
	stale, err := q.client.ZRangeByScore(ctx, q.processingKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to find stale jobs: %w", err)
	}

	for _, member := range stale {
		jobID, meetingID := decodeMember(member)
		qj, err := q.loadJob(ctx, jobID)
		if err == ErrJobNotFound {
			// Payload expired while processing; free the dedup slot too.
			pipe := q.client.TxPipeline()
			pipe.ZRem(ctx, q.processingKey(), member)
			if meetingID != "" {
				pipe.SRem(ctx, q.pendingKey(), meetingID)
			}
			pipe.Exec(ctx)
			continue
		}
		if err != nil {
			continue
		}

		qj.RetryCount++
		if qj.RetryCount >= q.config.MaxRetries {
			q.moveToDeadLetter(ctx, qj, "visibility timeout exceeded")
			continue
		}

		updated, _ := json.Marshal(qj)
		pipe := q.client.TxPipeline()
		pipe.ZRem(ctx, q.processingKey(), member)
		pipe.Set(ctx, q.jobKey(jobID), updated, q.config.RetentionPeriod)
		pipe.ZAdd(ctx, q.queueKey(), redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: member,
		})
		pipe.Exec(ctx)
	}

	return nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (q *RedisQueue) Close() error { return nil }

var _ Queue = (*RedisQueue)(nil)
