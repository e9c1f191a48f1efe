package summarize

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/queue"
)

// WorkerConfig tunes the summarization worker pool.
type WorkerConfig struct {
	// Count is the number of concurrent workers.
	Count int
	// PollInterval is how long a dequeue waits for a job before returning.
	PollInterval time.Duration
	// RecoveryInterval is how often stale in-flight jobs are requeued.
	RecoveryInterval time.Duration
}

// DefaultWorkerConfig returns pool settings suitable for audio summarization.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Count:            4,
		PollInterval:     time.Second,
		RecoveryInterval: time.Minute,
	}
}

// StaleRecoverer requeues jobs whose visibility timeout expired. The Redis
// queue implements it; the in-memory queue does not need to.
type StaleRecoverer interface {
	RecoverStaleJobs(ctx context.Context) error
}

// Pool runs summarization workers against a job queue.
type Pool struct {
	queue    queue.Queue
	pipeline *Pipeline
	config   WorkerConfig
	logger   logging.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a worker pool. Call Run to start it.
func NewPool(q queue.Queue, pipeline *Pipeline, config WorkerConfig, logger logging.Logger) *Pool {
	if config.Count <= 0 {
		config.Count = DefaultWorkerConfig().Count
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultWorkerConfig().PollInterval
	}
	if config.RecoveryInterval <= 0 {
		config.RecoveryInterval = DefaultWorkerConfig().RecoveryInterval
	}
	return &Pool{
		queue:    q,
		pipeline: pipeline,
		config:   config,
		logger:   logger.With(logging.F("component", "summarize_pool")),
	}
}

// Run blocks, processing jobs until ctx is cancelled. Workers drain their
// current job before returning.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("Starting summarization workers", logging.F("count", p.config.Count))

	var wg sync.WaitGroup
	for i := 0; i < p.config.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.workLoop(ctx, id)
		}(i)
	}

	if recoverer, ok := p.queue.(StaleRecoverer); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.recoveryLoop(ctx, recoverer)
		}()
	}

	wg.Wait()
	p.logger.Info("Summarization workers stopped",
		logging.F("processed", p.processed.Load()),
		logging.F("failed", p.failed.Load()))
}

// Processed returns the number of successfully completed jobs.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of jobs whose outcome could not be persisted.
func (p *Pool) Failed() int64 { return p.failed.Load() }

func (p *Pool) workLoop(ctx context.Context, id int) {
	log := p.logger.With(logging.F("worker", id))
	for {
		if ctx.Err() != nil {
			return
		}

		jobs, err := p.queue.Dequeue(ctx, 1, p.config.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("Dequeue failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.config.PollInterval):
			}
			continue
		}

		for _, qj := range jobs {
			p.processJob(ctx, log, qj)
		}
	}
}

func (p *Pool) processJob(ctx context.Context, log logging.Logger, qj *queue.QueuedJob) {
	if err := p.pipeline.Process(ctx, qj.Job); err != nil {
		p.failed.Add(1)
		log.Error("Job failed, scheduling retry",
			logging.Err(err),
			logging.F("job_id", qj.ID),
			logging.F("meeting_id", qj.Job.MeetingID),
			logging.F("retries", qj.RetryCount))
		if nackErr := p.queue.Nack(ctx, qj.ID); nackErr != nil {
			log.Error("Nack failed", logging.Err(nackErr), logging.F("job_id", qj.ID))
		}
		return
	}

	p.processed.Add(1)
	if err := p.queue.Ack(ctx, qj.ID); err != nil {
		log.Error("Ack failed", logging.Err(err), logging.F("job_id", qj.ID))
	}
}

func (p *Pool) recoveryLoop(ctx context.Context, recoverer StaleRecoverer) {
	ticker := time.NewTicker(p.config.RecoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := recoverer.RecoverStaleJobs(ctx); err != nil {
				p.logger.Error("Stale job recovery failed", logging.Err(err))
			}
		}
	}
}
