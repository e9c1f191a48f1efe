package summarize

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/conclave-hq/conclave/pkg/activity"
	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/inference"
	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/meeting"
	"github.com/conclave-hq/conclave/pkg/notify"
	"github.com/conclave-hq/conclave/pkg/observability"
	"github.com/conclave-hq/conclave/pkg/queue"
)

// Failure sentinels written to Meeting.Summary. SummaryReady keys off the
// shared "Error:" prefix.
const (
	quotaFailureSummary = "Error: AI quota exceeded. Please try again later."
	audioFailureSummary = "Error: audio recording not found."
)

// saveAttempts bounds optimistic-concurrency retries against the store.
const saveAttempts = 3

// Pipeline executes one summarization job end to end: load the meeting and
// its audio, run inference, extract action items, and persist the outcome.
// Inference failures are recorded on the meeting rather than retried; a
// re-triggered job is the retry path.
type Pipeline struct {
	store    meeting.Store
	audio    Source
	client   inference.Client
	notifier notify.Notifier
	recorder activity.Recorder
	logger   logging.Logger
	timeout  time.Duration

	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewPipeline wires a summarization pipeline. timeout bounds the inference
// call, not the whole job.
func NewPipeline(
	store meeting.Store,
	audio Source,
	client inference.Client,
	notifier notify.Notifier,
	recorder activity.Recorder,
	logger logging.Logger,
	timeout time.Duration,
) *Pipeline {
	return &Pipeline{
		store:    store,
		audio:    audio,
		client:   client,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With(logging.F("component", "summarize_pipeline")),
		timeout:  timeout,
	}
}

// SetObservability attaches metrics and tracing to the pipeline. Both are
// optional; a nil pipeline field disables that signal.
func (p *Pipeline) SetObservability(m *observability.Metrics, tr *observability.Tracer) {
	p.metrics = m
	p.tracer = tr
}

// Process handles one job. A nil return means the job is done and must be
// acked, including jobs that ended with a failure recorded on the meeting.
// A non-nil return means the outcome could not be persisted and the job
// should be nacked for redelivery.
func (p *Pipeline) Process(ctx context.Context, job queue.Job) error {
	log := p.logger.With(logging.F("meeting_id", job.MeetingID), logging.F("trigger", string(job.Trigger)))
	jobStart := time.Now()

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.StartSummarizeSpan(ctx, job.MeetingID, string(job.Trigger))
		defer span.End()
	}

	m, err := p.store.Get(ctx, job.MeetingID)
	if err != nil {
		if cverrors.IsNotFound(err) {
			log.Warn("Meeting vanished before summarization, dropping job")
			p.observe(job, "dropped", jobStart)
			return nil
		}
		return fmt.Errorf("loading meeting: %w", err)
	}

	if !m.HasAudio() {
		log.Warn("Meeting has no audio recording, marking failed")
		return p.recordFailure(ctx, m, audioFailureSummary, "no audio recording attached", job, jobStart)
	}

	attachment, err := p.audio.Load(ctx, m.AudioRef)
	if err != nil {
		if cverrors.IsNotFound(err) {
			log.Error("Audio recording missing from storage", logging.F("audio_ref", m.AudioRef))
			return p.recordFailure(ctx, m, audioFailureSummary, err.Error(), job, jobStart)
		}
		return fmt.Errorf("loading audio: %w", err)
	}

	log.Info("Generating summary", logging.F("model", p.client.Model()), logging.F("audio_bytes", len(attachment.Data)))

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	output, genErr := p.client.Generate(genCtx, inference.Request{
		Prompt: BuildPrompt(m),
		Audio:  attachment,
	})
	if genErr != nil {
		ie := cverrors.Classify(genErr, "summarize")
		log.Error("Summary generation failed",
			logging.Err(ie),
			logging.F("code", string(ie.Code)),
			logging.F("duration_ms", time.Since(started).Milliseconds()))

		summary := fmt.Sprintf("Error: summary generation failed: %s", ie.Message)
		if cverrors.IsInferenceQuota(ie) {
			summary = quotaFailureSummary
		}
		return p.recordFailure(ctx, m, summary, ie.Error(), job, jobStart)
	}

	tasks := ExtractTasks(output)

	saved, err := p.saveOutcome(ctx, m.ID, func(cur *meeting.Meeting) {
		cur.Summary = output
		cur.Tasks = tasks
		cur.Status = meeting.StatusSummarized
	})
	if err != nil {
		return fmt.Errorf("persisting summary: %w", err)
	}

	log.Info("Summary generated",
		logging.F("tasks", len(tasks)),
		logging.F("duration_ms", time.Since(started).Milliseconds()))

	p.observe(job, "success", jobStart)
	if p.metrics != nil {
		p.metrics.TasksExtracted.Observe(float64(len(tasks)))
	}

	p.notifyBestEffort(ctx, &notify.Notification{
		Type:     notify.TypeSummary,
		Title:    "Intelligence Extraction Complete",
		Message:  fmt.Sprintf("Session %q has been summarized. %d objectives identified.", saved.Title, len(tasks)),
		Link:     fmt.Sprintf("/dashboard/meetings/%s/summary", saved.ID),
		Metadata: map[string]string{"meeting_id": saved.ID},
	})
	p.recordBestEffort(ctx, &activity.Entry{
		Kind:      activity.KindSystem,
		Action:    "summarize_meeting",
		ActorID:   job.RequestedBy,
		MeetingID: saved.ID,
		NewState:  string(meeting.StatusSummarized),
		Outcome:   activity.OutcomeSuccess,
	})
	return nil
}

// recordFailure writes the failure sentinel onto the meeting and emits the
// failure notification and audit entry. The job is done once the failure is
// recorded, so a nil return here means ack.
func (p *Pipeline) recordFailure(ctx context.Context, m *meeting.Meeting, summary, reason string, job queue.Job, jobStart time.Time) error {
	saved, err := p.saveOutcome(ctx, m.ID, func(cur *meeting.Meeting) {
		cur.Summary = summary
		cur.Status = meeting.StatusFailed
	})
	if err != nil {
		return fmt.Errorf("persisting failure: %w", err)
	}

	p.notifyBestEffort(ctx, &notify.Notification{
		Type:     notify.TypeSystem,
		Title:    "Synthesis Protocol Failed",
		Message:  fmt.Sprintf("Summary generation for %q encountered a terminal error.", saved.Title),
		Link:     fmt.Sprintf("/dashboard/meetings/%s/summary", saved.ID),
		Metadata: map[string]string{"meeting_id": saved.ID},
	})
	p.recordBestEffort(ctx, &activity.Entry{
		Kind:      activity.KindSystem,
		Action:    "summarize_meeting",
		ActorID:   job.RequestedBy,
		MeetingID: saved.ID,
		NewState:  string(meeting.StatusFailed),
		Outcome:   activity.OutcomeFailure,
		Error:     reason,
	})
	p.observe(job, "failure", jobStart)
	return nil
}

// observe records job outcome metrics when metrics are attached.
func (p *Pipeline) observe(job queue.Job, outcome string, jobStart time.Time) {
	if p.metrics == nil {
		return
	}
	p.metrics.SummariesTotal.WithLabelValues(string(job.Trigger), outcome).Inc()
	p.metrics.SummarySeconds.WithLabelValues(outcome).Observe(time.Since(jobStart).Seconds())
}

// saveOutcome applies a mutation under optimistic concurrency, re-reading the
// meeting and reapplying on version conflicts.
func (p *Pipeline) saveOutcome(ctx context.Context, id string, apply func(*meeting.Meeting)) (*meeting.Meeting, error) {
	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		cur, err := p.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		apply(cur)
		saved, err := p.store.Save(ctx, cur)
		if err == nil {
			return saved, nil
		}
		if !cverrors.IsConflict(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (p *Pipeline) notifyBestEffort(ctx context.Context, n *notify.Notification) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, n); err != nil {
		p.logger.Warn("Failed to deliver notification", logging.Err(err), logging.F("type", string(n.Type)))
	}
}

func (p *Pipeline) recordBestEffort(ctx context.Context, e *activity.Entry) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, e); err != nil {
		p.logger.Warn("Failed to record activity", logging.Err(err), logging.F("action", e.Action))
	}
}
