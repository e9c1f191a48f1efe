// Package neutralize drives a single task through the autonomous resolution
// state machine: pending|failed → neutralizing → done|failed. The persisted
// neutralizing marker is the only lock; exclusivity rests on the store's
// optimistic versioning.
package neutralize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/conclave-hq/conclave/pkg/activity"
	"github.com/conclave-hq/conclave/pkg/actor"
	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/inference"
	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/meeting"
	"github.com/conclave-hq/conclave/pkg/notify"
	"github.com/conclave-hq/conclave/pkg/observability"
	"github.com/conclave-hq/conclave/pkg/quota"
)

// DefaultTimeout bounds one inference attempt.
const DefaultTimeout = 30 * time.Second

// lockAttempts bounds optimistic retries while acquiring the neutralizing
// marker. Conflicts caused by a concurrent neutralization surface as
// ErrConflict instead of retrying.
const lockAttempts = 3

// ErrTryAgain is the generic caller-facing failure. The stored FailureReason
// keeps the full internal detail.
var ErrTryAgain = errors.New("intelligence synthesis encountered a terminal error, please try again")

// agentReply is the JSON shape the prompt demands from the model.
type agentReply struct {
	Summary    string   `json:"summary"`
	Resolution string   `json:"resolution"`
	Confidence int      `json:"confidence"`
	NextSteps  []string `json:"nextSteps"`
}

var codeFenceRe = regexp.MustCompile("```(?:json)?\\n?|\\n?```")

// Engine executes neutralization attempts.
type Engine struct {
	store    meeting.Store
	client   inference.Client
	limiter  quota.Limiter
	notifier notify.Notifier
	recorder activity.Recorder
	logger   logging.Logger
	timeout  time.Duration

	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewEngine wires a neutralization engine. A zero timeout gets DefaultTimeout.
func NewEngine(
	store meeting.Store,
	client inference.Client,
	limiter quota.Limiter,
	notifier notify.Notifier,
	recorder activity.Recorder,
	logger logging.Logger,
	timeout time.Duration,
) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{
		store:    store,
		client:   client,
		limiter:  limiter,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With(logging.F("component", "neutralize")),
		timeout:  timeout,
	}
}

// SetObservability attaches metrics and tracing to the engine. Both are
// optional; a nil field disables that signal.
func (e *Engine) SetObservability(m *observability.Metrics, tr *observability.Tracer) {
	e.metrics = m
	e.tracer = tr
}

// Neutralize runs one attempt for the given task on behalf of the actor in
// ctx. It returns the task in its terminal state on success, and on terminal
// failure returns ErrTryAgain after persisting the rollback and audit entry.
func (e *Engine) Neutralize(ctx context.Context, meetingID, taskID string) (*meeting.Task, error) {
	who := actor.FromContext(ctx)
	log := e.logger.With(
		logging.F("meeting_id", meetingID),
		logging.F("task_id", taskID),
		logging.F("actor", who.ID))
	started := time.Now()

	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.StartNeutralizeSpan(ctx, meetingID, taskID, who.ID)
		defer span.End()
	}

	// Quota is checked before any state mutation; a throttled request has no
	// side effects and writes no audit entry.
	if err := e.limiter.Allow(ctx, who.ID); err != nil {
		log.Warn("Neutralization throttled", logging.Err(err))
		if e.metrics != nil {
			e.metrics.QuotaDenialsTotal.Inc()
		}
		return nil, err
	}

	locked, prevState, err := e.acquire(ctx, meetingID, taskID)
	if err != nil {
		return nil, err
	}
	task := locked.FindTask(taskID)
	log.Info("Task locked for neutralization", logging.F("prev_state", string(prevState)))

	reply, inferErr := e.resolve(ctx, locked, task)
	if inferErr != nil {
		e.observe("failure", started)
		return nil, e.fail(ctx, who, locked, taskID, prevState, inferErr, log)
	}

	final, err := e.finalize(ctx, locked, taskID, func(t *meeting.Task) {
		t.Status = meeting.TaskDone
		t.AgentOutput = reply.Resolution
		t.ConfidenceScore = reply.Confidence
		t.NextSteps = reply.NextSteps
		t.FailureReason = ""
	})
	if err != nil {
		// The lock moved under us; another writer won the race and this
		// result must be discarded.
		log.Warn("Discarding stale neutralization result", logging.Err(err))
		e.observe("failure", started)
		return nil, e.fail(ctx, who, locked, taskID, prevState, err, log)
	}

	log.Info("Task neutralized", logging.F("confidence", reply.Confidence))
	e.observe("success", started)

	e.recordBestEffort(ctx, &activity.Entry{
		Kind:      activity.KindNeutralization,
		Action:    "task_complete",
		ActorID:   who.ID,
		ActorName: who.DisplayName,
		TaskID:    taskID,
		MeetingID: meetingID,
		PrevState: string(prevState),
		NewState:  string(meeting.TaskDone),
		Output:    reply.Summary,
		Outcome:   activity.OutcomeSuccess,
	})
	e.notifyBestEffort(ctx, &notify.Notification{
		Type:    notify.TypeTask,
		Title:   "Objective Neutralized",
		Message: fmt.Sprintf("Task %q resolved with %d%% confidence.", final.Description, reply.Confidence),
		Link:    fmt.Sprintf("/dashboard/meetings/%s/summary", meetingID),
		Metadata: map[string]string{
			"meeting_id": meetingID,
			"task_id":    taskID,
			"status":     string(meeting.TaskDone),
		},
	})

	cp := *final
	return &cp, nil
}

// acquire transitions the task to neutralizing under optimistic concurrency
// and returns the saved meeting holding the lock, plus the task's prior state.
func (e *Engine) acquire(ctx context.Context, meetingID, taskID string) (*meeting.Meeting, meeting.TaskStatus, error) {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		m, err := e.store.Get(ctx, meetingID)
		if err != nil {
			return nil, "", err
		}
		task := m.FindTask(taskID)
		if task == nil {
			return nil, "", fmt.Errorf("task %s: %w", taskID, cverrors.ErrNotFound)
		}

		switch task.Status {
		case meeting.TaskDone:
			return nil, "", fmt.Errorf("objective already neutralized: %w", cverrors.ErrInvalidState)
		case meeting.TaskNeutralizing:
			return nil, "", fmt.Errorf("neutralization already in flight for task %s: %w", taskID, cverrors.ErrConflict)
		}
		if !meeting.CanTaskTransition(task.Status, meeting.TaskNeutralizing) {
			return nil, "", fmt.Errorf("task %s cannot be neutralized from %s: %w", taskID, task.Status, cverrors.ErrInvalidState)
		}

		prev := task.Status
		task.Status = meeting.TaskNeutralizing
		saved, err := e.store.Save(ctx, m)
		if err == nil {
			return saved, prev, nil
		}
		if !cverrors.IsConflict(err) {
			return nil, "", err
		}
		// Someone else wrote between read and write; re-read. If they took
		// the lock, the next iteration rejects with ErrConflict.
	}
	return nil, "", fmt.Errorf("task %s: lost neutralizing lock race: %w", taskID, cverrors.ErrConflict)
}

// resolve runs the inference call under the attempt timeout, retrying exactly
// once on any failure.
func (e *Engine) resolve(ctx context.Context, m *meeting.Meeting, task *meeting.Task) (*agentReply, error) {
	prompt := BuildPrompt(m, task)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			e.logger.Warn("Retrying neutralization inference", logging.F("task_id", task.ID))
			if e.metrics != nil {
				e.metrics.InferenceRetriesTotal.Inc()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		output, err := e.client.Generate(attemptCtx, inference.Request{Prompt: prompt})
		cancel()
		if err != nil {
			lastErr = cverrors.Classify(err, "neutralize")
			continue
		}

		reply, err := parseReply(output)
		if err != nil {
			lastErr = err
			continue
		}
		return reply, nil
	}
	return nil, lastErr
}

// parseReply decodes the model's JSON, tolerating markdown code fences.
func parseReply(output string) (*agentReply, error) {
	cleaned := strings.TrimSpace(codeFenceRe.ReplaceAllString(output, ""))

	var reply agentReply
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return nil, cverrors.NewMalformedResponse("neutralize", "agent reply is not valid JSON", err)
	}
	if strings.TrimSpace(reply.Resolution) == "" {
		return nil, cverrors.NewMalformedResponse("neutralize", "agent reply has no resolution", nil)
	}
	if reply.Confidence < 0 {
		reply.Confidence = 0
	}
	if reply.Confidence > 100 {
		reply.Confidence = 100
	}
	return &reply, nil
}

// finalize writes the task's terminal state, but only if the meeting still
// carries the version we locked. A changed version means another writer (the
// timeout path, or a competing attempt after recovery) already settled the
// task, and this write must be discarded.
func (e *Engine) finalize(ctx context.Context, locked *meeting.Meeting, taskID string, apply func(*meeting.Task)) (*meeting.Task, error) {
	cur, err := e.store.Get(ctx, locked.ID)
	if err != nil {
		return nil, err
	}
	if cur.Version != locked.Version {
		return nil, fmt.Errorf("task %s settled by another writer: %w", taskID, cverrors.ErrConflict)
	}
	task := cur.FindTask(taskID)
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, cverrors.ErrNotFound)
	}
	apply(task)
	saved, err := e.store.Save(ctx, cur)
	if err != nil {
		return nil, err
	}
	return saved.FindTask(taskID), nil
}

// fail rolls the task back to failed, records the audit entry, emits the
// failure notification, and maps the internal error to the generic caller
// message. The task never silently returns to pending: failed preserves the
// fact an attempt happened.
func (e *Engine) fail(ctx context.Context, who actor.Identity, locked *meeting.Meeting, taskID string, prevState meeting.TaskStatus, cause error, log logging.Logger) error {
	log.Error("Neutralization failed", logging.Err(cause))

	reason := cause.Error()
	if _, err := e.finalize(ctx, locked, taskID, func(t *meeting.Task) {
		t.Status = meeting.TaskFailed
		t.FailureReason = reason
	}); err != nil {
		// The rollback itself lost a race or the store failed; the audit
		// entry below still records the attempt.
		log.Error("Failed to persist neutralization rollback", logging.Err(err))
	}

	e.recordBestEffort(ctx, &activity.Entry{
		Kind:      activity.KindNeutralization,
		Action:    "task_failed",
		ActorID:   who.ID,
		ActorName: who.DisplayName,
		TaskID:    taskID,
		MeetingID: locked.ID,
		PrevState: string(prevState),
		NewState:  string(meeting.TaskFailed),
		Outcome:   activity.OutcomeFailure,
		Error:     reason,
	})
	e.notifyBestEffort(ctx, &notify.Notification{
		Type:    notify.TypeTask,
		Title:   "Neutralization Failed",
		Message: "An objective could not be resolved and reverted to manual handling.",
		Link:    fmt.Sprintf("/dashboard/meetings/%s/summary", locked.ID),
		Metadata: map[string]string{
			"meeting_id": locked.ID,
			"task_id":    taskID,
			"status":     string(meeting.TaskFailed),
		},
	})

	return fmt.Errorf("%w: %w", ErrTryAgain, cause)
}

// observe records attempt outcome metrics when metrics are attached.
func (e *Engine) observe(outcome string, started time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.NeutralizationsTotal.WithLabelValues(outcome).Inc()
	e.metrics.NeutralizationSeconds.Observe(time.Since(started).Seconds())
}

func (e *Engine) notifyBestEffort(ctx context.Context, n *notify.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.logger.Warn("Failed to deliver notification", logging.Err(err), logging.F("type", string(n.Type)))
	}
}

func (e *Engine) recordBestEffort(ctx context.Context, entry *activity.Entry) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, entry); err != nil {
		e.logger.Warn("Failed to record audit entry", logging.Err(err), logging.F("action", entry.Action))
	}
}
