// Package lifecycle drives meetings through their status machine: create,
// join, end, audio attach, and summary orchestration.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conclave-hq/conclave/pkg/actor"
	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/meeting"
	"github.com/conclave-hq/conclave/pkg/queue"
)

// saveAttempts bounds optimistic-concurrency retries.
const saveAttempts = 3

// SummaryState is the coarse answer to "is the summary ready yet".
type SummaryState string

const (
	SummaryReady      SummaryState = "ready"
	SummaryProcessing SummaryState = "processing"
	SummaryFailed     SummaryState = "failed"
	SummaryNotStarted SummaryState = "not_started"
)

// SummaryStatus describes the summary's progress for one meeting.
type SummaryStatus struct {
	State SummaryState `json:"status"`
	// Summary holds the content when ready, or the failure description when
	// failed.
	Summary string `json:"summary,omitempty"`
	Title   string `json:"meeting_title,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateParams are the caller-supplied fields for a new meeting.
type CreateParams struct {
	Title       string
	Description string
	Date        time.Time
}

// TaskParams are the caller-supplied fields for a manually added task.
type TaskParams struct {
	Description string
	Assignee    string
	DueDate     *string
}

// TaskRef is a task joined with its owning meeting, for cross-meeting listings.
type TaskRef struct {
	MeetingID    string       `json:"meeting_id"`
	MeetingTitle string       `json:"meeting_title"`
	Task         meeting.Task `json:"task"`
}

// Controller owns meeting lifecycle transitions and summary job submission.
type Controller struct {
	store  meeting.Store
	queue  queue.Queue
	logger logging.Logger

	now func() time.Time
}

// NewController wires a lifecycle controller.
func NewController(store meeting.Store, q queue.Queue, logger logging.Logger) *Controller {
	return &Controller{
		store:  store,
		queue:  q,
		logger: logger.With(logging.F("component", "lifecycle")),
		now:    time.Now,
	}
}

// Create schedules a new meeting.
func (c *Controller) Create(ctx context.Context, params CreateParams) (*meeting.Meeting, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", cverrors.ErrValidation)
	}

	date := params.Date
	if date.IsZero() {
		date = c.now()
	}

	m, err := c.store.Create(ctx, &meeting.Meeting{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Date:        date,
		Status:      meeting.StatusScheduled,
	})
	if err != nil {
		return nil, err
	}

	who := actor.FromContext(ctx)
	c.logger.Info("Meeting created",
		logging.F("meeting_id", m.ID),
		logging.F("actor", who.ID))
	return m, nil
}

// Get returns one meeting.
func (c *Controller) Get(ctx context.Context, id string) (*meeting.Meeting, error) {
	return c.store.Get(ctx, id)
}

// List returns all meetings, newest first.
func (c *Controller) List(ctx context.Context) ([]*meeting.Meeting, error) {
	return c.store.List(ctx)
}

// Join moves a scheduled meeting to live. Joining a meeting that is already
// live is a no-op.
func (c *Controller) Join(ctx context.Context, id string) (*meeting.Meeting, error) {
	return c.transition(ctx, id, meeting.StatusLive)
}

// End moves a meeting to ended. Ending an already ended meeting is a no-op.
func (c *Controller) End(ctx context.Context, id string) (*meeting.Meeting, error) {
	return c.transition(ctx, id, meeting.StatusEnded)
}

func (c *Controller) transition(ctx context.Context, id string, to meeting.Status) (*meeting.Meeting, error) {
	return c.saveWith(ctx, id, func(m *meeting.Meeting) error {
		if m.Status == to {
			return nil
		}
		if !meeting.CanTransition(m.Status, to) {
			return fmt.Errorf("meeting %s cannot move from %s to %s: %w", id, m.Status, to, cverrors.ErrInvalidState)
		}
		m.Status = to
		return nil
	})
}

// AttachAudio records the meeting's audio artifact, ends the meeting if it is
// still running, and submits a summarization job.
func (c *Controller) AttachAudio(ctx context.Context, id, audioRef string) (*meeting.Meeting, error) {
	if strings.TrimSpace(audioRef) == "" {
		return nil, fmt.Errorf("audio ref is required: %w", cverrors.ErrValidation)
	}

	m, err := c.saveWith(ctx, id, func(m *meeting.Meeting) error {
		switch m.Status {
		case meeting.StatusScheduled, meeting.StatusLive:
			m.Status = meeting.StatusEnded
		}
		m.AudioRef = audioRef
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.submit(ctx, m.ID, queue.TriggerAudioAttach)
	return m, nil
}

// Status reports summary progress, lazily submitting a job when a meeting
// ended with audio but the pipeline never ran. The queue's per-meeting dedup
// keeps concurrent polls from piling up jobs.
func (c *Controller) Status(ctx context.Context, id string) (*SummaryStatus, error) {
	m, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if m.SummaryReady() {
		return &SummaryStatus{State: SummaryReady, Summary: m.Summary, Title: m.Title}, nil
	}

	if m.Status == meeting.StatusFailed {
		failure := m.Summary
		if failure == "" {
			failure = "Summary generation failed"
		}
		return &SummaryStatus{State: SummaryFailed, Summary: failure, Title: m.Title}, nil
	}

	if m.Status == meeting.StatusEnded || m.HasAudio() {
		if m.Summary == "" {
			c.submit(ctx, m.ID, queue.TriggerLazyPoll)
		}
		return &SummaryStatus{State: SummaryProcessing, Title: m.Title}, nil
	}

	msg := "Meeting has not started yet."
	if m.Status == meeting.StatusLive {
		msg = "Meeting is live. Waiting for it to end."
	}
	return &SummaryStatus{State: SummaryNotStarted, Title: m.Title, Message: msg}, nil
}

// TriggerSummary explicitly requests summarization. It reports false when no
// job was submitted: the summary already exists, or one is in flight.
func (c *Controller) TriggerSummary(ctx context.Context, id string) (bool, error) {
	m, err := c.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !m.HasAudio() {
		return false, fmt.Errorf("no audio available to summarize: %w", cverrors.ErrValidation)
	}
	if m.Status == meeting.StatusSummarized && m.SummaryReady() {
		return false, nil
	}

	queued, err := c.queue.Enqueue(ctx, queue.Job{
		MeetingID:   m.ID,
		Trigger:     queue.TriggerExplicit,
		RequestedBy: actor.FromContext(ctx).ID,
		EnqueuedAt:  c.now(),
	})
	if err != nil {
		return false, fmt.Errorf("submitting summary job: %w", err)
	}
	return queued, nil
}

// Resummarize forces a fresh pipeline run for an already summarized meeting.
// The new output replaces summary and tasks wholesale.
func (c *Controller) Resummarize(ctx context.Context, id string) (bool, error) {
	m, err := c.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !m.HasAudio() {
		return false, fmt.Errorf("no audio available to summarize: %w", cverrors.ErrValidation)
	}
	queued, err := c.queue.Enqueue(ctx, queue.Job{
		MeetingID:   m.ID,
		Trigger:     queue.TriggerExplicit,
		RequestedBy: actor.FromContext(ctx).ID,
		EnqueuedAt:  c.now(),
	})
	if err != nil {
		return false, fmt.Errorf("submitting summary job: %w", err)
	}
	return queued, nil
}

// AddTask appends a manually created task to a meeting.
func (c *Controller) AddTask(ctx context.Context, meetingID string, params TaskParams) (*meeting.Task, error) {
	if strings.TrimSpace(params.Description) == "" {
		return nil, fmt.Errorf("task description is required: %w", cverrors.ErrValidation)
	}

	assignee := strings.TrimSpace(params.Assignee)
	if assignee == "" {
		assignee = meeting.UnassignedSentinel
	}
	task := meeting.Task{
		ID:          uuid.NewString(),
		Description: strings.TrimSpace(params.Description),
		Assignee:    assignee,
		DueDate:     params.DueDate,
		Status:      meeting.TaskPending,
	}

	if _, err := c.saveWith(ctx, meetingID, func(m *meeting.Meeting) error {
		m.Tasks = append(m.Tasks, task)
		return nil
	}); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTaskStatus is a manual override that sets a task's status directly,
// bypassing the neutralization engine. No activity log entry is written.
func (c *Controller) UpdateTaskStatus(ctx context.Context, meetingID, taskID string, status meeting.TaskStatus) (*meeting.Task, error) {
	switch status {
	case meeting.TaskPending, meeting.TaskNeutralizing, meeting.TaskDone, meeting.TaskFailed:
	default:
		return nil, fmt.Errorf("unknown task status %q: %w", status, cverrors.ErrValidation)
	}

	var updated meeting.Task
	if _, err := c.saveWith(ctx, meetingID, func(m *meeting.Meeting) error {
		task := m.FindTask(taskID)
		if task == nil {
			return fmt.Errorf("task %s: %w", taskID, cverrors.ErrNotFound)
		}
		task.Status = status
		updated = *task
		return nil
	}); err != nil {
		return nil, err
	}

	c.logger.Info("Task status overridden",
		logging.F("meeting_id", meetingID),
		logging.F("task_id", taskID),
		logging.F("status", string(status)))
	return &updated, nil
}

// Tasks returns every task across all meetings, in meeting order.
func (c *Controller) Tasks(ctx context.Context) ([]TaskRef, error) {
	meetings, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var out []TaskRef
	for _, m := range meetings {
		for _, t := range m.Tasks {
			out = append(out, TaskRef{MeetingID: m.ID, MeetingTitle: m.Title, Task: t})
		}
	}
	return out, nil
}

// saveWith applies a mutation under optimistic concurrency, re-reading and
// reapplying on version conflicts.
func (c *Controller) saveWith(ctx context.Context, id string, apply func(*meeting.Meeting) error) (*meeting.Meeting, error) {
	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		m, err := c.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := apply(m); err != nil {
			return nil, err
		}
		saved, err := c.store.Save(ctx, m)
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

// submit enqueues a summarization job, logging rather than failing when the
// queue is unavailable.
func (c *Controller) submit(ctx context.Context, meetingID string, trigger queue.Trigger) {
	queued, err := c.queue.Enqueue(ctx, queue.Job{
		MeetingID:   meetingID,
		Trigger:     trigger,
		RequestedBy: actor.FromContext(ctx).ID,
		EnqueuedAt:  c.now(),
	})
	if err != nil {
		c.logger.Error("Failed to submit summary job", logging.Err(err), logging.F("meeting_id", meetingID))
		return
	}
	if queued {
		c.logger.Info("Summary job submitted",
			logging.F("meeting_id", meetingID),
			logging.F("trigger", string(trigger)))
	}
}
