// Package meeting defines the meeting domain model: the Meeting record, its
// embedded action-item Tasks, and the status machines both move through.
package meeting

import (
	"strings"
	"time"
)

// Status represents the meeting lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusLive       Status = "live"
	StatusEnded      Status = "ended"
	StatusFailed     Status = "failed"
	StatusSummarized Status = "summarized"
)

// TaskStatus represents the state of a single action item.
type TaskStatus string

const (
	TaskPending      TaskStatus = "pending"
	TaskNeutralizing TaskStatus = "neutralizing"
	TaskDone         TaskStatus = "done"
	TaskFailed       TaskStatus = "failed"
)

// UnassignedSentinel is the literal assignee value for tasks without an owner.
const UnassignedSentinel = "Unassigned"

// summaryErrorPrefix marks a summary field holding a failure description
// instead of real content.
const summaryErrorPrefix = "Error:"

// Task is an action item extracted from a meeting summary. Tasks are owned
// exclusively by their parent meeting and have no identity outside it.
type Task struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Assignee    string `json:"assignee"`
	// DueDate is the deadline as extracted from the summary, nil when the
	// model reported "None".
	DueDate *string    `json:"due_date,omitempty"`
	Status  TaskStatus `json:"status"`

	// Populated only by the neutralization engine.
	AgentOutput     string   `json:"agent_output,omitempty"`
	ConfidenceScore int      `json:"confidence_score,omitempty"`
	NextSteps       []string `json:"next_steps,omitempty"`
	FailureReason   string   `json:"failure_reason,omitempty"`
}

// Meeting is the top-level scheduling entity. The Tasks slice preserves
// extraction order, which is meaningful for display and idempotent
// re-extraction.
type Meeting struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	Status      Status    `json:"status"`

	// AudioRef references the recorded artifact, empty until audio is attached.
	AudioRef string `json:"audio_ref,omitempty"`

	// Summary is empty until the pipeline succeeds; on failure it holds a
	// human-readable error description starting with "Error:".
	Summary string `json:"summary,omitempty"`

	Tasks []Task `json:"tasks"`

	// Version increments on every save and backs the store's optimistic
	// concurrency check.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// validTransitions enumerates allowed meeting status transitions. Audio attach
// and explicit end are both valid direct entry points to ended; failed is
// recoverable because a re-triggered pipeline may still produce a summary.
var validTransitions = map[Status][]Status{
	StatusScheduled:  {StatusLive, StatusEnded},
	StatusLive:       {StatusEnded},
	StatusEnded:      {StatusSummarized, StatusFailed},
	StatusFailed:     {StatusSummarized, StatusFailed},
	StatusSummarized: {StatusSummarized},
}

// CanTransition reports whether a meeting may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// validTaskTransitions enumerates allowed task status transitions. done is
// terminal; failed may be retried through neutralizing.
var validTaskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:      {TaskNeutralizing},
	TaskNeutralizing: {TaskDone, TaskFailed},
	TaskFailed:       {TaskNeutralizing},
	TaskDone:         {},
}

// CanTaskTransition reports whether a task may move from one status to another.
func CanTaskTransition(from, to TaskStatus) bool {
	for _, next := range validTaskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FindTask returns a pointer to the task with the given id, or nil.
// The pointer aliases the meeting's Tasks slice so callers can mutate in place.
func (m *Meeting) FindTask(taskID string) *Task {
	for i := range m.Tasks {
		if m.Tasks[i].ID == taskID {
			return &m.Tasks[i]
		}
	}
	return nil
}

// HasAudio reports whether a recorded artifact has been attached.
func (m *Meeting) HasAudio() bool {
	return m.AudioRef != ""
}

// SummaryReady reports whether the summary holds real content rather than an
// error sentinel.
func (m *Meeting) SummaryReady() bool {
	s := strings.TrimSpace(m.Summary)
	return s != "" && !strings.HasPrefix(s, summaryErrorPrefix)
}

// IsErrorSummary reports whether the summary field holds a failure description.
func (m *Meeting) IsErrorSummary() bool {
	return strings.HasPrefix(strings.TrimSpace(m.Summary), summaryErrorPrefix)
}

// Clone returns a deep copy of the meeting. Stores hand out clones so callers
// never alias the stored record.
func (m *Meeting) Clone() *Meeting {
	cp := *m
	cp.Tasks = make([]Task, len(m.Tasks))
	copy(cp.Tasks, m.Tasks)
	for i := range cp.Tasks {
		if m.Tasks[i].DueDate != nil {
			due := *m.Tasks[i].DueDate
			cp.Tasks[i].DueDate = &due
		}
		if m.Tasks[i].NextSteps != nil {
			steps := make([]string, len(m.Tasks[i].NextSteps))
			copy(steps, m.Tasks[i].NextSteps)
			cp.Tasks[i].NextSteps = steps
		}
	}
	return &cp
}
