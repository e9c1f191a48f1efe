package meeting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"scheduled to live", StatusScheduled, StatusLive, true},
		{"scheduled to ended", StatusScheduled, StatusEnded, true},
		{"live to ended", StatusLive, StatusEnded, true},
		{"ended to summarized", StatusEnded, StatusSummarized, true},
		{"ended to failed", StatusEnded, StatusFailed, true},
		{"failed to summarized", StatusFailed, StatusSummarized, true},
		{"failed to failed", StatusFailed, StatusFailed, true},
		{"summarized re-summarize", StatusSummarized, StatusSummarized, true},
		{"scheduled to summarized", StatusScheduled, StatusSummarized, false},
		{"live to scheduled", StatusLive, StatusScheduled, false},
		{"summarized to live", StatusSummarized, StatusLive, false},
		{"summarized to failed", StatusSummarized, StatusFailed, false},
		{"ended to live", StatusEnded, StatusLive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanTaskTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    TaskStatus
		to      TaskStatus
		allowed bool
	}{
		{"pending to neutralizing", TaskPending, TaskNeutralizing, true},
		{"neutralizing to done", TaskNeutralizing, TaskDone, true},
		{"neutralizing to failed", TaskNeutralizing, TaskFailed, true},
		{"failed retry", TaskFailed, TaskNeutralizing, true},
		{"pending to done", TaskPending, TaskDone, false},
		{"done is terminal", TaskDone, TaskNeutralizing, false},
		{"done to failed", TaskDone, TaskFailed, false},
		{"failed to done directly", TaskFailed, TaskDone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTaskTransition(tt.from, tt.to))
		})
	}
}

func TestFindTask(t *testing.T) {
	m := &Meeting{
		Tasks: []Task{
			{ID: "t1", Description: "Prepare deck"},
			{ID: "t2", Description: "Send minutes"},
		},
	}

	task := m.FindTask("t2")
	require.NotNil(t, task)
	assert.Equal(t, "Send minutes", task.Description)

	// Mutation through the returned pointer lands in the meeting.
	task.Status = TaskNeutralizing
	assert.Equal(t, TaskNeutralizing, m.Tasks[1].Status)

	assert.Nil(t, m.FindTask("nope"))
}

func TestSummaryReady(t *testing.T) {
	tests := []struct {
		name    string
		summary string
		ready   bool
	}{
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"real summary", "## 1. Meeting Overview\n...", true},
		{"quota sentinel", "Error: AI quota exceeded. Please try again later.", false},
		{"generic sentinel", "Error: summary generation failed: boom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Meeting{Summary: tt.summary}
			assert.Equal(t, tt.ready, m.SummaryReady())
			if tt.summary != "" && !tt.ready && tt.name != "whitespace" {
				assert.True(t, m.IsErrorSummary())
			}
		})
	}
}

func TestClone_DeepCopiesTasks(t *testing.T) {
	due := "2025-01-10"
	m := &Meeting{
		ID:    "m1",
		Title: "Planning",
		Date:  time.Now(),
		Tasks: []Task{
			{ID: "t1", DueDate: &due, NextSteps: []string{"a", "b"}},
		},
	}

	cp := m.Clone()
	cp.Tasks[0].Status = TaskDone
	*cp.Tasks[0].DueDate = "2030-12-31"
	cp.Tasks[0].NextSteps[0] = "changed"

	assert.Equal(t, TaskStatus(""), m.Tasks[0].Status)
	assert.Equal(t, "2025-01-10", *m.Tasks[0].DueDate)
	assert.Equal(t, "a", m.Tasks[0].NextSteps[0])
}
