package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/inference"
	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/meeting"
)

func newAgentFixture(t *testing.T, client *inference.FakeClient, summary string) *Agent {
	t.Helper()
	store := meeting.NewMemoryStore()
	_, err := store.Create(context.Background(), &meeting.Meeting{
		ID:      "m1",
		Title:   "Launch sync",
		Date:    time.Date(2026, 3, 6, 14, 0, 0, 0, time.UTC),
		Status:  meeting.StatusSummarized,
		Summary: summary,
	})
	require.NoError(t, err)
	return NewAgent(client, store, logging.NewNopLogger())
}

func TestAsk_GroundsReplyInSummary(t *testing.T) {
	client := inference.NewFakeClient("The launch date is March 6th.")
	agent := newAgentFixture(t, client, "## Overview\nLaunch planned for March 6th.")

	reply, err := agent.Ask(context.Background(), "m1", "When do we launch?", nil)
	require.NoError(t, err)
	assert.Equal(t, "The launch date is March 6th.", reply)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Launch planned for March 6th.")
	assert.Contains(t, calls[0].Prompt, "based ONLY on the meeting summary")
	assert.Contains(t, calls[0].Prompt, "User: When do we launch?")
}

func TestAsk_HistoryAppearsInPrompt(t *testing.T) {
	client := inference.NewFakeClient("Yes.")
	agent := newAgentFixture(t, client, "## Overview\nBudget was approved.")

	history := []Turn{
		{Role: RoleUser, Text: "Was the budget discussed?"},
		{Role: RoleModel, Text: "Yes, the budget was approved."},
	}
	_, err := agent.Ask(context.Background(), "m1", "By whom?", history)
	require.NoError(t, err)

	prompt := client.Calls()[0].Prompt
	assert.Contains(t, prompt, "User: Was the budget discussed?")
	assert.Contains(t, prompt, "Assistant: Yes, the budget was approved.")
	assert.Contains(t, prompt, "User: By whom?")
}

func TestAsk_TruncatesLongSummary(t *testing.T) {
	client := inference.NewFakeClient("ok")
	agent := newAgentFixture(t, client, strings.Repeat("a", maxSummaryChars+100))

	_, err := agent.Ask(context.Background(), "m1", "Anything?", nil)
	require.NoError(t, err)

	prompt := client.Calls()[0].Prompt
	assert.Contains(t, prompt, truncationMarker)
	assert.NotContains(t, prompt, strings.Repeat("a", maxSummaryChars+1))
}

func TestAsk_RequiresMessage(t *testing.T) {
	agent := newAgentFixture(t, inference.NewFakeClient(), "## Overview\nDetails.")
	_, err := agent.Ask(context.Background(), "m1", "   ", nil)
	assert.True(t, cverrors.IsValidation(err))
}

func TestAsk_SummaryNotReady(t *testing.T) {
	client := inference.NewFakeClient("should not be called")

	for _, summary := range []string{"", "Error: generation failed"} {
		agent := newAgentFixture(t, client, summary)
		_, err := agent.Ask(context.Background(), "m1", "When do we launch?", nil)
		assert.True(t, cverrors.IsInvalidState(err))
	}
	assert.Empty(t, client.Calls())
}

func TestAsk_MeetingNotFound(t *testing.T) {
	agent := newAgentFixture(t, inference.NewFakeClient(), "## Overview\nDetails.")
	_, err := agent.Ask(context.Background(), "missing", "Hello?", nil)
	assert.True(t, cverrors.IsNotFound(err))
}
