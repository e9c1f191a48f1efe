package triage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/inference"
	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/meeting"
	"github.com/conclave-hq/conclave/pkg/meeting/lifecycle"
	"github.com/conclave-hq/conclave/pkg/queue"
)

func newTriager(t *testing.T, client *inference.FakeClient) (*Triager, *meeting.MemoryStore) {
	t.Helper()
	store := meeting.NewMemoryStore()
	controller := lifecycle.NewController(store, queue.NewMemoryQueue(queue.DefaultConfig()), logging.NewNopLogger())
	return NewTriager(client, controller, logging.NewNopLogger()), store
}

func TestProcessEmail_CreatesMeeting(t *testing.T) {
	reply := `{
		"meetingRequired": true,
		"title": "Budget review",
		"description": "Quarterly numbers",
		"recommendedDateTime": "2026-03-09T15:00:00Z",
		"participants": ["dana@example.com"]
	}`
	tr, store := newTriager(t, inference.NewFakeClient(reply))

	res, err := tr.ProcessEmail(context.Background(), "Let's meet Monday to go over the budget.")
	require.NoError(t, err)
	require.NotNil(t, res.Meeting)

	assert.Equal(t, "Budget review", res.Meeting.Title)
	assert.Equal(t, "Quarterly numbers", res.Meeting.Description)
	assert.Equal(t, time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC), res.Meeting.Date)
	assert.Equal(t, meeting.StatusScheduled, res.Meeting.Status)

	stored, err := store.Get(context.Background(), res.Meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, "Budget review", stored.Title)
}

func TestProcessEmail_FencedReply(t *testing.T) {
	reply := "```json\n{\"meetingRequired\": true, \"title\": \"Sync\"}\n```"
	tr, _ := newTriager(t, inference.NewFakeClient(reply))

	res, err := tr.ProcessEmail(context.Background(), "schedule a call please")
	require.NoError(t, err)
	require.NotNil(t, res.Meeting)
	assert.Equal(t, "Sync", res.Meeting.Title)
}

func TestProcessEmail_StringBooleanAccepted(t *testing.T) {
	reply := `{"meetingRequired": "true", "title": "Sync"}`
	tr, _ := newTriager(t, inference.NewFakeClient(reply))

	res, err := tr.ProcessEmail(context.Background(), "let's meet")
	require.NoError(t, err)
	assert.NotNil(t, res.Meeting)
}

func TestProcessEmail_NoMeetingRequired(t *testing.T) {
	reply := `{"meetingRequired": false, "reason": "Just a newsletter."}`
	tr, store := newTriager(t, inference.NewFakeClient(reply))

	res, err := tr.ProcessEmail(context.Background(), "Weekly digest: nothing actionable.")
	require.NoError(t, err)
	assert.Nil(t, res.Meeting)
	assert.Equal(t, "Just a newsletter.", res.Reason)

	meetings, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, meetings)
}

func TestProcessEmail_MissingTitleFallsBack(t *testing.T) {
	reply := `{"meetingRequired": true}`
	tr, _ := newTriager(t, inference.NewFakeClient(reply))

	res, err := tr.ProcessEmail(context.Background(), "let's meet")
	require.NoError(t, err)
	require.NotNil(t, res.Meeting)
	assert.Equal(t, "Email Generated Meeting", res.Meeting.Title)
}

func TestProcessEmail_BadTimeFallsBackToNow(t *testing.T) {
	reply := `{"meetingRequired": true, "title": "Sync", "recommendedDateTime": "next Tuesday-ish"}`
	tr, _ := newTriager(t, inference.NewFakeClient(reply))
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fixed }

	res, err := tr.ProcessEmail(context.Background(), "let's meet")
	require.NoError(t, err)
	require.NotNil(t, res.Meeting)
	assert.Equal(t, fixed, res.Meeting.Date)
}

func TestProcessEmail_MalformedReply(t *testing.T) {
	tr, _ := newTriager(t, inference.NewFakeClient("I think you should meet, probably."))

	_, err := tr.ProcessEmail(context.Background(), "let's meet")
	assert.True(t, cverrors.IsMalformedResponse(err))
}

func TestProcessEmail_EmptyEmail(t *testing.T) {
	tr, _ := newTriager(t, inference.NewFakeClient())

	_, err := tr.ProcessEmail(context.Background(), "   ")
	assert.True(t, cverrors.IsValidation(err))
	assert.Empty(t, tr.client.(*inference.FakeClient).Calls())
}

func TestProcessEmail_PromptEmbedsEmail(t *testing.T) {
	reply := `{"meetingRequired": false, "reason": "n/a"}`
	client := inference.NewFakeClient(reply)
	tr, _ := newTriager(t, client)

	_, err := tr.ProcessEmail(context.Background(), "Can we schedule a call on Friday?")
	require.NoError(t, err)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, `"""Can we schedule a call on Friday?"""`)
	assert.Contains(t, calls[0].Prompt, "respond ONLY in valid JSON")
}
