// Package chat answers questions about a meeting, grounded in its generated
// summary.
package chat

import (
	"context"
	"fmt"
	"strings"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/inference"
	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/meeting"
)

// maxSummaryChars bounds the summary text embedded in the prompt so long
// summaries stay within the model's context window.
const maxSummaryChars = 50000

// truncationMarker replaces the tail of an over-long summary.
const truncationMarker = "...[Truncated]"

// Turn roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one prior exchange in a conversation. The agent itself is
// stateless; callers carry the history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Agent answers participant questions using only the meeting summary as
// context.
type Agent struct {
	client inference.Client
	store  meeting.Store
	logger logging.Logger
}

// NewAgent wires a meeting chat agent.
func NewAgent(client inference.Client, store meeting.Store, logger logging.Logger) *Agent {
	return &Agent{
		client: client,
		store:  store,
		logger: logger.With(logging.F("component", "chat")),
	}
}

// Ask answers a question about a meeting. The meeting must have a ready
// summary; a failed or pending summary rejects with an invalid_state error
// rather than answering from nothing.
func (a *Agent) Ask(ctx context.Context, meetingID, message string, history []Turn) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is required: %w", cverrors.ErrValidation)
	}

	m, err := a.store.Get(ctx, meetingID)
	if err != nil {
		return "", err
	}
	if !m.SummaryReady() {
		return "", fmt.Errorf("meeting summary is not ready yet: %w", cverrors.ErrInvalidState)
	}

	reply, err := a.client.Generate(ctx, inference.Request{
		Prompt: a.buildPrompt(m, message, history),
	})
	if err != nil {
		return "", cverrors.Classify(err, "chat")
	}

	a.logger.Info("Chat reply generated",
		logging.F("meeting_id", meetingID),
		logging.F("history_turns", len(history)))
	return strings.TrimSpace(reply), nil
}

func (a *Agent) buildPrompt(m *meeting.Meeting, message string, history []Turn) string {
	summary := m.Summary
	if len(summary) > maxSummaryChars {
		summary = summary[:maxSummaryChars] + truncationMarker
	}

	var b strings.Builder
	b.WriteString("You are a helpful and intelligent AI Meeting Assistant defined by the meeting summary below.\n\n")
	b.WriteString("CONTEXT (MEETING SUMMARY):\n")
	b.WriteString(summary)
	b.WriteString("\n\nINSTRUCTIONS:\n")
	b.WriteString("1. Answer the user's questions clearly based ONLY on the meeting summary provided above.\n")
	b.WriteString("2. If the answer is not in the summary, politely say you don't have that information from this meeting.\n")
	b.WriteString("3. Be professional, concise, and friendly.\n")
	b.WriteString("4. You are chatting with a participant of the meeting.\n\n")
	b.WriteString("Keep your answers direct. Use bullet points for lists if needed.\n")

	if len(history) > 0 {
		b.WriteString("\nCONVERSATION SO FAR:\n")
		for _, turn := range history {
			label := "User"
			if turn.Role == RoleModel {
				label = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", label, turn.Text)
		}
	}

	fmt.Fprintf(&b, "\nUser: %s\nAssistant:", message)
	return b.String()
}
