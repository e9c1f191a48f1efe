// Package triage turns raw email text into a scheduled meeting when the
// inference capability judges one is needed.
package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
	"github.com/conclave-hq/conclave/pkg/inference"
	"github.com/conclave-hq/conclave/pkg/logging"
	"github.com/conclave-hq/conclave/pkg/meeting"
	"github.com/conclave-hq/conclave/pkg/meeting/lifecycle"
)

// fallbackTitle names meetings the model required but did not title.
const fallbackTitle = "Email Generated Meeting"

var codeFenceRe = regexp.MustCompile("```(?:json)?\\n?|\\n?```")

// verdict is the JSON shape the prompt demands. meetingRequired sometimes
// arrives as the string "true", so it gets a tolerant decoder.
type verdict struct {
	MeetingRequired requiredFlag `json:"meetingRequired"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	RecommendedTime string       `json:"recommendedDateTime"`
	Participants    []string     `json:"participants"`
	Reason          string       `json:"reason"`
}

type requiredFlag bool

func (f *requiredFlag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = requiredFlag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = requiredFlag(strings.EqualFold(s, "true"))
		return nil
	}
	return fmt.Errorf("meetingRequired is neither bool nor string")
}

// Result is the triage outcome. Meeting is nil when no meeting was required;
// Reason then explains why.
type Result struct {
	Meeting *meeting.Meeting `json:"meeting,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// Triager analyzes emails and schedules meetings through the lifecycle
// controller.
type Triager struct {
	client     inference.Client
	controller *lifecycle.Controller
	logger     logging.Logger

	now func() time.Time
}

// NewTriager wires an email triager.
func NewTriager(client inference.Client, controller *lifecycle.Controller, logger logging.Logger) *Triager {
	return &Triager{
		client:     client,
		controller: controller,
		logger:     logger.With(logging.F("component", "triage")),
		now:        time.Now,
	}
}

// ProcessEmail asks the model whether the email calls for a meeting and
// creates one when it does. An unparseable reply is a malformed_response
// inference failure, never a silent "no meeting".
func (t *Triager) ProcessEmail(ctx context.Context, emailContent string) (*Result, error) {
	if strings.TrimSpace(emailContent) == "" {
		return nil, fmt.Errorf("email content is required: %w", cverrors.ErrValidation)
	}

	output, err := t.client.Generate(ctx, inference.Request{Prompt: t.buildPrompt(emailContent)})
	if err != nil {
		return nil, cverrors.Classify(err, "triage")
	}

	cleaned := strings.TrimSpace(codeFenceRe.ReplaceAllString(output, ""))
	var v verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		t.logger.Error("Unparseable triage reply", logging.Err(err))
		return nil, cverrors.NewMalformedResponse("triage", "triage reply is not valid JSON", err)
	}

	if !bool(v.MeetingRequired) {
		reason := v.Reason
		if reason == "" {
			reason = "No meeting detected in this email."
		}
		t.logger.Info("No meeting required", logging.F("reason", reason))
		return &Result{Reason: reason}, nil
	}

	title := strings.TrimSpace(v.Title)
	if title == "" {
		title = fallbackTitle
	}
	date := t.now()
	if v.RecommendedTime != "" {
		if parsed, err := time.Parse(time.RFC3339, v.RecommendedTime); err == nil {
			date = parsed
		} else {
			t.logger.Warn("Unparseable recommended time, scheduling now",
				logging.F("recommended", v.RecommendedTime))
		}
	}

	m, err := t.controller.Create(ctx, lifecycle.CreateParams{
		Title:       title,
		Description: v.Description,
		Date:        date,
	})
	if err != nil {
		return nil, fmt.Errorf("creating triaged meeting: %w", err)
	}

	t.logger.Info("Meeting generated from email",
		logging.F("meeting_id", m.ID),
		logging.F("participants", len(v.Participants)))
	return &Result{Meeting: m}, nil
}

func (t *Triager) buildPrompt(emailContent string) string {
	var b strings.Builder
	b.WriteString("You are an AI assistant for a meeting scheduling application.\n\n")
	b.WriteString("Carefully analyze the email below.\n\n")
	fmt.Fprintf(&b, "Current Time: %s\n\n", t.now().UTC().Format(time.RFC3339))
	b.WriteString("A meeting IS REQUIRED if the email includes:\n")
	b.WriteString("- phrases like \"let's meet\", \"schedule a meeting\", \"schedule a call\"\n")
	b.WriteString("- discussion requests\n")
	b.WriteString("- suggested date, time, or participants\n\n")
	b.WriteString("If a meeting is required, respond ONLY in valid JSON:\n\n")
	b.WriteString("{\n")
	b.WriteString("  \"meetingRequired\": true,\n")
	b.WriteString("  \"title\": \"string\",\n")
	b.WriteString("  \"description\": \"string\",\n")
	b.WriteString("  \"recommendedDateTime\": \"string (ISO 8601 format)\",\n")
	b.WriteString("  \"participants\": []\n")
	b.WriteString("}\n\n")
	b.WriteString("If a meeting is NOT required, respond ONLY in valid JSON:\n\n")
	b.WriteString("{\n")
	b.WriteString("  \"meetingRequired\": false,\n")
	b.WriteString("  \"reason\": \"string\"\n")
	b.WriteString("}\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- NO explanations\n")
	b.WriteString("- NO markdown\n")
	b.WriteString("- NO extra text\n\n")
	fmt.Fprintf(&b, "Email:\n\"\"\"%s\"\"\"\n", emailContent)
	return b.String()
}
