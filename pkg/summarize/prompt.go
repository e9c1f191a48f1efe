package summarize

import (
	"fmt"
	"strings"

	"github.com/conclave-hq/conclave/pkg/meeting"
)

// notSpecified is used for date fields when the meeting has no scheduled time.
const notSpecified = "Not specified"

// BuildPrompt renders the summarization instruction for a meeting. The section
// headings and the action-item line format are load-bearing: ExtractTasks
// parses the model output against them.
func BuildPrompt(m *meeting.Meeting) string {
	description := m.Description
	if strings.TrimSpace(description) == "" {
		description = "No description provided"
	}

	date := notSpecified
	clock := notSpecified
	if !m.Date.IsZero() {
		date = m.Date.Format("Mon Jan 2 2006")
		clock = m.Date.Format("3:04:05 PM")
	}

	var b strings.Builder
	b.WriteString("You are an AI meeting assistant. Your goal is to provide a modern, clear, and professional summary of the meeting.\n")
	b.WriteString("Use simple English, clean formatting, and bold headings. Keep it easy to read and focus on clarity.\n\n")
	fmt.Fprintf(&b, "Meeting Title: %s\n", m.Title)
	fmt.Fprintf(&b, "Meeting Description: %s\n", description)
	fmt.Fprintf(&b, "Date: %s\n", date)
	fmt.Fprintf(&b, "Time: %s\n\n", clock)
	b.WriteString("Please structure your response exactly with these sections (using Markdown):\n\n")
	b.WriteString("## 1. Meeting Overview\n")
	b.WriteString("(Include strictly: Title, Date, Participants (if mentioned in audio), and Purpose of the meeting)\n\n")
	b.WriteString("## 2. Key Discussion Points\n")
	b.WriteString("(Provide a concise summary of the main topics discussed. Use bullet points and short paragraphs.)\n\n")
	b.WriteString("## 3. Decisions Taken\n")
	b.WriteString("(List the final conclusions and decisions made during the meeting.)\n\n")
	b.WriteString("## 4. Action Items\n")
	b.WriteString("(List the tasks clearly. Format each line exactly as: - Task Description • Assigned To: Name • Deadline: Date/Time)\n")
	b.WriteString("(If no assignee or deadline is mentioned, write \"Unassigned\" or \"None\" respectively)\n\n")
	b.WriteString("## 5. Deadlines / Timeline\n")
	b.WriteString("(Highlight important dates and milestones mentioned)\n\n")
	b.WriteString("## 6. Conclusion\n")
	b.WriteString("(A brief wrapping up of the meeting outcomes)\n\n")
	b.WriteString("Ensure the tone is professional but friendly. Avoid clutter and unnecessary text.\n")
	b.WriteString("Use proper spacing between sections.\n")
	return b.String()
}
