package neutralize

import (
	"fmt"
	"strings"

	"github.com/conclave-hq/conclave/pkg/meeting"
)

// BuildPrompt renders the resolution instruction for a task. The JSON shape
// it demands is what parseReply decodes.
func BuildPrompt(m *meeting.Meeting, task *meeting.Task) string {
	var b strings.Builder
	b.WriteString("You are the \"Neutral Intelligence Agent\". Your mission is to autonomously resolve an action item from a meeting.\n\n")
	b.WriteString("CONTEXT:\n")
	fmt.Fprintf(&b, "Meeting Title: %s\n", m.Title)
	fmt.Fprintf(&b, "Task: %s\n", task.Description)
	fmt.Fprintf(&b, "Assigned To: %s\n\n", task.Assignee)
	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Solve the task or provide a high-quality draft/workflow to complete it.\n")
	b.WriteString("2. Provide a \"Confidence Score\" (0-100) based on how complete your solution is.\n")
	b.WriteString("3. Suggest \"Next Steps\" if any work remains.\n\n")
	b.WriteString("FORMAT YOUR RESPONSE AS JSON:\n")
	b.WriteString("{\n")
	b.WriteString("  \"summary\": \"Clear executive summary of what you did\",\n")
	b.WriteString("  \"resolution\": \"The actual draft/code/solution\",\n")
	b.WriteString("  \"confidence\": 85,\n")
	b.WriteString("  \"nextSteps\": [\"Step 1\", \"Step 2\"]\n")
	b.WriteString("}\n")
	return b.String()
}
