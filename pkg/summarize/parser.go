package summarize

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/conclave-hq/conclave/pkg/meeting"
)

// noDeadlineSentinel is what the prompt instructs the model to emit for tasks
// without a deadline.
const noDeadlineSentinel = "None"

var (
	// actionItemsRe captures the body of the action-items section, up to the
	// next heading or end of output. The heading match is tolerant of the
	// model dropping or restyling the section number.
	actionItemsRe = regexp.MustCompile(`(?s)##\s*(?:4[.)]?\s*)?Action Items\s*\n(.*?)(?:\n##|$)`)

	// itemRe matches the exact line contract the prompt demands:
	// - Task Description • Assigned To: Name • Deadline: Date/Time
	itemRe = regexp.MustCompile(`(?i)-\s*(.*?)\s*•\s*Assigned To:\s*(.*?)\s*•\s*Deadline:\s*(.*)`)
)

// ExtractTasks parses action items out of model output. Lines matching the
// full contract yield complete tasks; plain bullets degrade to unassigned
// tasks with no deadline. Parenthesized lines are echoed prompt instructions
// and are skipped.
func ExtractTasks(summary string) []meeting.Task {
	section := actionItemsRe.FindStringSubmatch(summary)
	if section == nil {
		return nil
	}

	var tasks []meeting.Task
	for _, line := range strings.Split(strings.TrimSpace(section[1]), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "(") {
			continue
		}
		if m := itemRe.FindStringSubmatch(line); m != nil {
			desc := strings.TrimSpace(m[1])
			if desc == "" {
				continue
			}
			assignee := strings.TrimSpace(m[2])
			if assignee == "" {
				assignee = meeting.UnassignedSentinel
			}
			task := meeting.Task{
				ID:          uuid.NewString(),
				Description: desc,
				Assignee:    assignee,
				Status:      meeting.TaskPending,
			}
			if deadline := strings.TrimSpace(m[3]); deadline != "" && deadline != noDeadlineSentinel {
				task.DueDate = &deadline
			}
			tasks = append(tasks, task)
			continue
		}

		plain := strings.TrimSpace(strings.TrimPrefix(trimmed, "-"))
		if plain == "" || strings.HasPrefix(plain, "(") {
			continue
		}
		tasks = append(tasks, meeting.Task{
			ID:          uuid.NewString(),
			Description: plain,
			Assignee:    meeting.UnassignedSentinel,
			Status:      meeting.TaskPending,
		})
	}
	return tasks
}
