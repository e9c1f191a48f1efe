package summarize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-hq/conclave/pkg/meeting"
)

const sampleSummary = `## 1. Meeting Overview
Title: Launch sync. Purpose: coordinate the release.

## 2. Key Discussion Points
- Release window moved to Friday.

## 3. Decisions Taken
- Ship behind a feature flag.

## 4. Action Items
- Prepare release notes • Assigned To: Dana • Deadline: Friday 5pm
- Update status page • Assigned To: Unassigned • Deadline: None

## 5. Deadlines / Timeline
- Friday: release.

## 6. Conclusion
Short and productive.
`

func TestExtractTasks_FullContract(t *testing.T) {
	tasks := ExtractTasks(sampleSummary)
	require.Len(t, tasks, 2)

	assert.Equal(t, "Prepare release notes", tasks[0].Description)
	assert.Equal(t, "Dana", tasks[0].Assignee)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, "Friday 5pm", *tasks[0].DueDate)
	assert.Equal(t, meeting.TaskPending, tasks[0].Status)
	assert.NotEmpty(t, tasks[0].ID)

	assert.Equal(t, "Update status page", tasks[1].Description)
	assert.Equal(t, meeting.UnassignedSentinel, tasks[1].Assignee)
	assert.Nil(t, tasks[1].DueDate)
}

func TestExtractTasks_NoActionItemsSection(t *testing.T) {
	tasks := ExtractTasks("## 1. Meeting Overview\nNothing else.\n")
	assert.Empty(t, tasks)
}

func TestExtractTasks_SectionAtEndOfOutput(t *testing.T) {
	summary := "## 4. Action Items\n- Close the books • Assigned To: Lee • Deadline: None"
	tasks := ExtractTasks(summary)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Close the books", tasks[0].Description)
	assert.Equal(t, "Lee", tasks[0].Assignee)
}

func TestExtractTasks_HeadingVariants(t *testing.T) {
	variants := []string{
		"## 4. Action Items\n- Do it • Assigned To: A • Deadline: None\n\n## 5. Deadlines\nnone",
		"## 4) Action Items\n- Do it • Assigned To: A • Deadline: None\n\n## 5. Deadlines\nnone",
		"## Action Items\n- Do it • Assigned To: A • Deadline: None\n\n## 5. Deadlines\nnone",
	}
	for _, summary := range variants {
		tasks := ExtractTasks(summary)
		require.Len(t, tasks, 1, "summary: %q", summary)
		assert.Equal(t, "Do it", tasks[0].Description)
	}
}

func TestExtractTasks_CaseInsensitiveItemLabels(t *testing.T) {
	summary := "## 4. Action Items\n- Review budget • assigned to: Kim • deadline: Monday\n"
	tasks := ExtractTasks(summary)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Review budget", tasks[0].Description)
	assert.Equal(t, "Kim", tasks[0].Assignee)
	require.NotNil(t, tasks[0].DueDate)
	assert.Equal(t, "Monday", *tasks[0].DueDate)
}

func TestExtractTasks_PlainBulletFallback(t *testing.T) {
	summary := `## 4. Action Items
- Follow up with the vendor
(If no assignee or deadline is mentioned, write "Unassigned" or "None" respectively)

## 5. Deadlines / Timeline
none
`
	tasks := ExtractTasks(summary)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Follow up with the vendor", tasks[0].Description)
	assert.Equal(t, meeting.UnassignedSentinel, tasks[0].Assignee)
	assert.Nil(t, tasks[0].DueDate)
}

func TestExtractTasks_SkipsEmptyAndInstructionLines(t *testing.T) {
	summary := "## 4. Action Items\n\n(no action items were discussed)\n-\n"
	tasks := ExtractTasks(summary)
	assert.Empty(t, tasks)
}

func TestExtractTasks_EmptyAssigneeBecomesUnassigned(t *testing.T) {
	summary := "## 4. Action Items\n- Ship it • Assigned To:  • Deadline: None\n"
	tasks := ExtractTasks(summary)
	require.Len(t, tasks, 1)
	assert.Equal(t, meeting.UnassignedSentinel, tasks[0].Assignee)
}

func TestExtractTasks_UniqueIDs(t *testing.T) {
	tasks := ExtractTasks(sampleSummary)
	require.Len(t, tasks, 2)
	assert.NotEqual(t, tasks[0].ID, tasks[1].ID)
}
