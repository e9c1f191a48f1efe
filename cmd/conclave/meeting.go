package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conclave-hq/conclave/pkg/chat"
	"github.com/conclave-hq/conclave/pkg/meeting"
	"github.com/conclave-hq/conclave/pkg/meeting/lifecycle"
)

func newMeetingCommand() *cobra.Command {
	meetingCmd := &cobra.Command{
		Use:   "meeting",
		Short: "Manage meetings and their tasks",
		Long: `Create, inspect, and drive meetings through their lifecycle.

Examples:
  conclave meeting create --title "Launch sync" --date 2026-09-01T10:00:00Z
  conclave meeting list
  conclave meeting join <id>
  conclave meeting end <id>
  conclave meeting status <id>
  conclave meeting summarize <id> --force
  conclave meeting chat <id> "What was decided?"
  conclave meeting add-task <id> --description "Draft release notes"
  conclave meeting tasks`,
	}

	meetingCmd.AddCommand(newMeetingCreateCommand())
	meetingCmd.AddCommand(newMeetingListCommand())
	meetingCmd.AddCommand(newMeetingShowCommand())
	meetingCmd.AddCommand(newMeetingJoinCommand())
	meetingCmd.AddCommand(newMeetingEndCommand())
	meetingCmd.AddCommand(newMeetingStatusCommand())
	meetingCmd.AddCommand(newMeetingSummarizeCommand())
	meetingCmd.AddCommand(newMeetingChatCommand())
	meetingCmd.AddCommand(newMeetingAddTaskCommand())
	meetingCmd.AddCommand(newMeetingSetTaskStatusCommand())
	meetingCmd.AddCommand(newMeetingTasksCommand())
	return meetingCmd
}

func newMeetingCreateCommand() *cobra.Command {
	var (
		title       string
		description string
		date        string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Schedule a new meeting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			params := lifecycle.CreateParams{Title: title, Description: description}
			if date != "" {
				when, err := time.Parse(time.RFC3339, date)
				if err != nil {
					return fmt.Errorf("parsing --date (want RFC3339): %w", err)
				}
				params.Date = when
			}

			m, err := rt.controller().Create(cmd.Context(), params)
			if err != nil {
				return err
			}
			printMeeting(cmd, m)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "meeting title (required)")
	cmd.Flags().StringVar(&description, "description", "", "meeting description")
	cmd.Flags().StringVar(&date, "date", "", "scheduled time, RFC3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newMeetingListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List meetings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			meetings, err := rt.controller().List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(meetings) == 0 {
				fmt.Fprintln(out, "No meetings.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-10s  %-20s  %-5s  %s\n", "ID", "STATUS", "DATE", "TASKS", "TITLE")
			for _, m := range meetings {
				fmt.Fprintf(out, "%-36s  %-10s  %-20s  %-5d  %s\n",
					m.ID, m.Status, m.Date.Format("2006-01-02 15:04"), len(m.Tasks), m.Title)
			}
			return nil
		},
	}
}

func newMeetingShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one meeting in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := rt.controller().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMeeting(cmd, m)

			out := cmd.OutOrStdout()
			if m.Summary != "" {
				fmt.Fprintf(out, "\n%s\n", m.Summary)
			}
			if len(m.Tasks) > 0 {
				fmt.Fprintln(out, "\nTasks:")
				for _, task := range m.Tasks {
					printTask(cmd, "  ", task)
				}
			}
			return nil
		},
	}
}

func newMeetingJoinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "join <id>",
		Short: "Mark a meeting live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := rt.controller().Join(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Meeting %s is %s.\n", m.ID, m.Status)
			return nil
		},
	}
}

func newMeetingEndCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "end <id>",
		Short: "End a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			m, err := rt.controller().End(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Meeting %s is %s.\n", m.ID, m.Status)
			return nil
		},
	}
}

func newMeetingStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show a meeting's summary progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			status, err := rt.controller().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Summary status: %s\n", status.State)
			if status.Message != "" {
				fmt.Fprintf(out, "  %s\n", status.Message)
			}
			if status.State == lifecycle.SummaryReady || status.State == lifecycle.SummaryFailed {
				fmt.Fprintf(out, "\n%s\n", status.Summary)
			}
			return nil
		},
	}
}

func newMeetingSummarizeCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "summarize <id>",
		Short: "Enqueue a summarization job",
		Long: `Enqueue a summarization job for a meeting with attached audio.

An already-summarized meeting is left untouched unless --force is given,
which overwrites the summary and tasks wholesale.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			controller := rt.controller()
			var submitted bool
			if force {
				submitted, err = controller.Resummarize(cmd.Context(), args[0])
			} else {
				submitted, err = controller.TriggerSummary(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if submitted {
				fmt.Fprintln(out, "Summarization job enqueued.")
			} else {
				fmt.Fprintln(out, "Summary already available; use --force to regenerate.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "regenerate even when a summary exists")
	return cmd
}

func newMeetingChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <id> [question...]",
		Short: "Ask questions about a summarized meeting",
		Long: `Chat with an agent grounded in the meeting's summary.

With a question argument the agent answers once and exits. Without one,
an interactive session starts; the conversation history is carried
between questions. End the session with "exit" or Ctrl-D.

The meeting's summary must be ready.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			client, err := rt.staged("chat")
			if err != nil {
				return err
			}
			agent := chat.NewAgent(client, rt.store, rt.logger)

			out := cmd.OutOrStdout()
			if len(args) > 1 {
				reply, err := agent.Ask(cmd.Context(), args[0], strings.Join(args[1:], " "), nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, reply)
				return nil
			}

			var history []chat.Turn
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprint(out, "> ")
			for scanner.Scan() {
				question := strings.TrimSpace(scanner.Text())
				if question == "exit" {
					break
				}
				if question == "" {
					fmt.Fprint(out, "> ")
					continue
				}
				reply, err := agent.Ask(cmd.Context(), args[0], question, history)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n\n> ", reply)
				history = append(history,
					chat.Turn{Role: chat.RoleUser, Text: question},
					chat.Turn{Role: chat.RoleModel, Text: reply})
			}
			return scanner.Err()
		},
	}
}

func newMeetingAddTaskCommand() *cobra.Command {
	var (
		description string
		assignee    string
		due         string
	)

	cmd := &cobra.Command{
		Use:   "add-task <id>",
		Short: "Add a task to a meeting manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			params := lifecycle.TaskParams{Description: description, Assignee: assignee}
			if due != "" {
				params.DueDate = &due
			}

			task, err := rt.controller().AddTask(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			printTask(cmd, "", *task)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "task description (required)")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee (defaults to Unassigned)")
	cmd.Flags().StringVar(&due, "due", "", "deadline as free text")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func newMeetingSetTaskStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-task-status <meeting-id> <task-id> <status>",
		Short: "Override a task's status directly",
		Long: `Set a task's status without running the neutralization engine.

Valid statuses: pending, neutralizing, done, failed. No activity log
entry is written for manual overrides.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			task, err := rt.controller().UpdateTaskStatus(cmd.Context(), args[0], args[1], meeting.TaskStatus(args[2]))
			if err != nil {
				return err
			}
			printTask(cmd, "", *task)
			return nil
		},
	}
}

func newMeetingTasksCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List tasks across all meetings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			refs, err := rt.controller().Tasks(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(refs) == 0 {
				fmt.Fprintln(out, "No tasks.")
				return nil
			}
			fmt.Fprintf(out, "%-36s  %-12s  %-15s  %-25s  %s\n", "TASK", "STATUS", "ASSIGNEE", "MEETING", "DESCRIPTION")
			for _, ref := range refs {
				title := ref.MeetingTitle
				if len(title) > 25 {
					title = title[:22] + "..."
				}
				fmt.Fprintf(out, "%-36s  %-12s  %-15s  %-25s  %s\n",
					ref.Task.ID, ref.Task.Status, ref.Task.Assignee, title, ref.Task.Description)
			}
			return nil
		},
	}
}

func printMeeting(cmd *cobra.Command, m *meeting.Meeting) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", m.ID)
	fmt.Fprintf(out, "Title:       %s\n", m.Title)
	if m.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", m.Description)
	}
	fmt.Fprintf(out, "Date:        %s\n", m.Date.Format(time.RFC3339))
	fmt.Fprintf(out, "Status:      %s\n", m.Status)
	if m.AudioRef != "" {
		fmt.Fprintf(out, "Audio:       %s\n", m.AudioRef)
	}
}

func printTask(cmd *cobra.Command, indent string, task meeting.Task) {
	out := cmd.OutOrStdout()
	due := "None"
	if task.DueDate != nil {
		due = *task.DueDate
	}
	fmt.Fprintf(out, "%s%s [%s] %s (assignee: %s, due: %s)\n",
		indent, task.ID, task.Status, task.Description, task.Assignee, due)
	if task.AgentOutput != "" {
		fmt.Fprintf(out, "%s  resolution: %s\n", indent, firstLine(task.AgentOutput))
	}
	if task.FailureReason != "" {
		fmt.Fprintf(out, "%s  failure: %s\n", indent, task.FailureReason)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
