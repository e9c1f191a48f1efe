package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conclave-hq/conclave/pkg/activity"
)

func newActivityCommand() *cobra.Command {
	var (
		kind    string
		actorID string
		taskID  string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the audit log",
		Long: `List audit log entries, newest first.

Examples:
  conclave activity
  conclave activity --kind neutralization --limit 20
  conclave activity --task <task-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.recorder.List(cmd.Context(), activity.Filter{
				Kind:    activity.Kind(kind),
				ActorID: actorID,
				TaskID:  taskID,
				Limit:   limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No activity.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  [%s/%s]  %s  actor=%s",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Outcome, e.Action, e.ActorID)
				if e.TaskID != "" {
					fmt.Fprintf(out, "  task=%s", e.TaskID)
				}
				if e.PrevState != "" || e.NewState != "" {
					fmt.Fprintf(out, "  %s->%s", e.PrevState, e.NewState)
				}
				fmt.Fprintln(out)
				if e.Error != "" {
					fmt.Fprintf(out, "    error: %s\n", e.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (neutralization, system, auth)")
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor id")
	cmd.Flags().StringVar(&taskID, "task", "", "filter by task id")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	return cmd
}
