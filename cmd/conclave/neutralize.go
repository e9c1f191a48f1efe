package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conclave-hq/conclave/pkg/actor"
	"github.com/conclave-hq/conclave/pkg/neutralize"
)

func newNeutralizeCommand() *cobra.Command {
	var (
		actorID   string
		actorName string
	)

	cmd := &cobra.Command{
		Use:   "neutralize <meeting-id> <task-id>",
		Short: "Resolve a task autonomously",
		Long: `Run one neutralization attempt for a task: lock it, ask the
inference model for a resolution, and persist the outcome with an audit
entry. Attempts are limited per actor by the configured quota.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			client, err := rt.staged("neutralize")
			if err != nil {
				return err
			}

			engine := neutralize.NewEngine(
				rt.store,
				client,
				rt.limiter,
				rt.notifier,
				rt.recorder,
				rt.logger,
				rt.cfg.Inference.Timeout,
			)
			engine.SetObservability(rt.metrics, rt.tracer)

			ctx := actor.WithIdentity(cmd.Context(), actor.Identity{ID: actorID, DisplayName: actorName})
			task, err := engine.Neutralize(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task %s resolved with %d%% confidence.\n\n", task.ID, task.ConfidenceScore)
			fmt.Fprintln(out, task.AgentOutput)
			if len(task.NextSteps) > 0 {
				fmt.Fprintln(out, "\nNext steps:")
				for _, step := range task.NextSteps {
					fmt.Fprintf(out, "  - %s\n", step)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "default_operator", "actor id for quota and audit attribution")
	cmd.Flags().StringVar(&actorName, "name", "Operator", "actor display name")
	return cmd
}
