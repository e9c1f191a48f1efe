package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conclave-hq/conclave/pkg/triage"
)

func newTriageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "triage [file]",
		Short: "Triage an email into a meeting",
		Long: `Ask the inference model whether an email calls for a meeting
and, when it does, schedule one from the structured reply.

Reads the email text from the given file, or from stdin when no file is
given.

Examples:
  conclave triage message.txt
  pbpaste | conclave triage`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 1 {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("reading email: %w", err)
			}

			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			client, err := rt.staged("triage")
			if err != nil {
				return err
			}

			triager := triage.NewTriager(client, rt.controller(), rt.logger)
			result, err := triager.ProcessEmail(cmd.Context(), string(raw))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Meeting == nil {
				fmt.Fprintf(out, "No meeting scheduled: %s\n", result.Reason)
				return nil
			}
			fmt.Fprintln(out, "Meeting scheduled:")
			printMeeting(cmd, result.Meeting)
			return nil
		},
	}
}
