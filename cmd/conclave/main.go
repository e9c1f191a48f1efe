// Package main provides the conclave CLI entry point.
// conclave runs the meeting coordination core: lifecycle, summarization,
// task neutralization, and realtime signaling.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conclave-hq/conclave/pkg/buildinfo"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "conclave",
	Short: "Conclave - agentic meeting coordination",
	Long: `conclave runs the Conclave meeting coordination core.

Conclave records meetings over a websocket signaling hub, summarizes the
audio with an inference model, extracts action items, and drives autonomous
task resolution with audit logging and per-actor quotas.

COMMON WORKFLOWS:
  Run everything:     conclave serve
  Workers only:       conclave worker
  Configure the key:  conclave auth set-key
  Manage meetings:    conclave meeting list  |  conclave meeting status <id>
  Resolve a task:     conclave neutralize <meeting-id> <task-id>
  Triage an email:    conclave triage message.txt

Configuration is read from ~/.conclave/config.yaml with CONCLAVE_* and DB_*
environment overrides. Run 'conclave <command> --help' for details.`,
	SilenceUsage: true,
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := buildinfo.Get("conclave")
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "conclave version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		return nil
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "run", Title: "Running:"},
		&cobra.Group{ID: "meetings", Title: "Meetings & Tasks:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	serveCmd := newServeCommand()
	serveCmd.GroupID = "run"
	rootCmd.AddCommand(serveCmd)

	workerCmd := newWorkerCommand()
	workerCmd.GroupID = "run"
	rootCmd.AddCommand(workerCmd)

	meetingCmd := newMeetingCommand()
	meetingCmd.GroupID = "meetings"
	rootCmd.AddCommand(meetingCmd)

	neutralizeCmd := newNeutralizeCommand()
	neutralizeCmd.GroupID = "meetings"
	rootCmd.AddCommand(neutralizeCmd)

	triageCmd := newTriageCommand()
	triageCmd.GroupID = "meetings"
	rootCmd.AddCommand(triageCmd)

	notificationsCmd := newNotificationsCommand()
	notificationsCmd.GroupID = "meetings"
	rootCmd.AddCommand(notificationsCmd)

	activityCmd := newActivityCommand()
	activityCmd.GroupID = "meetings"
	rootCmd.AddCommand(activityCmd)

	authCmd := newAuthCommand()
	authCmd.GroupID = "setup"
	rootCmd.AddCommand(authCmd)

	dbCmd := newDBCommand()
	dbCmd.GroupID = "setup"
	rootCmd.AddCommand(dbCmd)

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
