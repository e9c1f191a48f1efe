package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newNotificationsCommand() *cobra.Command {
	notificationsCmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notify"},
		Short:   "Inspect and manage notifications",
	}

	notificationsCmd.AddCommand(newNotificationsListCommand())
	notificationsCmd.AddCommand(newNotificationsReadCommand())
	notificationsCmd.AddCommand(newNotificationsReadAllCommand())
	notificationsCmd.AddCommand(newNotificationsDeleteCommand())
	return notificationsCmd
}

func newNotificationsListCommand() *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			items, err := rt.notifier.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			shown := 0
			for _, n := range items {
				if unreadOnly && !n.Unread {
					continue
				}
				marker := " "
				if n.Unread {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-36s  %-8s  %-16s  %s\n",
					marker, n.ID, n.Type, n.CreatedAt.Format("2006-01-02 15:04"), n.Title)
				fmt.Fprintf(out, "    %s\n", n.Message)
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(out, "No notifications.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "show only unread notifications")
	return cmd
}

func newNotificationsReadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.notifier.MarkRead(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Marked read.")
			return nil
		},
	}
}

func newNotificationsReadAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.notifier.MarkAllRead(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked read.")
			return nil
		},
	}
}

func newNotificationsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.notifier.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
			return nil
		},
	}
}
