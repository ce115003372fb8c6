package cli

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/libra/internal/inbox"
	"github.com/me/libra/internal/router"
	"github.com/me/libra/pkg/model"
)

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notes"},
		Short:   "Read your notifications",
	}
	cmd.AddCommand(
		newNotificationsListCmd(),
		newNotificationsReadCmd(),
		newNotificationsClearCmd(),
		newNotificationsWatchCmd(),
	)
	return cmd
}

func printNotification(w io.Writer, n model.Notification) {
	mark := " "
	if !n.Read {
		mark = "•"
	}
	title := n.Title
	if title == "" {
		title = "Notification"
	}
	fmt.Fprintf(w, "%s %-5d %s (%s)\n", mark, n.ID, title, whenLabel(n.CreatedAt))
	if n.Message != "" {
		fmt.Fprintf(w, "        %s\n", n.Message)
	}
}

func newNotificationsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			in := inbox.New(a.api, a.logger)
			if err := in.Load(cmd.Context()); err != nil {
				return err
			}
			items := in.Items()
			if len(items) == 0 {
				fmt.Fprintln(a.out, "No notifications.")
				return nil
			}
			for _, n := range items {
				printNotification(a.out, n)
			}
			fmt.Fprintf(a.out, "\n%d unread\n", in.Unread())
			return nil
		}),
	}
}

func newNotificationsReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0], "notification")
			if err != nil {
				return err
			}
			in := inbox.New(a.api, a.logger)
			if err := in.Load(cmd.Context()); err != nil {
				return err
			}
			if err := in.MarkRead(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Marked notification %d as read. %d unread.\n", id, in.Unread())
			return nil
		}),
	}
}

func newNotificationsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all notifications",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			in := inbox.New(a.api, a.logger)
			if err := in.Load(cmd.Context()); err != nil {
				return err
			}
			if err := in.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "All notifications cleared.")
			return nil
		}),
	}
}

func newNotificationsWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print notifications as they arrive",
		RunE: withApp(router.TreeMain, func(cmd *cobra.Command, a *app, args []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.WatchInterval
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Keep push registration in step with the session while watching.
			stopPush := a.push.Start(ctx)
			defer stopPush()

			fmt.Fprintf(a.errOut, "Watching for notifications every %s (Ctrl-C to stop)\n", interval)
			in := inbox.New(a.api, a.logger)
			return in.Watch(ctx, interval, func(fresh []model.Notification) {
				for _, n := range fresh {
					printNotification(a.out, n)
				}
			})
		}),
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Polling interval")
	return cmd
}
