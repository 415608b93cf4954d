package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reelshare/internal/models"

	"github.com/spf13/cobra"
)

func newNotificationsCmd(app *App) *cobra.Command {
	var markRead string
	var markAll bool
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notifs"},
		Short:   "List notifications, or mark them read",
		GroupID: "social",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.session()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			n := app.social.Notifications

			switch {
			case markAll:
				count, err := n.MarkAllRead(ctx, sess)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Marked %d notifications read\n", count)
				return nil
			case markRead != "":
				if err := n.MarkRead(ctx, sess, markRead); err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Marked %s read\n", markRead)
				return nil
			}

			list, err := n.List(ctx, sess)
			if err != nil {
				return err
			}
			return app.render(list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No notifications")
					return
				}
				for _, item := range list {
					printNotification(w, item)
				}
			})
		},
	}
	cmd.Flags().StringVar(&markRead, "mark-read", "", "Mark this notification read")
	cmd.Flags().BoolVar(&markAll, "all", false, "Mark every unread notification read")
	cmd.MarkFlagsMutuallyExclusive("mark-read", "all")
	return cmd
}

func printNotification(w io.Writer, item models.Notification) {
	state := "new "
	if item.IsRead {
		state = "    "
	}
	fmt.Fprintf(w, "%s %s  %-7s from %s on %s  [%s]\n",
		state, item.CreatedAt.Format(time.DateTime), item.Type, item.FromUserID, item.TargetID, item.ID)
}

func newWatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Stream notifications as they arrive",
		GroupID: "social",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.session()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintln(app.Err, "Watching for notifications, press Ctrl-C to stop")
			return app.api.Subscribe(sess.Context(ctx), sess.UserID, func(evt models.Event) {
				_ = app.render(evt, func(w io.Writer) {
					fmt.Fprintf(w, "%s %s/%s %s\n", evt.Type, evt.Collection, evt.ID, string(evt.Payload))
				})
			})
		},
	}
}
