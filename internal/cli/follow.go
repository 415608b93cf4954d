package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"reelshare/internal/social"

	"github.com/spf13/cobra"
)

func newFollowCmd(app *App, follow bool) *cobra.Command {
	use, short := "follow <user-id>", "Follow a user"
	if !follow {
		use, short = "unfollow <user-id>", "Stop following a user"
	}
	return &cobra.Command{
		Use:     use,
		Short:   short,
		GroupID: "social",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.session()
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			var res social.FollowResult
			if follow {
				res, err = app.social.Follows.Follow(ctx, sess, args[0])
			} else {
				res, err = app.social.Follows.Unfollow(ctx, sess, args[0])
			}
			if errors.Is(err, social.ErrPartialEdge) {
				fmt.Fprintln(app.Err, "The follow edge is out of sync; run `reelctl repair-follows` to fix it.")
			}
			if err != nil {
				return err
			}
			name := displayName(res.Target)
			if name == "" {
				name = args[0]
			}
			return app.render(res, func(w io.Writer) {
				switch {
				case !res.Changed && res.Following:
					fmt.Fprintf(w, "Already following %s\n", name)
				case !res.Changed:
					fmt.Fprintf(w, "Not following %s\n", name)
				case res.Following:
					fmt.Fprintf(w, "Now following %s\n", name)
				default:
					fmt.Fprintf(w, "Unfollowed %s\n", name)
				}
			})
		},
	}
}

func newRepairFollowsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "repair-follows",
		Short:   "Make every follow edge of the logged-in user symmetric",
		GroupID: "social",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.session()
			if err != nil {
				return err
			}
			report, err := app.social.Follows.RepairEdges(commandContext(cmd), sess)
			if err != nil {
				return err
			}
			return app.render(report, func(w io.Writer) {
				if !report.Changed() {
					fmt.Fprintln(w, "All follow edges are consistent")
					return
				}
				printIDs(w, "Fixed outgoing", report.Outgoing)
				printIDs(w, "Fixed incoming", report.Incoming)
				printIDs(w, "Dropped missing users", report.Dangling)
			})
		},
	}
}

func printIDs(w io.Writer, label string, ids []string) {
	if len(ids) > 0 {
		fmt.Fprintf(w, "%s: %s\n", label, strings.Join(ids, ", "))
	}
}
