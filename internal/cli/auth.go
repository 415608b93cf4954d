package cli

import (
	"errors"
	"fmt"
	"io"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/session"

	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "login <user-id>",
		Short:   "Act as an existing user",
		GroupID: "session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := session.New(args[0])
			if !sess.Valid() {
				return errors.New("user id is required")
			}
			user, err := apiclient.Get[models.User](sess.Context(commandContext(cmd)), app.api, models.CollectionUsers, sess.UserID)
			if err != nil {
				return fmt.Errorf("look up user %s: %w", sess.UserID, err)
			}
			if err := app.store.Save(sess); err != nil {
				return err
			}
			return app.render(user, func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as %s (%s)\n", displayName(user), user.ID)
			})
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Short:   "Forget the saved session",
		GroupID: "session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Short:   "Show the logged-in user's profile",
		GroupID: "session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.session()
			if err != nil {
				return err
			}
			user, err := app.social.Profiles.Get(sess.Context(commandContext(cmd)), sess.UserID)
			if err != nil {
				return err
			}
			return app.render(user, func(w io.Writer) {
				fmt.Fprintf(w, "%s  %s\n", displayName(user), user.DisplayName)
				if user.Bio != "" {
					fmt.Fprintln(w, user.Bio)
				}
				fmt.Fprintf(w, "%d following, %d followers\n", len(user.FollowingIDs), len(user.FollowerIDs))
			})
		},
	}
}
