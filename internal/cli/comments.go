package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"reelshare/internal/models"
	"reelshare/internal/social"

	"github.com/spf13/cobra"
)

type threadOutput struct {
	EntityType   models.EntityType      `json:"entityType"`
	EntityID     string                 `json:"entityId"`
	CommentCount int                    `json:"commentCount"`
	Comments     []social.ThreadComment `json:"comments"`
	Orphans      []social.ThreadComment `json:"orphans,omitempty"`
}

// openThread loads the comment thread of a video or image.
func (a *App) openThread(cmd *cobra.Command, kind, id string) (*social.Thread, error) {
	entity, err := parseEntity(kind)
	if err != nil {
		return nil, err
	}
	sess, err := a.session()
	if err != nil {
		return nil, err
	}
	thread, err := a.social.Thread(entity, id)
	if err != nil {
		return nil, err
	}
	if err := thread.Load(commandContext(cmd), sess); err != nil {
		thread.Close()
		return nil, err
	}
	return thread, nil
}

func newCommentsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "comments <video|image> <id>",
		Short:   "Show the comment thread of a post",
		GroupID: "social",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := app.openThread(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			defer thread.Close()

			out := threadOutput{
				EntityType:   thread.EntityType,
				EntityID:     thread.EntityID,
				CommentCount: thread.CommentCount(),
				Comments:     thread.Comments(),
				Orphans:      thread.Orphans(),
			}
			return app.render(out, func(w io.Writer) {
				fmt.Fprintf(w, "%d comments\n", out.CommentCount)
				for _, c := range out.Comments {
					printComment(w, c, "")
					for _, r := range c.Replies {
						printComment(w, r, "    ")
					}
				}
				if len(out.Orphans) > 0 {
					fmt.Fprintf(w, "%d replies to deleted comments:\n", len(out.Orphans))
					for _, c := range out.Orphans {
						printComment(w, c, "    ")
					}
				}
			})
		},
	}
}

func printComment(w io.Writer, c social.ThreadComment, indent string) {
	mark := ""
	if c.IsLiked {
		mark = " ♥"
	}
	fmt.Fprintf(w, "%s%s %s [%s] %d likes%s\n%s  %s\n",
		indent, displayName(c.Author), c.CreatedAt.Format(time.DateTime), c.ID, c.LikeCount, mark,
		indent, strings.ReplaceAll(c.Content, "\n", "\n"+indent+"  "))
}

func newCommentCmd(app *App) *cobra.Command {
	var replyTo string
	cmd := &cobra.Command{
		Use:     "comment <video|image> <id> <text>",
		Short:   "Comment on a post, or reply to a comment",
		GroupID: "social",
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := app.openThread(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			defer thread.Close()

			sess, _ := app.session()
			created, err := thread.Add(commandContext(cmd), sess, strings.Join(args[2:], " "), replyTo)
			if err != nil {
				return err
			}
			return app.render(created, func(w io.Writer) {
				if created.IsReply() {
					fmt.Fprintf(w, "Replied %s\n", created.ID)
					return
				}
				fmt.Fprintf(w, "Commented %s\n", created.ID)
			})
		},
	}
	cmd.Flags().StringVar(&replyTo, "reply-to", "", "Reply to this top-level comment")
	return cmd
}

func newUncommentCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "uncomment <video|image> <id> <comment-id>",
		Short:   "Delete one of your comments",
		GroupID: "social",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := app.openThread(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			defer thread.Close()

			sess, _ := app.session()
			if err := thread.Delete(commandContext(cmd), sess, args[2]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted %s\n", args[2])
			return nil
		},
	}
}
