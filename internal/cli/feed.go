package cli

import (
	"fmt"
	"io"
	"time"

	"reelshare/internal/social"

	"github.com/spf13/cobra"
)

func newFeedCmd(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "feed",
		Short:   "List videos and images, newest first",
		GroupID: "social",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.session()
			if err != nil {
				return err
			}
			feed := app.social.Feed()
			if err := feed.Refresh(commandContext(cmd), sess); err != nil {
				return err
			}
			items := feed.Items()
			if limit > 0 && len(items) > limit {
				items = items[:limit]
			}
			return app.render(items, func(w io.Writer) {
				for _, it := range items {
					mark := " "
					if it.IsLiked {
						mark = "♥"
					}
					fmt.Fprintf(w, "%s %-5s %s  %d likes  %d comments  %s  %s\n",
						mark, it.Type, it.ID, it.Likes.LikeCount, it.CommentCount,
						it.Timestamp.Format(time.DateTime), it.Caption)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many items")
	return cmd
}

func newLikeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "like <video|image|comment> <id>",
		Short:   "Like or unlike a post or comment",
		GroupID: "social",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[0], args[1])
			if err != nil {
				return err
			}
			sess, err := app.session()
			if err != nil {
				return err
			}
			res, err := app.social.Likes.Toggle(commandContext(cmd), sess, ref)
			if err != nil {
				return err
			}
			return app.render(likeView(res), func(w io.Writer) {
				verb := "Unliked"
				if res.Liked {
					verb = "Liked"
				}
				fmt.Fprintf(w, "%s %s (%d likes)\n", verb, ref.Key(), res.Likes.LikeCount)
			})
		},
	}
}

type likeOutput struct {
	Collection string   `json:"collection"`
	ID         string   `json:"id"`
	Liked      bool     `json:"liked"`
	LikeCount  int      `json:"likeCount"`
	LikedBy    []string `json:"likedBy"`
}

func likeView(res social.LikeResult) likeOutput {
	return likeOutput{
		Collection: res.Ref.Collection.String(),
		ID:         res.Ref.ID,
		Liked:      res.Liked,
		LikeCount:  res.Likes.LikeCount,
		LikedBy:    res.Likes.LikedBy,
	}
}
