package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"reelshare/internal/apiclient"
	"reelshare/internal/media"
	"reelshare/internal/models"

	"github.com/spf13/cobra"
)

func newUploadCmd(app *App) *cobra.Command {
	var caption, musicID string
	cmd := &cobra.Command{
		Use:     "upload <video|image> <file>",
		Short:   "Upload a video or image and post it",
		GroupID: "media",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			sess, err := app.session()
			if err != nil {
				return err
			}
			uploader := app.Uploader
			if uploader == nil {
				cu, err := media.NewCloudinaryUploader(app.Config)
				if err != nil {
					return err
				}
				uploader = cu
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			post, err := media.NewPublisher(app.api, uploader).Publish(commandContext(cmd), sess, media.Upload{
				Kind:    kind,
				Name:    filepath.Base(args[1]),
				Body:    f,
				Caption: caption,
				MusicID: musicID,
			})
			if err != nil {
				return err
			}
			return app.render(post, func(w io.Writer) {
				fmt.Fprintf(w, "Posted %s %s\n%s\n", post.Kind, post.ID, post.URL)
			})
		},
	}
	cmd.Flags().StringVarP(&caption, "caption", "c", "", "Caption for the post")
	cmd.Flags().StringVar(&musicID, "music", "", "Soundtrack id, videos only")
	return cmd
}

func newMusicCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "music",
		Short:   "List soundtracks that can be attached to videos",
		GroupID: "media",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tracks, err := apiclient.List[models.Music](commandContext(cmd), app.api, models.CollectionMusic,
				apiclient.Filter{}.SortBy("title", false))
			if err != nil {
				return err
			}
			return app.render(tracks, func(w io.Writer) {
				for _, m := range tracks {
					fmt.Fprintf(w, "%s  %s - %s (%ds)\n", m.ID, m.Artist, m.Title, m.DurationSeconds)
				}
			})
		},
	}
}
