// Package cli implements reelctl, a command-line client for the reelshare API.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"reelshare/internal/apiclient"
	"reelshare/internal/config"
	"reelshare/internal/featureflags"
	"reelshare/internal/media"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/session"
	"reelshare/internal/social"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// App carries what every command needs. Zero fields are filled from
// configuration before the first command runs.
type App struct {
	Config *config.Config
	Out    io.Writer
	Err    io.Writer
	// Uploader overrides the Cloudinary uploader built from Config.
	Uploader media.Uploader

	apiURL      string
	sessionFile string
	output      string

	store  *session.Store
	api    *apiclient.Client
	social *social.Client
}

// Execute runs reelctl with the process arguments.
func Execute() {
	if err := NewRootCmd(&App{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree bound to app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "reelctl",
		Short:         "Browse, post and interact on reelshare from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&app.apiURL, "api", "", "API base URL (defaults to API_BASE_URL)")
	root.PersistentFlags().StringVar(&app.sessionFile, "session", "", "Session file (defaults to SESSION_FILE or ~/.config/reelshare/session.yml)")
	root.PersistentFlags().StringVarP(&app.output, "output", "o", "text", "Output format: text, json or yaml")

	root.AddGroup(
		&cobra.Group{ID: "session", Title: "Session Commands:"},
		&cobra.Group{ID: "social", Title: "Social Commands:"},
		&cobra.Group{ID: "media", Title: "Media Commands:"},
	)
	root.AddCommand(
		newLoginCmd(app), newLogoutCmd(app), newWhoamiCmd(app),
		newFeedCmd(app), newLikeCmd(app),
		newFollowCmd(app, true), newFollowCmd(app, false), newRepairFollowsCmd(app),
		newCommentsCmd(app), newCommentCmd(app), newUncommentCmd(app),
		newNotificationsCmd(app), newWatchCmd(app),
		newUploadCmd(app), newMusicCmd(app),
	)

	root.SetOut(app.Out)
	root.SetErr(app.Err)
	return root
}

func (a *App) init(cmd *cobra.Command) error {
	if a.Out == nil {
		a.Out = cmd.OutOrStdout()
	}
	if a.Err == nil {
		a.Err = cmd.ErrOrStderr()
	}
	switch a.output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}

	if a.Config == nil {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		a.Config = cfg
	}
	observability.SetLogger(observability.NewLogger(a.Err, a.Config.Env))

	path := a.sessionFile
	if path == "" {
		path = a.Config.SessionFile
	}
	store, err := session.NewStore(path)
	if err != nil {
		return err
	}
	a.store = store

	a.api = apiclient.NewFromConfig(a.Config)
	if a.apiURL != "" {
		a.api.BaseURL = strings.TrimRight(a.apiURL, "/")
	}
	a.social = social.New(a.api, social.Options{
		Flags:              featureflags.NewManager(a.Config.FeatureFlags),
		ProfileConcurrency: a.Config.ProfileFetchConcurrency,
	})
	return nil
}

// session returns the logged-in user's session.
func (a *App) session() (session.Session, error) {
	sess, err := a.store.Load()
	if errors.Is(err, session.ErrNoSession) {
		return session.Session{}, errors.New("not logged in, run `reelctl login <user-id>` first")
	}
	return sess, err
}

// render writes v as JSON or YAML, or calls text for the text format.
func (a *App) render(v any, text func(w io.Writer)) error {
	switch a.output {
	case "json":
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(a.Out)
		enc.SetIndent(2)
		if err := enc.Encode(toPlain(v)); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(a.Out)
		return nil
	}
}

// toPlain round-trips v through JSON so YAML output uses the JSON field names.
func toPlain(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}

// parseRef accepts "video", "image" or "comment" (or the collection names).
func parseRef(kind, id string) (social.Ref, error) {
	switch strings.ToLower(kind) {
	case "video", "videos":
		return social.Ref{Collection: models.CollectionVideos, ID: id}, nil
	case "image", "images":
		return social.Ref{Collection: models.CollectionImages, ID: id}, nil
	case "comment", "comments":
		return social.Ref{Collection: models.CollectionComments, ID: id}, nil
	}
	return social.Ref{}, fmt.Errorf("unknown kind %q, expected video, image or comment", kind)
}

func parseEntity(kind string) (models.EntityType, error) {
	switch strings.ToLower(kind) {
	case "video", "videos":
		return models.EntityVideo, nil
	case "image", "images":
		return models.EntityImage, nil
	}
	return "", fmt.Errorf("unknown post kind %q, expected video or image", kind)
}

func displayName(u models.User) string {
	if u.Username == "" {
		return u.ID
	}
	return "@" + u.Username
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
