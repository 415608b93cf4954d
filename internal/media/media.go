// Package media publishes posts: the bytes go to a media host, the post
// document goes to the collection API with the returned URL.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/session"
	"reelshare/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Uploader stores media bytes and returns a public URL for them.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, name string, kind models.EntityType) (string, error)
}

// Thumbnailer is implemented by uploaders that can derive a still frame URL
// for an uploaded video.
type Thumbnailer interface {
	Thumbnail(videoURL string) string
}

// Upload describes one post to publish.
type Upload struct {
	Kind    models.EntityType
	Name    string
	Body    io.Reader
	Caption string
	MusicID string
}

// Post is a published video or image.
type Post struct {
	Kind         models.EntityType
	ID           string
	URL          string
	ThumbnailURL string
}

// Publisher uploads media and creates the matching post document.
type Publisher struct {
	api      *apiclient.Client
	uploader Uploader
}

// NewPublisher creates a Publisher.
func NewPublisher(api *apiclient.Client, uploader Uploader) *Publisher {
	return &Publisher{api: api, uploader: uploader}
}

// Publish uploads up.Body and creates a videos or images document owned by
// the session user, with no likes and no comments.
func (p *Publisher) Publish(ctx context.Context, sess session.Session, up Upload) (post Post, err error) {
	if !sess.Valid() {
		return Post{}, models.NewValidationError("an active session is required")
	}
	collection, ok := up.Kind.Collection()
	if !ok {
		return Post{}, models.NewValidationError("uploads are either a video or an image")
	}
	if up.Body == nil {
		return Post{}, models.NewValidationError("nothing to upload")
	}
	caption := strings.TrimSpace(up.Caption)
	if err := validation.ValidateCaption(caption); err != nil {
		return Post{}, models.NewValidationError(err.Error())
	}
	if up.MusicID != "" && up.Kind != models.EntityVideo {
		return Post{}, models.NewValidationError("only videos carry a soundtrack")
	}

	ctx = sess.Context(ctx)
	ctx, span := observability.StartInternalSpan(ctx, "media.Publish",
		attribute.String("reelshare.kind", string(up.Kind)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if up.MusicID != "" {
		if _, err := apiclient.Get[models.Music](ctx, p.api, models.CollectionMusic, up.MusicID); err != nil {
			return Post{}, fmt.Errorf("soundtrack %s: %w", up.MusicID, err)
		}
	}

	url, err := p.uploader.Upload(ctx, up.Body, up.Name, up.Kind)
	if err != nil {
		return Post{}, fmt.Errorf("upload %s: %w", up.Kind, err)
	}
	if err := validation.ValidateMediaURL(url); err != nil {
		return Post{}, fmt.Errorf("upload %s: %w", up.Kind, err)
	}

	post = Post{Kind: up.Kind, URL: url}
	doc := map[string]any{
		"userId":       sess.UserID,
		"caption":      caption,
		"likedBy":      []string{},
		"likeCount":    0,
		"commentCount": 0,
	}
	switch up.Kind {
	case models.EntityVideo:
		doc["videoUrl"] = url
		if t, ok := p.uploader.(Thumbnailer); ok {
			post.ThumbnailURL = t.Thumbnail(url)
			doc["thumbnailUrl"] = post.ThumbnailURL
		}
		if up.MusicID != "" {
			doc["musicId"] = up.MusicID
		}
	case models.EntityImage:
		doc["imageUrl"] = url
	}

	created, err := apiclient.Create[models.Fields](ctx, p.api, collection, doc)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "uploaded media has no post", "url", url, "error", err.Error())
		return Post{}, err
	}
	post.ID = created.ID()
	observability.Logger.InfoContext(ctx, "post published", "kind", string(up.Kind), "id", post.ID)
	return post, nil
}
