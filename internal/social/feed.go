package social

import (
	"context"
	"slices"
	"sync"
	"time"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/observability"
	"reelshare/internal/session"

	"golang.org/x/sync/errgroup"
)

// FeedItem is a video or an image in the combined feed.
type FeedItem struct {
	Type         models.EntityType
	ID           string
	UserID       string
	MediaURL     string
	ThumbnailURL string
	Caption      string
	Likes        models.Likes
	CommentCount int
	Timestamp    time.Time
	IsLiked      bool
}

// Ref returns the document behind the item.
func (i FeedItem) Ref() Ref {
	collection, _ := i.Type.Collection()
	return Ref{Collection: collection, ID: i.ID}
}

// Feed merges videos and images into one list, newest first.
type Feed struct {
	api   *apiclient.Client
	liker *Liker

	mu     sync.Mutex
	viewer string
	videos []models.Video
	images []models.Image
	items  []FeedItem
}

// Refresh refetches both collections. On failure the previous items are kept.
func (f *Feed) Refresh(ctx context.Context, sess session.Session) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	ctx = sess.Context(ctx)

	var videos []models.Video
	var images []models.Image
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		videos, err = apiclient.List[models.Video](gctx, f.api, models.CollectionVideos, apiclient.Filter{})
		return err
	})
	g.Go(func() (err error) {
		images, err = apiclient.List[models.Image](gctx, f.api, models.CollectionImages, apiclient.Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		observability.Logger.WarnContext(ctx, "feed refresh failed, keeping previous items", "error", err.Error())
		return err
	}

	for _, v := range videos {
		f.liker.Track(Ref{Collection: models.CollectionVideos, ID: v.ID}, v.UserID, v.Likes)
	}
	for _, img := range images {
		f.liker.Track(Ref{Collection: models.CollectionImages, ID: img.ID}, img.UserID, img.Likes)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewer = sess.UserID
	f.videos, f.images = videos, images
	f.items = mergeFeed(videos, images, sess.UserID)
	return nil
}

// Items returns a snapshot of the feed. Like state comes from the shared
// Liker, so an in-flight toggle shows up at once.
func (f *Feed) Items() []FeedItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := slices.Clone(f.items)
	for i := range items {
		if entry, ok := f.liker.state.Get(items[i].Ref().Key()); ok {
			items[i].Likes = entry.Likes
			items[i].IsLiked = entry.Likes.IsLikedBy(f.viewer)
		}
	}
	return items
}

// ToggleLike likes or unlikes item, then refreshes the feed. If the refresh
// fails the feed is rebuilt from the last fetched documents with the like
// state known locally.
func (f *Feed) ToggleLike(ctx context.Context, sess session.Session, item FeedItem) (LikeResult, error) {
	res, err := f.liker.Toggle(ctx, sess, item.Ref())
	if err != nil {
		return res, err
	}
	if rerr := f.Refresh(ctx, sess); rerr != nil {
		f.recompute()
	}
	return res, nil
}

func (f *Feed) recompute() {
	f.mu.Lock()
	defer f.mu.Unlock()
	videos := slices.Clone(f.videos)
	for i := range videos {
		if entry, ok := f.liker.state.Get(Ref{Collection: models.CollectionVideos, ID: videos[i].ID}.Key()); ok {
			videos[i].Likes = entry.Likes
		}
	}
	images := slices.Clone(f.images)
	for i := range images {
		if entry, ok := f.liker.state.Get(Ref{Collection: models.CollectionImages, ID: images[i].ID}.Key()); ok {
			images[i].Likes = entry.Likes
		}
	}
	f.videos, f.images = videos, images
	f.items = mergeFeed(videos, images, f.viewer)
}

// mergeFeed lists videos then images and sorts by creation time, newest
// first. Items with equal timestamps keep that order.
func mergeFeed(videos []models.Video, images []models.Image, viewer string) []FeedItem {
	items := make([]FeedItem, 0, len(videos)+len(images))
	for _, v := range videos {
		likes := v.Likes.Normalized()
		items = append(items, FeedItem{
			Type:         models.EntityVideo,
			ID:           v.ID,
			UserID:       v.UserID,
			MediaURL:     v.VideoURL,
			ThumbnailURL: v.ThumbnailURL,
			Caption:      v.Caption,
			Likes:        likes,
			CommentCount: v.CommentCount,
			Timestamp:    v.CreatedAt,
			IsLiked:      likes.IsLikedBy(viewer),
		})
	}
	for _, img := range images {
		likes := img.Likes.Normalized()
		items = append(items, FeedItem{
			Type:         models.EntityImage,
			ID:           img.ID,
			UserID:       img.UserID,
			MediaURL:     img.ImageURL,
			ThumbnailURL: img.ImageURL,
			Caption:      img.Caption,
			Likes:        likes,
			CommentCount: img.CommentCount,
			Timestamp:    img.CreatedAt,
			IsLiked:      likes.IsLikedBy(viewer),
		})
	}
	slices.SortStableFunc(items, func(a, b FeedItem) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return items
}
