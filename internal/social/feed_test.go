package social

import (
	"net/http"
	"testing"
	"time"

	"reelshare/internal/models"
	"reelshare/internal/session"
	"reelshare/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) seedImage(t *testing.T, id, owner string, createdAt time.Time) {
	t.Helper()
	f.b.Seed(t, models.CollectionImages, models.Image{
		ID:        id,
		UserID:    owner,
		ImageURL:  "https://cdn.example.com/" + id + ".jpg",
		Caption:   "image " + id,
		Likes:     models.Likes{LikedBy: []string{}},
		CreatedAt: createdAt,
	})
}

func TestFeed_MergesNewestFirst(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.seedVideo(t, "v1", "u2", base.Add(1*time.Hour))
	f.seedVideo(t, "v2", "u2", base.Add(4*time.Hour))
	f.seedImage(t, "i1", "u3", base.Add(3*time.Hour))
	f.seedImage(t, "i2", "u3", base)
	f.seedVideo(t, "v3", "u2", base.Add(2*time.Hour))

	feed := f.sc.Feed()
	require.NoError(t, feed.Refresh(f.ctx, session.New("u1")))

	items := feed.Items()
	got := make([]string, 0, len(items))
	for _, it := range items {
		got = append(got, it.ID)
	}
	assert.Equal(t, []string{"v2", "i1", "v3", "v1", "i2"}, got)
	for i := 1; i < len(items); i++ {
		assert.True(t, items[i-1].Timestamp.After(items[i].Timestamp))
	}

	assert.Equal(t, models.EntityImage, items[1].Type)
	assert.Equal(t, "https://cdn.example.com/i1.jpg", items[1].MediaURL)
	assert.Equal(t, models.EntityVideo, items[0].Type)
	assert.Equal(t, "https://cdn.example.com/v2.mp4", items[0].MediaURL)
}

func TestMergeFeed_EqualTimestampsKeepSourceOrder(t *testing.T) {
	t.Parallel()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := mergeFeed(
		[]models.Video{{ID: "v1", CreatedAt: at}, {ID: "v2", CreatedAt: at}},
		[]models.Image{{ID: "i1", CreatedAt: at}, {ID: "i2", CreatedAt: at.Add(time.Minute)}},
		"u1",
	)
	require.Len(t, items, 4)
	assert.Equal(t, "i2", items[0].ID)
	assert.Equal(t, "v1", items[1].ID)
	assert.Equal(t, "v2", items[2].ID)
	assert.Equal(t, "i1", items[3].ID)
}

func TestFeed_ToggleLikeRecomputes(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedImage(t, "i1", "u2", time.Now())
	u1 := session.New("u1")
	feed := f.sc.Feed()
	require.NoError(t, feed.Refresh(f.ctx, u1))

	item := feed.Items()[0]
	require.False(t, item.IsLiked)
	res, err := feed.ToggleLike(f.ctx, u1, item)
	require.NoError(t, err)
	assert.True(t, res.Liked)

	item = feed.Items()[0]
	assert.True(t, item.IsLiked)
	assert.Equal(t, 1, item.Likes.LikeCount)
	assert.Len(t, f.b.Requests(http.MethodGet, "/api/images"), 2)
}

func TestFeed_ShowsLikeWhileInFlight(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")
	feed := f.sc.Feed()
	require.NoError(t, feed.Refresh(f.ctx, u1))

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.b.Inject(&testutil.Fault{
		Method:     http.MethodPatch,
		PathPrefix: "/api/videos/v1",
		Block:      release,
		Entered:    entered,
		Times:      1,
	})

	done := make(chan error, 1)
	item := feed.Items()[0]
	go func() {
		_, err := feed.ToggleLike(f.ctx, u1, item)
		done <- err
	}()

	<-entered
	during := feed.Items()[0]
	assert.True(t, during.IsLiked)
	assert.Equal(t, 1, during.Likes.LikeCount)
	assert.Equal(t, []string{"u1"}, during.Likes.LikedBy)
	close(release)

	require.NoError(t, <-done)
	after := feed.Items()[0]
	assert.True(t, after.IsLiked)
	assert.Equal(t, 1, after.Likes.LikeCount)
}

func TestFeed_ShowsRollbackAfterFailedLike(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")
	feed := f.sc.Feed()
	require.NoError(t, feed.Refresh(f.ctx, u1))

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	f.b.Inject(&testutil.Fault{
		Method:     http.MethodPatch,
		PathPrefix: "/api/videos/v1",
		Status:     http.StatusInternalServerError,
		Block:      release,
		Entered:    entered,
		Times:      1,
	})

	done := make(chan error, 1)
	item := feed.Items()[0]
	go func() {
		_, err := feed.ToggleLike(f.ctx, u1, item)
		done <- err
	}()

	<-entered
	assert.True(t, feed.Items()[0].IsLiked)
	close(release)

	require.Error(t, <-done)
	after := feed.Items()[0]
	assert.False(t, after.IsLiked)
	assert.Zero(t, after.Likes.LikeCount)
}

func TestFeed_ToggleLikeFallsBackToLocalState(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")
	feed := f.sc.Feed()
	require.NoError(t, feed.Refresh(f.ctx, u1))

	f.b.Fail(http.MethodGet, "/api/videos", http.StatusServiceUnavailable, 1)
	_, err := feed.ToggleLike(f.ctx, u1, feed.Items()[0])
	require.NoError(t, err)

	item := feed.Items()[0]
	assert.True(t, item.IsLiked)
	assert.Equal(t, []string{"u1"}, item.Likes.LikedBy)
}

func TestFeed_FailedRefreshKeepsItems(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")
	feed := f.sc.Feed()
	require.NoError(t, feed.Refresh(f.ctx, u1))

	f.seedImage(t, "i1", "u2", time.Now())
	f.b.Fail(http.MethodGet, "/api/images", http.StatusInternalServerError, 1)
	require.Error(t, feed.Refresh(f.ctx, u1))
	require.Len(t, feed.Items(), 1)
	assert.Equal(t, "v1", feed.Items()[0].ID)

	require.NoError(t, feed.Refresh(f.ctx, u1))
	assert.Len(t, feed.Items(), 2)
}

func TestFeed_FailedLikeLeavesItemUnliked(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")
	feed := f.sc.Feed()
	require.NoError(t, feed.Refresh(f.ctx, u1))

	f.b.Fail(http.MethodPatch, "/api/videos/v1", http.StatusInternalServerError, 1)
	_, err := feed.ToggleLike(f.ctx, u1, feed.Items()[0])
	require.Error(t, err)

	state, ok := f.sc.Likes.State(Ref{Collection: models.CollectionVideos, ID: "v1"}, "u1")
	require.True(t, ok)
	assert.False(t, state.Liked)
	assert.False(t, feed.Items()[0].IsLiked)
}
