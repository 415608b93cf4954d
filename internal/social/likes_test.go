package social

import (
	"net/http"
	"testing"
	"time"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/session"
	"reelshare/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var videoV1 = Ref{Collection: models.CollectionVideos, ID: "v1"}

func TestLiker_LikeSendsToggledSetAndNotifiesOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")

	res, err := f.sc.Likes.Toggle(f.ctx, u1, videoV1)
	require.NoError(t, err)
	assert.True(t, res.Liked)
	assert.Equal(t, 1, res.Likes.LikeCount)
	assert.Equal(t, "u2", res.OwnerID)

	patches := f.b.Requests(http.MethodPatch, "/api/videos/v1")
	require.Len(t, patches, 1)
	assert.JSONEq(t, `{"likedBy":["u1"],"likeCount":1}`, string(patches[0].Body))

	var stored models.Video
	f.b.Doc(t, models.CollectionVideos, "v1", &stored)
	assert.Equal(t, []string{"u1"}, stored.LikedBy)
	assert.Equal(t, 1, stored.LikeCount)

	notes := f.notifications(t, "u2")
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationLike, notes[0].Type)
	assert.Equal(t, "u1", notes[0].FromUserID)
	assert.Equal(t, "v1", notes[0].TargetID)
}

func TestLiker_OptimisticStateThenRollback(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")

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

	optimistic, outcome, err := f.sc.Likes.ToggleAsync(f.ctx, u1, videoV1)
	require.NoError(t, err)
	assert.True(t, optimistic.Liked)
	assert.Equal(t, 1, optimistic.Likes.LikeCount)

	<-entered
	during, ok := f.sc.Likes.State(videoV1, "u1")
	require.True(t, ok)
	assert.True(t, during.Liked)
	assert.Equal(t, []string{"u1"}, during.Likes.LikedBy)
	close(release)

	got := <-outcome
	require.Error(t, got.Err)
	assert.True(t, apiclient.IsTransient(got.Err))
	assert.False(t, got.Liked)
	assert.Equal(t, 0, got.Likes.LikeCount)

	after, _ := f.sc.Likes.State(videoV1, "u1")
	assert.False(t, after.Liked)
	assert.Equal(t, 0, after.Likes.LikeCount)
	assert.Empty(t, after.Likes.LikedBy)

	var stored models.Video
	f.b.Doc(t, models.CollectionVideos, "v1", &stored)
	assert.Empty(t, stored.LikedBy)
	assert.Empty(t, f.notifications(t, "u2"))
}

func TestLiker_RollbackRestoresConfirmedSnapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")

	_, err := f.sc.Likes.Toggle(f.ctx, u1, videoV1)
	require.NoError(t, err)
	before, _ := f.sc.Likes.State(videoV1, "u1")

	f.b.Fail(http.MethodPatch, "/api/videos/v1", http.StatusServiceUnavailable, 1)
	_, err = f.sc.Likes.Toggle(f.ctx, u1, videoV1)
	require.Error(t, err)

	after, _ := f.sc.Likes.State(videoV1, "u1")
	assert.Equal(t, before, after)
	assert.True(t, after.Liked)
}

func TestLiker_CountMatchesSetAfterRefetch(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "owner", time.Now())

	for _, actor := range []string{"u1", "u2", "u3", "u2", "u4", "u1", "u2"} {
		_, err := f.sc.Likes.Toggle(f.ctx, session.New(actor), videoV1)
		require.NoError(t, err)
	}

	v, err := apiclient.Get[models.Video](f.ctx, f.sc.API, models.CollectionVideos, "v1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u3", "u4", "u2"}, v.LikedBy)
	assert.Equal(t, len(v.LikedBy), v.LikeCount)
}

func TestLiker_TrackDerivesCountFromSet(t *testing.T) {
	t.Parallel()
	l := NewLiker(nil, nil)
	l.Track(videoV1, "u2", models.Likes{LikedBy: []string{"u1", "u1", "u3"}, LikeCount: 7})

	res, ok := l.State(videoV1, "u3")
	require.True(t, ok)
	assert.True(t, res.Liked)
	assert.Equal(t, 2, res.Likes.LikeCount)
	assert.Equal(t, []string{"u1", "u3"}, res.Likes.LikedBy)
}

func TestLiker_UnlikeSendsNoNotification(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.b.Seed(t, models.CollectionVideos, models.Video{
		ID: "v1", UserID: "u2", Likes: models.Likes{LikedBy: []string{"u1"}, LikeCount: 1},
	})

	res, err := f.sc.Likes.Toggle(f.ctx, session.New("u1"), videoV1)
	require.NoError(t, err)
	assert.False(t, res.Liked)
	assert.Equal(t, 0, res.Likes.LikeCount)
	assert.Empty(t, f.notifications(t, "u2"))
}

func TestLiker_OwnLikeSendsNoNotification(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u1", time.Now())

	_, err := f.sc.Likes.Toggle(f.ctx, session.New("u1"), videoV1)
	require.NoError(t, err)
	assert.Empty(t, f.b.Requests(http.MethodPost, "/api/notifications"))
}

func TestLiker_SupersededToggleIsDiscarded(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())
	u1 := session.New("u1")

	release := make(chan struct{})
	defer close(release)
	entered := make(chan struct{}, 1)
	f.b.Inject(&testutil.Fault{
		Method:     http.MethodPatch,
		PathPrefix: "/api/videos/v1",
		Block:      release,
		Entered:    entered,
		Times:      1,
	})

	_, first, err := f.sc.Likes.ToggleAsync(f.ctx, u1, videoV1)
	require.NoError(t, err)
	<-entered

	second, err := f.sc.Likes.Toggle(f.ctx, u1, videoV1)
	require.NoError(t, err)
	assert.False(t, second.Liked)

	out := <-first
	assert.ErrorIs(t, out.Err, ErrSuperseded)

	final, _ := f.sc.Likes.State(videoV1, "u1")
	assert.False(t, final.Liked)
	assert.Equal(t, 0, final.Likes.LikeCount)

	var stored models.Video
	f.b.Doc(t, models.CollectionVideos, "v1", &stored)
	assert.Empty(t, stored.LikedBy)
}

func TestLiker_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	u1 := session.New("u1")

	tests := []struct {
		name string
		ref  Ref
	}{
		{"not likeable", Ref{Collection: models.CollectionUsers, ID: "u2"}},
		{"missing id", Ref{Collection: models.CollectionVideos}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sc.Likes.Toggle(f.ctx, u1, tt.ref)
			assert.True(t, models.IsCode(err, models.CodeValidation))
		})
	}
	assert.Empty(t, f.b.Requests("", "/api/"))

	_, err := f.sc.Likes.Toggle(f.ctx, u1, Ref{Collection: models.CollectionImages, ID: "missing"})
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestLiker_SubscribeSeesOptimisticAndConfirmedState(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedVideo(t, "v1", "u2", time.Now())

	var counts []int
	stop := f.sc.Likes.Subscribe(func(ref Ref, e LikeEntry) {
		if ref == videoV1 {
			counts = append(counts, e.Likes.LikeCount)
		}
	})
	defer stop()

	_, err := f.sc.Likes.Toggle(f.ctx, session.New("u1"), videoV1)
	require.NoError(t, err)
	require.NotEmpty(t, counts)
	assert.Equal(t, 0, counts[0])
	assert.Equal(t, 1, counts[len(counts)-1])
}
