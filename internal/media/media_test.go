package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"reelshare/internal/apiclient"
	"reelshare/internal/config"
	"reelshare/internal/models"
	"reelshare/internal/session"
	"reelshare/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu    sync.Mutex
	url   string
	err   error
	calls []string
	bytes []byte
}

func (f *fakeUploader) Upload(_ context.Context, r io.Reader, name string, kind models.EntityType) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(kind)+":"+name)
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.bytes = data
	return f.url, f.err
}

type thumbUploader struct{ fakeUploader }

func (t *thumbUploader) Thumbnail(videoURL string) string { return videoURL + "#thumb" }

func newPublisher(t *testing.T, up Uploader) (*Publisher, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	return NewPublisher(apiclient.New(b.URL, 5*time.Second), up), b
}

func TestPublish_Image(t *testing.T) {
	t.Parallel()
	up := &fakeUploader{url: "https://cdn.example.com/images/cat.jpg"}
	p, b := newPublisher(t, up)

	post, err := p.Publish(context.Background(), session.New("u1"), Upload{
		Kind:    models.EntityImage,
		Name:    "cat.jpg",
		Body:    strings.NewReader("jpeg bytes"),
		Caption: "  my cat ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
	assert.Equal(t, []string{"image:cat.jpg"}, up.calls)
	assert.Equal(t, "jpeg bytes", string(up.bytes))

	var img models.Image
	b.Doc(t, models.CollectionImages, post.ID, &img)
	assert.Equal(t, "u1", img.UserID)
	assert.Equal(t, "https://cdn.example.com/images/cat.jpg", img.ImageURL)
	assert.Equal(t, "my cat", img.Caption)
	assert.Equal(t, []string{}, img.LikedBy)
	assert.Zero(t, img.LikeCount)
	assert.Zero(t, img.CommentCount)
}

func TestPublish_VideoWithSoundtrackAndThumbnail(t *testing.T) {
	t.Parallel()
	up := &thumbUploader{fakeUploader{url: "https://cdn.example.com/videos/clip.mp4"}}
	p, b := newPublisher(t, up)
	b.Seed(t, models.CollectionMusic, models.Music{ID: "m1", Title: "Song", Artist: "Band"})

	post, err := p.Publish(context.Background(), session.New("u1"), Upload{
		Kind:    models.EntityVideo,
		Name:    "clip.mp4",
		Body:    strings.NewReader("mp4"),
		MusicID: "m1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/videos/clip.mp4#thumb", post.ThumbnailURL)

	var v models.Video
	b.Doc(t, models.CollectionVideos, post.ID, &v)
	assert.Equal(t, "https://cdn.example.com/videos/clip.mp4", v.VideoURL)
	assert.Equal(t, post.ThumbnailURL, v.ThumbnailURL)
	assert.Equal(t, "m1", v.MusicID)
}

func TestPublish_RejectsBeforeUploading(t *testing.T) {
	t.Parallel()
	up := &fakeUploader{url: "https://cdn.example.com/x"}
	p, b := newPublisher(t, up)
	body := func() io.Reader { return strings.NewReader("x") }

	tests := []struct {
		name string
		sess session.Session
		up   Upload
	}{
		{"no session", session.Session{}, Upload{Kind: models.EntityImage, Body: body()}},
		{"bad kind", session.New("u1"), Upload{Kind: "audio", Body: body()}},
		{"no body", session.New("u1"), Upload{Kind: models.EntityImage}},
		{"long caption", session.New("u1"), Upload{Kind: models.EntityImage, Body: body(), Caption: strings.Repeat("c", 3000)}},
		{"music on image", session.New("u1"), Upload{Kind: models.EntityImage, Body: body(), MusicID: "m1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Publish(context.Background(), tt.sess, tt.up)
			assert.True(t, models.IsCode(err, models.CodeValidation))
		})
	}
	assert.Empty(t, up.calls)
	assert.Empty(t, b.Requests("", "/api/"))
}

func TestPublish_UnknownSoundtrack(t *testing.T) {
	t.Parallel()
	up := &fakeUploader{url: "https://cdn.example.com/x.mp4"}
	p, _ := newPublisher(t, up)

	_, err := p.Publish(context.Background(), session.New("u1"), Upload{
		Kind: models.EntityVideo, Body: strings.NewReader("x"), MusicID: "missing",
	})
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
	assert.Empty(t, up.calls)
}

func TestPublish_UploadFailureCreatesNothing(t *testing.T) {
	t.Parallel()
	up := &fakeUploader{err: errors.New("quota exceeded")}
	p, b := newPublisher(t, up)

	_, err := p.Publish(context.Background(), session.New("u1"), Upload{Kind: models.EntityVideo, Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Empty(t, b.Requests(http.MethodPost, "/api/videos"))
}

func TestPublish_RejectsUnusableURL(t *testing.T) {
	t.Parallel()
	up := &fakeUploader{url: "/relative/path.mp4"}
	p, b := newPublisher(t, up)

	_, err := p.Publish(context.Background(), session.New("u1"), Upload{Kind: models.EntityVideo, Body: strings.NewReader("x")})
	require.Error(t, err)
	assert.Empty(t, b.Requests(http.MethodPost, "/api/videos"))
}

func TestNewCloudinaryUploader(t *testing.T) {
	t.Parallel()
	_, err := NewCloudinaryUploader(&config.Config{CloudinaryCloudName: "demo"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	u, err := NewCloudinaryUploader(&config.Config{
		CloudinaryCloudName: "demo",
		CloudinaryAPIKey:    "key",
		CloudinaryAPISecret: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "reelshare", u.folder)
	assert.Equal(t, "https://res.cloudinary.com/demo/video/upload/v1/reelshare/videos/clip-1.jpg",
		u.Thumbnail("https://res.cloudinary.com/demo/video/upload/v1/reelshare/videos/clip-1.mp4"))
}

func TestPublicID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, in, prefix string
	}{
		{"plain", "clip.mp4", "clip-"},
		{"nested path", "dir/sub/My Clip.mov", "My_Clip-"},
		{"no extension", "snapshot", "snapshot-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := publicID(tt.in)
			assert.True(t, strings.HasPrefix(got, tt.prefix), got)
			assert.Len(t, got, len(tt.prefix)+8)
		})
	}
	assert.Len(t, publicID(""), 8)
	assert.Len(t, publicID("..."), 8)
}
