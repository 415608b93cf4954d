package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reelshare/internal/config"
	"reelshare/internal/database"
	"reelshare/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            "test",
		DBDriver:       "sqlite",
		AllowedOrigins: "*",
		FeatureFlags:   "server_counters=on,atomic_follow=50%",
	}
}

func newTestServer(t *testing.T, rdb *redis.Client) (*Server, *fiber.App) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)

	s, err := NewServerWithDeps(testConfig(), db, rdb)
	require.NoError(t, err)
	t.Cleanup(func() { s.shutdownFn() })
	return s, s.NewApp()
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealthChecks(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t, nil)

	resp, _ := doJSON(t, app, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := doJSON(t, app, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, data)
	assert.Equal(t, map[string]any{"database": "healthy", "redis": "disabled"}, body["checks"])
}

func TestDocumentLifecycle(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t, nil)

	resp, data := doJSON(t, app, http.MethodPost, "/api/videos", map[string]any{
		"userId": "u1", "videoUrl": "https://cdn/v1.mp4", "caption": "first",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	created := decode[models.Video](t, data)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, 0, created.LikeCount)

	resp, data = doJSON(t, app, http.MethodPatch, "/api/videos/"+created.ID, map[string]any{
		"likedBy": []string{"u2"}, "likeCount": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	patched := decode[models.Video](t, data)
	assert.Equal(t, "first", patched.Caption)
	assert.Equal(t, []string{"u2"}, patched.LikedBy)

	resp, data = doJSON(t, app, http.MethodGet, "/api/videos?userId=u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Video](t, data), 1)

	resp, data = doJSON(t, app, http.MethodGet, "/api/videos?userId=nobody", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(data))

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/videos/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, data = doJSON(t, app, http.MethodGet, "/api/videos/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, data).Code)
}

func TestDocumentErrors(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t, nil)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/users", map[string]any{"id": "u1", "username": "ana"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown collection", http.MethodGet, "/api/posts", nil, http.StatusNotFound},
		{"duplicate id", http.MethodPost, "/api/users", map[string]any{"id": "u1"}, http.StatusConflict},
		{"empty comment", http.MethodPost, "/api/comments", map[string]any{"entityId": "v1", "entityType": "video", "authorId": "u1", "content": " "}, http.StatusBadRequest},
		{"id is immutable", http.MethodPatch, "/api/users/u1", map[string]any{"id": "u2"}, http.StatusBadRequest},
		{"bad order", http.MethodGet, "/api/users?_order=sideways", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/users?_limit=-1", nil, http.StatusBadRequest},
		{"patch missing", http.MethodPatch, "/api/users/ghost", map[string]any{"bio": "x"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := doJSON(t, app, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/users", bytes.NewBufferString("[1,2]"))
	req.Header.Set("Content-Type", "application/json")
	res, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestListSortAndPage(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t, nil)

	for i, ts := range []string{"2026-01-01T00:00:02Z", "2026-01-01T00:00:01Z", "2026-01-01T00:00:03Z"} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/music", map[string]any{
			"id": string(rune('a' + i)), "title": "t", "createdAt": ts,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	_, data := doJSON(t, app, http.MethodGet, "/api/music?_sort=createdAt&_order=desc&_limit=2", nil)
	got := decode[[]models.Music](t, data)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	_, data = doJSON(t, app, http.MethodGet, "/api/music?_start=2", nil)
	got = decode[[]models.Music](t, data)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)
}

func TestIncrementEndpoint(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t, nil)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/videos", map[string]any{"id": "v1", "userId": "u1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, data := doJSON(t, app, http.MethodPost, "/api/videos/v1/increment", IncrementRequest{Field: "commentCount", Delta: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, 1, decode[models.Video](t, data).CommentCount)

	resp, data = doJSON(t, app, http.MethodPost, "/api/videos/v1/increment", IncrementRequest{Field: "commentCount", Delta: -3})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, 0, decode[models.Video](t, data).CommentCount)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/videos/missing/increment", IncrementRequest{Field: "commentCount", Delta: 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFollowEndpoints(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t, nil)

	for _, id := range []string{"u1", "u2"} {
		resp, _ := doJSON(t, app, http.MethodPost, "/api/users", map[string]any{"id": id})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, data := doJSON(t, app, http.MethodPut, "/api/users/u1/following/u2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	_, data = doJSON(t, app, http.MethodGet, "/api/users/u2", nil)
	assert.Equal(t, []string{"u1"}, decode[models.User](t, data).FollowerIDs)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/users/u1/following/u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodDelete, "/api/users/u1/following/u2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, data = doJSON(t, app, http.MethodGet, "/api/users/u1", nil)
	assert.Empty(t, decode[models.User](t, data).FollowingIDs)
}

func TestGetFeatureFlags(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t, nil)

	_, data := doJSON(t, app, http.MethodGet, "/api/flags?userId=u1", nil)
	body := decode[struct {
		Raw       map[string]string `json:"raw"`
		Evaluated map[string]bool   `json:"evaluated"`
	}](t, data)
	assert.Equal(t, "on", body.Raw["server_counters"])
	assert.True(t, body.Evaluated["server_counters"])
}

func TestReadyWithRedisAndCachedGet(t *testing.T) {
	t.Parallel()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, app := newTestServer(t, rdb)

	resp, data := doJSON(t, app, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	resp, _ = doJSON(t, app, http.MethodPost, "/api/images", map[string]any{"id": "i1", "userId": "u1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = doJSON(t, app, http.MethodGet, "/api/images/i1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, mr.Exists("doc:images:i1"))

	resp, _ = doJSON(t, app, http.MethodPatch, "/api/images/i1", map[string]any{"caption": "new"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, mr.Exists("doc:images:i1"))
}

func listen(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func TestWebSocketReceivesNotifications(t *testing.T) {
	t.Parallel()
	s, app := newTestServer(t, nil)
	addr := listen(t, app)

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws?userId=u2", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return s.hub.IsOnline("u2") }, time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(map[string]any{"toUserId": "u2", "fromUserId": "u1", "type": "like", "targetId": "v1"})
	httpResp, err := http.Post("http://"+addr+"/api/notifications", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	_ = httpResp.Body.Close()
	require.Equal(t, http.StatusCreated, httpResp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var evt models.Event
	require.NoError(t, json.Unmarshal(msg, &evt))
	assert.Equal(t, models.EventNotificationCreated, evt.Type)

	var n models.Notification
	require.NoError(t, json.Unmarshal(evt.Payload, &n))
	assert.Equal(t, "u2", n.ToUserID)
	assert.Equal(t, models.NotificationLike, n.Type)
}

func TestWebSocketRequiresUserID(t *testing.T) {
	t.Parallel()
	_, app := newTestServer(t, nil)
	addr := listen(t, app)

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
