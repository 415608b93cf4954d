package social

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"reelshare/internal/apiclient"
	"reelshare/internal/models"
	"reelshare/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) seedNotification(t *testing.T, id, to string, read bool, at time.Time) {
	t.Helper()
	f.b.Seed(t, models.CollectionNotifications, models.Notification{
		ID:         id,
		ToUserID:   to,
		FromUserID: "someone",
		Type:       models.NotificationLike,
		TargetID:   "v1",
		IsRead:     read,
		CreatedAt:  at,
	})
}

func TestNotifications_NotifySkipsSelfAndUnknownOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)

	require.NoError(t, f.sc.Notifications.Notify(f.ctx, "u1", "u1", models.NotificationLike, "v1"))
	require.NoError(t, f.sc.Notifications.Notify(f.ctx, "u1", "", models.NotificationLike, "v1"))
	assert.Empty(t, f.b.Requests("", "/api/"))

	require.NoError(t, f.sc.Notifications.Notify(f.ctx, "u1", "u2", models.NotificationFollow, "u1"))
	notes := f.notifications(t, "u2")
	require.Len(t, notes, 1)
	assert.False(t, notes[0].IsRead)
	assert.Equal(t, "u1", notes[0].FromUserID)
}

func TestNotifications_NotifyReturnsFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.b.Fail(http.MethodPost, "/api/notifications", http.StatusInternalServerError, 1)

	err := f.sc.Notifications.Notify(f.ctx, "u1", "u2", models.NotificationLike, "v1")
	assert.True(t, apiclient.IsTransient(err))
}

func TestNotifications_ListAndMarkRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	f.seedNotification(t, "n1", "u1", false, base)
	f.seedNotification(t, "n2", "u1", true, base.Add(time.Hour))
	f.seedNotification(t, "n3", "u1", false, base.Add(2*time.Hour))
	f.seedNotification(t, "n4", "u2", false, base.Add(3*time.Hour))
	u1 := session.New("u1")

	list, err := f.sc.Notifications.List(f.ctx, u1)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "n3", list[0].ID)
	assert.Equal(t, "n1", list[2].ID)

	unread, err := f.sc.Notifications.UnreadCount(f.ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	err = f.sc.Notifications.MarkRead(f.ctx, u1, "n4")
	assert.True(t, models.IsCode(err, models.CodeUnauthorized))

	require.NoError(t, f.sc.Notifications.MarkRead(f.ctx, u1, "n1"))
	unread, err = f.sc.Notifications.UnreadCount(f.ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	f.b.ResetRequests()
	require.NoError(t, f.sc.Notifications.MarkRead(f.ctx, u1, "n2"))
	assert.Empty(t, f.b.Requests(http.MethodPatch, "/api/"))

	err = f.sc.Notifications.MarkRead(f.ctx, u1, "missing")
	assert.ErrorIs(t, err, apiclient.ErrNotFound)
}

func TestNotifications_MarkAllRead(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	now := time.Now()
	for _, id := range []string{"n1", "n2", "n3", "n4", "n5", "n6"} {
		f.seedNotification(t, id, "u1", false, now)
	}
	f.seedNotification(t, "other", "u2", false, now)
	u1 := session.New("u1")

	n, err := f.sc.Notifications.MarkAllRead(f.ctx, u1)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	unread, err := f.sc.Notifications.UnreadCount(f.ctx, u1)
	require.NoError(t, err)
	assert.Zero(t, unread)
	assert.Len(t, f.b.Docs(t, models.CollectionNotifications, map[string]string{"isRead": "false"}), 1)
}

func TestProfiles_GetManyDegradesToPlaceholders(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedUser(t, "u1", nil, nil)
	f.seedUser(t, "u2", nil, nil)
	f.b.Fail(http.MethodGet, "/api/users/u2", http.StatusInternalServerError, 1)

	got := f.sc.Profiles.GetMany(f.ctx, []string{"u1", "u2", "ghost", "u1", ""})
	require.Len(t, got, 3)
	assert.Equal(t, "User u1", got["u1"].DisplayName)
	assert.Equal(t, UnknownDisplayName, got["u2"].DisplayName)
	assert.Equal(t, UnknownDisplayName, got["ghost"].DisplayName)
	assert.Equal(t, "ghost", got["ghost"].ID)
	assert.Len(t, f.b.Requests(http.MethodGet, "/api/users/u1"), 1)

	assert.Equal(t, "User u1", f.sc.Profiles.Cached("u1").DisplayName)
	assert.Equal(t, UnknownDisplayName, f.sc.Profiles.Cached("u2").DisplayName)
}

func TestProfiles_GetMissingIsPlaceholder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)

	u, err := f.sc.Profiles.Get(f.ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, Placeholder("nobody"), u)
}

func TestProfiles_UpdateProfile(t *testing.T) {
	t.Parallel()
	f := newFixture(t, DefaultFlags)
	f.seedUser(t, "u1", []string{"u2"}, nil)
	u1 := session.New("u1")
	name, bio := "Ada", "writes code"

	updated, err := f.sc.Profiles.UpdateProfile(f.ctx, u1, ProfileUpdate{DisplayName: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.DisplayName)
	assert.Equal(t, "writes code", updated.Bio)
	assert.Equal(t, []string{"u2"}, updated.FollowingIDs)
	assert.Equal(t, "Ada", f.sc.Profiles.Cached("u1").DisplayName)

	tooLong := strings.Repeat("b", 200)
	badURL := "not a url"
	tests := []struct {
		name string
		upd  ProfileUpdate
	}{
		{"empty", ProfileUpdate{}},
		{"bio too long", ProfileUpdate{Bio: &tooLong}},
		{"bad avatar", ProfileUpdate{Avatar: &badURL}},
	}
	f.b.ResetRequests()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.sc.Profiles.UpdateProfile(f.ctx, u1, tt.upd)
			assert.True(t, models.IsCode(err, models.CodeValidation))
		})
	}
	assert.Empty(t, f.b.Requests("", "/api/"))
}
