package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"reelshare/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadWithoutFile(t *testing.T) {
	t.Parallel()
	store, err := NewStore(filepath.Join(t.TempDir(), "session.yml"))
	require.NoError(t, err)

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStore_SaveLoadClear(t *testing.T) {
	t.Parallel()
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "session.yml"))
	require.NoError(t, err)

	require.NoError(t, store.Save(New("u42")))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "u42", got.UserID)

	require.NoError(t, store.Save(New("u7")))
	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "u7", got.UserID)

	require.NoError(t, store.Clear())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	assert.NoError(t, store.Clear())
}

func TestStore_SaveRejectsEmptyUser(t *testing.T) {
	t.Parallel()
	store, err := NewStore(filepath.Join(t.TempDir(), "session.yml"))
	require.NoError(t, err)
	assert.Error(t, store.Save(New("   ")))
}

func TestStore_EmptyUserInFileIsNoSession(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "session.yml")
	require.NoError(t, os.WriteFile(path, []byte("user_id: \"\"\n"), 0o600))

	store, err := NewStore(path)
	require.NoError(t, err)
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestNewStore_AddsExtension(t *testing.T) {
	t.Parallel()
	store, err := NewStore(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, err)
	assert.Equal(t, ".yml", filepath.Ext(store.Path()))
}

func TestSession_Context(t *testing.T) {
	t.Parallel()
	ctx := New("u1").Context(context.Background())
	assert.Equal(t, "u1", ctx.Value(observability.UserIDKey))
	assert.False(t, Session{}.Valid())
}
