package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestAside_MissThenHit(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t)
	ctx := context.Background()

	fetches := 0
	fetch := func(dest *payload) func() error {
		return func() error {
			fetches++
			*dest = payload{ID: "v1", Count: 3}
			return nil
		}
	}

	var first payload
	require.NoError(t, c.Aside(ctx, DocumentKey("videos", "v1"), &first, time.Minute, fetch(&first)))
	assert.Equal(t, 1, fetches)
	assert.True(t, mr.Exists("doc:videos:v1"))

	var second payload
	require.NoError(t, c.Aside(ctx, DocumentKey("videos", "v1"), &second, time.Minute, fetch(&second)))
	assert.Equal(t, 1, fetches, "second read must be served from cache")
	assert.Equal(t, first, second)
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t)

	boom := errors.New("db down")
	var dest payload
	err := c.Aside(context.Background(), "doc:videos:v2", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("doc:videos:v2"))
}

func TestInvalidateDocument(t *testing.T) {
	t.Parallel()
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, DocumentKey("users", "u1"), payload{ID: "u1"}, time.Minute))
	c.InvalidateDocument(ctx, "users", "u1")
	assert.False(t, mr.Exists("doc:users:u1"))
}

func TestNilCacheIsNoop(t *testing.T) {
	t.Parallel()
	c := New(nil)
	ctx := context.Background()

	found, err := c.GetJSON(ctx, "k", &payload{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.SetJSON(ctx, "k", payload{}, time.Minute))
	c.Invalidate(ctx, "k")

	called := false
	require.NoError(t, c.Aside(ctx, "k", &payload{}, time.Minute, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}
