package optimistic

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencer_SupersedeCancelsPrevious(t *testing.T) {
	t.Parallel()
	s := NewSequencer()

	first := s.Begin(context.Background(), "videos/v1")
	second := s.Begin(context.Background(), "videos/v1")

	assert.False(t, first.Current())
	assert.True(t, second.Current())
	assert.ErrorIs(t, first.Context().Err(), context.Canceled)
	assert.NoError(t, second.Context().Err())
	assert.Equal(t, uint64(2), second.Seq())
	assert.Equal(t, uint64(2), s.Latest("videos/v1"))

	assert.True(t, s.InFlight("videos/v1"))
	first.Done()
	assert.True(t, s.InFlight("videos/v1"))
	assert.NoError(t, second.Context().Err(), "finishing a stale ticket must not touch the newer one")
	second.Done()
	assert.False(t, s.InFlight("videos/v1"))
	assert.True(t, second.Current(), "done does not change ordering")
	assert.Error(t, second.Context().Err())
}

func TestSequencer_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	s := NewSequencer()
	a := s.Begin(context.Background(), "a")
	b := s.Begin(context.Background(), "b")
	defer a.Done()
	defer b.Done()

	assert.True(t, a.Current())
	assert.True(t, b.Current())
	assert.NoError(t, a.Context().Err())
	assert.Equal(t, "b", b.Key())
}

func TestSequencer_ParentCancellation(t *testing.T) {
	t.Parallel()
	s := NewSequencer()
	ctx, cancel := context.WithCancel(context.Background())
	tk := s.Begin(ctx, "k")
	cancel()
	assert.Error(t, tk.Context().Err())
	assert.True(t, tk.Current())
}

func TestSequencer_ConcurrentBegin(t *testing.T) {
	t.Parallel()
	s := NewSequencer()
	const n = 50

	var wg sync.WaitGroup
	tickets := make(chan *Ticket, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tickets <- s.Begin(context.Background(), "k")
		}()
	}
	wg.Wait()
	close(tickets)

	current := 0
	for tk := range tickets {
		if tk.Current() {
			current++
			assert.NoError(t, tk.Context().Err())
		}
		tk.Done()
	}
	assert.Equal(t, 1, current)
	assert.Equal(t, uint64(n), s.Latest("k"))
}

func TestStore_ApplyConfirmRollback(t *testing.T) {
	t.Parallel()
	s := NewStore[int]()

	_, ok := s.Get("k")
	assert.False(t, ok)
	_, ok = s.Rollback("k")
	assert.False(t, ok)

	s.Seed("k", 1)
	s.Apply("k", 2)
	cur, _ := s.Get("k")
	conf, _ := s.Confirmed("k")
	assert.Equal(t, 2, cur)
	assert.Equal(t, 1, conf)

	v, ok := s.Rollback("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	s.Apply("k", 3)
	s.Confirm("k", 3)
	v, _ = s.Rollback("k")
	assert.Equal(t, 3, v)
}

func TestStore_SetConfirmedKeepsCurrent(t *testing.T) {
	t.Parallel()
	s := NewStore[int]()
	s.Seed("k", 1)
	s.Apply("k", 3)
	s.SetConfirmed("k", 2)

	cur, _ := s.Get("k")
	assert.Equal(t, 3, cur)
	v, _ := s.Rollback("k")
	assert.Equal(t, 2, v)

	s.SetConfirmed("new", 7)
	cur, ok := s.Get("new")
	require.True(t, ok)
	assert.Equal(t, 7, cur)
}

func TestStore_UpdateUntrackedSeeds(t *testing.T) {
	t.Parallel()
	s := NewStore[string]()
	got := s.Update("k", func(cur string, ok bool) string {
		assert.False(t, ok)
		return cur + "x"
	})
	assert.Equal(t, "x", got)
	conf, ok := s.Confirmed("k")
	require.True(t, ok)
	assert.Equal(t, "x", conf)

	s.Delete("k")
	assert.Empty(t, s.Keys())
}

func TestStore_Subscribe(t *testing.T) {
	t.Parallel()
	s := NewStore[int]()
	var seen []int
	unsubscribe := s.Subscribe(func(key string, v int) {
		assert.Equal(t, "k", key)
		seen = append(seen, v)
	})

	s.Seed("k", 1)
	s.Apply("k", 2)
	s.Rollback("k")
	unsubscribe()
	s.Apply("k", 5)

	assert.Equal(t, []int{1, 2, 1}, seen)
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	t.Parallel()
	s := NewStore[int]()
	s.Seed("k", 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("k", func(cur int, _ bool) int { return cur + 1 })
		}()
	}
	wg.Wait()

	v, _ := s.Get("k")
	assert.Equal(t, 100, v)
}
