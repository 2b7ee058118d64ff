package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/cachestore"
)

func newStore(t *testing.T, mr *miniredis.Miniredis, now func() time.Time) *Store {
	t.Helper()
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return New(c, Options{Retention: time.Hour, Now: now})
}

func TestRedisStore_FreshStaleAndOverwrite(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStore(t, mr, func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "sidebar:u1:threads", "v1", time.Minute))
	e, err := s.Get(ctx, "sidebar:u1:threads")
	require.NoError(t, err)
	assert.Equal(t, "v1", e.Value)
	assert.True(t, e.Deadline.Equal(now.Add(time.Minute)))

	now = now.Add(2 * time.Minute)
	_, err = s.Get(ctx, "sidebar:u1:threads")
	assert.ErrorIs(t, err, cachestore.ErrMiss)
	e, err = s.GetStale(ctx, "sidebar:u1:threads")
	require.NoError(t, err)
	assert.Equal(t, "v1", e.Value)

	// Retention is applied as the Redis key TTL.
	assert.Equal(t, time.Hour, mr.TTL("sidebar:u1:threads"))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, cachestore.ErrMiss)
}

func TestRedisStore_ClearByPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := newStore(t, mr, time.Now)

	for _, k := range []string{"sidebar:u1:threads", "sidebar:u1:folders", "sidebar:u10:threads"} {
		require.NoError(t, s.Set(ctx, k, "x", time.Minute))
	}
	require.NoError(t, s.ClearByPrefix(ctx, "sidebar:u1:"))

	assert.False(t, mr.Exists("sidebar:u1:threads"))
	assert.False(t, mr.Exists("sidebar:u1:folders"))
	assert.True(t, mr.Exists("sidebar:u10:threads"))
}

func TestRedisStore_WatchAcrossStores(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mr := miniredis.RunT(t)
	tab1 := newStore(t, mr, time.Now)
	tab2 := newStore(t, mr, time.Now)

	ch, err := tab1.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, tab1.Set(ctx, "sidebar:u1:tags", "own", time.Minute))
	require.NoError(t, tab2.ClearByPrefix(ctx, "sidebar:u1:"))

	select {
	case c := <-ch:
		assert.Equal(t, cachestore.OpClear, c.Op)
		assert.Equal(t, "sidebar:u1:", c.Key)
		assert.Equal(t, tab2.Origin(), c.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s := newStore(t, mr, time.Now)
	mr.Close()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, cachestore.ErrUnavailable)
	assert.ErrorIs(t, s.Set(ctx, "k", "v", time.Minute), cachestore.ErrUnavailable)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]e\\`, escapeGlob(`a*b?c[d]e\`))
}
