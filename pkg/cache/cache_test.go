package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedRun struct {
	ID     string   `msgpack:"id"`
	Codes  []string `msgpack:"codes"`
	BestHr float64  `msgpack:"best_hrs"`
}

func newTestCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, NewRedisCache(rdb, "test")
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("test:k"))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	ok, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_ClearOnlyPrefix(t *testing.T) {
	mr, c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:k", "keep"))
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("test:a"))
	assert.False(t, mr.Exists("test:b"))
	assert.True(t, mr.Exists("other:k"))
}

func TestCacheManager_Runs(t *testing.T) {
	_, c := newTestCache(t)
	cm := NewCacheManager(c)
	ctx := context.Background()

	_, err := cm.LatestRunID(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)

	first := storedRun{ID: "r1", Codes: []string{"SCGC", "SCEL"}, BestHr: 71.5}
	second := storedRun{ID: "r2", Codes: []string{"NZPG"}, BestHr: 70.25}
	require.NoError(t, cm.SaveRun(ctx, first.ID, first, time.Hour))
	require.NoError(t, cm.SaveRun(ctx, second.ID, second, time.Hour))

	latest, err := cm.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", latest)

	var got storedRun
	require.NoError(t, cm.GetRun(ctx, "r1", &got))
	assert.Equal(t, first, got)

	err = cm.GetRun(ctx, "nope", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheManager_DecodeError(t *testing.T) {
	_, c := newTestCache(t)
	cm := NewCacheManager(c)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, RunKey("bad"), []byte{0xc1}, 0))
	var got storedRun
	err := cm.GetRun(ctx, "bad", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}
