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

type jobInfo struct {
	Title string `json:"title"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, "portal", time.Minute)
}

func TestRedis_SetGetDelete(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "job:1", jobInfo{Title: "SDE"}, 0))
	assert.True(t, mr.Exists("portal:job:1"))
	assert.Equal(t, time.Minute, mr.TTL("portal:job:1"))

	var got jobInfo
	require.NoError(t, c.Get(ctx, "job:1", &got))
	assert.Equal(t, "SDE", got.Title)

	require.NoError(t, c.Delete(ctx, "job:1"))
	assert.ErrorIs(t, c.Get(ctx, "job:1", &got), ErrNotFound)
}

func TestRedis_Expiry(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1, 10*time.Second))
	mr.FastForward(11 * time.Second)
	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrNotFound)
}

func TestFetch(t *testing.T) {
	_, c := setupRedis(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (jobInfo, error) {
		calls++
		return jobInfo{Title: "Analyst"}, nil
	}

	v, err := Fetch(ctx, c, "job:2", 0, load)
	require.NoError(t, err)
	assert.Equal(t, "Analyst", v.Title)

	v, err = Fetch(ctx, c, "job:2", 0, load)
	require.NoError(t, err)
	assert.Equal(t, "Analyst", v.Title)
	assert.Equal(t, 1, calls)
}

func TestFetch_NilCacheAndLoadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Fetch(context.Background(), nil, "k", 0, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	_, c := setupRedis(t)
	_, err = Fetch(context.Background(), c, "k", 0, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	var v int
	assert.ErrorIs(t, c.Get(context.Background(), "k", &v), ErrNotFound, "errors are not cached")
}
