package repository

import (
	"context"
	"testing"
	"time"

	"waitline/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisSnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSnapshotCache(client, ttl), mr
}

func sampleSnapshot() *models.QueueSnapshot {
	pos := int64(1)
	return &models.QueueSnapshot{
		Seated: []*models.Entry{
			{ID: 1, ShopID: 7, Name: "Ann", Status: models.StatusSeated},
		},
		Waiting: []*models.Entry{
			{ID: 2, ShopID: 7, Name: "Bob", Status: models.StatusWaiting, Position: &pos},
		},
	}
}

func TestRedisCacheMissReturnsNil(t *testing.T) {
	cache, _ := newRedisCache(t, time.Minute)

	snap, err := cache.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, sampleSnapshot()))

	got, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Seated, 1)
	require.Len(t, got.Waiting, 1)
	assert.Equal(t, "Bob", got.Waiting[0].Name)
	require.NotNil(t, got.Waiting[0].Position)
	assert.Equal(t, int64(1), *got.Waiting[0].Position)
}

func TestRedisCacheTTL(t *testing.T) {
	cache, mr := newRedisCache(t, time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, sampleSnapshot()))
	mr.FastForward(2 * time.Second)

	snap, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRedisCacheInvalidate(t *testing.T) {
	cache, _ := newRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, sampleSnapshot()))
	require.NoError(t, cache.Invalidate(ctx, 7))

	snap, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRedisCacheShopsAreIsolated(t *testing.T) {
	cache, _ := newRedisCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, sampleSnapshot()))

	snap, err := cache.Get(ctx, 8)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRedisCacheNilClient(t *testing.T) {
	cache := NewRedisSnapshotCache(nil, time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, 7)
	assert.Error(t, err)
	assert.Error(t, cache.Set(ctx, 7, sampleSnapshot()))
	assert.Error(t, cache.Invalidate(ctx, 7))
}
