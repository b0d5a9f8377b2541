package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"wearlog/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog() []models.Item {
	return []models.Item{
		{ID: "a", Name: "Blue shirt", Category: "tops"},
		{ID: "b", Name: "Black jeans", Category: "bottoms"},
	}
}

func TestMemoryItemCache(t *testing.T) {
	cache := NewMemoryItemCache(time.Hour)
	ctx := context.Background()

	items, err := cache.GetItems(ctx)
	require.NoError(t, err)
	assert.Nil(t, items, "empty cache is a miss")

	require.NoError(t, cache.SetItems(ctx, catalog()))
	items, err = cache.GetItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, cache.Invalidate(ctx))
	items, err = cache.GetItems(ctx)
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestMemoryItemCacheExpires(t *testing.T) {
	cache := NewMemoryItemCache(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.SetItems(ctx, catalog()))
	time.Sleep(20 * time.Millisecond)

	items, err := cache.GetItems(ctx)
	require.NoError(t, err)
	assert.Nil(t, items, "expired entry is a miss")
}

func TestRedisItemCache(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	cache := NewRedisItemCache(client, time.Hour)
	ctx := context.Background()

	items, err := cache.GetItems(ctx)
	require.NoError(t, err)
	assert.Nil(t, items)

	require.NoError(t, cache.SetItems(ctx, catalog()))
	items, err = cache.GetItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Blue shirt", items[0].Name)

	require.NoError(t, cache.Invalidate(ctx))
	items, err = cache.GetItems(ctx)
	require.NoError(t, err)
	assert.Nil(t, items)
}

type failingCache struct{ err error }

func (f *failingCache) GetItems(ctx context.Context) ([]models.Item, error) { return nil, f.err }
func (f *failingCache) SetItems(ctx context.Context, items []models.Item) error {
	return f.err
}
func (f *failingCache) Invalidate(ctx context.Context) error { return f.err }

func TestFailoverFallsBackOnPrimaryError(t *testing.T) {
	logger := zerolog.Nop()
	fallback := NewMemoryItemCache(time.Hour)
	cache := NewFailoverItemCache(&failingCache{err: errors.New("redis down")}, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, cache.SetItems(ctx, catalog()))

	items, err := cache.GetItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2, "fallback must serve after primary failure")
}

func TestFailoverUsesPrimaryWhenHealthy(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	logger := zerolog.Nop()
	primary := NewRedisItemCache(client, time.Hour)
	cache := NewFailoverItemCache(primary, NewMemoryItemCache(time.Hour), &logger)
	ctx := context.Background()

	require.NoError(t, cache.SetItems(ctx, catalog()))
	assert.True(t, s.Exists(itemsCacheKey), "primary must be written")

	items, err := cache.GetItems(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
