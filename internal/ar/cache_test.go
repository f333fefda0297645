package ar

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheFetchJSONPopulatesAndReuses(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (interface{}, error) {
		loads++
		return AgingSummary{TotalOutstanding: 42}, nil
	}

	key, err := cache.BuildKey(ctx, keyAging(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))...)
	require.NoError(t, err)

	var first AgingSummary
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, 42.0, first.TotalOutstanding)
	require.Equal(t, 1, loads)

	var second AgingSummary
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 42.0, second.TotalOutstanding)
	require.Equal(t, 1, loads, "second fetch must hit the cache")
}

func TestCacheBumpInvalidatesKeys(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	asOf := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	before, err := cache.BuildKey(ctx, keyAging(asOf)...)
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, keyAging(asOf)...)
	require.NoError(t, err)
	require.NotEqual(t, before, after, "version bump must change derived keys")
}

func TestNilCacheDegradesToLoader(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	var out AgingSummary
	err := cache.FetchJSON(ctx, "ignored", &out, func(context.Context) (interface{}, error) {
		return AgingSummary{TotalOutstanding: 7}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7.0, out.TotalOutstanding)
}
