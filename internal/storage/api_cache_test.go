package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPICache_GetPutExpire(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	fixedClock(store, now)

	_, ok, err := store.GetCached(ctx, "hotels_by_city", "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.PutCached(ctx, "hotels_by_city", "abc", []byte(`[1,2]`), now.Add(time.Hour)))
	value, ok, err := store.GetCached(ctx, "hotels_by_city", "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `[1,2]`, string(value))

	_, ok, err = store.GetCached(ctx, "cities", "abc")
	require.NoError(t, err)
	assert.False(t, ok, "endpoint is part of the key")

	require.NoError(t, store.PutCached(ctx, "hotels_by_city", "abc", []byte(`[3]`), now.Add(time.Hour)))
	value, _, err = store.GetCached(ctx, "hotels_by_city", "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `[3]`, string(value))

	fixedClock(store, now.Add(2*time.Hour))
	_, ok, err = store.GetCached(ctx, "hotels_by_city", "abc")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries are not served")
}

func TestAPICache_Purge(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	fixedClock(store, now)
	require.NoError(t, store.PutCached(ctx, "offers", "old", []byte(`{}`), now.Add(-time.Minute)))
	require.NoError(t, store.PutCached(ctx, "offers", "fresh", []byte(`{}`), now.Add(time.Hour)))

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := store.GetCached(ctx, "offers", "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = store.PurgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
