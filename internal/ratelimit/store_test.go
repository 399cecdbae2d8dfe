package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/chatrelay/relay/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) (*RedisWindowStore, string) {
	t.Helper()

	client, err := storage.NewRedis("localhost:6379", "", 15, false)
	if err != nil {
		t.Skipf("Redis not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	store := NewRedisWindowStore(client, 200*time.Millisecond)
	tenant := fmt.Sprintf("store-test-%d", time.Now().UnixNano())
	t.Cleanup(func() { store.Clear(context.Background(), tenant) })

	return store, tenant
}

func TestRedisRecordAndCount(t *testing.T) {
	store, tenant := setupStore(t)
	ctx := context.Background()

	now := time.Now()
	cutoff := now.Add(-dayWindow)

	for i := 1; i <= 5; i++ {
		count, err := store.RecordAndCount(ctx, tenant, now.Add(time.Duration(i)*time.Second), cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}
}

func TestRedisRecordPurgesExpired(t *testing.T) {
	store, tenant := setupStore(t)
	ctx := context.Background()

	now := time.Now()
	stale := now.Add(-25 * time.Hour)

	_, err := store.RecordAndCount(ctx, tenant, stale, stale.Add(-dayWindow))
	require.NoError(t, err)

	// Recording with a fresh cutoff drops the stale entry.
	count, err := store.RecordAndCount(ctx, tenant, now, now.Add(-dayWindow))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedisCountSinceBounds(t *testing.T) {
	store, tenant := setupStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	cutoff := base.Add(-dayWindow)

	for _, offset := range []time.Duration{0, time.Second, 2 * time.Second} {
		_, err := store.RecordAndCount(ctx, tenant, base.Add(offset), cutoff)
		require.NoError(t, err)
	}

	// after is exclusive, until is inclusive.
	count, err := store.CountSince(ctx, tenant, base, base.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = store.CountSince(ctx, tenant, base.Add(-time.Second), base.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRedisOldestSince(t *testing.T) {
	store, tenant := setupStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	cutoff := base.Add(-dayWindow)

	_, err := store.RecordAndCount(ctx, tenant, base.Add(2*time.Second), cutoff)
	require.NoError(t, err)
	_, err = store.RecordAndCount(ctx, tenant, base, cutoff)
	require.NoError(t, err)

	oldest, found, err := store.OldestSince(ctx, tenant, cutoff, base.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, base.UnixNano(), oldest.UnixNano())

	_, found, err = store.OldestSince(ctx, tenant, base.Add(2*time.Second), base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisRemove(t *testing.T) {
	store, tenant := setupStore(t)
	ctx := context.Background()

	now := time.Now()
	cutoff := now.Add(-dayWindow)

	_, err := store.RecordAndCount(ctx, tenant, now, cutoff)
	require.NoError(t, err)

	require.NoError(t, store.Remove(ctx, tenant, now))

	count, err := store.CountSince(ctx, tenant, cutoff, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestRedisUnavailableSurfacesSentinel(t *testing.T) {
	// A client pointed at a closed port fails construction, so exercise the
	// timeout path with an already-cancelled context instead.
	store, tenant := setupStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.CountSince(ctx, tenant, time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
