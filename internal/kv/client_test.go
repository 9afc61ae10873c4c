package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch-app/server/internal/logger"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
}

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, testRetryConfig(), logger.New(8)), mr
}

func TestGetMissAndHit(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, found, err := client.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetWithExpiry(ctx, "k", "v", time.Minute))

	value, found, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", value)
}

func TestSetWithExpiryAppliesTTL(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetWithExpiry(ctx, "k", "v", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, found, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteIsIdempotent(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetWithExpiry(ctx, "k", "v", time.Minute))
	require.NoError(t, client.Delete(ctx, "k"))
	require.NoError(t, client.Delete(ctx, "k"))
}

func TestExpireReportsMissingKey(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	ok, err := client.Expire(ctx, "absent", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, client.SetWithExpiry(ctx, "k", "v", time.Second))
	ok, err = client.Expire(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("k"))
}

func TestIncrCreatesAndCounts(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, err := client.Incr(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
}

func TestUnreachableStoreYieldsUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	client := New(rdb, testRetryConfig(), logger.New(8))
	mr.Close()

	ctx := context.Background()

	_, _, err := client.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)

	err = client.Connect(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	err = client.Ping(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestConnectSucceedsAgainstLiveStore(t *testing.T) {
	client, _ := newTestClient(t)
	require.NoError(t, client.Connect(context.Background()))
	require.NoError(t, client.Ping(context.Background()))
}
