package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepresearch-app/server/internal/kv"
	"github.com/deepresearch-app/server/internal/logger"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	client := kv.New(rdb, kv.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, logger.New(8))
	return NewManager(client, ttl, logger.New(8)), mr
}

func TestCreateGetRoundTrip(t *testing.T) {
	m, mr := newTestManager(t, 24*time.Hour)
	ctx := context.Background()

	sessionID, err := m.Create(ctx, 42)
	require.NoError(t, err)
	assert.Len(t, sessionID, 64)
	assert.Equal(t, 24*time.Hour, mr.TTL(keyPrefix+sessionID))

	rec, err := m.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(42), rec.UserID)
	assert.WithinDuration(t, time.Now(), rec.CreatedAt, time.Minute)
}

func TestSessionIDsAreUnique(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	first, err := m.Create(ctx, 1)
	require.NoError(t, err)
	second, err := m.Create(ctx, 1)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestGetAbsentSession(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	rec, err := m.Get(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetMalformedPayloadTreatedAsAbsent(t *testing.T) {
	m, mr := newTestManager(t, time.Hour)

	for _, payload := range []string{
		"not json",
		`{"user_id": 0, "created_at": "2026-01-01T00:00:00Z"}`,
		`{"user_id": 7, "created_at": "2026-01-01T00:00:00Z", "role": "admin"}`,
	} {
		require.NoError(t, mr.Set(keyPrefix+"sid", payload))

		rec, err := m.Get(context.Background(), "sid")
		require.NoError(t, err)
		assert.Nil(t, rec, "payload %q", payload)
	}
}

func TestRefreshExtendsTTLWithoutChangingPayload(t *testing.T) {
	m, mr := newTestManager(t, time.Hour)
	ctx := context.Background()

	sessionID, err := m.Create(ctx, 7)
	require.NoError(t, err)

	before, err := m.Get(ctx, sessionID)
	require.NoError(t, err)

	mr.FastForward(30 * time.Minute)

	ok, err := m.Refresh(ctx, sessionID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+sessionID))

	after, err := m.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.UserID, after.UserID)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
}

func TestRefreshAbsentSessionIsNormalOutcome(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	ok, err := m.Refresh(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionExpiresByTTL(t *testing.T) {
	m, mr := newTestManager(t, time.Minute)
	ctx := context.Background()

	sessionID, err := m.Create(ctx, 7)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	rec, err := m.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDeleteIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	sessionID, err := m.Create(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, m.Delete(ctx, sessionID))
	require.NoError(t, m.Delete(ctx, sessionID))

	rec, err := m.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
