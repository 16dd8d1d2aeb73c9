package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RateLimitStore, *miniredis.Miniredis, *time.Time) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Unix(1_760_000_040, 0)
	store := NewRateLimitStore(client)
	store.now = func() time.Time { return now }
	return store, mr, &now
}

func TestRateLimitStore_Allow(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	t.Run("allows requests within limit", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := store.Allow(ctx, "inbound:fundadmin", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, result.Allowed, "request %d should be allowed", i)
			assert.Equal(t, int64(3), result.Limit)
			assert.Equal(t, 3-i, result.Remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		// 4th request should be blocked (limit is 3 from above)
		result, err := store.Allow(ctx, "inbound:fundadmin", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		result, err := store.Allow(ctx, "inbound:carta", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})

	t.Run("ResetAt is the end of the window", func(t *testing.T) {
		result, err := store.Allow(ctx, "webhooks_mgmt:owner", 10, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1_760_000_040/60+1)*60, result.ResetAt)
	})
}

func TestRateLimitStore_NewWindowResetsCount(t *testing.T) {
	store, _, now := newTestStore(t)
	ctx := context.Background()

	_, err := store.Allow(ctx, "webhooks_mgmt:owner", 1, time.Minute)
	require.NoError(t, err)

	result, err := store.Allow(ctx, "webhooks_mgmt:owner", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	*now = now.Add(time.Minute)
	result, err = store.Allow(ctx, "webhooks_mgmt:owner", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRateLimitStore_KeysExpire(t *testing.T) {
	store, mr, _ := newTestStore(t)

	_, err := store.Allow(context.Background(), "inbound:fundadmin", 5, time.Minute)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, 61*time.Second, mr.TTL(keys[0]))

	mr.FastForward(62 * time.Second)
	assert.Empty(t, mr.Keys())
}

func TestRateLimitStore_RedisDown(t *testing.T) {
	store, mr, _ := newTestStore(t)
	mr.Close()

	_, err := store.Allow(context.Background(), "inbound:fundadmin", 5, time.Minute)
	assert.Error(t, err)
}
