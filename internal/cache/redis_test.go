package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The Redis store tests need a live server and are skipped by default. Set
// REDIS_TEST_HOST (and optionally REDIS_TEST_PORT) to run them; they cover
// the TTL, prefixed SCAN Clear and health check against that server. Keys are
// written under the "ctan-test:" prefix and removed on cleanup.

// newTestRedis connects to the Redis named by REDIS_TEST_HOST, or skips
func newTestRedis(t *testing.T) *Redis {
	t.Helper()

	host := os.Getenv("REDIS_TEST_HOST")
	if host == "" {
		t.Skip("REDIS_TEST_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("REDIS_TEST_PORT"))
	if port == 0 {
		port = 6379
	}

	client, err := NewRedisClient(context.Background(), RedisConfig{Host: host, Port: port})
	require.NoError(t, err)

	store := NewRedis(client, time.Hour, "ctan-test:")
	t.Cleanup(func() {
		_ = store.Clear(context.Background())
		_ = store.Close()
	})
	return store
}

func TestRedisStore(t *testing.T) {
	store := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1")))
	require.NoError(t, store.Set(ctx, "b", []byte("2")))

	v, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", string(v))

	require.NoError(t, store.Invalidate(ctx, "a"))
	_, ok, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	_, ok, err = store.Get(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, store.HealthCheck(ctx))
}
