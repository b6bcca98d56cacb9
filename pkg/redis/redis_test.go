package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/limitup/pkg/config"
)

func TestDisabledClient(t *testing.T) {
	client, err := New(config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Close())

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestDisabledCache(t *testing.T) {
	client, _ := New(config.RedisConfig{})
	cache := NewCache(client, "test")
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	var result string
	found, err := cache.Get(ctx, "key", &result)
	require.NoError(t, err)
	assert.False(t, found, "disabled cache never hits")
	assert.NoError(t, cache.Delete(ctx, "key"))
}

func TestDisabledRateLimiter(t *testing.T) {
	client, _ := New(config.RedisConfig{})
	limiter := NewRateLimiter(client, "test")

	cfg := RateLimitConfig{Key: "tushare", Limit: 200, Window: time.Minute}
	d, err := limiter.Allow(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 200, d.Remaining)
	assert.NoError(t, limiter.Wait(context.Background(), cfg))
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"fetch", FetchKey("auction", "20240222:600519.SH"), "fetch:auction:20240222:600519.SH"},
		{"calendar", CalendarKey("next", "20240221"), "calendar:next:20240221"},
		{"namespaced", NewCache(nil, "limitup").key(FetchKey("bars", "x")), "limitup:cache:fetch:bars:x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

// redisConfig skips unless REDIS_TEST_HOST points at a disposable server
func redisConfig(t *testing.T) config.RedisConfig {
	t.Helper()
	host := os.Getenv("REDIS_TEST_HOST")
	if host == "" {
		t.Skip("REDIS_TEST_HOST not set, skipping integration test")
	}
	return config.RedisConfig{Enabled: true, Host: host, Port: "6379"}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	client, err := New(redisConfig(t))
	require.NoError(t, err)
	defer client.Close()

	limiter := NewRateLimiter(client, "limitup-test-"+time.Now().Format("150405.000"))
	cfg := RateLimitConfig{Key: "burst", Limit: 3, Window: 500 * time.Millisecond}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, cfg)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d", i)
	}
	d, err := limiter.Allow(ctx, cfg)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, cfg.Window)

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx, cfg))
	assert.Less(t, time.Since(start), 2*cfg.Window)
}

func TestCache_RoundTrip(t *testing.T) {
	client, err := New(redisConfig(t))
	require.NoError(t, err)
	defer client.Close()

	cache := NewCache(client, "limitup-test")
	ctx := context.Background()
	type entry struct {
		Provider string `json:"provider"`
	}

	require.NoError(t, cache.Set(ctx, "k", entry{Provider: "tushare"}, time.Minute))
	var got entry
	found, err := cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tushare", got.Provider)

	require.NoError(t, cache.Delete(ctx, "k"))
	found, err = cache.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)

	assert.Error(t, cache.Set(ctx, "k", entry{}, 0))
}
