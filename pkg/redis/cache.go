package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CalendarTTL bounds shared next/previous trading day answers
const CalendarTTL = 12 * time.Hour

// Cache stores JSON values under "<prefix>:cache:<key>"
// ⭐ SSOT: 공유 캐시 키 규칙은 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a cache namespaced by prefix
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return c.prefix + ":cache:" + k
}

// Get decodes the value at key into dest; a miss is (false, nil)
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// 스키마가 바뀐 옛 값은 miss로 취급
		c.client.rdb.Del(ctx, c.key(key))
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value as JSON; ttl must be positive
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}
	if ttl <= 0 {
		return fmt.Errorf("cache set %s: ttl must be positive", key)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	return c.client.rdb.Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes key
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.rdb.Del(ctx, c.key(key)).Err()
}

// FetchKey names one fallback-chain result
func FetchKey(fetcher, key string) string {
	return "fetch:" + fetcher + ":" + key
}

// CalendarKey names one calendar resolution; direction is "next" or "prev"
func CalendarKey(direction, date string) string {
	return "calendar:" + direction + ":" + date
}
