package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"reelshare/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache over Redis. A Cache with a nil client is a no-op,
// so every caller can use it unconditionally.
type Cache struct {
	client *redis.Client
}

// New wraps client. client may be nil.
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Enabled reports whether a Redis client is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	s, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which should populate dest),
// then stores the result in Redis with ttl. fetch must write into dest.
// Redis failures degrade to a direct fetch.
func (c *Cache) Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues("error").Inc()
	case found:
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	case c.Enabled():
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	// Store into cache (best-effort)
	_ = c.SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate deletes key.
func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c.Enabled() {
		c.client.Del(ctx, key)
	}
}
