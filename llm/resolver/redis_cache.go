package resolver

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisNullSentinel stands in for "resolved to null" since go-redis cannot
// distinguish an empty string value from a missing key under Get's error.
const redisNullSentinel = "\x00null"

// redisCache is a cacheBackend that shares the url -> resolved_url_or_null
// mapping across every router replica behind the same Redis instance,
// instead of the default per-process ttlCache. Keys are namespaced under
// keyPrefix and expire via Redis TTL rather than the oldest-eviction policy
// ttlCache uses, since Redis has no size-bounded eviction knob per key set.
type redisCache struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// newRedisCache wraps an existing *redis.Client as a resolver cache backend.
func newRedisCache(client *redis.Client, ttl time.Duration, keyPrefix string) *redisCache {
	if keyPrefix == "" {
		keyPrefix = "llmrouter:resolver:"
	}
	return &redisCache{client: client, ttl: ttl, keyPrefix: keyPrefix}
}

func (c *redisCache) get(key string) (string, bool) {
	val, err := c.client.Get(context.Background(), c.keyPrefix+key).Result()
	if err != nil {
		return "", false
	}
	if val == redisNullSentinel {
		return "", true
	}
	return val, true
}

func (c *redisCache) set(key, resolved string) {
	val := resolved
	if val == "" {
		val = redisNullSentinel
	}
	_ = c.client.Set(context.Background(), c.keyPrefix+key, val, c.ttl).Err()
}
