// Package cache implements the cache-aside layer named in spec.md §4.9/§5:
// a short-TTL in-process cache in front of every KeyContext/ModelMapping/
// ModelPricing read, with an optional Redis tier shared across replicas.
// Grounded on the teacher's common/redis.go (RDB redis.Cmdable singleton,
// Set/Get/Del wrapped in errors.Wrapf, "unset connection string disables
// the feature rather than failing startup") for the Redis tier, and on
// github.com/patrickmn/go-cache's own expiring-map design (already in the
// teacher's go.mod, though unused by its own code) for the local tier.
package cache

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/go-redis/redis/v8"
)

// Cache is a two-tier string cache: an in-process tier consulted first,
// and an optional Redis tier consulted on a local miss and used to
// populate the local tier for subsequent lookups. A Cache built with no
// Redis address runs local-only, matching the teacher's "REDIS_CONN_STRING
// unset disables Redis" convention.
type Cache struct {
	local *gocache.Cache
	redis redis.Cmdable
}

// New builds a Cache whose local tier entries expire after ttl (janitor
// sweep every 2*ttl, go-cache's own recommendation). redisURL may be empty
// to run local-only.
func New(redisURL string, ttl time.Duration) (*Cache, error) {
	c := &Cache{local: gocache.New(ttl, 2*ttl)}
	if redisURL == "" {
		return c, nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	c.redis = redis.NewClient(opt)
	return c, nil
}

// Get consults the local tier, then Redis (if configured), repopulating
// the local tier on a Redis hit. ok is false on a miss in both tiers; a
// Redis error is treated as a miss (cache-aside never fails the caller).
func (c *Cache) Get(ctx context.Context, key string) (value string, ok bool) {
	if v, found := c.local.Get(key); found {
		return v.(string), true
	}
	if c.redis == nil {
		return "", false
	}

	v, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	c.local.SetDefault(key, v)
	return v, true
}

// Set writes through both tiers with the given TTL (0 means the local
// tier's default expiration and no explicit Redis TTL).
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if ttl > 0 {
		c.local.Set(key, value, ttl)
	} else {
		c.local.SetDefault(key, value)
	}
	if c.redis != nil {
		_ = c.redis.Set(ctx, key, value, ttl).Err()
	}
}

// Del evicts key from both tiers, used to invalidate a cached row after a
// write that changes it.
func (c *Cache) Del(ctx context.Context, key string) {
	c.local.Delete(key)
	if c.redis != nil {
		_ = c.redis.Del(ctx, key).Err()
	}
}
