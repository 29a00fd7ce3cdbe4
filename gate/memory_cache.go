package gate

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MemoryCache is an in-process Cache backed by go-cache.
type MemoryCache struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewMemoryCache returns a MemoryCache whose expired entries are swept
// every cleanupInterval.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// GetOrDecide implements Cache.
func (c *MemoryCache) GetOrDecide(ctx context.Context, key string, ttl time.Duration, decide DecideFunc) (bool, error) {
	if v, found := c.lookup(key); found {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// another caller may have stored it while we waited for the group
		if v, found := c.lookup(key); found {
			return v, nil
		}
		allowed, err := decide(ctx)
		if err != nil {
			return false, err
		}
		c.cache.Set(key, allowed, ttl)
		return allowed, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *MemoryCache) lookup(key string) (bool, bool) {
	v, found := c.cache.Get(key)
	if !found {
		return false, false
	}
	allowed, ok := v.(bool)
	return allowed, ok
}

// Forget implements Cache.
func (c *MemoryCache) Forget(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.cache.Delete(key)
	return nil
}

// Purge implements Cache.
func (c *MemoryCache) Purge(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.cache.Flush()
	return nil
}

// Len implements Cache.
func (c *MemoryCache) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.cache.ItemCount(), nil
}
