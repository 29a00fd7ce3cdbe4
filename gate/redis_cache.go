package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisPrefix = "httpd:gate:"

	redisLockTTL     = 10 * time.Second
	redisWaitTimeout = 10 * time.Second
	minWaitBackoff   = 10 * time.Millisecond
	maxWaitBackoff   = 500 * time.Millisecond
)

var errDecisionPending = errors.New("gate: decision not published before lock release")

var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var extendLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisCache is a Cache shared by every server using the same redis
// database. A miss takes a per-key lock so only one server runs decide;
// the others poll until the decision is published.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache returns a RedisCache storing keys under prefix, or
// DefaultRedisPrefix when prefix is empty.
func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) decisionKey(key string) string { return c.prefix + "decision:" + key }
func (c *RedisCache) lockKey(key string) string     { return c.prefix + "lock:" + key }

// GetOrDecide implements Cache.
func (c *RedisCache) GetOrDecide(ctx context.Context, key string, ttl time.Duration, decide DecideFunc) (bool, error) {
	allowed, found, err := c.get(ctx, key)
	if err != nil || found {
		return allowed, err
	}

	lockKey := c.lockKey(key)
	token := uuid.NewString()
	acquired, err := c.client.SetNX(ctx, lockKey, token, redisLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return c.wait(ctx, key)
	}

	defer releaseLock.Run(context.Background(), c.client, []string{lockKey}, token)

	extendCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.keepLock(extendCtx, lockKey, token)

	allowed, err = decide(ctx)
	if err != nil {
		return false, err
	}
	if err := c.client.Set(ctx, c.decisionKey(key), encode(allowed), ttl).Err(); err != nil {
		return false, fmt.Errorf("failed to store decision: %w", err)
	}
	return allowed, nil
}

func (c *RedisCache) get(ctx context.Context, key string) (allowed, found bool, err error) {
	v, err := c.client.Get(ctx, c.decisionKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("redis get error: %w", err)
	}
	return v == "1", true, nil
}

// keepLock extends the lock while decide runs.
func (c *RedisCache) keepLock(ctx context.Context, lockKey, token string) {
	ticker := time.NewTicker(redisLockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extendLock.Run(ctx, c.client, []string{lockKey}, token, redisLockTTL.Milliseconds())
		}
	}
}

// wait polls with exponential backoff until the lock holder publishes
// the decision.
func (c *RedisCache) wait(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisWaitTimeout)
	defer cancel()

	backoff := minWaitBackoff
	for {
		allowed, found, err := c.get(ctx, key)
		if err != nil || found {
			return allowed, err
		}

		exists, err := c.client.Exists(ctx, c.lockKey(key)).Result()
		if err != nil {
			return false, fmt.Errorf("failed to check lock existence: %w", err)
		}
		if exists == 0 {
			allowed, found, err := c.get(ctx, key)
			if err != nil || found {
				return allowed, err
			}
			return false, errDecisionPending
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, maxWaitBackoff)
	}
}

// Forget implements Cache.
func (c *RedisCache) Forget(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.decisionKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// Purge implements Cache. Only keys under the cache prefix are removed.
func (c *RedisCache) Purge(ctx context.Context) error {
	keys, err := c.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Len implements Cache.
func (c *RedisCache) Len(ctx context.Context) (int, error) {
	keys, err := c.scan(ctx)
	return len(keys), err
}

func (c *RedisCache) scan(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.prefix+"decision:*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

func encode(allowed bool) string {
	if allowed {
		return "1"
	}
	return "0"
}
