package gate

import (
	"context"
	"time"
)

// DecideFunc computes an allow decision on a cache miss.
type DecideFunc func(ctx context.Context) (bool, error)

// Cache stores allow decisions per key for a TTL. Concurrent misses for the
// same key run decide once.
type Cache interface {
	// GetOrDecide returns the cached decision for key, or runs decide,
	// caches its result for ttl and returns it. Errors from decide are not
	// cached.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - key: Cache key, usually the peer IP
	//   - ttl: How long a fresh decision stays cached
	//   - decide: Computes the decision on a miss
	//
	// Returns:
	//   - The decision, or an error if decide or the store failed
	GetOrDecide(ctx context.Context, key string, ttl time.Duration, decide DecideFunc) (bool, error)

	// Forget drops the decision for key.
	Forget(ctx context.Context, key string) error

	// Purge drops every decision.
	Purge(ctx context.Context) error

	// Len returns the number of cached decisions.
	Len(ctx context.Context) (int, error)
}
