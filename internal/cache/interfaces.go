package cache

import (
	"context"
	"time"
)

// Cache is the read-side cache for browse-heavy marketplace data:
// listing pages, shop price quotes, pending-delivery badges. It is an
// acceleration layer only; the durable store stays authoritative and
// every write path invalidates the keys it touches.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix. Used to
	// invalidate all cached listing pages after a listing mutation.
	DeletePrefix(ctx context.Context, prefix string) error

	// GetOrSet retrieves a value or computes and stores it if missing.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)

// Key prefixes used by the services. Kept here so invalidation and
// population agree on spelling.
const (
	KeyListingPage  = "bazaar:listings:"   // + query:page:limit
	KeyQuote        = "bazaar:quote:"      // + shop:registry:hash
	KeyPendingCount = "bazaar:deliveries:" // + account
)
