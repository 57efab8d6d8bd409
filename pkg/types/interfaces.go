package types

import (
	"context"
	"time"
)

// Cache defines the basic in-process caching contract. Implementations are
// safe for concurrent use. A miss is never an error: Get and Has report
// absence through their boolean results.
type Cache[K comparable, V any] interface {
	// Set stores a value under key using the cache's default TTL.
	Set(key K, value V)

	// SetWithTTL stores a value with an explicit lifetime. A non-positive
	// ttl inserts an entry that is already expired.
	SetWithTTL(key K, value V, ttl time.Duration)

	// Get returns the value for key and whether it was present and live.
	Get(key K) (V, bool)

	// Has reports whether key is present and live without refreshing
	// its recency.
	Has(key K) bool

	// Delete removes key regardless of TTL state and reports whether it
	// was present.
	Delete(key K) bool

	// Clear drops all entries.
	Clear()

	// Size returns the current number of stored entries.
	Size() int

	// Keys returns a snapshot of all stored keys.
	Keys() []K

	// Close releases background resources. It is idempotent and leaves
	// the cache empty.
	Close() error
}

// Statistical extends Cache with instrumentation: aggregate counters and
// access-frequency ranking.
type Statistical[K comparable, V any] interface {
	Cache[K, V]

	// Stats returns a point-in-time snapshot of the cache counters.
	Stats() CacheStats

	// HotKeys returns up to limit keys ordered by descending access count.
	HotKeys(limit int) []K
}

// Loader produces a value for cache warm-up. Loaders receive the warmup
// context and should honor its cancellation.
type Loader[V any] func(ctx context.Context) (V, error)

// Warmable extends Cache with pre-population support.
type Warmable[K comparable, V any] interface {
	Cache[K, V]

	// RegisterWarmup associates a loader with a key; the last registration
	// for a key wins.
	RegisterWarmup(key K, loader Loader[V])

	// Warmup invokes loaders for the given keys (all registered keys when
	// none are given) and stores the results. Individual loader failures
	// are logged and skipped; the returned error reflects only context
	// cancellation.
	Warmup(ctx context.Context, keys ...K) error
}

// Store is a persistent key-value tier consumed by MultiLevelCache. The
// store is owned by the caller and may be shared between cache instances;
// key prefixes are the isolation mechanism.
//
// GetItem returns (nil, nil) when the key is absent.
type Store interface {
	GetItem(ctx context.Context, key string) ([]byte, error)
	SetItem(ctx context.Context, key string, data []byte) error
	RemoveItem(ctx context.Context, key string) error

	// Keys lists stored keys carrying the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

// Serializer converts values to and from their stored byte representation.
type Serializer[V any] interface {
	Marshal(value V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

// KeyEncoder renders a cache key as a stable string for use in a Store.
// Equal keys must always encode identically within a process.
type KeyEncoder[K comparable] interface {
	EncodeKey(key K) string
}
