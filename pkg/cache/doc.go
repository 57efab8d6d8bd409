/*
Package cache provides the caching engines of TierCache: a generic O(1)
LRU cache with per-entry TTL, an access-pattern analyzer, a self-tuning
adaptive cache, a concurrent cache warmer, and a two-level cache that
pairs the in-memory tier with a pluggable persistent store.

All engines share the same generic core. Keys are any comparable type,
values are any type, and every public operation is safe for concurrent
use.

# Architecture

	┌─────────────────────────────────────────────┐
	│               Application                   │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│              Cache Engines                  │  ← This Package
	│                                             │
	│  LRUCache        core map + list engine     │
	│  AdaptiveCache   hit-rate driven resizing   │
	│  Warmer          bounded-concurrency load   │
	│  MultiLevelCache L1 memory + L2 store       │
	└─────────────────────────────────────────────┘
	          │                        │
	┌───────────────────┐   ┌─────────────────────┐
	│     Analyzer      │   │     types.Store     │
	│  (hit/miss/hot    │   │  (memory, file,     │
	│   key tracking)   │   │   valkey, s3)       │
	└───────────────────┘   └─────────────────────┘

# Cache Engines

LRUCache is the core. Lookups, inserts, and deletes are O(1) through a
hash map whose entries double as nodes of an intrusive recency list.
Capacity overflow evicts the least recently used entry; expired entries
are dropped lazily on access and eagerly by a background sweep.

AdaptiveCache wraps an LRUCache and an Analyzer. On a fixed interval it
compares the observed hit rate against a target and grows or shrinks the
capacity in 20%/10% steps, carrying the hottest keys into the resized
generation.

Warmer preloads a cache from registered loader functions with a bounded
number of concurrent loads, so a cold process reaches a useful hit rate
before serving traffic.

MultiLevelCache fronts an LRUCache with a types.Store. Writes go through
to both tiers, reads fall back to the store and backfill L1, and an
optional circuit breaker sheds store traffic when the store is failing.

# Expiry Semantics

Entries carry an absolute deadline computed at insert time. An entry is
expired once the cache clock reaches the deadline; expired entries are
invisible to Get and Has even before the sweep collects them, while Keys
and Size may transiently include them until the next sweep. A TTL of
zero or less at SetWithTTL produces an entry that is already expired. A
zero DefaultTTL means entries never expire.

# Usage

Basic cache:

	cfg := &cache.Config[string, User]{
		Capacity:        10_000,
		DefaultTTL:      5 * time.Minute,
		CleanupInterval: time.Minute,
	}
	c, err := cache.New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	c.Set("user:42", user)
	if u, ok := c.Get("user:42"); ok {
		fmt.Println(u.Name)
	}

Adaptive cache:

	ac, err := cache.NewAdaptive(&cache.AdaptiveConfig[string, User]{
		InitialCapacity: 1000,
		MinCapacity:     500,
		MaxCapacity:     50_000,
		TargetHitRate:   0.85,
	}, logger)

	stats := ac.Stats()
	fmt.Printf("hit rate %.2f at capacity %d\n", stats.HitRate, stats.Capacity)

Warming:

	w := cache.NewWarmable(c, logger)
	w.RegisterWarmup("user:42", func(ctx context.Context) (User, error) {
		return userService.Fetch(ctx, 42)
	})
	if err := w.Warmup(ctx); err != nil {
		logger.Warnw("cache warmup incomplete", "error", err)
	}

Two-level cache:

	ml, err := cache.NewMultiLevel(&cache.MultiLevelConfig[string, User]{
		Cache:  cache.Config[string, User]{Capacity: 10_000},
		Prefix: "users:",
	}, store, logger)

	ml.Set(ctx, "user:42", user)        // L1 + write-through
	u, ok := ml.Get(ctx, "user:42")     // L1, then store, then miss

# Statistics and Metrics

Every engine exposes a Stats snapshot with hit, miss, eviction, and
expiry counters plus derived hit rate and utilization. Setting
MetricsName together with a MetricsRegistry additionally registers
Prometheus series under the tiercache namespace; a MultiLevelCache
registers a second collector suffixed _l2 for store traffic.

# Thread Safety

A single mutex guards each LRU generation; the analyzer keeps its
counters in atomics so recording never contends with cache operations.
Eviction callbacks and warmup loaders run outside all cache locks and
may call back into the cache.
*/
package cache
