package cache

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tiercache/tiercache/internal/circuit"
	"github.com/tiercache/tiercache/internal/metrics"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/hashkey"
	"github.com/tiercache/tiercache/pkg/serializer"
	"github.com/tiercache/tiercache/pkg/types"
)

// MultiLevelCache fronts an in-memory L1 cache with a persistent L2
// store. Writes go through to both tiers; reads fall back to the store
// and backfill L1. The store is caller-owned and may be shared between
// cache instances: the key prefix is the sole isolation mechanism, so
// independent instances sharing a store must use distinct prefixes.
type MultiLevelCache[K comparable, V any] struct {
	l1     *LRUCache[K, V]
	store  types.Store
	prefix string

	serializer types.Serializer[V]
	encoder    types.KeyEncoder[K]
	breaker    *circuit.Breaker

	logger      *zap.SugaredLogger
	l2Collector *metrics.Collector

	l2Hits      atomic.Uint64
	l2Misses    atomic.Uint64
	l2Errors    atomic.Uint64
	writes      atomic.Uint64
	writeErrors atomic.Uint64
}

// NewMultiLevel creates a MultiLevelCache from cfg. store may be nil, in
// which case the cache degrades to L1-only behavior. The store's
// lifecycle belongs to the caller; Close never touches it.
func NewMultiLevel[K comparable, V any](cfg *MultiLevelConfig[K, V], store types.Store, logger *zap.SugaredLogger) (*MultiLevelCache[K, V], error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "multilevel cache config is required").WithComponent("cache")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	l1, err := New(&cfg.Cache, logger)
	if err != nil {
		return nil, err
	}

	c := &MultiLevelCache[K, V]{
		l1:         l1,
		store:      store,
		prefix:     cfg.prefix(),
		serializer: cfg.Serializer,
		encoder:    cfg.KeyEncoder,
		logger:     logger,
	}
	if c.serializer == nil {
		c.serializer = serializer.NewJSON[V]()
	}
	if c.encoder == nil {
		c.encoder = hashkey.NewEncoder[K]()
	}

	if cfg.Breaker.Enabled && store != nil {
		c.breaker = circuit.New("l2", circuit.Config{
			ReadyToTrip: circuit.Threshold(cfg.Breaker.MinRequests, cfg.Breaker.FailureRatio),
			Timeout:     cfg.Breaker.OpenTimeout,
			OnStateChange: func(name string, from, to circuit.State) {
				logger.Warnw("store breaker state changed",
					"breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}

	if cfg.Cache.MetricsRegistry != nil && cfg.Cache.MetricsName != "" {
		collector, err := metrics.NewCollector(cfg.Cache.MetricsName+"_l2", cfg.Cache.MetricsRegistry)
		if err != nil {
			_ = l1.Close()
			return nil, err
		}
		c.l2Collector = collector
	}

	return c, nil
}

// Set stores value in L1 with the default TTL and writes through to the
// store. Store failures are logged, never propagated: L1 is the durable
// contract of this call, the store is best-effort.
func (c *MultiLevelCache[K, V]) Set(ctx context.Context, key K, value V) {
	c.l1.Set(key, value)
	c.writeThrough(ctx, key, value)
}

// SetWithTTL stores value with an explicit L1 lifetime. The store carries
// no TTL of its own, so an entry that expires out of L1 is revived from
// the store by the next Get.
func (c *MultiLevelCache[K, V]) SetWithTTL(ctx context.Context, key K, value V, ttl time.Duration) {
	c.l1.SetWithTTL(key, value, ttl)
	c.writeThrough(ctx, key, value)
}

// Get returns the value for key, consulting L1 first. On an L1 miss the
// store is read and a hit backfills L1, so the next Get for the key is an
// L1 hit. Store and deserialize failures are logged and surface as a
// miss.
func (c *MultiLevelCache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	if value, ok := c.l1.Get(key); ok {
		return value, true
	}

	var zero V
	if c.store == nil {
		return zero, false
	}

	storeKey := c.storeKey(key)
	var data []byte
	start := time.Now()
	err := c.guard(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.store.GetItem(ctx, storeKey)
		return err
	})
	c.l2Collector.ObserveDuration("get", time.Since(start))
	if err != nil {
		c.l2Errors.Add(1)
		c.logger.Warnw("store read failed", "key", storeKey, "error", err)
		return zero, false
	}
	if data == nil {
		c.l2Misses.Add(1)
		c.l2Collector.ObserveMiss()
		return zero, false
	}

	value, err := c.serializer.Unmarshal(data)
	if err != nil {
		c.l2Errors.Add(1)
		c.logger.Warnw("store value deserialize failed", "key", storeKey, "error", err)
		return zero, false
	}

	c.l2Hits.Add(1)
	c.l2Collector.ObserveHit()
	c.l1.Set(key, value)
	return value, true
}

// Has reports presence in L1 or, failing that, raw existence in the store
// without deserializing.
func (c *MultiLevelCache[K, V]) Has(ctx context.Context, key K) bool {
	if c.l1.Has(key) {
		return true
	}
	if c.store == nil {
		return false
	}

	storeKey := c.storeKey(key)
	var data []byte
	err := c.guard(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.store.GetItem(ctx, storeKey)
		return err
	})
	if err != nil {
		c.l2Errors.Add(1)
		c.logger.Warnw("store existence check failed", "key", storeKey, "error", err)
		return false
	}
	return data != nil
}

// Delete removes key from both tiers and returns the L1 result. Store
// removal is best-effort.
func (c *MultiLevelCache[K, V]) Delete(ctx context.Context, key K) bool {
	present := c.l1.Delete(key)

	if c.store != nil {
		storeKey := c.storeKey(key)
		err := c.guard(ctx, func(ctx context.Context) error {
			return c.store.RemoveItem(ctx, storeKey)
		})
		if err != nil {
			c.l2Errors.Add(1)
			c.logger.Warnw("store remove failed", "key", storeKey, "error", err)
		}
	}

	return present
}

// Clear drops all of L1 and removes only this cache's prefixed keys from
// the shared store; unrelated keys are untouched.
func (c *MultiLevelCache[K, V]) Clear(ctx context.Context) {
	c.l1.Clear()
	if c.store == nil {
		return
	}

	var keys []string
	err := c.guard(ctx, func(ctx context.Context) error {
		var err error
		keys, err = c.store.Keys(ctx, c.prefix)
		return err
	})
	if err != nil {
		c.l2Errors.Add(1)
		c.logger.Warnw("store key enumeration failed", "prefix", c.prefix, "error", err)
		return
	}

	for _, storeKey := range keys {
		err := c.guard(ctx, func(ctx context.Context) error {
			return c.store.RemoveItem(ctx, storeKey)
		})
		if err != nil {
			c.l2Errors.Add(1)
			c.logger.Warnw("store remove failed", "key", storeKey, "error", err)
		}
	}
}

// Size returns the number of entries in L1. Store contents are not
// enumerated.
func (c *MultiLevelCache[K, V]) Size() int {
	return c.l1.Size()
}

// Keys returns the L1 key snapshot, most recently used first.
func (c *MultiLevelCache[K, V]) Keys() []K {
	return c.l1.Keys()
}

// Stats aggregates the L1 snapshot with level-two traffic counters.
func (c *MultiLevelCache[K, V]) Stats() types.MultiLevelStats {
	return types.MultiLevelStats{
		L1:          c.l1.Stats(),
		L2Hits:      c.l2Hits.Load(),
		L2Misses:    c.l2Misses.Load(),
		L2Errors:    c.l2Errors.Load(),
		Writes:      c.writes.Load(),
		WriteErrors: c.writeErrors.Load(),
	}
}

// BreakerState reports the store breaker state ("CLOSED", "OPEN",
// "HALF_OPEN"), or "DISABLED" when no breaker is configured.
func (c *MultiLevelCache[K, V]) BreakerState() string {
	if c.breaker == nil {
		return "DISABLED"
	}
	return c.breaker.State().String()
}

// StoreHealth checks the level-two store; nil when no store is
// configured.
func (c *MultiLevelCache[K, V]) StoreHealth(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.HealthCheck(ctx)
}

// Close closes L1 only. The store belongs to the caller and may outlive
// any number of cache instances.
func (c *MultiLevelCache[K, V]) Close() error {
	return c.l1.Close()
}

func (c *MultiLevelCache[K, V]) storeKey(key K) string {
	return c.prefix + c.encoder.EncodeKey(key)
}

// writeThrough serializes value and stores it under the prefixed key.
func (c *MultiLevelCache[K, V]) writeThrough(ctx context.Context, key K, value V) {
	if c.store == nil {
		return
	}

	data, err := c.serializer.Marshal(value)
	if err != nil {
		c.writeErrors.Add(1)
		c.logger.Warnw("value serialize failed, store write skipped", "key", key, "error", err)
		return
	}

	storeKey := c.storeKey(key)
	start := time.Now()
	err = c.guard(ctx, func(ctx context.Context) error {
		return c.store.SetItem(ctx, storeKey, data)
	})
	c.l2Collector.ObserveDuration("set", time.Since(start))
	if err != nil {
		c.writeErrors.Add(1)
		c.logger.Warnw("store write-through failed", "key", storeKey, "error", err)
		return
	}
	c.writes.Add(1)
}

// guard routes a store call through the breaker when one is configured.
func (c *MultiLevelCache[K, V]) guard(ctx context.Context, fn func(context.Context) error) error {
	if c.breaker == nil {
		return fn(ctx)
	}
	return c.breaker.ExecuteWithContext(ctx, fn)
}
