package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/tiercache/tiercache/internal/metrics"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// LRUCache is a thread-safe, fixed-capacity cache with TTL expiry and
// least-recently-used eviction. All operations are O(1) amortized.
type LRUCache[K comparable, V any] struct {
	mu        sync.RWMutex
	capacity  int
	items     map[K]*list.Element
	evictList *list.List
	closed    bool

	defaultTTL time.Duration
	onEvict    func(K, V)

	clock     clock.Clock
	sweepStop chan struct{}
	closeOnce sync.Once

	logger    *zap.SugaredLogger
	collector *metrics.Collector

	stats counters
}

// entry is the list element payload. The cache exclusively owns the list
// links; a zero expiresAt means the entry never expires.
type entry[K comparable, V any] struct {
	key       K
	value     V
	expiresAt time.Time
}

type counters struct {
	hits      uint64
	misses    uint64
	evictions uint64
	expired   uint64
}

// New creates an LRUCache from cfg. A nil logger falls back to a no-op
// logger.
func New[K comparable, V any](cfg *Config[K, V], logger *zap.SugaredLogger) (*LRUCache[K, V], error) {
	return newWithClock(cfg, logger, clock.New())
}

// newWithClock backs New and lets tests drive TTL expiry and the sweep
// through a mock clock.
func newWithClock[K comparable, V any](cfg *Config[K, V], logger *zap.SugaredLogger, clk clock.Clock) (*LRUCache[K, V], error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "cache config is required").WithComponent("cache")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var collector *metrics.Collector
	if cfg.MetricsRegistry != nil && cfg.MetricsName != "" {
		var err error
		collector, err = metrics.NewCollector(cfg.MetricsName, cfg.MetricsRegistry)
		if err != nil {
			return nil, err
		}
	}

	c := &LRUCache[K, V]{
		capacity:   cfg.Capacity,
		items:      make(map[K]*list.Element),
		evictList:  list.New(),
		defaultTTL: cfg.DefaultTTL,
		onEvict:    cfg.OnEvict,
		clock:      clk,
		logger:     logger,
		collector:  collector,
	}
	c.collector.SetCapacity(cfg.Capacity)

	if interval := cfg.sweepInterval(); interval > 0 {
		c.sweepStop = make(chan struct{})
		go c.sweepLoop(interval)
	}

	return c, nil
}

// Set stores value under key with the cache's default TTL.
func (c *LRUCache[K, V]) Set(key K, value V) {
	var expiresAt time.Time
	if c.defaultTTL > 0 {
		expiresAt = c.clock.Now().Add(c.defaultTTL)
	}
	c.setEntry(key, value, expiresAt)
}

// SetWithTTL stores value with an explicit lifetime. A non-positive ttl
// inserts an entry that is already expired.
func (c *LRUCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.setEntry(key, value, c.clock.Now().Add(ttl))
}

func (c *LRUCache[K, V]) setEntry(key K, value V, expiresAt time.Time) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry[K, V])
		ent.value = value
		ent.expiresAt = expiresAt
		c.evictList.MoveToFront(el)
		c.mu.Unlock()
		return
	}

	el := c.evictList.PushFront(&entry[K, V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = el

	var evicted *entry[K, V]
	if c.evictList.Len() > c.capacity {
		evicted = c.removeOldest()
		c.stats.evictions++
	}
	size := len(c.items)
	c.mu.Unlock()

	c.collector.SetEntries(size)
	if evicted != nil {
		c.collector.ObserveEviction()
		if c.onEvict != nil {
			c.onEvict(evicted.key, evicted.value)
		}
	}
}

// Get returns the value stored under key. An expired entry is removed as a
// side effect and reported as a miss; a live hit refreshes recency.
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.stats.misses++
		c.mu.Unlock()
		c.collector.ObserveMiss()
		return zero, false
	}

	ent := el.Value.(*entry[K, V])
	if c.isExpired(ent) {
		c.removeElement(el)
		c.stats.misses++
		c.stats.expired++
		size := len(c.items)
		c.mu.Unlock()
		c.collector.ObserveMiss()
		c.collector.ObserveExpired(1)
		c.collector.SetEntries(size)
		return zero, false
	}

	c.evictList.MoveToFront(el)
	c.stats.hits++
	value := ent.value
	c.mu.Unlock()
	c.collector.ObserveHit()
	return value, true
}

// Has reports whether key is stored and live, without refreshing recency.
// Like Get it removes an entry it finds expired. Has does not count toward
// hit or miss statistics.
func (c *LRUCache[K, V]) Has(key K) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}

	ent := el.Value.(*entry[K, V])
	if c.isExpired(ent) {
		c.removeElement(el)
		c.stats.expired++
		size := len(c.items)
		c.mu.Unlock()
		c.collector.ObserveExpired(1)
		c.collector.SetEntries(size)
		return false
	}

	c.mu.Unlock()
	return true
}

// Delete removes key regardless of TTL state and reports whether it was
// present.
func (c *LRUCache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.removeElement(el)
	size := len(c.items)
	c.mu.Unlock()

	c.collector.SetEntries(size)
	return true
}

// Clear drops all entries. Eviction callbacks do not fire.
func (c *LRUCache[K, V]) Clear() {
	c.mu.Lock()
	c.items = make(map[K]*list.Element)
	c.evictList.Init()
	c.mu.Unlock()

	c.collector.SetEntries(0)
}

// Size returns the current number of stored entries. The count may
// transiently include expired entries the sweep has not reached yet.
func (c *LRUCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns a snapshot of stored keys, most recently used first.
func (c *LRUCache[K, V]) Keys() []K {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]K, 0, len(c.items))
	for el := c.evictList.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Capacity returns the configured entry capacity.
func (c *LRUCache[K, V]) Capacity() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.capacity
}

// Stats returns a snapshot of the cache counters.
func (c *LRUCache[K, V]) Stats() types.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := types.CacheStats{
		Hits:       c.stats.hits,
		Misses:     c.stats.misses,
		Evictions:  c.stats.evictions,
		Expired:    c.stats.expired,
		Operations: c.stats.hits + c.stats.misses,
		Size:       int64(len(c.items)),
		Capacity:   int64(c.capacity),
	}
	if stats.Operations > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Operations)
	}
	stats.Utilization = float64(len(c.items)) / float64(c.capacity)
	return stats
}

// Resize changes the capacity, evicting least recently used entries until
// the new capacity fits.
func (c *LRUCache[K, V]) Resize(capacity int) error {
	if capacity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "cache capacity must be positive, got %d", capacity).
			WithComponent("cache")
	}

	var evicted []*entry[K, V]
	c.mu.Lock()
	c.capacity = capacity
	for c.evictList.Len() > capacity {
		ent := c.removeOldest()
		if ent == nil {
			break
		}
		c.stats.evictions++
		evicted = append(evicted, ent)
	}
	size := len(c.items)
	c.mu.Unlock()

	c.collector.SetCapacity(capacity)
	c.collector.SetEntries(size)
	for _, ent := range evicted {
		c.collector.ObserveEviction()
		if c.onEvict != nil {
			c.onEvict(ent.key, ent.value)
		}
	}
	return nil
}

// Close stops the background sweep and drops all entries. It is idempotent;
// a closed cache ignores further writes.
func (c *LRUCache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		if c.sweepStop != nil {
			close(c.sweepStop)
		}
		c.mu.Lock()
		c.closed = true
		c.items = make(map[K]*list.Element)
		c.evictList.Init()
		c.mu.Unlock()
		c.collector.SetEntries(0)
	})
	return nil
}

// Helper methods. Callers hold c.mu.

func (c *LRUCache[K, V]) isExpired(ent *entry[K, V]) bool {
	if ent.expiresAt.IsZero() {
		return false
	}
	return !c.clock.Now().Before(ent.expiresAt)
}

func (c *LRUCache[K, V]) removeOldest() *entry[K, V] {
	el := c.evictList.Back()
	if el == nil {
		return nil
	}
	return c.removeElement(el)
}

func (c *LRUCache[K, V]) removeElement(el *list.Element) *entry[K, V] {
	ent := el.Value.(*entry[K, V])
	c.evictList.Remove(el)
	delete(c.items, ent.key)
	return ent
}

// Background sweep.

func (c *LRUCache[K, V]) sweepLoop(interval time.Duration) {
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.sweepStop:
			return
		}
	}
}

// sweep removes every expired entry in one pass.
func (c *LRUCache[K, V]) sweep() {
	now := c.clock.Now()

	c.mu.Lock()
	var removed int
	for el := c.evictList.Front(); el != nil; {
		next := el.Next()
		ent := el.Value.(*entry[K, V])
		if !ent.expiresAt.IsZero() && !now.Before(ent.expiresAt) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	c.stats.expired += uint64(removed)
	size := len(c.items)
	c.mu.Unlock()

	if removed > 0 {
		c.collector.ObserveExpired(removed)
		c.collector.SetEntries(size)
		c.logger.Debugw("swept expired cache entries", "removed", removed, "remaining", size)
	}
}

var _ types.Cache[string, int] = (*LRUCache[string, int])(nil)
