package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/tiercache/tiercache/internal/metrics"
	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// shrinkMargin is how far above the target hit rate the observed rate must
// sit before the tuner gives capacity back.
const shrinkMargin = 0.1

// AdaptiveCache self-tunes its capacity toward a target hit rate. It
// composes an LRUCache with an Analyzer and periodically replaces the
// cache with a resized generation, migrating the hottest keys across.
// Exactly one generation is live at any point.
type AdaptiveCache[K comparable, V any] struct {
	minCapacity   int
	maxCapacity   int
	targetHitRate float64
	minSamples    uint64
	historyLimit  int

	innerTTL     time.Duration
	innerCleanup time.Duration
	evictHook    func(K, V)

	mu      sync.RWMutex
	live    *LRUCache[K, V]
	history []types.ResizeEvent
	closed  bool

	analyzer *Analyzer[K]

	clock     clock.Clock
	tuneStop  chan struct{}
	closeOnce sync.Once

	logger    *zap.SugaredLogger
	collector *metrics.Collector
}

// NewAdaptive creates an AdaptiveCache from cfg. A nil logger falls back
// to a no-op logger.
func NewAdaptive[K comparable, V any](cfg *AdaptiveConfig[K, V], logger *zap.SugaredLogger) (*AdaptiveCache[K, V], error) {
	return newAdaptiveWithClock(cfg, logger, clock.New())
}

func newAdaptiveWithClock[K comparable, V any](cfg *AdaptiveConfig[K, V], logger *zap.SugaredLogger, clk clock.Clock) (*AdaptiveCache[K, V], error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "adaptive cache config is required").WithComponent("cache")
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

	c := &AdaptiveCache[K, V]{
		minCapacity:   cfg.MinCapacity,
		maxCapacity:   cfg.MaxCapacity,
		targetHitRate: cfg.targetHitRate(),
		minSamples:    cfg.minSamples(),
		historyLimit:  cfg.historyLimit(),
		innerTTL:      cfg.DefaultTTL,
		innerCleanup:  cfg.CleanupInterval,
		analyzer:      NewAnalyzer[K](),
		clock:         clk,
		logger:        logger,
		collector:     collector,
	}

	userEvict := cfg.OnEvict
	c.evictHook = func(key K, value V) {
		c.analyzer.RecordEviction()
		c.collector.ObserveEviction()
		if userEvict != nil {
			userEvict(key, value)
		}
	}

	live, err := newWithClock(c.innerConfig(cfg.InitialCapacity), logger, clk)
	if err != nil {
		return nil, err
	}
	c.live = live
	c.collector.SetCapacity(cfg.InitialCapacity)

	if interval := cfg.tuneInterval(); interval > 0 {
		c.tuneStop = make(chan struct{})
		go c.tuneLoop(interval)
	}

	return c, nil
}

// innerConfig builds the config for one generation of the underlying
// cache. Generations never register their own metrics; the adaptive cache
// owns the instruments.
func (c *AdaptiveCache[K, V]) innerConfig(capacity int) *Config[K, V] {
	return &Config[K, V]{
		Capacity:        capacity,
		DefaultTTL:      c.innerTTL,
		CleanupInterval: c.innerCleanup,
		OnEvict:         c.evictHook,
	}
}

// Set stores value under key with the default TTL.
func (c *AdaptiveCache[K, V]) Set(key K, value V) {
	c.liveCache().Set(key, value)
}

// SetWithTTL stores value with an explicit lifetime.
func (c *AdaptiveCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.liveCache().SetWithTTL(key, value, ttl)
}

// Get returns the value for key and records the outcome on the analyzer.
func (c *AdaptiveCache[K, V]) Get(key K) (V, bool) {
	value, ok := c.liveCache().Get(key)
	if ok {
		c.analyzer.RecordHit(key)
		c.collector.ObserveHit()
	} else {
		c.analyzer.RecordMiss(key)
		c.collector.ObserveMiss()
	}
	return value, ok
}

// Has reports whether key is stored and live.
func (c *AdaptiveCache[K, V]) Has(key K) bool {
	return c.liveCache().Has(key)
}

// Delete removes key and reports whether it was present.
func (c *AdaptiveCache[K, V]) Delete(key K) bool {
	return c.liveCache().Delete(key)
}

// Clear drops all entries. Analyzer counters are kept; use the analyzer's
// hit rate across clears deliberately or call TuneNow after clearing.
func (c *AdaptiveCache[K, V]) Clear() {
	c.liveCache().Clear()
}

// Size returns the current number of stored entries.
func (c *AdaptiveCache[K, V]) Size() int {
	return c.liveCache().Size()
}

// Keys returns a snapshot of stored keys, most recently used first.
func (c *AdaptiveCache[K, V]) Keys() []K {
	return c.liveCache().Keys()
}

// Capacity returns the current generation's capacity.
func (c *AdaptiveCache[K, V]) Capacity() int {
	return c.liveCache().Capacity()
}

// Stats merges the analyzer's counters with the live cache's size and
// capacity.
func (c *AdaptiveCache[K, V]) Stats() types.CacheStats {
	stats := c.analyzer.Stats()
	live := c.liveCache()
	capacity := live.Capacity()
	stats.Size = int64(live.Size())
	stats.Capacity = int64(capacity)
	if capacity > 0 {
		stats.Utilization = float64(stats.Size) / float64(capacity)
	}
	return stats
}

// HotKeys returns up to limit keys ordered by descending access count.
func (c *AdaptiveCache[K, V]) HotKeys(limit int) []K {
	return c.analyzer.HotKeys(limit)
}

// HotKeyCounts returns the hot-key ranking with access counts.
func (c *AdaptiveCache[K, V]) HotKeyCounts(limit int) []types.KeyCount {
	return c.analyzer.HotKeyCounts(limit)
}

// History returns the recorded resize events, oldest first.
func (c *AdaptiveCache[K, V]) History() []types.ResizeEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	history := make([]types.ResizeEvent, len(c.history))
	copy(history, c.history)
	return history
}

// TuneNow runs one tuning cycle immediately, regardless of the ticker.
// The sample-size guard still applies.
func (c *AdaptiveCache[K, V]) TuneNow() {
	c.tune()
}

// Close stops the tuner and the live cache. It is idempotent.
func (c *AdaptiveCache[K, V]) Close() error {
	c.closeOnce.Do(func() {
		if c.tuneStop != nil {
			close(c.tuneStop)
		}
		c.mu.Lock()
		c.closed = true
		live := c.live
		c.mu.Unlock()
		_ = live.Close()
	})
	return nil
}

func (c *AdaptiveCache[K, V]) liveCache() *LRUCache[K, V] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.live
}

func (c *AdaptiveCache[K, V]) tuneLoop(interval time.Duration) {
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collector.SetEntries(c.Size())
			c.tune()
		case <-c.tuneStop:
			return
		}
	}
}

// tune evaluates the window since the last resize and replaces the live
// cache when the hit rate calls for a different capacity. Migration is
// best-effort: hot keys whose values expired in the meantime are skipped.
func (c *AdaptiveCache[K, V]) tune() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	stats := c.analyzer.Stats()
	if stats.Operations < c.minSamples {
		c.mu.Unlock()
		return
	}

	current := c.live.Capacity()
	var target int
	var reason string
	switch {
	case stats.HitRate < c.targetHitRate && current < c.maxCapacity:
		target = min(current*12/10, c.maxCapacity)
		reason = "grow"
	case stats.HitRate > c.targetHitRate+shrinkMargin && current > c.minCapacity:
		target = max(current*9/10, c.minCapacity)
		reason = "shrink"
	default:
		c.mu.Unlock()
		return
	}
	if target == current {
		c.mu.Unlock()
		return
	}

	replacement, err := newWithClock(c.innerConfig(target), c.logger, c.clock)
	if err != nil {
		c.mu.Unlock()
		c.logger.Warnw("adaptive resize aborted", "error", err, "target_capacity", target)
		return
	}

	// Hottest keys migrate last so they surface as most recently used in
	// the new generation.
	hot := c.analyzer.HotKeys(target)
	migrated := 0
	for i := len(hot) - 1; i >= 0; i-- {
		if value, ok := c.live.Get(hot[i]); ok {
			replacement.Set(hot[i], value)
			migrated++
		}
	}

	old := c.live
	c.live = replacement
	c.history = append(c.history, types.ResizeEvent{
		Time:     c.clock.Now(),
		From:     current,
		To:       target,
		HitRate:  stats.HitRate,
		Migrated: migrated,
		Reason:   reason,
	})
	if len(c.history) > c.historyLimit {
		c.history = c.history[len(c.history)-c.historyLimit:]
	}
	c.analyzer.Reset()
	c.mu.Unlock()

	_ = old.Close()
	c.collector.SetCapacity(target)
	c.collector.SetEntries(replacement.Size())
	c.logger.Infow("adaptive cache resized",
		"from", current,
		"to", target,
		"hit_rate", stats.HitRate,
		"migrated", migrated,
		"reason", reason)
}

var _ types.Statistical[string, int] = (*AdaptiveCache[string, int])(nil)
