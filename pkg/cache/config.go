package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// Defaults applied by the constructors when the corresponding config field
// is zero.
const (
	DefaultCleanupInterval = time.Minute
	DefaultTuneInterval    = time.Minute
	DefaultTargetHitRate   = 0.8
	DefaultMinSamples      = 100
	DefaultHistoryLimit    = 32
	DefaultPrefix          = "tiercache:"
)

// Config configures an LRUCache.
type Config[K comparable, V any] struct {
	// Capacity is the maximum number of entries and must be positive.
	Capacity int `yaml:"capacity"`

	// DefaultTTL applies to entries stored via Set. Zero means such
	// entries never expire.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// CleanupInterval is the background sweep period. Zero selects
	// DefaultCleanupInterval; a negative value disables the sweep.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// OnEvict, when set, is invoked for every entry displaced by capacity
	// pressure. It runs outside cache locks. Entries that expire or are
	// deleted do not trigger it.
	OnEvict func(key K, value V) `yaml:"-"`

	// MetricsName labels this cache's Prometheus instruments. Metrics are
	// exported only when both MetricsName and MetricsRegistry are set.
	MetricsName string `yaml:"metrics_name"`

	// MetricsRegistry receives the cache's instruments.
	MetricsRegistry prometheus.Registerer `yaml:"-"`
}

func (cfg *Config[K, V]) validate() error {
	if cfg.Capacity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "cache capacity must be positive, got %d", cfg.Capacity).
			WithComponent("cache")
	}
	return nil
}

// sweepInterval resolves the configured cleanup interval; zero reports the
// default and negative values disable sweeping entirely.
func (cfg *Config[K, V]) sweepInterval() time.Duration {
	if cfg.CleanupInterval == 0 {
		return DefaultCleanupInterval
	}
	if cfg.CleanupInterval < 0 {
		return 0
	}
	return cfg.CleanupInterval
}

// AdaptiveConfig configures an AdaptiveCache.
type AdaptiveConfig[K comparable, V any] struct {
	// Capacity bounds for the control loop. InitialCapacity must lie in
	// [MinCapacity, MaxCapacity] and MinCapacity must be positive.
	InitialCapacity int `yaml:"initial_capacity"`
	MinCapacity     int `yaml:"min_capacity"`
	MaxCapacity     int `yaml:"max_capacity"`

	// TargetHitRate is the hit rate the tuner steers toward, in (0, 1).
	// Zero selects DefaultTargetHitRate.
	TargetHitRate float64 `yaml:"target_hit_rate"`

	// MinSamples is the number of observed operations required before a
	// tuning cycle acts. Zero selects DefaultMinSamples.
	MinSamples uint64 `yaml:"min_samples"`

	// TuneInterval is the control loop period. Zero selects
	// DefaultTuneInterval; a negative value disables the loop so that
	// tuning only happens through TuneNow.
	TuneInterval time.Duration `yaml:"tune_interval"`

	// HistoryLimit bounds the retained resize history. Zero selects
	// DefaultHistoryLimit.
	HistoryLimit int `yaml:"history_limit"`

	// Inner cache behavior, applied to every generation of the underlying
	// LRU cache.
	DefaultTTL      time.Duration        `yaml:"default_ttl"`
	CleanupInterval time.Duration        `yaml:"cleanup_interval"`
	OnEvict         func(key K, value V) `yaml:"-"`

	MetricsName     string                `yaml:"metrics_name"`
	MetricsRegistry prometheus.Registerer `yaml:"-"`
}

func (cfg *AdaptiveConfig[K, V]) validate() error {
	if cfg.MinCapacity <= 0 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "min capacity must be positive, got %d", cfg.MinCapacity).
			WithComponent("cache")
	}
	if cfg.InitialCapacity < cfg.MinCapacity || cfg.InitialCapacity > cfg.MaxCapacity {
		return errors.Newf(errors.ErrCodeInvalidConfig,
			"initial capacity %d outside [%d, %d]", cfg.InitialCapacity, cfg.MinCapacity, cfg.MaxCapacity).
			WithComponent("cache")
	}
	if cfg.TargetHitRate < 0 || cfg.TargetHitRate >= 1 {
		return errors.Newf(errors.ErrCodeInvalidConfig, "target hit rate %v outside (0, 1)", cfg.TargetHitRate).
			WithComponent("cache")
	}
	return nil
}

func (cfg *AdaptiveConfig[K, V]) targetHitRate() float64 {
	if cfg.TargetHitRate == 0 {
		return DefaultTargetHitRate
	}
	return cfg.TargetHitRate
}

func (cfg *AdaptiveConfig[K, V]) minSamples() uint64 {
	if cfg.MinSamples == 0 {
		return DefaultMinSamples
	}
	return cfg.MinSamples
}

func (cfg *AdaptiveConfig[K, V]) tuneInterval() time.Duration {
	if cfg.TuneInterval == 0 {
		return DefaultTuneInterval
	}
	if cfg.TuneInterval < 0 {
		return 0
	}
	return cfg.TuneInterval
}

func (cfg *AdaptiveConfig[K, V]) historyLimit() int {
	if cfg.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return cfg.HistoryLimit
}

// BreakerConfig controls the circuit breaker guarding level-two store
// calls in a MultiLevelCache.
type BreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// MinRequests is the request volume required before the failure ratio
	// is evaluated.
	MinRequests uint32 `yaml:"min_requests"`

	// FailureRatio trips the breaker when reached, in (0, 1].
	FailureRatio float64 `yaml:"failure_ratio"`

	// OpenTimeout is how long the breaker stays open before probing the
	// store again.
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// MultiLevelConfig configures a MultiLevelCache.
type MultiLevelConfig[K comparable, V any] struct {
	// Cache configures the in-memory L1 tier.
	Cache Config[K, V] `yaml:"cache"`

	// Prefix namespaces this cache's keys inside the shared store. Zero
	// selects DefaultPrefix.
	Prefix string `yaml:"prefix"`

	// Serializer renders values for the store; nil selects JSON.
	Serializer types.Serializer[V] `yaml:"-"`

	// KeyEncoder renders keys for the store; nil selects the hashkey
	// encoder.
	KeyEncoder types.KeyEncoder[K] `yaml:"-"`

	// Breaker guards level-two calls when enabled.
	Breaker BreakerConfig `yaml:"breaker"`
}

func (cfg *MultiLevelConfig[K, V]) prefix() string {
	if cfg.Prefix == "" {
		return DefaultPrefix
	}
	return cfg.Prefix
}
