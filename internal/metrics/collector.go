package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tiercache/tiercache/pkg/errors"
)

// Namespace prefixes every metric exported by TierCache.
const Namespace = "tiercache"

// Collector bundles the Prometheus instruments for one named cache. A nil
// *Collector is valid and records nothing, so call sites need no guards.
type Collector struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	expired   prometheus.Counter
	entries   prometheus.Gauge
	capacity  prometheus.Gauge
	duration  *prometheus.HistogramVec
}

// NewCollector creates the instruments for the named cache and registers
// them with reg. Passing a nil registerer yields a collector whose counters
// update but are not exported anywhere; duplicate registration surfaces as
// a construction error.
func NewCollector(name string, reg prometheus.Registerer) (*Collector, error) {
	labels := prometheus.Labels{"cache": name}

	c := &Collector{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			Help:        "Total number of cache hits",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   "cache",
			Name:        "misses_total",
			Help:        "Total number of cache misses",
			ConstLabels: labels,
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   "cache",
			Name:        "evictions_total",
			Help:        "Total number of capacity evictions",
			ConstLabels: labels,
		}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   Namespace,
			Subsystem:   "cache",
			Name:        "expired_total",
			Help:        "Total number of entries removed by TTL expiry",
			ConstLabels: labels,
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Subsystem:   "cache",
			Name:        "entries",
			Help:        "Current number of stored entries",
			ConstLabels: labels,
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   Namespace,
			Subsystem:   "cache",
			Name:        "capacity",
			Help:        "Configured entry capacity",
			ConstLabels: labels,
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   Namespace,
				Subsystem:   "cache",
				Name:        "operation_duration_seconds",
				Help:        "Duration of cache operations in seconds",
				Buckets:     prometheus.ExponentialBuckets(0.000001, 4, 12), // 1µs to ~4s
				ConstLabels: labels,
			},
			[]string{"operation"},
		),
	}

	if reg == nil {
		return c, nil
	}

	instruments := []prometheus.Collector{
		c.hits,
		c.misses,
		c.evictions,
		c.expired,
		c.entries,
		c.capacity,
		c.duration,
	}
	for _, instrument := range instruments {
		if err := reg.Register(instrument); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMetricsRegistration, "failed to register cache metrics").
				WithComponent("metrics").
				WithContext("cache", name)
		}
	}

	return c, nil
}

// ObserveHit records a cache hit.
func (c *Collector) ObserveHit() {
	if c == nil {
		return
	}
	c.hits.Inc()
}

// ObserveMiss records a cache miss.
func (c *Collector) ObserveMiss() {
	if c == nil {
		return
	}
	c.misses.Inc()
}

// ObserveEviction records a capacity eviction.
func (c *Collector) ObserveEviction() {
	if c == nil {
		return
	}
	c.evictions.Inc()
}

// ObserveExpired records n entries removed by TTL expiry.
func (c *Collector) ObserveExpired(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.expired.Add(float64(n))
}

// SetEntries updates the stored-entry gauge.
func (c *Collector) SetEntries(n int) {
	if c == nil {
		return
	}
	c.entries.Set(float64(n))
}

// SetCapacity updates the capacity gauge.
func (c *Collector) SetCapacity(n int) {
	if c == nil {
		return
	}
	c.capacity.Set(float64(n))
}

// ObserveDuration records the latency of one named operation.
func (c *Collector) ObserveDuration(operation string, d time.Duration) {
	if c == nil {
		return
	}
	c.duration.WithLabelValues(operation).Observe(d.Seconds())
}
