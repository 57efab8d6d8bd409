/*
Package metrics provides Prometheus instrumentation for TierCache caches.

# Overview

Each named cache owns one Collector carrying its counters, gauges, and an
operation-latency histogram. Caches construct a collector only when their
configuration supplies a MetricsRegistry and MetricsName; everywhere else
the collector stays nil, and every Collector method is a nil-receiver
no-op so instrumentation call sites need no guards.

	┌──────────────┐     Observe*     ┌─────────────┐
	│  pkg/cache   ├─────────────────▶│  Collector  │
	│ (LRU, tiers) │                  └──────┬──────┘
	└──────────────┘                         │ Register
	                                  ┌──────▼──────┐
	                                  │  Prometheus │
	                                  │  Registerer │
	                                  └─────────────┘

# Exported Metrics

All metrics carry the namespace "tiercache", the subsystem "cache", and a
const label cache="<name>":

  - tiercache_cache_hits_total: Cache hits
  - tiercache_cache_misses_total: Cache misses
  - tiercache_cache_evictions_total: Capacity evictions
  - tiercache_cache_expired_total: Entries removed by TTL expiry
  - tiercache_cache_entries: Current number of stored entries
  - tiercache_cache_capacity: Configured entry capacity
  - tiercache_cache_operation_duration_seconds{operation}: Operation latency

A multi-level cache registers a second collector named "<name>_l2" for its
store-facing traffic.

# Usage

	collector, err := metrics.NewCollector("sessions", prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	collector.ObserveHit()
	collector.SetEntries(cacheSize)
	collector.ObserveDuration("get", time.Since(start))

Registering two collectors under the same cache name on one registry fails
with ErrCodeMetricsRegistration; callers surface that as a construction
error.
*/
package metrics
