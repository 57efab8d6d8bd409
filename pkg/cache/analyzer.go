package cache

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tiercache/tiercache/pkg/types"
)

// Analyzer records the access pattern of a cache without altering its
// behavior. It is a pure observer: callers invoke the Record methods
// alongside their own cache calls, and the analyzer never intercepts
// anything. The recorded pattern is advisory and safe to lose.
type Analyzer[K comparable] struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	mu      sync.RWMutex
	pattern map[K]*accessRecord
	nextSeq uint64
}

// accessRecord tracks one key. seq is the first-seen order and breaks
// count ties so hot-key ordering is stable.
type accessRecord struct {
	count uint64
	seq   uint64
}

// NewAnalyzer creates an empty analyzer.
func NewAnalyzer[K comparable]() *Analyzer[K] {
	return &Analyzer[K]{
		pattern: make(map[K]*accessRecord),
	}
}

// RecordHit counts a cache hit for key.
func (a *Analyzer[K]) RecordHit(key K) {
	a.hits.Add(1)
	a.recordAccess(key)
}

// RecordMiss counts a cache miss for key.
func (a *Analyzer[K]) RecordMiss(key K) {
	a.misses.Add(1)
	a.recordAccess(key)
}

// RecordEviction counts one capacity eviction.
func (a *Analyzer[K]) RecordEviction() {
	a.evictions.Add(1)
}

// Stats returns the recorded counters. Size and Capacity are zero; they
// belong to the cache being observed, not the analyzer.
func (a *Analyzer[K]) Stats() types.CacheStats {
	hits := a.hits.Load()
	misses := a.misses.Load()

	stats := types.CacheStats{
		Hits:       hits,
		Misses:     misses,
		Evictions:  a.evictions.Load(),
		Operations: hits + misses,
	}
	if stats.Operations > 0 {
		stats.HitRate = float64(hits) / float64(stats.Operations)
	}
	return stats
}

// HotKeys returns up to limit keys ordered by descending access count,
// first-seen order breaking ties. A non-positive limit yields nil.
func (a *Analyzer[K]) HotKeys(limit int) []K {
	records := a.rankedRecords(limit)
	if records == nil {
		return nil
	}

	keys := make([]K, len(records))
	for i, rec := range records {
		keys[i] = rec.key
	}
	return keys
}

// HotKeyCounts returns the hot-key ranking with access counts, keys
// rendered as strings for monitoring surfaces.
func (a *Analyzer[K]) HotKeyCounts(limit int) []types.KeyCount {
	records := a.rankedRecords(limit)
	if records == nil {
		return nil
	}

	counts := make([]types.KeyCount, len(records))
	for i, rec := range records {
		counts[i] = types.KeyCount{Key: fmt.Sprint(rec.key), Count: rec.count}
	}
	return counts
}

// Reset zeroes all counters and drops the access pattern. The observed
// cache's contents are untouched.
func (a *Analyzer[K]) Reset() {
	a.mu.Lock()
	a.pattern = make(map[K]*accessRecord)
	a.nextSeq = 0
	a.mu.Unlock()

	a.hits.Store(0)
	a.misses.Store(0)
	a.evictions.Store(0)
}

func (a *Analyzer[K]) recordAccess(key K) {
	a.mu.Lock()
	rec, ok := a.pattern[key]
	if !ok {
		rec = &accessRecord{seq: a.nextSeq}
		a.nextSeq++
		a.pattern[key] = rec
	}
	rec.count++
	a.mu.Unlock()
}

type rankedRecord[K comparable] struct {
	key   K
	count uint64
	seq   uint64
}

func (a *Analyzer[K]) rankedRecords(limit int) []rankedRecord[K] {
	if limit <= 0 {
		return nil
	}

	a.mu.RLock()
	records := make([]rankedRecord[K], 0, len(a.pattern))
	for key, rec := range a.pattern {
		records = append(records, rankedRecord[K]{key: key, count: rec.count, seq: rec.seq})
	}
	a.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].count != records[j].count {
			return records[i].count > records[j].count
		}
		return records[i].seq < records[j].seq
	})

	if len(records) > limit {
		records = records[:limit]
	}
	return records
}
