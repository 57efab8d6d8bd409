package types

import "time"

// CacheStats represents a point-in-time snapshot of cache counters.
type CacheStats struct {
	Hits        uint64  `json:"hits"`
	Misses      uint64  `json:"misses"`
	Evictions   uint64  `json:"evictions"`
	Expired     uint64  `json:"expired"`
	Operations  uint64  `json:"operations"`
	Size        int64   `json:"size"`
	Capacity    int64   `json:"capacity"`
	HitRate     float64 `json:"hit_rate"`
	Utilization float64 `json:"utilization"`
}

// MultiLevelStats aggregates counters across both tiers of a multi-level
// cache. L1 carries the in-memory snapshot; the remaining fields count
// level-two store traffic.
type MultiLevelStats struct {
	L1          CacheStats `json:"l1"`
	L2Hits      uint64     `json:"l2_hits"`
	L2Misses    uint64     `json:"l2_misses"`
	L2Errors    uint64     `json:"l2_errors"`
	Writes      uint64     `json:"writes"`
	WriteErrors uint64     `json:"write_errors"`
}

// ResizeEvent records one adaptive capacity change.
type ResizeEvent struct {
	Time     time.Time `json:"time"`
	From     int       `json:"from"`
	To       int       `json:"to"`
	HitRate  float64   `json:"hit_rate"`
	Migrated int       `json:"migrated"`
	Reason   string    `json:"reason"`
}

// WarmupResult summarizes one warm-up run.
type WarmupResult struct {
	Requested int `json:"requested"`
	Loaded    int `json:"loaded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// KeyCount pairs a key's string form with its observed access count.
type KeyCount struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
}
