/*
Package storage provides the persistent tier implementations consumed by
MultiLevelCache through the types.Store interface.

Every store speaks the same contract: byte values addressed by string keys,
with GetItem returning (nil, nil) for absent keys so a miss is never an
error. The cache layer owns key prefixing, serialization, and TTL; stores
only move bytes.

# Implementations

	┌──────────────┬──────────────────────────────────────────────────┐
	│ MemoryStore  │ In-process map. Bounded by MaxBytes with         │
	│              │ insertion-order eviction. Tests and defaults.    │
	├──────────────┼──────────────────────────────────────────────────┤
	│ FileStore    │ Local directory of content files plus a JSON     │
	│              │ index. Optional gzip, SHA-256 checksums,         │
	│              │ background index sync. Survives restarts.        │
	├──────────────┼──────────────────────────────────────────────────┤
	│ ValkeyStore  │ Valkey/Redis adapter over valkey-go. Shared      │
	│              │ between processes, optional per-item TTL.        │
	├──────────────┼──────────────────────────────────────────────────┤
	│ S3Store      │ AWS S3 (or compatible) adapter with retries.     │
	│              │ Durable and unbounded, highest latency.          │
	└──────────────┴──────────────────────────────────────────────────┘

# Usage

Stores are constructed by the caller and handed to the cache layer:

	store, err := storage.NewFile(&storage.FileConfig{
		Directory: "/var/lib/myapp/cache",
		MaxBytes:  1 << 30,
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	cache, err := cache.NewMultiLevel(&cache.MultiLevelConfig[string, Profile]{
		Cache: cache.Config[string, Profile]{Capacity: 10_000},
	}, store, logger)

A store may back several caches at once; distinct key prefixes keep their
entries apart. FileStore and S3Store report failures through pkg/errors
codes (STORAGE_READ, STORAGE_WRITE, STORAGE_LIST), which the retry layer
treats as retryable.

# Error Semantics

Absent keys are not errors. RemoveItem of a missing key succeeds. Corrupt
FileStore entries are dropped and reported as absent rather than failing
the read. All other failures carry a structured *errors.Error with the
component and key attached.
*/
package storage
