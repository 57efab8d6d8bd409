package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tiercache/tiercache/pkg/errors"
)

// MemoryStore is an in-process Store backed by a map. It is the default
// store for tests and single-process deployments that want multi-level
// semantics without external infrastructure.
//
// When MaxBytes is positive the store evicts its oldest entries, in
// insertion order, to stay under the bound. Values are copied on both
// write and read so callers never alias stored bytes.
type MemoryStore struct {
	mu           sync.RWMutex
	items        map[string]*memEntry
	maxBytes     int64
	currentBytes int64
	seq          uint64
}

type memEntry struct {
	data []byte
	seq  uint64
}

// NewMemory creates a MemoryStore bounded to maxBytes of stored values.
// A non-positive maxBytes disables the bound.
func NewMemory(maxBytes int64) *MemoryStore {
	return &MemoryStore{
		items:    make(map[string]*memEntry),
		maxBytes: maxBytes,
	}
}

// GetItem returns a copy of the stored value, or (nil, nil) when the key
// is absent.
func (s *MemoryStore) GetItem(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	return copyBytes(ent.data), nil
}

// SetItem stores a copy of data under key. Storing an existing key
// replaces its value but keeps its insertion-order position. A value
// larger than MaxBytes is rejected outright.
func (s *MemoryStore) SetItem(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := int64(len(data))
	if s.maxBytes > 0 && size > s.maxBytes {
		return errors.Newf(errors.ErrCodeLimitExceeded, "value of %d bytes exceeds store capacity of %d bytes", size, s.maxBytes).
			WithComponent("memorystore").
			WithContext("key", key)
	}

	if existing, ok := s.items[key]; ok {
		s.currentBytes -= int64(len(existing.data))
		existing.data = copyBytes(data)
		s.currentBytes += size
	} else {
		s.seq++
		s.items[key] = &memEntry{data: copyBytes(data), seq: s.seq}
		s.currentBytes += size
	}

	s.evictLocked()
	return nil
}

// RemoveItem deletes key. Removing an absent key is not an error.
func (s *MemoryStore) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.items[key]; ok {
		s.currentBytes -= int64(len(ent.data))
		delete(s.items, key)
	}
	return nil
}

// Keys returns all stored keys carrying prefix, sorted lexicographically.
func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// HealthCheck always succeeds; the store lives in process memory.
func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Bytes returns the total size of stored values.
func (s *MemoryStore) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentBytes
}

// evictLocked drops the oldest entries until the store fits its bound.
// Caller must hold the write lock.
func (s *MemoryStore) evictLocked() {
	if s.maxBytes <= 0 {
		return
	}
	for s.currentBytes > s.maxBytes && len(s.items) > 0 {
		var oldestKey string
		var oldestSeq uint64
		first := true
		for key, ent := range s.items {
			if first || ent.seq < oldestSeq {
				oldestKey = key
				oldestSeq = ent.seq
				first = false
			}
		}
		s.currentBytes -= int64(len(s.items[oldestKey].data))
		delete(s.items, oldestKey)
	}
}

// copyBytes returns a defensive copy. An empty input yields an empty,
// non-nil slice so stored values never read back as absent.
func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
