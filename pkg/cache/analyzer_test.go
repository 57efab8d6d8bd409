package cache

import (
	"fmt"
	"sync"
	"testing"
)

// TestAnalyzer_Stats tests hit and miss accounting
func TestAnalyzer_Stats(t *testing.T) {
	a := NewAnalyzer[string]()

	a.RecordHit("a")
	a.RecordHit("a")
	a.RecordHit("b")
	a.RecordMiss("c")
	a.RecordEviction()

	stats := a.Stats()
	if stats.Hits != 3 {
		t.Errorf("expected 3 hits, got %d", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("expected 1 miss, got %d", stats.Misses)
	}
	if stats.Evictions != 1 {
		t.Errorf("expected 1 eviction, got %d", stats.Evictions)
	}
	if stats.Operations != 4 {
		t.Errorf("expected 4 operations, got %d", stats.Operations)
	}
	if stats.HitRate != 0.75 {
		t.Errorf("expected hit rate 0.75, got %f", stats.HitRate)
	}

	// Size and Capacity belong to the observed cache, not the analyzer.
	if stats.Size != 0 || stats.Capacity != 0 {
		t.Error("expected zero size and capacity from the analyzer")
	}
}

// TestAnalyzer_EmptyStats tests the zero-operations edge
func TestAnalyzer_EmptyStats(t *testing.T) {
	a := NewAnalyzer[string]()

	stats := a.Stats()
	if stats.HitRate != 0 {
		t.Errorf("expected hit rate 0 with no operations, got %f", stats.HitRate)
	}
}

// TestAnalyzer_HotKeys tests hot-key ranking
func TestAnalyzer_HotKeys(t *testing.T) {
	a := NewAnalyzer[string]()

	// c is hottest, then a, then b. Misses count as accesses too.
	for i := 0; i < 5; i++ {
		a.RecordHit("c")
	}
	a.RecordHit("a")
	a.RecordHit("a")
	a.RecordMiss("a")
	a.RecordMiss("b")

	hot := a.HotKeys(2)
	want := []string{"c", "a"}
	if len(hot) != len(want) {
		t.Fatalf("expected %d hot keys, got %d", len(want), len(hot))
	}
	for i, key := range want {
		if hot[i] != key {
			t.Errorf("hot[%d] = %q, want %q", i, hot[i], key)
		}
	}

	// A limit beyond the population returns everything.
	if got := len(a.HotKeys(100)); got != 3 {
		t.Errorf("expected 3 hot keys with a large limit, got %d", got)
	}

	// A non-positive limit yields nil.
	if a.HotKeys(0) != nil {
		t.Error("expected nil for limit 0")
	}
	if a.HotKeys(-1) != nil {
		t.Error("expected nil for negative limit")
	}
}

// TestAnalyzer_HotKeysTieBreak tests that first-seen order breaks count ties
func TestAnalyzer_HotKeysTieBreak(t *testing.T) {
	a := NewAnalyzer[string]()

	a.RecordHit("first")
	a.RecordHit("second")
	a.RecordHit("third")

	hot := a.HotKeys(3)
	want := []string{"first", "second", "third"}
	for i, key := range want {
		if hot[i] != key {
			t.Errorf("hot[%d] = %q, want %q", i, hot[i], key)
		}
	}
}

// TestAnalyzer_HotKeyCounts tests the stringified ranking
func TestAnalyzer_HotKeyCounts(t *testing.T) {
	a := NewAnalyzer[int]()

	a.RecordHit(42)
	a.RecordHit(42)
	a.RecordHit(7)

	counts := a.HotKeyCounts(2)
	if len(counts) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(counts))
	}
	if counts[0].Key != "42" || counts[0].Count != 2 {
		t.Errorf("expected 42 with count 2, got %s with count %d", counts[0].Key, counts[0].Count)
	}
	if counts[1].Key != "7" || counts[1].Count != 1 {
		t.Errorf("expected 7 with count 1, got %s with count %d", counts[1].Key, counts[1].Count)
	}
}

// TestAnalyzer_Reset tests that Reset zeroes counters and the pattern
func TestAnalyzer_Reset(t *testing.T) {
	a := NewAnalyzer[string]()

	a.RecordHit("a")
	a.RecordMiss("b")
	a.RecordEviction()

	a.Reset()

	stats := a.Stats()
	if stats.Hits != 0 || stats.Misses != 0 || stats.Evictions != 0 {
		t.Errorf("expected zeroed stats after reset, got %+v", stats)
	}
	if hot := a.HotKeys(10); len(hot) != 0 {
		t.Errorf("expected empty hot keys after reset, got %v", hot)
	}

	// The analyzer keeps working after a reset.
	a.RecordHit("c")
	if stats := a.Stats(); stats.Hits != 1 {
		t.Errorf("expected 1 hit after reset, got %d", stats.Hits)
	}
}

// TestAnalyzer_Concurrent tests thread-safety of the record paths
func TestAnalyzer_Concurrent(t *testing.T) {
	a := NewAnalyzer[string]()

	var wg sync.WaitGroup
	numGoroutines := 20
	numOpsPerGoroutine := 200

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id%5)
			for j := 0; j < numOpsPerGoroutine; j++ {
				if j%2 == 0 {
					a.RecordHit(key)
				} else {
					a.RecordMiss(key)
				}
			}
		}(i)
	}
	wg.Wait()

	stats := a.Stats()
	wantTotal := uint64(numGoroutines * numOpsPerGoroutine)
	if stats.Operations != wantTotal {
		t.Errorf("expected %d operations, got %d", wantTotal, stats.Operations)
	}
	if stats.Hits != wantTotal/2 || stats.Misses != wantTotal/2 {
		t.Errorf("expected even hit/miss split, got hits=%d misses=%d", stats.Hits, stats.Misses)
	}

	// Every access landed on one of five keys.
	if got := len(a.HotKeys(100)); got != 5 {
		t.Errorf("expected 5 distinct keys, got %d", got)
	}
}
