package types

import (
	"context"
	"testing"
	"time"
)

// TestInterfaces verifies that our interfaces are properly structured
func TestInterfaces(t *testing.T) {
	// Test that we can define variables of interface types
	var (
		_ Cache[string, int]       = (*mockCache)(nil)
		_ Statistical[string, int] = (*mockStatistical)(nil)
		_ Warmable[string, int]    = (*mockWarmable)(nil)
		_ Store                    = (*mockStore)(nil)
		_ Serializer[int]          = (*mockSerializer)(nil)
		_ KeyEncoder[string]       = (*mockKeyEncoder)(nil)
	)
}

// Mock implementations for testing interface compliance

type mockCache struct{}

func (m *mockCache) Set(key string, value int) {}

func (m *mockCache) SetWithTTL(key string, value int, ttl time.Duration) {}

func (m *mockCache) Get(key string) (int, bool) {
	return 0, false
}

func (m *mockCache) Has(key string) bool {
	return false
}

func (m *mockCache) Delete(key string) bool {
	return false
}

func (m *mockCache) Clear() {}

func (m *mockCache) Size() int {
	return 0
}

func (m *mockCache) Keys() []string {
	return nil
}

func (m *mockCache) Close() error {
	return nil
}

type mockStatistical struct {
	mockCache
}

func (m *mockStatistical) Stats() CacheStats {
	return CacheStats{}
}

func (m *mockStatistical) HotKeys(limit int) []string {
	return nil
}

type mockWarmable struct {
	mockCache
}

func (m *mockWarmable) RegisterWarmup(key string, loader Loader[int]) {}

func (m *mockWarmable) Warmup(ctx context.Context, keys ...string) error {
	return nil
}

type mockStore struct{}

func (m *mockStore) GetItem(ctx context.Context, key string) ([]byte, error) {
	return nil, nil
}

func (m *mockStore) SetItem(ctx context.Context, key string, data []byte) error {
	return nil
}

func (m *mockStore) RemoveItem(ctx context.Context, key string) error {
	return nil
}

func (m *mockStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return nil, nil
}

func (m *mockStore) HealthCheck(ctx context.Context) error {
	return nil
}

type mockSerializer struct{}

func (m *mockSerializer) Marshal(value int) ([]byte, error) {
	return nil, nil
}

func (m *mockSerializer) Unmarshal(data []byte) (int, error) {
	return 0, nil
}

type mockKeyEncoder struct{}

func (m *mockKeyEncoder) EncodeKey(key string) string {
	return key
}
