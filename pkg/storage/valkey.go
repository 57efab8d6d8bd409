package storage

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/tiercache/tiercache/pkg/errors"
)

// valkeyScanCount is the COUNT hint passed to SCAN while listing keys.
const valkeyScanCount = 256

// ValkeyStore adapts a Valkey (or Redis) client to the Store interface,
// letting several processes share one L2 tier. The client is owned by
// the caller and may serve other workloads; ValkeyStore issues plain
// GET/SET/DEL/SCAN commands against it.
type ValkeyStore struct {
	client valkey.Client
	ttl    time.Duration
}

// NewValkey wraps client as a Store. A positive ttl sets a server-side
// expiry on every stored item; non-positive stores items without expiry.
func NewValkey(client valkey.Client, ttl time.Duration) (*ValkeyStore, error) {
	if client == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "valkey store requires a client").
			WithComponent("valkeystore")
	}
	return &ValkeyStore{client: client, ttl: ttl}, nil
}

// GetItem returns the value stored under key, or (nil, nil) when the key
// is absent or its server-side expiry has elapsed.
func (s *ValkeyStore) GetItem(ctx context.Context, key string) ([]byte, error) {
	resp := s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "valkey get failed").
			WithComponent("valkeystore").
			WithContext("key", key)
	}

	data, err := resp.AsBytes()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "decode valkey response").
			WithComponent("valkeystore").
			WithContext("key", key)
	}
	return data, nil
}

// SetItem stores data under key, applying the configured TTL when set.
func (s *ValkeyStore) SetItem(ctx context.Context, key string, data []byte) error {
	build := s.client.B().Set().Key(key).Value(valkey.BinaryString(data))

	var err error
	if s.ttl > 0 {
		err = s.client.Do(ctx, build.Ex(s.ttl).Build()).Error()
	} else {
		err = s.client.Do(ctx, build.Build()).Error()
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "valkey set failed").
			WithComponent("valkeystore").
			WithContext("key", key)
	}
	return nil
}

// RemoveItem deletes key. Removing an absent key is not an error.
func (s *ValkeyStore) RemoveItem(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "valkey del failed").
			WithComponent("valkeystore").
			WithContext("key", key)
	}
	return nil
}

// Keys lists stored keys carrying prefix via cursor-driven SCAN, so large
// keyspaces never block the server the way KEYS would.
func (s *ValkeyStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		resp := s.client.Do(ctx, s.client.B().Scan().Cursor(cursor).Match(prefix+"*").Count(valkeyScanCount).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageList, "valkey scan failed").
				WithComponent("valkeystore").
				WithContext("prefix", prefix)
		}

		keys = append(keys, entry.Elements...)
		cursor = entry.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}

// HealthCheck pings the server.
func (s *ValkeyStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConnectionFailed, "valkey ping failed").
			WithComponent("valkeystore")
	}
	return nil
}
