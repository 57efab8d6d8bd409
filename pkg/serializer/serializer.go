// Package serializer provides the value codecs used when cache entries
// cross into a persistent store.
package serializer

import (
	json "github.com/goccy/go-json"

	"github.com/tiercache/tiercache/pkg/errors"
	"github.com/tiercache/tiercache/pkg/types"
)

// JSON encodes values with goccy's encoding/json-compatible codec. It is
// the default serializer for store-backed caches.
type JSON[V any] struct{}

// NewJSON returns a JSON serializer for V.
func NewJSON[V any]() JSON[V] {
	return JSON[V]{}
}

// Marshal implements types.Serializer.
func (JSON[V]) Marshal(value V) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerializeFailed, "failed to marshal cache value")
	}
	return data, nil
}

// Unmarshal implements types.Serializer.
func (JSON[V]) Unmarshal(data []byte) (V, error) {
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return value, errors.Wrap(err, errors.ErrCodeDeserializeFailed, "failed to unmarshal cache value")
	}
	return value, nil
}

// Raw passes byte slices through unchanged for callers that manage their
// own encoding. Slices are not copied; the caller must not mutate values
// it has handed to the cache.
type Raw struct{}

// NewRaw returns the passthrough serializer.
func NewRaw() Raw {
	return Raw{}
}

// Marshal implements types.Serializer.
func (Raw) Marshal(value []byte) ([]byte, error) {
	return value, nil
}

// Unmarshal implements types.Serializer.
func (Raw) Unmarshal(data []byte) ([]byte, error) {
	return data, nil
}

var (
	_ types.Serializer[map[string]int] = JSON[map[string]int]{}
	_ types.Serializer[[]byte]         = Raw{}
)
