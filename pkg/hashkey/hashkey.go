// Package hashkey turns arbitrary Go values into deterministic string
// fingerprints for use as cache keys.
//
// Primitive values encode directly with a short type token so that, for
// example, the string "1" and the integer 1 never collide. Composite values
// are serialized to JSON (map keys sorted by the encoder) and digested with
// 32-bit FNV-1a. Hashing never fails: values that cannot be serialized fall
// back to their fmt representation.
package hashkey

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/tiercache/tiercache/pkg/types"
)

// Primitive sentinel tokens. Composite digests carry the "h:" prefix so
// they cannot collide with any primitive form.
const (
	tokenNil   = "z"
	tokenTrue  = "bt"
	tokenFalse = "bf"
)

// Hash returns a deterministic string fingerprint for value. Equal-by-
// structure inputs yield identical strings within a process; collisions are
// possible but rare enough for cache-key use.
func Hash(value any) string {
	switch v := value.(type) {
	case nil:
		return tokenNil
	case bool:
		if v {
			return tokenTrue
		}
		return tokenFalse
	case string:
		return "s:" + v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return tokenTrue
		}
		return tokenFalse
	case reflect.String:
		return "s:" + rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "i:" + strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "u:" + strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32:
		return "f:" + strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		return "f:" + strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	}

	data, err := json.Marshal(value)
	if err != nil {
		// Cycles, channels, and functions degrade to their fmt form.
		return "h:" + strconv.FormatUint(uint64(SumString(fmt.Sprintf("%v", value))), 10)
	}
	return "h:" + strconv.FormatUint(uint64(Sum32(data)), 10)
}

// Sum32 returns the 32-bit FNV-1a digest of data.
func Sum32(data []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(data)
	return h.Sum32()
}

// SumString returns the 32-bit FNV-1a digest of s.
func SumString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Encoder renders cache keys as stable store keys. String keys pass through
// unchanged; every other key type is fingerprinted with Hash.
type Encoder[K comparable] struct{}

// NewEncoder returns the default key encoder for store-backed caches.
func NewEncoder[K comparable]() Encoder[K] {
	return Encoder[K]{}
}

// EncodeKey implements types.KeyEncoder.
func (Encoder[K]) EncodeKey(key K) string {
	if s, ok := any(key).(string); ok {
		return s
	}
	return Hash(key)
}

var _ types.KeyEncoder[string] = Encoder[string]{}
