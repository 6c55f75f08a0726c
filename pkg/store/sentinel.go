package store

import (
	"time"

	"github.com/goliatone/go-formsync/internal/valuepath"
)

const (
	sentinelKey   = ".sv"
	sentinelValue = "timestamp"
)

type serverTimestamp struct{}

// MarshalJSON encodes the sentinel for transports that forward it to a server
// which resolves it.
func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(`{"` + sentinelKey + `":"` + sentinelValue + `"}`), nil
}

// ServerTimestamp is replaced by the store's own clock when a payload is
// written.
var ServerTimestamp any = serverTimestamp{}

// IsServerTimestamp reports whether value is the sentinel, either as the Go
// value or in its decoded JSON form.
func IsServerTimestamp(value any) bool {
	switch v := value.(type) {
	case serverTimestamp:
		return true
	case map[string]any:
		return len(v) == 1 && v[sentinelKey] == sentinelValue
	default:
		return false
	}
}

// ResolveTimestamps returns a deep copy of data with every sentinel replaced
// by now.
func ResolveTimestamps(data map[string]any, now time.Time) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = resolveValue(value, now)
	}
	return out
}

func resolveValue(value any, now time.Time) any {
	if IsServerTimestamp(value) {
		return now
	}
	switch v := value.(type) {
	case map[string]any:
		return ResolveTimestamps(v, now)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = resolveValue(item, now)
		}
		return out
	default:
		return valuepath.Clone(value)
	}
}

// RestoreTimestamps converts decoded JSON sentinels back into
// ServerTimestamp so stores receiving payloads over the wire can resolve them.
func RestoreTimestamps(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = restoreValue(value)
	}
	return out
}

func restoreValue(value any) any {
	if IsServerTimestamp(value) {
		return ServerTimestamp
	}
	switch v := value.(type) {
	case map[string]any:
		return RestoreTimestamps(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = restoreValue(item)
		}
		return out
	default:
		return value
	}
}
