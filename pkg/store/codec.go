package store

import (
	"bytes"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EncodeDocument serialises document data as JSON. Times are written as
// RFC 3339 strings.
func EncodeDocument(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("store: encode document: %w", err)
	}
	return payload, nil
}

// DecodeDocument parses JSON document data. Numbers decode as float64.
func DecodeDocument(payload []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// AsTime converts a stored timestamp into a time.Time. Stores that persist
// JSON hand timestamps back as RFC 3339 strings.
func AsTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, !v.IsZero()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
			if parsed, err := time.Parse(layout, v); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case int64:
		return time.UnixMilli(v).UTC(), true
	case float64:
		return time.UnixMilli(int64(v)).UTC(), true
	default:
		return time.Time{}, false
	}
}
