package store

import (
	"fmt"

	"github.com/goliatone/go-formsync/internal/valuepath"
)

// Merge returns existing with data merged in. Nested maps merge key by key;
// any other value in data replaces the existing one. Neither input is
// modified.
func Merge(existing, data map[string]any) map[string]any {
	out := valuepath.CloneMap(existing)
	if out == nil {
		out = map[string]any{}
	}
	for key, value := range data {
		incoming, isMap := value.(map[string]any)
		current, hasMap := out[key].(map[string]any)
		if isMap && hasMap {
			out[key] = Merge(current, incoming)
			continue
		}
		out[key] = valuepath.Clone(value)
	}
	return out
}

// ApplyUpdate returns existing with partial applied. Keys are dot paths so
// "_metadata.updatedAt" changes one nested field; a map value replaces the
// whole field it names.
func ApplyUpdate(existing, partial map[string]any) (map[string]any, error) {
	out := valuepath.CloneMap(existing)
	if out == nil {
		out = map[string]any{}
	}
	for key, value := range partial {
		if err := valuepath.Set(out, key, valuepath.Clone(value)); err != nil {
			return nil, fmt.Errorf("store: update %q: %w", key, err)
		}
	}
	return out, nil
}
