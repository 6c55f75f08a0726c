package validation

import (
	"sort"
	"strings"

	"github.com/goliatone/go-formsync/internal/valuepath"
)

// ErrorMapping splits error messages into field-level and form-level buckets
// keyed by dotted field paths.
type ErrorMapping struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
}

// Mapping groups the result's errors by known field names. Errors whose first
// path segment is not a known field, or that target the root, become
// form-level messages so nothing is lost.
func (r Result) Mapping(fields []string) ErrorMapping {
	payload := make(map[string][]string, len(r.Errors))
	for _, err := range r.Errors {
		payload[err.Field] = append(payload[err.Field], err.Message)
	}
	return MapErrorPayload(fields, payload)
}

// MapErrorPayload normalises an error payload keyed by field paths, JSON
// pointers ("#/address/street", "/items/0") or bracket paths into an
// ErrorMapping. Keys are mapped to the longest known field prefix; unknown
// keys and "root", "_form" or empty keys are treated as form-level errors.
func MapErrorPayload(fields []string, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{Fields: make(map[string][]string)}
	if len(payload) == 0 {
		mapping.Fields = nil
		return mapping
	}

	known := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		known[field] = struct{}{}
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, rawPath := range keys {
		messages := normalizeMessages(payload[rawPath])
		if len(messages) == 0 {
			continue
		}
		mapped, formLevel := mapErrorPath(rawPath, known)
		if formLevel {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		mapping.Fields[mapped] = append(mapping.Fields[mapped], messages...)
	}

	for field, messages := range mapping.Fields {
		mapping.Fields[field] = normalizeMessages(messages)
	}
	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}

	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))

	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func mapErrorPath(raw string, known map[string]struct{}) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return "", true
	}

	segments := valuepath.Split(fieldPathFromPointer(trimmed))
	if len(segments) == 0 {
		return "", true
	}
	if len(known) == 0 {
		return valuepath.Join(segments...), false
	}

	for end := len(segments); end > 0; end-- {
		candidate := valuepath.Join(segments[:end]...)
		if _, ok := known[candidate]; ok {
			return valuepath.Join(segments...), false
		}
	}
	return "", true
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(key) {
	case "", RootField, "_form", "form", "#", "/":
		return true
	default:
		return false
	}
}

// fieldPathFromPointer converts a JSON pointer into a dotted path. Inputs that
// are not pointers are returned unchanged.
func fieldPathFromPointer(pointer string) string {
	if !strings.HasPrefix(pointer, "#") && !strings.HasPrefix(pointer, "/") {
		return pointer
	}
	trimmed := strings.TrimPrefix(pointer, "#")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return ""
	}

	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for idx := 0; idx < len(parts); idx++ {
		segment := strings.ReplaceAll(parts[idx], "~1", "/")
		segment = strings.ReplaceAll(segment, "~0", "~")
		if segment == "properties" && idx+1 < len(parts) {
			continue
		}
		if segment == "" {
			continue
		}
		out = append(out, segment)
	}
	return strings.Join(out, ".")
}
