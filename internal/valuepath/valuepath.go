// Package valuepath reads and writes nested value trees (maps of []any and
// map[string]any) addressed by dot/bracket paths such as "address.street" or
// "items[2].name".
package valuepath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errEmptyPath   = errors.New("valuepath: path is empty")
	errNilTree     = errors.New("valuepath: tree is nil")
	errBadIndex    = errors.New("valuepath: invalid array index")
	errNotTraverse = errors.New("valuepath: cannot traverse scalar value")
)

// Split parses a dot/bracket path into segments. "items[2].name" and
// "items.2.name" both yield ["items", "2", "name"].
func Split(path string) []string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	replacer := strings.NewReplacer("[", ".", "]", "")
	trimmed = replacer.Replace(trimmed)
	parts := strings.Split(trimmed, ".")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// Join renders segments with dots.
func Join(segments ...string) string {
	return strings.Join(segments, ".")
}

// Get looks up path inside tree. An exact key match on the full path wins over
// traversal so flattened keys such as "cta.headline" keep working.
func Get(tree map[string]any, path string) (any, bool) {
	if len(tree) == 0 {
		return nil, false
	}
	if v, ok := tree[path]; ok {
		return v, true
	}
	segments := Split(path)
	if len(segments) == 0 {
		return nil, false
	}
	var current any = tree
	for _, segment := range segments {
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Set writes value at path, creating intermediate maps (or slices when the
// next segment is numeric). Slices grow with nil padding as needed.
func Set(tree map[string]any, path string, value any) error {
	if tree == nil {
		return errNilTree
	}
	segments := Split(path)
	if len(segments) == 0 {
		return errEmptyPath
	}
	// Maps are updated in place, so the root needs no reassignment.
	if _, err := setIn(tree, segments, value); err != nil {
		return fmt.Errorf("valuepath: set %q: %w", path, err)
	}
	return nil
}

func setIn(container any, segments []string, value any) (any, error) {
	head := segments[0]
	last := len(segments) == 1

	switch typed := container.(type) {
	case map[string]any:
		if last {
			typed[head] = value
			return typed, nil
		}
		child := typed[head]
		if child == nil {
			child = emptyFor(segments[1])
		}
		next, err := setIn(child, segments[1:], value)
		if err != nil {
			return nil, err
		}
		typed[head] = next
		return typed, nil
	case []any:
		idx, err := strconv.Atoi(head)
		if err != nil || idx < 0 {
			return nil, errBadIndex
		}
		for len(typed) <= idx {
			typed = append(typed, nil)
		}
		if last {
			typed[idx] = value
			return typed, nil
		}
		child := typed[idx]
		if child == nil {
			child = emptyFor(segments[1])
		}
		next, err := setIn(child, segments[1:], value)
		if err != nil {
			return nil, err
		}
		typed[idx] = next
		return typed, nil
	default:
		return nil, errNotTraverse
	}
}

func emptyFor(segment string) any {
	if _, err := strconv.Atoi(segment); err == nil {
		return []any{}
	}
	return map[string]any{}
}

// Delete removes the value at path. Missing paths are ignored.
func Delete(tree map[string]any, path string) {
	segments := Split(path)
	if len(tree) == 0 || len(segments) == 0 {
		return
	}
	if _, ok := tree[path]; ok {
		delete(tree, path)
		return
	}
	parentPath := Join(segments[:len(segments)-1]...)
	leaf := segments[len(segments)-1]
	var parent any = tree
	if parentPath != "" {
		found, ok := Get(tree, parentPath)
		if !ok {
			return
		}
		parent = found
	}
	if m, ok := parent.(map[string]any); ok {
		delete(m, leaf)
	}
}

// Clone deep-copies maps and slices of a value tree. Other values are
// returned as is.
func Clone(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return CloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	case map[string]string:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = v
		}
		return out
	default:
		return value
	}
}

// CloneMap deep-copies a map tree. A nil map clones to nil.
func CloneMap(tree map[string]any) map[string]any {
	if tree == nil {
		return nil
	}
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = Clone(v)
	}
	return out
}
