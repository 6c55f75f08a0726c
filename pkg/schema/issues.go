package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Issue codes reported by Parse.
const (
	CodeInvalidType          = "invalid_type"
	CodeTooSmall             = "too_small"
	CodeTooBig               = "too_big"
	CodeInvalidString        = "invalid_string"
	CodeInvalidEnumValue     = "invalid_enum_value"
	CodeInvalidUnion         = "invalid_union"
	CodeInvalidDiscriminator = "invalid_union_discriminator"
	CodeNotMultipleOf        = "not_multiple_of"
	CodeInvalidDate          = "invalid_date"
	CodeCustom               = "custom"
)

// Issue is one validation failure. Path segments are strings for object keys
// and ints for array indexes.
type Issue struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Path    []any          `json:"path"`
	Params  map[string]any `json:"params,omitempty"`
}

// PathString joins the path with dots, e.g. "items.2.name".
func (i Issue) PathString() string {
	return JoinPath(i.Path)
}

// Issues is a collection of validation failures that implements error.
type Issues []Issue

// Error summarises the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	limit := len(iss)
	if limit > maxShown {
		limit = maxShown
	}
	for i := 0; i < limit; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		path := iss[i].PathString()
		if path == "" {
			path = "(root)"
		}
		fmt.Fprintf(b, "%s at %s", iss[i].Code, path)
	}
	if len(iss) > limit {
		fmt.Fprintf(b, "; ... (total %d)", len(iss))
	}
	return b.String()
}

// AsIssues extracts Issues from an error chain.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}

// JoinPath renders path segments with dots.
func JoinPath(segments []any) string {
	if len(segments) == 0 {
		return ""
	}
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		switch v := segment.(type) {
		case string:
			parts = append(parts, v)
		case int:
			parts = append(parts, strconv.Itoa(v))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, ".")
}
