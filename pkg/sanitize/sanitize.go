// Package sanitize strips markup from form values before they are saved.
// A Sanitizer's Transform method plugs into docsync.WithTransformBeforeSave.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formsync/internal/valuepath"
)

// Mode selects how a field is cleaned.
type Mode int

const (
	// PlainText removes every tag and keeps the text as typed.
	PlainText Mode = iota
	// RichText keeps user-generated-content markup (links, emphasis, lists).
	RichText
	// SVG keeps inline icon markup only.
	SVG
	// Skip leaves the value untouched.
	Skip
)

var (
	policyOnce   sync.Once
	strictPolicy *bluemonday.Policy
	ugcPolicy    *bluemonday.Policy
	svgPolicy    *bluemonday.Policy
)

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithDefaultMode sets the mode for fields without an explicit one.
func WithDefaultMode(mode Mode) Option {
	return func(s *Sanitizer) {
		s.fallback = mode
	}
}

// WithField sets the mode for one field path ("bio", "address.street").
// Array elements share their field's mode.
func WithField(path string, mode Mode) Option {
	return func(s *Sanitizer) {
		s.fields[normalize(path)] = mode
	}
}

// WithSkip leaves the given fields untouched.
func WithSkip(paths ...string) Option {
	return func(s *Sanitizer) {
		for _, path := range paths {
			s.fields[normalize(path)] = Skip
		}
	}
}

// Sanitizer cleans string values in a document payload.
type Sanitizer struct {
	fallback Mode
	fields   map[string]Mode
}

// New creates a Sanitizer. The _metadata field is skipped by default.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{fields: map[string]Mode{"_metadata": Skip}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Transform returns a cleaned deep copy of data.
func (s *Sanitizer) Transform(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for key, value := range data {
		out[key] = s.clean(key, value)
	}
	return out
}

// String cleans a single value with the default mode.
func (s *Sanitizer) String(raw string) string {
	return Clean(raw, s.fallback)
}

func (s *Sanitizer) clean(path string, value any) any {
	mode := s.modeFor(path)
	if mode == Skip {
		return valuepath.Clone(value)
	}
	switch typed := value.(type) {
	case string:
		return Clean(typed, mode)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			out[key] = s.clean(path+"."+key, child)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, child := range typed {
			out[i] = s.clean(path, child)
		}
		return out
	case []string:
		out := make([]string, len(typed))
		for i, child := range typed {
			out[i] = Clean(child, mode)
		}
		return out
	default:
		return value
	}
}

// modeFor walks up the path so nested values inherit their parent's mode.
func (s *Sanitizer) modeFor(path string) Mode {
	for current := path; current != ""; {
		if mode, ok := s.fields[current]; ok {
			return mode
		}
		idx := strings.LastIndex(current, ".")
		if idx < 0 {
			break
		}
		current = current[:idx]
	}
	return s.fallback
}

// Clean sanitizes raw with mode.
func Clean(raw string, mode Mode) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	policiesInit()
	switch mode {
	case Skip:
		return raw
	case RichText:
		return strings.TrimSpace(ugcPolicy.Sanitize(raw))
	case SVG:
		return strings.TrimSpace(svgPolicy.Sanitize(strings.TrimSpace(raw)))
	default:
		// The strict policy escapes entities; plain text keeps them literal.
		return html.UnescapeString(strictPolicy.Sanitize(raw))
	}
}

func normalize(path string) string {
	return valuepath.Join(valuepath.Split(path)...)
}

func policiesInit() {
	policyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
		ugcPolicy = bluemonday.UGCPolicy()
		svgPolicy = iconPolicy()
	})
}

func iconPolicy() *bluemonday.Policy {
	policy := bluemonday.StrictPolicy()
	policy.AllowElements(
		"svg", "g", "path", "circle", "rect", "line", "polyline", "polygon",
		"ellipse", "title", "desc", "defs", "use", "clipPath",
	)

	policy.AllowAttrs(
		"xmlns", "viewBox", "width", "height", "fill", "stroke",
		"stroke-width", "stroke-linecap", "stroke-linejoin", "aria-hidden",
		"role", "focusable", "class",
	).OnElements("svg")

	policy.AllowAttrs("href", "xlink:href", "clip-path").OnElements("use")

	for _, el := range []string{"path", "circle", "rect", "line", "polyline", "polygon", "ellipse"} {
		policy.AllowAttrs(
			"d", "cx", "cy", "r", "x", "y", "x1", "y1", "x2", "y2",
			"points", "rx", "ry", "fill", "stroke", "stroke-width",
			"stroke-linecap", "stroke-linejoin", "class",
		).OnElements(el)
	}

	policy.AllowAttrs("id", "clipPathUnits").OnElements("clipPath")
	policy.AllowAttrs("id").OnElements("defs", "g")
	return policy
}
