package schema

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goliatone/go-formsync/internal/valuepath"
)

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9_'+\-.]*[A-Za-z0-9_+\-]@([A-Za-z0-9][A-Za-z0-9\-]*\.)+[A-Za-z]{2,}$`)
	regexCache   sync.Map
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse validates value against the node. On success it returns the
// normalised data: defaults applied, unknown object keys stripped, numbers as
// float64 and dates as time.Time. Absent input is represented by nil.
func (n *Node) Parse(value any) (any, Issues) {
	p := &parser{}
	out, _ := p.parse(n, value, value != nil, nil)
	if len(p.issues) > 0 {
		return nil, p.issues
	}
	return out, nil
}

type parser struct {
	issues Issues
}

func (p *parser) add(path []any, code, message string, params map[string]any) {
	p.issues = append(p.issues, Issue{
		Code:    code,
		Message: message,
		Path:    append([]any(nil), path...),
		Params:  params,
	})
}

func childPath(path []any, segment any) []any {
	out := make([]any, 0, len(path)+1)
	out = append(out, path...)
	return append(out, segment)
}

// parse returns the parsed value and whether it should be kept in the parent
// (absent optional values are dropped).
func (p *parser) parse(node *Node, value any, present bool, path []any) (any, bool) {
	if node == nil {
		return value, present
	}

	switch node.Kind {
	case KindDefault:
		if !present || value == nil {
			value = valuepath.Clone(node.DefaultValue)
			present = true
		}
		return p.parse(node.Inner, value, present, path)
	case KindOptional:
		if !present || value == nil {
			return nil, false
		}
		return p.parse(node.Inner, value, present, path)
	case KindNullable:
		if present && value == nil {
			return nil, true
		}
		return p.parse(node.Inner, value, present, path)
	case KindEffect:
		before := len(p.issues)
		out, keep := p.parse(node.Inner, value, present, path)
		if len(p.issues) > before || node.Refinement == nil {
			return out, keep
		}
		if err := node.Refinement(out); err != nil {
			p.add(path, CodeCustom, err.Error(), nil)
		}
		return out, keep
	case KindUnknown:
		return value, present
	}

	if !present {
		p.add(path, CodeInvalidType, "Required", map[string]any{"expected": string(node.Kind), "received": "undefined"})
		return nil, false
	}
	if value == nil {
		p.typeIssue(path, node.Kind, value)
		return nil, true
	}

	switch node.Kind {
	case KindString:
		return p.parseString(node, value, path), true
	case KindNumber:
		return p.parseNumber(node, value, path), true
	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			p.typeIssue(path, node.Kind, value)
		}
		return b, true
	case KindDate:
		return p.parseDate(value, path), true
	case KindEnum:
		return p.parseEnum(node, value, path), true
	case KindArray:
		return p.parseArray(node, value, path), true
	case KindObject:
		return p.parseObject(node, value, path), true
	case KindMap:
		return p.parseMap(node, value, path), true
	case KindUnion:
		return p.parseUnion(node, value, path), true
	case KindDiscriminatedUnion:
		return p.parseDiscriminated(node, value, path), true
	default:
		return value, true
	}
}

func (p *parser) typeIssue(path []any, expected Kind, value any) {
	received := receivedKind(value)
	p.add(path, CodeInvalidType, fmt.Sprintf("Expected %s, received %s", expected, received), map[string]any{
		"expected": string(expected),
		"received": received,
	})
}

func (p *parser) parseString(node *Node, value any, path []any) any {
	s, ok := value.(string)
	if !ok {
		p.typeIssue(path, KindString, value)
		return value
	}
	length := utf8.RuneCountInString(s)
	for _, check := range node.Checks {
		switch check.Kind {
		case CheckMinLength:
			if float64(length) < check.Value {
				p.add(path, CodeTooSmall, messageOr(check, fmt.Sprintf("String must contain at least %s character(s)", formatNumber(check.Value))), map[string]any{"minimum": check.Value, "type": "string"})
			}
		case CheckMaxLength:
			if float64(length) > check.Value {
				p.add(path, CodeTooBig, messageOr(check, fmt.Sprintf("String must contain at most %s character(s)", formatNumber(check.Value))), map[string]any{"maximum": check.Value, "type": "string"})
			}
		case CheckEmail:
			if !isEmail(s) {
				p.add(path, CodeInvalidString, messageOr(check, "Invalid email"), map[string]any{"validation": "email"})
			}
		case CheckURL:
			if !isURL(s) {
				p.add(path, CodeInvalidString, messageOr(check, "Invalid url"), map[string]any{"validation": "url"})
			}
		case CheckRegex:
			re, err := compilePattern(check.Pattern)
			if err != nil || !re.MatchString(s) {
				p.add(path, CodeInvalidString, messageOr(check, "Invalid"), map[string]any{"validation": "regex", "pattern": check.Pattern})
			}
		}
	}
	return s
}

func (p *parser) parseNumber(node *Node, value any, path []any) any {
	f, ok := valuepath.Number(value)
	if !ok || math.IsNaN(f) {
		p.typeIssue(path, KindNumber, value)
		return value
	}
	for _, check := range node.Checks {
		switch check.Kind {
		case CheckMin:
			if f < check.Value || (check.Exclusive && f == check.Value) {
				msg := fmt.Sprintf("Number must be greater than or equal to %s", formatNumber(check.Value))
				if check.Exclusive {
					msg = fmt.Sprintf("Number must be greater than %s", formatNumber(check.Value))
				}
				p.add(path, CodeTooSmall, messageOr(check, msg), map[string]any{"minimum": check.Value, "inclusive": !check.Exclusive, "type": "number"})
			}
		case CheckMax:
			if f > check.Value || (check.Exclusive && f == check.Value) {
				msg := fmt.Sprintf("Number must be less than or equal to %s", formatNumber(check.Value))
				if check.Exclusive {
					msg = fmt.Sprintf("Number must be less than %s", formatNumber(check.Value))
				}
				p.add(path, CodeTooBig, messageOr(check, msg), map[string]any{"maximum": check.Value, "inclusive": !check.Exclusive, "type": "number"})
			}
		case CheckInt:
			if f != math.Trunc(f) || math.IsInf(f, 0) {
				p.add(path, CodeInvalidType, messageOr(check, "Expected integer, received float"), map[string]any{"expected": "integer", "received": "float"})
			}
		case CheckMultipleOf:
			if check.Value != 0 && !isMultiple(f, check.Value) {
				p.add(path, CodeNotMultipleOf, messageOr(check, fmt.Sprintf("Number must be a multiple of %s", formatNumber(check.Value))), map[string]any{"multipleOf": check.Value})
			}
		}
	}
	return f
}

func (p *parser) parseDate(value any, path []any) any {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			p.add(path, CodeInvalidDate, "Invalid date", nil)
		}
		return v
	case *time.Time:
		if v == nil || v.IsZero() {
			p.add(path, CodeInvalidDate, "Invalid date", nil)
			return value
		}
		return *v
	case string:
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return parsed
			}
		}
		p.add(path, CodeInvalidDate, "Invalid date", nil)
		return value
	default:
		p.typeIssue(path, KindDate, value)
		return value
	}
}

func (p *parser) parseEnum(node *Node, value any, path []any) any {
	for _, option := range node.Options {
		if valuepath.Equal(option, value) {
			return option
		}
	}
	quoted := make([]string, 0, len(node.Options))
	for _, option := range node.Options {
		quoted = append(quoted, fmt.Sprintf("'%v'", option))
	}
	p.add(path, CodeInvalidEnumValue,
		fmt.Sprintf("Invalid enum value. Expected %s, received '%v'", strings.Join(quoted, " | "), value),
		map[string]any{"options": append([]any(nil), node.Options...), "received": value})
	return value
}

func (p *parser) parseArray(node *Node, value any, path []any) any {
	items, ok := valuepath.Slice(value)
	if !ok {
		p.typeIssue(path, KindArray, value)
		return value
	}
	for _, check := range node.Checks {
		switch check.Kind {
		case CheckMinItems:
			if float64(len(items)) < check.Value {
				p.add(path, CodeTooSmall, messageOr(check, fmt.Sprintf("Array must contain at least %s element(s)", formatNumber(check.Value))), map[string]any{"minimum": check.Value, "type": "array"})
			}
		case CheckMaxItems:
			if float64(len(items)) > check.Value {
				p.add(path, CodeTooBig, messageOr(check, fmt.Sprintf("Array must contain at most %s element(s)", formatNumber(check.Value))), map[string]any{"maximum": check.Value, "type": "array"})
			}
		}
	}
	out := make([]any, 0, len(items))
	for idx, item := range items {
		parsed, _ := p.parse(node.Element, item, true, childPath(path, idx))
		out = append(out, parsed)
	}
	return out
}

func (p *parser) parseObject(node *Node, value any, path []any) any {
	fields, ok := valuepath.Map(value)
	if !ok {
		p.typeIssue(path, KindObject, value)
		return value
	}
	out := make(map[string]any, len(node.Shape))
	for _, prop := range node.Shape {
		raw, present := fields[prop.Name]
		parsed, keep := p.parse(prop.Node, raw, present, childPath(path, prop.Name))
		if keep {
			out[prop.Name] = parsed
		}
	}
	return out
}

func (p *parser) parseMap(node *Node, value any, path []any) any {
	fields, ok := valuepath.Map(value)
	if !ok {
		p.typeIssue(path, KindMap, value)
		return value
	}
	out := make(map[string]any, len(fields))
	for key, raw := range fields {
		parsed, keep := p.parse(node.Values, raw, true, childPath(path, key))
		if keep {
			out[key] = parsed
		}
	}
	return out
}

func (p *parser) parseUnion(node *Node, value any, path []any) any {
	for _, alt := range node.Alternatives {
		sub := &parser{}
		out, _ := sub.parse(alt, value, true, path)
		if len(sub.issues) == 0 {
			return out
		}
	}
	p.add(path, CodeInvalidUnion, "Invalid input", map[string]any{"alternatives": len(node.Alternatives)})
	return value
}

func (p *parser) parseDiscriminated(node *Node, value any, path []any) any {
	fields, ok := valuepath.Map(value)
	if !ok {
		p.typeIssue(path, KindObject, value)
		return value
	}
	tag := fields[node.Discriminator]
	for _, alt := range node.Alternatives {
		for _, option := range DiscriminatorValues(alt, node.Discriminator) {
			if valuepath.Equal(option, tag) {
				out, _ := p.parse(alt, value, true, path)
				return out
			}
		}
	}
	var expected []string
	for _, alt := range node.Alternatives {
		for _, option := range DiscriminatorValues(alt, node.Discriminator) {
			expected = append(expected, fmt.Sprintf("'%v'", option))
		}
	}
	p.add(childPath(path, node.Discriminator), CodeInvalidDiscriminator,
		fmt.Sprintf("Invalid discriminator value. Expected %s", strings.Join(expected, " | ")),
		map[string]any{"discriminator": node.Discriminator})
	return value
}

// DiscriminatorValues returns the literal values an alternative accepts for
// the discriminator property.
func DiscriminatorValues(alternative *Node, discriminator string) []any {
	base := Base(alternative)
	if base == nil || base.Kind != KindObject {
		return nil
	}
	prop, ok := base.Property(discriminator)
	if !ok {
		return nil
	}
	tag := Base(prop)
	if tag == nil || tag.Kind != KindEnum {
		return nil
	}
	return tag.Options
}

func messageOr(check Check, fallback string) string {
	if strings.TrimSpace(check.Message) != "" {
		return check.Message
	}
	return fallback
}

func formatNumber(value float64) string {
	return fmt.Sprintf("%v", value)
}

func isMultiple(value, step float64) bool {
	ratio := value / step
	return math.Abs(ratio-math.Round(ratio)) < 1e-9
}

func isEmail(s string) bool {
	if strings.HasPrefix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	return emailPattern.MatchString(s)
}

func isURL(s string) bool {
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil || parsed.Scheme == "" {
		return false
	}
	return parsed.Host != "" || parsed.Opaque != ""
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func receivedKind(value any) string {
	if value == nil {
		return "null"
	}
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case time.Time, *time.Time:
		return "date"
	}
	if _, ok := valuepath.Number(value); ok {
		return "number"
	}
	if _, ok := valuepath.Map(value); ok {
		return "object"
	}
	if _, ok := valuepath.Slice(value); ok {
		return "array"
	}
	return "unknown"
}
