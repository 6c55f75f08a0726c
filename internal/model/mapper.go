package model

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/goliatone/go-formsync/pkg/schema"
)

const (
	// TextareaMinLength is the min-length threshold that turns a string into a
	// textarea.
	TextareaMinLength = 100
	// RangeMaxSpan is the widest min/max span still rendered as a slider.
	RangeMaxSpan = 10
	// RadioMaxOptions is the largest enum rendered as radio buttons.
	RadioMaxOptions = 4

	textareaRows = 4
)

// MapToField decides the widget and configuration for a resolved node.
// Unrecognised kinds fall back to a text field.
func MapToField(resolved schema.Resolved) (Widget, FieldConfig) {
	cfg := FieldConfig{Description: resolved.Description}
	node := resolved.Node
	if node == nil {
		return WidgetText, cfg
	}

	switch resolved.Kind {
	case schema.KindString:
		return mapString(node, cfg)
	case schema.KindNumber:
		return mapNumber(node, cfg)
	case schema.KindBoolean:
		return WidgetCheckbox, cfg
	case schema.KindDate:
		return WidgetDate, cfg
	case schema.KindEnum:
		cfg.Options = enumOptions(node.Options)
		if len(cfg.Options) <= RadioMaxOptions {
			return WidgetRadio, cfg
		}
		return WidgetSelect, cfg
	case schema.KindArray:
		if check, ok := node.Check(schema.CheckMinItems); ok {
			cfg.MinItems = intPtr(int(check.Value))
		}
		if check, ok := node.Check(schema.CheckMaxItems); ok {
			cfg.MaxItems = intPtr(int(check.Value))
		}
		cfg.Element = node.Element
		return WidgetArray, cfg
	case schema.KindObject:
		cfg.Shape = node.Shape
		return WidgetObject, cfg
	case schema.KindMap:
		return WidgetRecord, cfg
	case schema.KindUnion:
		for idx := range node.Alternatives {
			cfg.Options = append(cfg.Options, Option{
				Label: fmt.Sprintf("Option %d", idx+1),
				Value: idx,
			})
		}
		return WidgetRadio, cfg
	case schema.KindDiscriminatedUnion:
		for _, alt := range node.Alternatives {
			for _, value := range schema.DiscriminatorValues(alt, node.Discriminator) {
				cfg.Options = append(cfg.Options, Option{Label: Capitalize(fmt.Sprint(value)), Value: value})
			}
		}
		return WidgetSelect, cfg
	default:
		return WidgetText, cfg
	}
}

// mapString walks the checks in declaration order. email and url end the walk
// and fix the widget; a long min-length picks textarea but later checks are
// still merged into the config.
func mapString(node *schema.Node, cfg FieldConfig) (Widget, FieldConfig) {
	widget := WidgetText
	for _, check := range node.Checks {
		switch check.Kind {
		case schema.CheckEmail:
			if widget == WidgetText {
				return WidgetEmail, cfg
			}
		case schema.CheckURL:
			if widget == WidgetText {
				return WidgetURL, cfg
			}
		case schema.CheckMinLength:
			cfg.MinLength = intPtr(int(check.Value))
			if widget == WidgetText && check.Value >= TextareaMinLength {
				widget = WidgetTextarea
				cfg.Rows = textareaRows
			}
		case schema.CheckMaxLength:
			cfg.MaxLength = intPtr(int(check.Value))
		case schema.CheckRegex:
			cfg.Pattern = check.Pattern
		}
	}
	return widget, cfg
}

func mapNumber(node *schema.Node, cfg FieldConfig) (Widget, FieldConfig) {
	for _, check := range node.Checks {
		switch check.Kind {
		case schema.CheckMin:
			cfg.Min = floatPtr(check.Value)
		case schema.CheckMax:
			cfg.Max = floatPtr(check.Value)
		case schema.CheckInt:
			if cfg.Step == nil {
				cfg.Step = floatPtr(1)
			}
		}
	}
	// multipleOf overrides the integer step regardless of declaration order.
	if check, ok := node.Check(schema.CheckMultipleOf); ok {
		cfg.Step = floatPtr(check.Value)
	}
	if cfg.Min != nil && cfg.Max != nil && *cfg.Max-*cfg.Min <= RangeMaxSpan {
		return WidgetRange, cfg
	}
	return WidgetNumber, cfg
}

func enumOptions(values []any) []Option {
	if len(values) == 0 {
		return nil
	}
	out := make([]Option, 0, len(values))
	for _, value := range values {
		out = append(out, Option{Label: Capitalize(fmt.Sprint(value)), Value: value})
	}
	return out
}

// Capitalize upper-cases the first letter and leaves the rest untouched.
func Capitalize(value string) string {
	if value == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(value)
	return string(unicode.ToUpper(r)) + value[size:]
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
