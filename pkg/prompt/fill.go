// Package prompt fills a form from the terminal, asking for one visible
// field at a time and writing each accepted answer into the form engine.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/goliatone/go-formsync/internal/valuepath"
	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/validation"
	"github.com/goliatone/go-formsync/pkg/visibility"
)

// DefaultMaxAttempts bounds how often one field is re-asked after an invalid
// answer.
const DefaultMaxAttempts = 3

var (
	ErrNoSchema        = errors.New("prompt: form has no schema")
	ErrTooManyAttempts = errors.New("prompt: too many invalid answers")
)

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the survey driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithVisibility passes options to visibility evaluation, e.g. an expression
// evaluator.
func WithVisibility(opts ...visibility.Option) Option {
	return func(f *Filler) {
		f.visibility = append(f.visibility, opts...)
	}
}

// WithMaxAttempts sets how many answers a field may reject before Fill fails.
func WithMaxAttempts(n int) Option {
	return func(f *Filler) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithLogger sets the filler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Filler walks the analysed fields of a form and prompts for each.
type Filler struct {
	driver      Driver
	visibility  []visibility.Option
	maxAttempts int
	logger      *zap.Logger
	analyzer    *model.Analyzer
}

// New constructs a Filler prompting through survey unless another driver is
// given.
func New(opts ...Option) *Filler {
	f := &Filler{
		maxAttempts: DefaultMaxAttempts,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver(nil)
	}
	f.analyzer = model.NewAnalyzer(model.WithLogger(f.logger))
	return f
}

// Fill prompts for every visible field of the engine's schema. Visibility is
// re-evaluated after each answer so conditional fields follow earlier
// choices. Current values are offered as defaults.
func (f *Filler) Fill(ctx context.Context, engine *form.Engine) error {
	node := engine.Schema()
	if node == nil {
		return ErrNoSchema
	}
	analysis, err := f.analyzer.Analyze(node)
	if err != nil {
		return err
	}
	return f.fillFields(ctx, engine, analysis.Fields, "")
}

func (f *Filler) fillFields(ctx context.Context, engine *form.Engine, fields []model.FieldDefinition, prefix string) error {
	for _, field := range fields {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !visibility.Evaluate(field.Visibility, scopeValues(engine, prefix), f.visibility...) {
			f.logger.Debug("skipping hidden field", zap.String("field", joinPath(prefix, field.Name)))
			continue
		}
		if err := f.fillField(ctx, engine, field, joinPath(prefix, field.Name)); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) fillField(ctx context.Context, engine *form.Engine, field model.FieldDefinition, path string) error {
	resolved := schema.Resolve(field.Node)
	switch {
	case resolved.Kind == schema.KindDiscriminatedUnion:
		return f.fillVariant(ctx, engine, field, resolved.Node, path)
	case resolved.Kind == schema.KindUnion:
		return f.askText(ctx, engine, field, path)
	}

	switch field.Widget {
	case model.WidgetCheckbox:
		return f.askBool(ctx, engine, field, path)
	case model.WidgetNumber, model.WidgetRange:
		return f.askNumber(ctx, engine, field, path)
	case model.WidgetRadio, model.WidgetSelect:
		return f.askOption(ctx, engine, field, path)
	case model.WidgetArray:
		return f.askArray(ctx, engine, field, path)
	case model.WidgetObject:
		return f.fillObject(ctx, engine, field.Config.Shape, path)
	case model.WidgetRecord:
		return f.driver.Info(ctx, fmt.Sprintf("Skipping %s: key/value fields are not supported here", field.Label))
	default:
		return f.askText(ctx, engine, field, path)
	}
}

func (f *Filler) fillObject(ctx context.Context, engine *form.Engine, shape []schema.Property, path string) error {
	nested, err := f.analyzer.Analyze(schema.Object(shape...))
	if err != nil {
		return err
	}
	return f.fillFields(ctx, engine, nested.Fields, path)
}

// fillVariant asks for the discriminator first, then for the chosen
// alternative's own fields.
func (f *Filler) fillVariant(ctx context.Context, engine *form.Engine, field model.FieldDefinition, union *schema.Node, path string) error {
	options := field.Config.Options
	labels := make([]string, len(options))
	for i, option := range options {
		labels[i] = option.Label
	}
	idx, err := f.driver.Select(ctx, SelectConfig{
		Message:      field.Label,
		Options:      labels,
		DefaultIndex: -1,
		Help:         field.Config.Description,
	})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(options) {
		return fmt.Errorf("prompt: invalid selection for %s", path)
	}
	tag := options[idx].Value

	for _, alt := range union.Alternatives {
		for _, value := range schema.DiscriminatorValues(alt, union.Discriminator) {
			if !valuepath.Equal(value, tag) {
				continue
			}
			if err := engine.SetValue(path, map[string]any{union.Discriminator: tag}); err != nil {
				return err
			}
			var shape []schema.Property
			for _, prop := range schema.Base(alt).Shape {
				if prop.Name != union.Discriminator {
					shape = append(shape, prop)
				}
			}
			return f.fillObject(ctx, engine, shape, path)
		}
	}
	return fmt.Errorf("prompt: no alternative for %v", tag)
}

func (f *Filler) askText(ctx context.Context, engine *form.Engine, field model.FieldDefinition, path string) error {
	current, _ := engine.Get(path)
	def := ""
	if current != nil {
		def = fmt.Sprint(current)
	}
	secret := field.Config.Extra["secret"] == "true" || field.Config.Extra["format"] == "password"

	return f.retry(ctx, path, func() (bool, error) {
		var (
			answer string
			err    error
		)
		switch {
		case secret:
			answer, err = f.driver.Password(ctx, InputConfig{Message: field.Label, Help: field.Config.Description})
		case field.Widget == model.WidgetTextarea:
			answer, err = f.driver.TextArea(ctx, TextAreaConfig{Message: field.Label, Default: def, Help: field.Config.Description})
		default:
			answer, err = f.driver.Input(ctx, InputConfig{Message: field.Label, Default: def, Help: field.Config.Description})
		}
		if err != nil {
			return false, err
		}
		if strings.TrimSpace(answer) == "" && !field.Required {
			return true, nil
		}
		return f.accept(ctx, engine, field, path, answer)
	})
}

func (f *Filler) askBool(ctx context.Context, engine *form.Engine, field model.FieldDefinition, path string) error {
	current, _ := engine.Get(path)
	def, _ := current.(bool)
	return f.retry(ctx, path, func() (bool, error) {
		answer, err := f.driver.Confirm(ctx, ConfirmConfig{Message: field.Label, Default: def, Help: field.Config.Description})
		if err != nil {
			return false, err
		}
		return f.accept(ctx, engine, field, path, answer)
	})
}

func (f *Filler) askNumber(ctx context.Context, engine *form.Engine, field model.FieldDefinition, path string) error {
	current, _ := engine.Get(path)
	def := ""
	if current != nil {
		def = fmt.Sprint(current)
	}
	_, integer := schema.Base(field.Node).Check(schema.CheckInt)

	return f.retry(ctx, path, func() (bool, error) {
		answer, err := f.driver.Input(ctx, InputConfig{Message: field.Label, Default: def, Help: numberHelp(field)})
		if err != nil {
			return false, err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" && !field.Required {
			return true, nil
		}
		value, err := parseNumber(answer, integer)
		if err != nil {
			return false, f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %v", field.Label, err))
		}
		return f.accept(ctx, engine, field, path, value)
	})
}

func (f *Filler) askOption(ctx context.Context, engine *form.Engine, field model.FieldDefinition, path string) error {
	options := field.Config.Options
	labels := make([]string, len(options))
	def := -1
	current, _ := engine.Get(path)
	for i, option := range options {
		labels[i] = option.Label
		if current != nil && valuepath.Equal(option.Value, current) {
			def = i
		}
	}

	return f.retry(ctx, path, func() (bool, error) {
		idx, err := f.driver.Select(ctx, SelectConfig{
			Message:      field.Label,
			Options:      labels,
			DefaultIndex: def,
			Help:         field.Config.Description,
		})
		if err != nil {
			return false, err
		}
		if idx < 0 || idx >= len(options) {
			return false, f.driver.Info(ctx, fmt.Sprintf("Invalid %s selection", field.Label))
		}
		return f.accept(ctx, engine, field, path, options[idx].Value)
	})
}

// askArray offers a multi-select for enum elements and otherwise collects
// scalar items one by one.
func (f *Filler) askArray(ctx context.Context, engine *form.Engine, field model.FieldDefinition, path string) error {
	element := schema.Resolve(field.Config.Element)

	if element.Kind == schema.KindEnum {
		options := element.Node.Options
		labels := make([]string, len(options))
		for i, option := range options {
			labels[i] = fmt.Sprint(option)
		}
		current, _ := engine.Get(path)
		existing, _ := valuepath.Slice(current)
		var defaults []int
		for i, option := range options {
			for _, item := range existing {
				if valuepath.Equal(option, item) {
					defaults = append(defaults, i)
				}
			}
		}
		return f.retry(ctx, path, func() (bool, error) {
			indices, err := f.driver.MultiSelect(ctx, SelectConfig{Message: field.Label, Options: labels, Defaults: defaults, Help: field.Config.Description})
			if err != nil {
				return false, err
			}
			selected := make([]any, 0, len(indices))
			for _, idx := range indices {
				selected = append(selected, options[idx])
			}
			return f.accept(ctx, engine, field, path, selected)
		})
	}

	switch element.Kind {
	case schema.KindString, schema.KindNumber, schema.KindDate:
	default:
		return f.driver.Info(ctx, fmt.Sprintf("Skipping %s: only lists of simple values are supported here", field.Label))
	}
	_, integer := element.Node.Check(schema.CheckInt)

	return f.retry(ctx, path, func() (bool, error) {
		var items []any
		for {
			more, err := f.driver.Confirm(ctx, ConfirmConfig{Message: fmt.Sprintf("Add an item to %s?", field.Label)})
			if err != nil {
				return false, err
			}
			if !more {
				break
			}
			answer, err := f.driver.Input(ctx, InputConfig{Message: fmt.Sprintf("%s #%d", field.Label, len(items)+1)})
			if err != nil {
				return false, err
			}
			if element.Kind != schema.KindNumber {
				items = append(items, answer)
				continue
			}
			value, err := parseNumber(strings.TrimSpace(answer), integer)
			if err != nil {
				if err := f.driver.Info(ctx, fmt.Sprintf("Invalid item: %v", err)); err != nil {
					return false, err
				}
				continue
			}
			items = append(items, value)
		}
		if items == nil {
			items = []any{}
		}
		return f.accept(ctx, engine, field, path, items)
	})
}

// accept validates value against the field node and stores it. Rejections
// are reported through the driver.
func (f *Filler) accept(ctx context.Context, engine *form.Engine, field model.FieldDefinition, path string, value any) (bool, error) {
	result := validation.Validate(field.Node, value)
	if !result.Success {
		msg := "invalid value"
		if len(result.Errors) > 0 {
			msg = result.Errors[0].Message
		}
		return false, f.driver.Info(ctx, fmt.Sprintf("Invalid %s: %s", field.Label, msg))
	}
	if err := engine.SetValue(path, value); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Filler) retry(ctx context.Context, path string, ask func() (bool, error)) error {
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := ask()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTooManyAttempts, path)
}

func numberHelp(field model.FieldDefinition) string {
	help := field.Config.Description
	var bounds []string
	if field.Config.Min != nil {
		bounds = append(bounds, "min "+strconv.FormatFloat(*field.Config.Min, 'f', -1, 64))
	}
	if field.Config.Max != nil {
		bounds = append(bounds, "max "+strconv.FormatFloat(*field.Config.Max, 'f', -1, 64))
	}
	if len(bounds) == 0 {
		return help
	}
	if help != "" {
		help += " "
	}
	return help + "(" + strings.Join(bounds, ", ") + ")"
}

func parseNumber(raw string, integer bool) (any, error) {
	if integer {
		return strconv.ParseInt(raw, 10, 64)
	}
	return strconv.ParseFloat(raw, 64)
}

func scopeValues(engine *form.Engine, prefix string) map[string]any {
	if prefix == "" {
		return engine.Values()
	}
	value, _ := engine.Get(prefix)
	scoped, _ := valuepath.Map(value)
	if scoped == nil {
		return map[string]any{}
	}
	return scoped
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
