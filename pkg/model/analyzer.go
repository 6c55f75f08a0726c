package model

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	internalmodel "github.com/goliatone/go-formsync/internal/model"
	"github.com/goliatone/go-formsync/pkg/schema"
)

// AnalyzerOption configures the analyzer behaviour.
type AnalyzerOption func(*analyzerOptions)

type analyzerOptions struct {
	labeler    func(string) string
	logger     *zap.Logger
	decorators []Decorator
}

// WithLabeler overrides the default label generation function.
func WithLabeler(labeler func(string) string) AnalyzerOption {
	return func(opts *analyzerOptions) {
		opts.labeler = labeler
	}
}

// WithLogger reports mapping anomalies (unrecognised kinds) at debug level.
func WithLogger(logger *zap.Logger) AnalyzerOption {
	return func(opts *analyzerOptions) {
		opts.logger = logger
	}
}

// WithDecorators registers decorators applied, in order, to every fresh
// analysis before it is cached.
func WithDecorators(decorators ...Decorator) AnalyzerOption {
	return func(opts *analyzerOptions) {
		opts.decorators = append(opts.decorators, decorators...)
	}
}

// Analyzer memoizes schema analyses per schema reference. A schema is
// analysed once; a different *schema.Node triggers a new analysis.
type Analyzer struct {
	inner      *internalmodel.Analyzer
	decorators []Decorator

	mu    sync.Mutex
	cache map[*schema.Node]SchemaAnalysis
}

// NewAnalyzer returns an Analyzer backed by the internal implementation.
func NewAnalyzer(options ...AnalyzerOption) *Analyzer {
	cfg := analyzerOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Analyzer{
		inner: internalmodel.New(internalmodel.Options{
			Labeler: cfg.labeler,
			Logger:  cfg.logger,
		}),
		decorators: cfg.decorators,
		cache:      make(map[*schema.Node]SchemaAnalysis),
	}
}

// Analyze returns the analysis for node, computing it on first use.
func (a *Analyzer) Analyze(node *schema.Node) (SchemaAnalysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cached, ok := a.cache[node]; ok {
		return copyAnalysis(cached), nil
	}

	analysis := a.inner.Analyze(node)
	for _, decorator := range a.decorators {
		if err := decorator.Decorate(&analysis); err != nil {
			return SchemaAnalysis{}, fmt.Errorf("model: decorate analysis: %w", err)
		}
	}
	a.cache[node] = analysis
	return copyAnalysis(analysis), nil
}

// Forget drops the cached analysis for node.
func (a *Analyzer) Forget(node *schema.Node) {
	a.mu.Lock()
	delete(a.cache, node)
	a.mu.Unlock()
}

// Analyze analyses node with default options and no memoization.
func Analyze(node *schema.Node) SchemaAnalysis {
	return internalmodel.New(internalmodel.Options{}).Analyze(node)
}

// MapToField picks the widget and configuration for a resolved node.
func MapToField(resolved schema.Resolved) (Widget, FieldConfig) {
	return internalmodel.MapToField(resolved)
}

// ExtractValidations derives validation rules for a property node.
func ExtractValidations(node *schema.Node) []ValidationRule {
	return internalmodel.ExtractValidations(node)
}

// IsRequired reports whether a property is required (not optional or
// nullable at any wrapper layer).
func IsRequired(node *schema.Node) bool {
	return internalmodel.IsRequired(node)
}

// DefaultLabeler converts a field name into a human-friendly label.
func DefaultLabeler(name string) string {
	return internalmodel.DefaultLabeler(name)
}

func copyAnalysis(in SchemaAnalysis) SchemaAnalysis {
	out := in
	out.Fields = make([]FieldDefinition, len(in.Fields))
	copy(out.Fields, in.Fields)
	return out
}
