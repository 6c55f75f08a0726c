package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/schema"
)

func TestAnalyze_SignupSchema(t *testing.T) {
	t.Parallel()

	node := schema.Object(
		schema.Field("name", schema.String().MinLength(2)),
		schema.Field("email", schema.String().Email()),
		schema.Field("newsletter", schema.Boolean().Default(true)),
		schema.Field("bio", schema.String().MinLength(100).Optional()),
	)

	analysis := model.Analyze(node)

	type summary struct {
		Name     string
		Label    string
		Widget   model.Widget
		Required bool
		Default  any
	}
	var got []summary
	for _, field := range analysis.Fields {
		got = append(got, summary{field.Name, field.Label, field.Widget, field.Required, field.Default})
	}
	want := []summary{
		{"name", "Name", model.WidgetText, true, nil},
		{"email", "Email", model.WidgetEmail, true, nil},
		{"newsletter", "Newsletter", model.WidgetCheckbox, true, true},
		{"bio", "Bio", model.WidgetTextarea, false, nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	if analysis.Complexity != model.ComplexitySimple {
		t.Fatalf("complexity: want simple, got %q", analysis.Complexity)
	}

	nameRules := analysis.Fields[0].Validations
	wantRules := []model.ValidationRule{
		{Kind: model.ValidationRuleRequired},
		{Kind: model.ValidationRuleMinLength, Params: map[string]string{"value": "2"}},
	}
	if diff := cmp.Diff(wantRules, nameRules); diff != "" {
		t.Fatalf("name rules mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyze_RatingRange(t *testing.T) {
	t.Parallel()

	narrow := model.Analyze(schema.Object(schema.Field("rating", schema.Number().Min(1).Max(5))))
	if got := narrow.Fields[0].Widget; got != model.WidgetRange {
		t.Fatalf("narrow rating: want range, got %q", got)
	}
	cfg := narrow.Fields[0].Config
	if *cfg.Min != 1 || *cfg.Max != 5 {
		t.Fatalf("narrow rating config: min=%v max=%v", *cfg.Min, *cfg.Max)
	}

	wide := model.Analyze(schema.Object(schema.Field("rating", schema.Number().Min(1).Max(100))))
	if got := wide.Fields[0].Widget; got != model.WidgetNumber {
		t.Fatalf("wide rating: want number, got %q", got)
	}
}

func TestAnalyze_NonObject(t *testing.T) {
	t.Parallel()

	for _, node := range []*schema.Node{schema.String(), nil, schema.Unknown("custom")} {
		analysis := model.Analyze(node)
		if len(analysis.Fields) != 0 {
			t.Fatalf("expected no fields, got %d", len(analysis.Fields))
		}
		if analysis.Complexity != model.ComplexitySimple {
			t.Fatalf("expected simple complexity, got %q", analysis.Complexity)
		}
	}
}

func TestAnalyze_WrappedRootObject(t *testing.T) {
	t.Parallel()

	node := schema.Object(schema.Field("title", schema.String())).Refine(func(any) error { return nil })
	analysis := model.Analyze(node)
	if len(analysis.Fields) != 1 || analysis.Fields[0].Name != "title" {
		t.Fatalf("expected title field under effect root, got %+v", analysis.Fields)
	}
}

func TestAnalyze_Complexity(t *testing.T) {
	t.Parallel()

	flat := func(count int) []schema.Property {
		props := make([]schema.Property, 0, count)
		for i := 0; i < count; i++ {
			props = append(props, schema.Field(fmt.Sprintf("f%d", i), schema.String()))
		}
		return props
	}

	cases := []struct {
		name string
		node *schema.Node
		want model.Complexity
	}{
		{name: "ten fields", node: schema.Object(flat(10)...), want: model.ComplexitySimple},
		{name: "eleven fields", node: schema.Object(flat(11)...), want: model.ComplexityModerate},
		{name: "twenty fields", node: schema.Object(flat(20)...), want: model.ComplexityModerate},
		{name: "twenty one fields", node: schema.Object(flat(21)...), want: model.ComplexityComplex},
		{
			name: "array field",
			node: schema.Object(schema.Field("tags", schema.Array(schema.String()))),
			want: model.ComplexityModerate,
		},
		{
			name: "small nested object",
			node: schema.Object(schema.Field("address", schema.Object(flat(5)...))),
			want: model.ComplexityModerate,
		},
		{
			name: "large nested object",
			node: schema.Object(schema.Field("address", schema.Object(flat(6)...))),
			want: model.ComplexityComplex,
		},
		{
			name: "conditional field",
			node: schema.Object(
				schema.Field("contactPreference", schema.Enum("email", "phone")),
				schema.Field("phoneNumber", schema.String().Optional().When(schema.Condition{
					Field: "contactPreference", Value: "phone", Operator: schema.OpEquals,
				})),
			),
			want: model.ComplexityComplex,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := model.Analyze(tc.node).Complexity; got != tc.want {
				t.Fatalf("complexity: want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAnalyze_Flags(t *testing.T) {
	t.Parallel()

	node := schema.Object(
		schema.Field("tags", schema.Array(schema.String())),
		schema.Field("address", schema.Object(schema.Field("city", schema.String()))),
		schema.Field("note", schema.String().When(schema.Condition{Field: "tags", Value: "x", Operator: schema.OpContains})),
	)
	analysis := model.Analyze(node)
	if !analysis.HasArrays || !analysis.HasObjects || !analysis.HasConditionals {
		t.Fatalf("expected all flags set, got %+v", analysis)
	}
	note, ok := analysis.Field("note")
	if !ok || note.Visibility == nil || note.Visibility.Field != "tags" {
		t.Fatalf("expected visibility on note, got %+v", note.Visibility)
	}
}

func TestAnalyzer_Memoizes(t *testing.T) {
	t.Parallel()

	calls := 0
	analyzer := model.NewAnalyzer(model.WithDecorators(model.DecoratorFunc(func(a *model.SchemaAnalysis) error {
		calls++
		return nil
	})))

	node := schema.Object(schema.Field("title", schema.String()))
	first, err := analyzer.Analyze(node)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	second, err := analyzer.Analyze(node)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one analysis for the same schema, got %d", calls)
	}
	if diff := cmp.Diff(first.Fields[0].Name, second.Fields[0].Name); diff != "" {
		t.Fatalf("memoized analysis mismatch: %s", diff)
	}

	second.Fields[0].Label = "mutated"
	third, _ := analyzer.Analyze(node)
	if third.Fields[0].Label != "Title" {
		t.Fatalf("cached analysis must not be affected by callers, got %q", third.Fields[0].Label)
	}

	other := schema.Object(schema.Field("title", schema.String()))
	if _, err := analyzer.Analyze(other); err != nil {
		t.Fatalf("analyze other: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a new analysis for a new schema reference, got %d", calls)
	}

	analyzer.Forget(node)
	if _, err := analyzer.Analyze(node); err != nil {
		t.Fatalf("analyze after forget: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected re-analysis after Forget, got %d", calls)
	}
}

func TestAnalyzer_LabelerAndDecoratorError(t *testing.T) {
	t.Parallel()

	analyzer := model.NewAnalyzer(model.WithLabeler(func(name string) string { return "label:" + name }))
	analysis, err := analyzer.Analyze(schema.Object(schema.Field("title", schema.String())))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got := analysis.Fields[0].Label; got != "label:title" {
		t.Fatalf("custom labeler not applied, got %q", got)
	}

	boom := errors.New("boom")
	failing := model.NewAnalyzer(model.WithDecorators(model.DecoratorFunc(func(*model.SchemaAnalysis) error { return boom })))
	if _, err := failing.Analyze(schema.Object()); !errors.Is(err, boom) {
		t.Fatalf("expected decorator error, got %v", err)
	}
}
