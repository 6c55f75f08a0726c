package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/schema"
)

func TestMapToField_Widgets(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		node *schema.Node
		want Widget
	}{
		{name: "plain string", node: schema.String(), want: WidgetText},
		{name: "email", node: schema.String().Email(), want: WidgetEmail},
		{name: "url", node: schema.String().URL(), want: WidgetURL},
		{name: "short min length", node: schema.String().MinLength(99), want: WidgetText},
		{name: "long min length", node: schema.String().MinLength(100), want: WidgetTextarea},
		{name: "email before textarea threshold", node: schema.String().Email().MinLength(200), want: WidgetEmail},
		{name: "textarea before email", node: schema.String().MinLength(200).Email(), want: WidgetTextarea},
		{name: "regex keeps text", node: schema.String().Regex(`^[a-z]+$`), want: WidgetText},
		{name: "number", node: schema.Number(), want: WidgetNumber},
		{name: "narrow range", node: schema.Number().Min(1).Max(5), want: WidgetRange},
		{name: "span of exactly ten", node: schema.Number().Min(0).Max(10), want: WidgetRange},
		{name: "wide range", node: schema.Number().Min(1).Max(100), want: WidgetNumber},
		{name: "only min", node: schema.Number().Min(1), want: WidgetNumber},
		{name: "boolean", node: schema.Boolean(), want: WidgetCheckbox},
		{name: "date", node: schema.Date(), want: WidgetDate},
		{name: "small enum", node: schema.Enum("a", "b", "c", "d"), want: WidgetRadio},
		{name: "large enum", node: schema.Enum("a", "b", "c", "d", "e"), want: WidgetSelect},
		{name: "array", node: schema.Array(schema.String()), want: WidgetArray},
		{name: "object", node: schema.Object(schema.Field("a", schema.String())), want: WidgetObject},
		{name: "map", node: schema.Map(schema.Number()), want: WidgetRecord},
		{name: "union", node: schema.Union(schema.String(), schema.Number()), want: WidgetRadio},
		{name: "unknown", node: schema.Unknown("bigint"), want: WidgetText},
		{name: "nil", node: nil, want: WidgetText},
		{name: "wrapped", node: schema.String().Email().Optional().Default("a@b.co"), want: WidgetEmail},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, _ := MapToField(schema.Resolve(tc.node))
			if got != tc.want {
				t.Fatalf("widget: want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMapToField_TextareaStillMergesLaterChecks(t *testing.T) {
	t.Parallel()

	node := schema.String().MinLength(120).MaxLength(500).Regex(`\S`)
	widget, cfg := MapToField(schema.Resolve(node))
	if widget != WidgetTextarea {
		t.Fatalf("widget: want textarea, got %q", widget)
	}
	want := FieldConfig{
		MinLength: intPtr(120),
		MaxLength: intPtr(500),
		Pattern:   `\S`,
		Rows:      textareaRows,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestMapToField_NumberConfig(t *testing.T) {
	t.Parallel()

	widget, cfg := MapToField(schema.Resolve(schema.Number().Min(1).Max(5).Int()))
	if widget != WidgetRange {
		t.Fatalf("widget: want range, got %q", widget)
	}
	if *cfg.Min != 1 || *cfg.Max != 5 || *cfg.Step != 1 {
		t.Fatalf("unexpected config: min=%v max=%v step=%v", *cfg.Min, *cfg.Max, *cfg.Step)
	}

	_, cfg = MapToField(schema.Resolve(schema.Number().MultipleOf(0.5).Int()))
	if cfg.Step == nil || *cfg.Step != 0.5 {
		t.Fatalf("multipleOf should override integer step, got %v", cfg.Step)
	}
}

func TestMapToField_Options(t *testing.T) {
	t.Parallel()

	_, cfg := MapToField(schema.Resolve(schema.Enum("email", "phone")))
	want := []Option{{Label: "Email", Value: "email"}, {Label: "Phone", Value: "phone"}}
	if diff := cmp.Diff(want, cfg.Options); diff != "" {
		t.Fatalf("enum options mismatch (-want +got):\n%s", diff)
	}

	_, cfg = MapToField(schema.Resolve(schema.Union(schema.String(), schema.Number(), schema.Boolean())))
	want = []Option{
		{Label: "Option 1", Value: 0},
		{Label: "Option 2", Value: 1},
		{Label: "Option 3", Value: 2},
	}
	if diff := cmp.Diff(want, cfg.Options); diff != "" {
		t.Fatalf("union options mismatch (-want +got):\n%s", diff)
	}

	tagged := schema.DiscriminatedUnion("kind",
		schema.Object(schema.Field("kind", schema.Literal("card")), schema.Field("number", schema.String())),
		schema.Object(schema.Field("kind", schema.Literal("bank")), schema.Field("iban", schema.String())),
	)
	widget, cfg := MapToField(schema.Resolve(tagged))
	if widget != WidgetSelect {
		t.Fatalf("discriminated union widget: want select, got %q", widget)
	}
	want = []Option{{Label: "Card", Value: "card"}, {Label: "Bank", Value: "bank"}}
	if diff := cmp.Diff(want, cfg.Options); diff != "" {
		t.Fatalf("discriminated options mismatch (-want +got):\n%s", diff)
	}
}

func TestMapToField_ArrayAndObjectConfig(t *testing.T) {
	t.Parallel()

	item := schema.String()
	_, cfg := MapToField(schema.Resolve(schema.Array(item).MinItems(1).MaxItems(3)))
	if *cfg.MinItems != 1 || *cfg.MaxItems != 3 || cfg.Element != item {
		t.Fatalf("unexpected array config: %+v", cfg)
	}

	obj := schema.Object(schema.Field("street", schema.String()), schema.Field("city", schema.String()))
	_, cfg = MapToField(schema.Resolve(obj))
	if diff := cmp.Diff([]string{"street", "city"}, propertyNames(cfg.Shape)); diff != "" {
		t.Fatalf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractValidations(t *testing.T) {
	t.Parallel()

	got := ExtractValidations(schema.String().MinLength(2).MaxLength(10).Regex(`^a`))
	want := []ValidationRule{
		{Kind: ValidationRuleRequired},
		{Kind: ValidationRuleMinLength, Params: map[string]string{"value": "2"}},
		{Kind: ValidationRuleMaxLength, Params: map[string]string{"value": "10"}},
		{Kind: ValidationRulePattern, Params: map[string]string{"pattern": "^a"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}

	got = ExtractValidations(schema.Number().Gt(0).Max(9.5).Optional())
	want = []ValidationRule{
		{Kind: ValidationRuleMin, Params: map[string]string{"value": "0", "exclusive": "true"}},
		{Kind: ValidationRuleMax, Params: map[string]string{"value": "9.5"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("optional rules mismatch (-want +got):\n%s", diff)
	}

	if rules := ExtractValidations(schema.Boolean().Nullable()); rules != nil {
		t.Fatalf("expected no rules for nullable boolean, got %v", rules)
	}
}

func TestIsRequired(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		node *schema.Node
		want bool
	}{
		"plain":              {node: schema.String(), want: true},
		"defaulted":          {node: schema.String().Default("x"), want: true},
		"optional":           {node: schema.String().Optional(), want: false},
		"nullable":           {node: schema.String().Nullable(), want: false},
		"optional in effect": {node: schema.Effect(schema.String().Optional(), nil), want: false},
	}
	for name, tc := range cases {
		if got := IsRequired(tc.node); got != tc.want {
			t.Fatalf("%s: want %v, got %v", name, tc.want, got)
		}
	}
}

func TestDefaultLabeler(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"firstName":          "First Name",
		"contact_preference": "Contact Preference",
		"homepage-url":       "Homepage URL",
		"userId":             "User ID",
		"address.street":     "Street",
		"items[2]":           "2",
		"line2":              "Line 2",
		"":                   "",
	}
	for input, want := range cases {
		if got := DefaultLabeler(input); got != want {
			t.Fatalf("DefaultLabeler(%q): want %q, got %q", input, want, got)
		}
	}
}

func TestCapitalize(t *testing.T) {
	t.Parallel()

	cases := map[string]string{"phone": "Phone", "éLan": "ÉLan", "": "", "1st": "1st"}
	for input, want := range cases {
		if got := Capitalize(input); got != want {
			t.Fatalf("Capitalize(%q): want %q, got %q", input, want, got)
		}
	}
}

func propertyNames(props []schema.Property) []string {
	out := make([]string, 0, len(props))
	for _, prop := range props {
		out = append(out, prop.Name)
	}
	return out
}
