package defaults_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/defaults"
	"github.com/goliatone/go-formsync/pkg/schema"
)

func profileSchema() *schema.Node {
	return schema.Object(
		schema.Field("name", schema.String()),
		schema.Field("age", schema.Number().Int().Optional()),
		schema.Field("active", schema.Boolean()),
		schema.Field("tags", schema.Array(schema.String())),
		schema.Field("role", schema.Enum("admin", "editor").Default("editor")),
		schema.Field("plan", schema.Enum("free", "pro")),
		schema.Field("born", schema.Date().Optional()),
		schema.Field("address", schema.Object(
			schema.Field("street", schema.String()),
			schema.Field("zip", schema.String().Nullable()),
		)),
		schema.Field("settings", schema.Map(schema.String()).Default(map[string]any{"theme": "dark"})),
		schema.Field("anything", schema.Unknown("bigint")),
	)
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	got := defaults.Synthesize(profileSchema())
	want := map[string]any{
		"name":     "",
		"age":      float64(0),
		"active":   false,
		"tags":     []any{},
		"role":     "editor",
		"address":  map[string]any{"street": "", "zip": ""},
		"settings": map[string]any{"theme": "dark"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_Idempotent(t *testing.T) {
	t.Parallel()

	node := profileSchema()
	first := defaults.Synthesize(node)
	second := defaults.Synthesize(node)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("synthesize not idempotent (-first +second):\n%s", diff)
	}

	first["settings"].(map[string]any)["theme"] = "light"
	third := defaults.Synthesize(node)
	if got := third["settings"].(map[string]any)["theme"]; got != "dark" {
		t.Fatalf("explicit default must not be shared between calls, got %v", got)
	}
}

func TestSynthesize_ExplicitDefaultVerbatim(t *testing.T) {
	t.Parallel()

	node := schema.Object(
		schema.Field("count", schema.Number().Default(nil)),
		schema.Field("labels", schema.Array(schema.String()).Default([]any{"a", "b"})),
	)
	got := defaults.Synthesize(node)
	want := map[string]any{"count": nil, "labels": []any{"a", "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesize_NonObject(t *testing.T) {
	t.Parallel()

	if got := defaults.Synthesize(schema.String()); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
	if got := defaults.Synthesize(nil); len(got) != 0 {
		t.Fatalf("expected empty map for nil schema, got %v", got)
	}
}

func TestSynthesize_RoundTripsThroughParse(t *testing.T) {
	t.Parallel()

	node := schema.Object(
		schema.Field("title", schema.String().Optional()),
		schema.Field("count", schema.Number().Min(0).Default(3)),
		schema.Field("enabled", schema.Boolean().Optional()),
		schema.Field("tags", schema.Array(schema.String()).Default([]any{})),
		schema.Field("kind", schema.Enum("a", "b").Default("a")),
	)
	if _, issues := node.Parse(defaults.Synthesize(node)); len(issues) != 0 {
		t.Fatalf("synthesized defaults should validate, got %v", issues)
	}
}
