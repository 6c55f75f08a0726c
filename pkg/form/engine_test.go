package form_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/schema"
)

func contactSchema() *schema.Node {
	return schema.Object(
		schema.Field("name", schema.String().MinLength(2)),
		schema.Field("contactPreference", schema.Enum("email", "phone").Default("email")),
		schema.Field("phoneNumber", schema.String().Optional().When(schema.Condition{
			Field: "contactPreference", Value: "phone", Operator: schema.OpEquals,
		})),
		schema.Field("address", schema.Object(schema.Field("street", schema.String()))),
	)
}

func TestEngine_SeedsDefaultsAndValues(t *testing.T) {
	t.Parallel()

	engine := form.New(
		form.WithSchema(contactSchema()),
		form.WithValues(map[string]any{"name": "Ada"}),
	)
	want := map[string]any{
		"name":              "Ada",
		"contactPreference": "email",
		"phoneNumber":       "",
		"address":           map[string]any{"street": ""},
	}
	if diff := cmp.Diff(want, engine.Values()); diff != "" {
		t.Fatalf("initial values mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_PathGetSet(t *testing.T) {
	t.Parallel()

	engine := form.New()
	steps := []struct {
		path  string
		value any
	}{
		{"title", "x"},
		{"address.street", "Main"},
		{"items[1].name", "second"},
		{"items.0", "first"},
	}
	for _, step := range steps {
		if err := engine.SetValue(step.path, step.value); err != nil {
			t.Fatalf("SetValue(%q): %v", step.path, err)
		}
	}

	want := map[string]any{
		"title":   "x",
		"address": map[string]any{"street": "Main"},
		"items":   []any{"first", map[string]any{"name": "second"}},
	}
	if diff := cmp.Diff(want, engine.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	got, ok := engine.Get("items.1.name")
	if !ok || got != "second" {
		t.Fatalf("Get(items.1.name): got %v, %v", got, ok)
	}
	if _, ok := engine.Get("missing.path"); ok {
		t.Fatalf("expected missing path")
	}
	if err := engine.SetValue("title.inner", 1); err == nil {
		t.Fatalf("expected error writing through a scalar")
	}
	if err := engine.SetValue("", 1); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestEngine_ValuesAreCopies(t *testing.T) {
	t.Parallel()

	engine := form.New(form.WithValues(map[string]any{"tags": []any{"a"}}))
	values := engine.Values()
	values["tags"].([]any)[0] = "mutated"

	got, _ := engine.Get("tags")
	if diff := cmp.Diff([]any{"a"}, got); diff != "" {
		t.Fatalf("engine tree leaked (-want +got):\n%s", diff)
	}
}

func TestEngine_SubscribeAndReset(t *testing.T) {
	t.Parallel()

	engine := form.New()
	var (
		mu      sync.Mutex
		changes []form.Change
	)
	unsubscribe := engine.Subscribe(func(change form.Change) {
		mu.Lock()
		changes = append(changes, change)
		mu.Unlock()
	})

	if err := engine.SetValue("title", "a"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	engine.Reset(map[string]any{"title": "remote"}, form.SourceRemote)
	unsubscribe()
	unsubscribe()
	if err := engine.SetValue("title", "ignored"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	if changes[0].Source != form.SourceUser || changes[0].Path != "title" {
		t.Fatalf("unexpected first change: %+v", changes[0])
	}
	if changes[1].Source != form.SourceRemote || changes[1].Path != "" {
		t.Fatalf("unexpected reset change: %+v", changes[1])
	}
	if diff := cmp.Diff(map[string]any{"title": "remote"}, changes[1].Values); diff != "" {
		t.Fatalf("reset snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_ValidateStoresErrors(t *testing.T) {
	t.Parallel()

	engine := form.New(form.WithSchema(contactSchema()))
	result := engine.Validate()
	if result.Success {
		t.Fatalf("expected failure for empty name")
	}
	if got := engine.Error("name"); got != "String must contain at least 2 character(s)" {
		t.Fatalf("unexpected name error %q", got)
	}

	if err := engine.SetValue("name", "Ada"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := engine.Error("name"); got != "" {
		t.Fatalf("editing a field should clear its error, got %q", got)
	}
	if engine.Validate().Success == false {
		t.Fatalf("expected success after fix: %v", engine.Errors())
	}

	engine.SetErrors(map[string]string{"name": "taken"})
	if diff := cmp.Diff(map[string]string{"name": "taken"}, engine.Errors()); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_Bindings(t *testing.T) {
	t.Parallel()

	node := contactSchema()
	engine := form.New(form.WithSchema(node))
	analysis := model.Analyze(node)
	bindings := engine.Bindings(analysis)

	if len(bindings) != 4 {
		t.Fatalf("expected 4 bindings, got %d", len(bindings))
	}
	phone := bindings[2]
	if phone.Name != "phoneNumber" || phone.Widget != model.WidgetText || phone.Required {
		t.Fatalf("unexpected phone binding: %+v", phone)
	}
	if phone.Visible() {
		t.Fatalf("phone should be hidden while preference is email")
	}

	pref := bindings[1]
	if pref.Widget != model.WidgetRadio || pref.Value() != "email" {
		t.Fatalf("unexpected preference binding: widget=%q value=%v", pref.Widget, pref.Value())
	}
	if err := pref.SetValue("phone"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if !phone.Visible() {
		t.Fatalf("phone should be visible once preference is phone")
	}
	if got := engine.Visibility(analysis); !got["phoneNumber"] {
		t.Fatalf("visibility map should show phoneNumber: %v", got)
	}

	engine.Validate()
	if bindings[0].Error() == "" {
		t.Fatalf("expected name binding to expose its error")
	}
}
