package valuepath

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"":                nil,
		"name":            {"name"},
		"items[2].name":   {"items", "2", "name"},
		"items.2.name":    {"items", "2", "name"},
		" a..b[0][1] ":    {"a", "b", "0", "1"},
		"address.street ": {"address", "street"},
	}
	for path, want := range cases {
		if diff := cmp.Diff(want, Split(path)); diff != "" {
			t.Fatalf("Split(%q) mismatch (-want +got):\n%s", path, diff)
		}
	}
}

func TestSetGet_RoundTrip(t *testing.T) {
	t.Parallel()

	tree := map[string]any{}
	writes := map[string]any{
		"name":            "Jane",
		"address.city":    "Oslo",
		"items[1].label":  "second",
		"tags.0":          "a",
		"address.geo.lat": 59.9,
		"items[0].label":  "first",
		"cta.headline":    "flat",
	}
	for path, value := range writes {
		if err := Set(tree, path, value); err != nil {
			t.Fatalf("Set(%q): %v", path, err)
		}
	}
	for path, want := range writes {
		got, ok := Get(tree, path)
		if !ok || !Equal(got, want) {
			t.Fatalf("Get(%q) = %v, %v; want %v", path, got, ok, want)
		}
	}

	want := map[string]any{
		"name":    "Jane",
		"address": map[string]any{"city": "Oslo", "geo": map[string]any{"lat": 59.9}},
		"items": []any{
			map[string]any{"label": "first"},
			map[string]any{"label": "second"},
		},
		"tags": []any{"a"},
		"cta":  map[string]any{"headline": "flat"},
	}
	if diff := cmp.Diff(want, tree); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_PrefersExactKey(t *testing.T) {
	t.Parallel()

	tree := map[string]any{
		"cta.headline": "flat",
		"cta":          map[string]any{"headline": "nested"},
	}
	if got, _ := Get(tree, "cta.headline"); got != "flat" {
		t.Fatalf("got %v want flat", got)
	}
	if _, ok := Get(tree, "cta.missing"); ok {
		t.Fatal("missing path reported as present")
	}
	if _, ok := Get(nil, "x"); ok {
		t.Fatal("nil tree reported a value")
	}
}

func TestSet_Errors(t *testing.T) {
	t.Parallel()

	if err := Set(nil, "a", 1); !errors.Is(err, errNilTree) {
		t.Fatalf("got %v want errNilTree", err)
	}
	if err := Set(map[string]any{}, " ", 1); !errors.Is(err, errEmptyPath) {
		t.Fatalf("got %v want errEmptyPath", err)
	}
	if err := Set(map[string]any{"name": "Jane"}, "name.first", 1); !errors.Is(err, errNotTraverse) {
		t.Fatalf("got %v want errNotTraverse", err)
	}
	if err := Set(map[string]any{"items": []any{}}, "items.x.y", 1); !errors.Is(err, errBadIndex) {
		t.Fatalf("got %v want errBadIndex", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	tree := map[string]any{"a": map[string]any{"b": 1, "c": 2}, "x.y": 3}
	Delete(tree, "a.b")
	Delete(tree, "x.y")
	Delete(tree, "missing.path")

	if diff := cmp.Diff(map[string]any{"a": map[string]any{"c": 2}}, tree); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneMap_IsDeep(t *testing.T) {
	t.Parallel()

	src := map[string]any{"items": []any{map[string]any{"n": 1}}, "tags": []string{"a"}}
	dup := CloneMap(src)
	dup["items"].([]any)[0].(map[string]any)["n"] = 2
	dup["tags"].([]string)[0] = "b"

	if src["items"].([]any)[0].(map[string]any)["n"] != 1 || src["tags"].([]string)[0] != "a" {
		t.Fatalf("clone shares state with source: %v", src)
	}
	if CloneMap(nil) != nil {
		t.Fatal("nil map should clone to nil")
	}
}

func TestCoercion(t *testing.T) {
	t.Parallel()

	if !Equal(1, 1.0) || !Equal(int64(3), float32(3)) || Equal(1, "1") || !Equal([]any{"a"}, []any{"a"}) {
		t.Fatal("Equal numeric normalisation failed")
	}
	for _, tc := range []struct {
		in   any
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" ", 0, true},
		{true, 1, true},
		{nil, 0, true},
		{uint8(7), 7, true},
	} {
		got, ok := Coerce(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Coerce(%v) = %v, %v", tc.in, got, ok)
		}
	}
	if got, ok := Coerce("abc"); ok || !math.IsNaN(got) {
		t.Fatalf("Coerce(abc) = %v, %v", got, ok)
	}
	if got, ok := Slice([]int{1, 2}); !ok || len(got) != 2 {
		t.Fatalf("Slice([]int) = %v, %v", got, ok)
	}
	if _, ok := Slice([]byte("ab")); ok {
		t.Fatal("byte slices are not value slices")
	}
	if got, ok := Map(map[string]int{"a": 1}); !ok || got["a"] != 1 {
		t.Fatalf("Map(map[string]int) = %v, %v", got, ok)
	}
	if String(2.5) != "2.5" || String(nil) != "" {
		t.Fatal("String rendering")
	}
}
