// Package testsupport loads schema fixtures and manages golden files for
// tests across the module.
package testsupport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/schema"
	"github.com/goliatone/go-formsync/pkg/schema/openapi"
)

// EnvUpdateGoldens enables golden rewrites when set to any value.
const EnvUpdateGoldens = "UPDATE_GOLDENS"

// LoadDocument reads and validates an OpenAPI fixture.
func LoadDocument(t *testing.T, path string) *openapi3.T {
	t.Helper()

	doc, err := LoadDocumentFromPath(path)
	if err != nil {
		t.Fatalf("load document: %v", err)
	}
	return doc
}

// LoadDocumentFromPath returns a document without requiring testing.T, for
// setup code running outside a test.
func LoadDocumentFromPath(path string) (*openapi3.T, error) {
	if path == "" {
		return nil, errors.New("testsupport: document path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testsupport: read document: %w", err)
	}
	doc, err := openapi.LoadDocument(context.Background(), data)
	if err != nil {
		return nil, fmt.Errorf("testsupport: load document: %w", err)
	}
	return doc, nil
}

// MustRequestSchema converts the request body of operationID in the fixture
// at path.
func MustRequestSchema(t *testing.T, path, operationID string) *schema.Node {
	t.Helper()

	node, err := openapi.RequestSchema(LoadDocument(t, path), operationID)
	if err != nil {
		t.Fatalf("request schema %s: %v", operationID, err)
	}
	return node
}

// MustParseSchema converts a standalone JSON or YAML schema fixture.
func MustParseSchema(t *testing.T, path string) *schema.Node {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	node, err := openapi.ParseSchema(data)
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	return node
}

// WriteGolden writes value as indented JSON when UPDATE_GOLDENS is set.
// Returns true if the golden was written.
func WriteGolden(t *testing.T, path string, value any) bool {
	t.Helper()

	if os.Getenv(EnvUpdateGoldens) == "" {
		return false
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// MustReadGolden reads a golden file and returns its raw bytes.
func MustReadGolden(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read golden: %v", err)
	}
	return data
}

// CompareGoldenJSON round-trips value through JSON and diffs it against the
// golden at path, so map ordering and number types never cause noise.
func CompareGoldenJSON(t *testing.T, path string, value any) string {
	t.Helper()

	if WriteGolden(t, path, value) {
		return ""
	}
	var want any
	if err := json.Unmarshal(MustReadGolden(t, path), &want); err != nil {
		t.Fatalf("decode golden %s: %v", path, err)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal value: %v", err)
	}
	var got any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	return CompareGolden(want, got)
}

// CompareGolden returns a diff string if the values differ.
func CompareGolden(want, got any) string {
	return cmp.Diff(want, got)
}

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}
