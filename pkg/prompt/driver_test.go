package prompt

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSelectPrompts(t *testing.T) {
	t.Parallel()

	options := []string{"red", "green", "blue"}

	single := selectPrompt(SelectConfig{Message: "Color", Options: options, DefaultIndex: 2, PageSize: 5})
	if single.Default != "blue" || single.PageSize != 5 {
		t.Fatalf("select prompt: default %v page size %d", single.Default, single.PageSize)
	}
	if outOfRange := selectPrompt(SelectConfig{Options: options, DefaultIndex: 7}); outOfRange.Default != nil {
		t.Fatalf("out of range default kept: %v", outOfRange.Default)
	}

	multi := multiSelectPrompt(SelectConfig{Options: options, Defaults: []int{0, 9, 2}})
	if diff := cmp.Diff([]string{"red", "blue"}, multi.Default); diff != "" {
		t.Fatalf("multi-select defaults mismatch (-want +got):\n%s", diff)
	}
	if empty := multiSelectPrompt(SelectConfig{Options: options}); empty.Default != nil {
		t.Fatalf("multi-select without defaults: %v", empty.Default)
	}
}

func TestAnswerIndices(t *testing.T) {
	t.Parallel()

	options := []string{"a", "b", "c"}
	if got := indexOf(options, "c"); got != 2 {
		t.Fatalf("indexOf(c) = %d", got)
	}
	if got := indexOf(options, "z"); got != -1 {
		t.Fatalf("indexOf(z) = %d", got)
	}
	if diff := cmp.Diff([]int{0, 2}, indicesOf(options, []string{"c", "a", "z"})); diff != "" {
		t.Fatalf("indicesOf mismatch (-want +got):\n%s", diff)
	}
}

func TestSurveyDriver_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	driver := NewSurveyDriver(&out)
	if _, err := driver.Input(ctx, InputConfig{Message: "Name"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Input = %v, want context.Canceled", err)
	}
	if _, err := driver.MultiSelect(ctx, SelectConfig{Options: []string{"a"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("MultiSelect = %v, want context.Canceled", err)
	}
	if err := driver.Info(ctx, "hello"); !errors.Is(err, context.Canceled) || out.Len() != 0 {
		t.Fatalf("Info = %v, wrote %q", err, out.String())
	}

	if err := driver.Info(context.Background(), "hello"); err != nil || out.String() != "hello\n" {
		t.Fatalf("Info = %v, wrote %q", err, out.String())
	}
}
