package docsync_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-formsync/pkg/docsync"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	d := docsync.NewDebouncer(200*time.Millisecond, clock)
	calls := 0
	fn := func() { calls++ }

	d.Trigger(fn)
	clock.Advance(150 * time.Millisecond)
	d.Trigger(fn)
	clock.Advance(150 * time.Millisecond)
	if calls != 0 {
		t.Fatalf("fired before the quiet period: %d", calls)
	}
	if !d.Pending() {
		t.Fatalf("expected a pending call")
	}
	clock.Advance(50 * time.Millisecond)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if d.Pending() {
		t.Fatalf("nothing should be pending after firing")
	}

	d.Trigger(fn)
	d.Cancel()
	clock.Advance(time.Second)
	if calls != 1 {
		t.Fatalf("cancelled call ran: %d", calls)
	}

	d.Trigger(fn)
	clock.Advance(time.Second)
	if calls != 2 {
		t.Fatalf("trigger after cancel: calls = %d", calls)
	}

	d.Stop()
	d.Trigger(fn)
	clock.Advance(time.Second)
	if calls != 2 {
		t.Fatalf("trigger after stop ran: %d", calls)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	want := map[docsync.State]string{
		docsync.StateUnbound: "unbound",
		docsync.StateLoading: "loading",
		docsync.StateBound:   "bound",
		docsync.StateSaving:  "saving",
		docsync.StateError:   "error",
	}
	for state, name := range want {
		if state.String() != name {
			t.Fatalf("%d.String() = %q, want %q", int(state), state.String(), name)
		}
	}
}
