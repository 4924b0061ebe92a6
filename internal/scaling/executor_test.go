package scaling

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Iron-Ham/maestro/internal/clock"
	"github.com/Iron-Ham/maestro/internal/registry"
	"github.com/Iron-Ham/maestro/internal/worker"
)

var execTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// startedFake creates a running fake worker and registers it.
func startedFake(t *testing.T, reg *registry.Registry, id string, pid int, startedAt time.Time) *worker.Fake {
	t.Helper()
	f := worker.NewFake(id, pid)
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("Start(%s) = %v", id, err)
	}
	if err := reg.Add(registry.Record{ID: id, Handle: f, StartedAt: startedAt}); err != nil {
		t.Fatalf("Add(%s) = %v", id, err)
	}
	return f
}

// threeWorkers registers w-1 (oldest), w-2 and w-3.
func threeWorkers(t *testing.T, reg *registry.Registry) (w1, w2, w3 *worker.Fake) {
	t.Helper()
	w1 = startedFake(t, reg, "w-1", 101, execTime.Add(-3*time.Minute))
	w2 = startedFake(t, reg, "w-2", 102, execTime.Add(-2*time.Minute))
	w3 = startedFake(t, reg, "w-3", 103, execTime.Add(-time.Minute))
	return w1, w2, w3
}

func TestNewExecutor_Defaults(t *testing.T) {
	e := NewExecutor(NewPolicy(), registry.New(), func() error { return nil })

	if e.grace != 5*time.Second {
		t.Errorf("grace = %v, want 5s", e.grace)
	}
	if e.history == nil || e.history.limit != defaultHistorySize {
		t.Errorf("history limit = %v, want %d", e.history, defaultHistorySize)
	}
	if e.clk == nil {
		t.Error("clk is nil")
	}
	if e.log == nil {
		t.Error("log is nil")
	}
}

func TestExecutor_Apply_None(t *testing.T) {
	policy := NewPolicy()
	spawned := 0
	e := NewExecutor(policy, registry.New(), func() error {
		spawned++
		return nil
	})

	_, applied := e.Apply(Decision{Action: ActionNone, TargetWorkers: 2, Reason: ReasonWithinThresholds})

	if applied {
		t.Error("Apply(none) reported applied")
	}
	if spawned != 0 {
		t.Errorf("spawned = %d, want 0", spawned)
	}
	if e.History().Len() != 0 {
		t.Errorf("history Len = %d, want 0", e.History().Len())
	}
	if got := policy.CooldownRemaining(execTime); got != 0 {
		t.Errorf("CooldownRemaining = %v, want 0 after a none decision", got)
	}
}

func TestExecutor_Apply_ScaleUp(t *testing.T) {
	clk := clock.NewFake(execTime)
	policy := NewPolicy()
	reg := registry.New()
	threeWorkers(t, reg)

	spawned := 0
	e := NewExecutor(policy, reg, func() error {
		spawned++
		return nil
	}, WithExecutorClock(clk))

	entry, applied := e.Apply(Decision{Action: ActionScaleUp, TargetWorkers: 4, Reason: ReasonHighLoad})

	if !applied {
		t.Fatal("Apply(scale_up) not applied")
	}
	if spawned != 1 {
		t.Errorf("spawned = %d, want 1", spawned)
	}
	if entry.FromCount != 3 || entry.ToCount != 4 {
		t.Errorf("entry counts = %d -> %d, want 3 -> 4", entry.FromCount, entry.ToCount)
	}
	if entry.Action != ActionScaleUp || entry.Reason != ReasonHighLoad {
		t.Errorf("entry = %+v, want scale_up/high_load", entry)
	}
	if !entry.Timestamp.Equal(execTime) {
		t.Errorf("entry.Timestamp = %v, want %v", entry.Timestamp, execTime)
	}
	if e.History().Len() != 1 {
		t.Errorf("history Len = %d, want 1", e.History().Len())
	}
	if got := policy.CooldownRemaining(execTime); got != 2*time.Minute {
		t.Errorf("CooldownRemaining = %v, want 2m", got)
	}
}

func TestExecutor_Apply_ScaleUp_SpawnFailure(t *testing.T) {
	reg := registry.New()
	startedFake(t, reg, "w-1", 101, execTime)

	calls := 0
	e := NewExecutor(NewPolicy(), reg, func() error {
		calls++
		if calls == 1 {
			return fmt.Errorf("fork: resource temporarily unavailable")
		}
		return nil
	})

	entry, applied := e.Apply(Decision{Action: ActionScaleUp, TargetWorkers: 3, Reason: ReasonHighLoad})

	if !applied {
		t.Fatal("Apply not applied")
	}
	if calls != 2 {
		t.Errorf("spawn calls = %d, want 2", calls)
	}
	// The failed spawn is logged, not retried; the entry still records the
	// target the decision aimed for.
	if entry.ToCount != 3 {
		t.Errorf("entry.ToCount = %d, want 3", entry.ToCount)
	}
}

func TestExecutor_Apply_ScaleDown(t *testing.T) {
	clk := clock.NewFake(execTime)
	reg := registry.New()
	w1, w2, w3 := threeWorkers(t, reg)

	e := NewExecutor(NewPolicy(), reg, func() error { return nil }, WithExecutorClock(clk))

	entry, applied := e.Apply(Decision{Action: ActionScaleDown, TargetWorkers: 2, Reason: ReasonLowLoad})

	if !applied {
		t.Fatal("Apply(scale_down) not applied")
	}
	if entry.FromCount != 3 || entry.ToCount != 2 {
		t.Errorf("entry counts = %d -> %d, want 3 -> 2", entry.FromCount, entry.ToCount)
	}

	// The oldest worker drains; the others are untouched.
	if !reg.IsDraining("w-1") {
		t.Error("w-1 not marked draining")
	}
	if reg.IsDraining("w-2") || reg.IsDraining("w-3") {
		t.Error("newer workers marked draining")
	}
	if got := w1.StopCalls(); len(got) != 1 || got[0] != worker.StopGraceful {
		t.Errorf("w-1 StopCalls = %v, want [graceful]", got)
	}
	if len(w2.StopCalls()) != 0 || len(w3.StopCalls()) != 0 {
		t.Error("newer workers were stopped")
	}

	// The worker ignores the graceful stop; the grace timer force kills it.
	clk.Advance(5 * time.Second)
	got := w1.StopCalls()
	if len(got) != 2 || got[1] != worker.StopForced {
		t.Errorf("w-1 StopCalls after grace = %v, want [graceful forced]", got)
	}
}

func TestExecutor_Apply_ScaleDown_WorkerExitsWithinGrace(t *testing.T) {
	clk := clock.NewFake(execTime)
	reg := registry.New()
	w1, _, _ := threeWorkers(t, reg)

	e := NewExecutor(NewPolicy(), reg, func() error { return nil }, WithExecutorClock(clk))
	e.Apply(Decision{Action: ActionScaleDown, TargetWorkers: 2, Reason: ReasonLowLoad})

	// Supervisor observes the exit before the grace expires.
	e.WorkerExited("w-1")

	clk.Advance(10 * time.Second)
	if got := w1.StopCalls(); len(got) != 1 || got[0] != worker.StopGraceful {
		t.Errorf("StopCalls = %v, want only the graceful stop", got)
	}
}

func TestExecutor_Apply_ScaleDown_MultipleVictims(t *testing.T) {
	clk := clock.NewFake(execTime)
	reg := registry.New()
	w1, w2, w3 := threeWorkers(t, reg)

	e := NewExecutor(NewPolicy(), reg, func() error { return nil }, WithExecutorClock(clk))
	e.Apply(Decision{Action: ActionScaleDown, TargetWorkers: 1, Reason: ReasonCriticalMemory})

	if !reg.IsDraining("w-1") || !reg.IsDraining("w-2") {
		t.Error("two oldest workers should drain")
	}
	if reg.IsDraining("w-3") {
		t.Error("w-3 marked draining")
	}
	if len(w1.StopCalls()) != 1 || len(w2.StopCalls()) != 1 || len(w3.StopCalls()) != 0 {
		t.Errorf("StopCalls = %d/%d/%d, want 1/1/0",
			len(w1.StopCalls()), len(w2.StopCalls()), len(w3.StopCalls()))
	}
}

func TestExecutor_CancelAll(t *testing.T) {
	clk := clock.NewFake(execTime)
	reg := registry.New()
	w1, w2, _ := threeWorkers(t, reg)

	e := NewExecutor(NewPolicy(), reg, func() error { return nil }, WithExecutorClock(clk))
	e.Apply(Decision{Action: ActionScaleDown, TargetWorkers: 1, Reason: ReasonLowLoad})

	e.CancelAll()

	clk.Advance(time.Minute)
	if len(w1.StopCalls()) != 1 || len(w2.StopCalls()) != 1 {
		t.Error("force kill fired after CancelAll")
	}
}

func TestHistory_Bounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(HistoryEntry{FromCount: i})
	}

	if h.Len() != 3 {
		t.Fatalf("Len = %d, want 3", h.Len())
	}
	got := h.Recent(10)
	if len(got) != 3 {
		t.Fatalf("Recent(10) returned %d entries, want 3", len(got))
	}
	for i, entry := range got {
		if want := i + 2; entry.FromCount != want {
			t.Errorf("Recent[%d].FromCount = %d, want %d", i, entry.FromCount, want)
		}
	}
	if h.Recent(0) != nil {
		t.Error("Recent(0) should be nil")
	}
	if got := h.Recent(2); len(got) != 2 || got[1].FromCount != 4 {
		t.Errorf("Recent(2) = %v, want the two newest entries", got)
	}
}

func TestNewHistory_PanicsOnZeroLimit(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewHistory(0) did not panic")
		}
	}()
	NewHistory(0)
}
