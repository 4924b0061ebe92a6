package load

import (
	"testing"
	"time"
)

var testStart = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// numbered creates a sample tagged through WorkerCount so order checks
// can identify it.
func numbered(i int) Sample {
	return Sample{
		Timestamp:   testStart.Add(time.Duration(i) * time.Second),
		WorkerCount: i,
	}
}

func TestNewRing_PanicsOnZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewRing(0) should panic")
		}
	}()
	NewRing(0)
}

func TestRing_AppendAndAll(t *testing.T) {
	r := NewRing(5)

	if got := r.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0 for an empty ring", got)
	}
	if got := r.Cap(); got != 5 {
		t.Errorf("Cap() = %d, want 5", got)
	}

	for i := 1; i <= 3; i++ {
		r.Append(numbered(i))
	}

	if got := r.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
	assertOrder(t, r.All(), []int{1, 2, 3})
}

func TestRing_Eviction(t *testing.T) {
	r := NewRing(3)

	for i := 1; i <= 5; i++ {
		r.Append(numbered(i))
	}

	if got := r.Len(); got != 3 {
		t.Errorf("Len() = %d, want capacity 3 after overflow", got)
	}
	assertOrder(t, r.All(), []int{3, 4, 5})
}

func TestRing_Last(t *testing.T) {
	r := NewRing(5)
	for i := 1; i <= 4; i++ {
		r.Append(numbered(i))
	}

	assertOrder(t, r.Last(2), []int{3, 4})
	assertOrder(t, r.Last(10), []int{1, 2, 3, 4})

	if got := r.Last(0); got != nil {
		t.Errorf("Last(0) = %v, want nil", got)
	}
	if got := r.Last(-1); got != nil {
		t.Errorf("Last(-1) = %v, want nil", got)
	}
}

func TestRing_LastAcrossWrap(t *testing.T) {
	r := NewRing(3)
	for i := 1; i <= 7; i++ {
		r.Append(numbered(i))
	}

	assertOrder(t, r.Last(2), []int{6, 7})
	assertOrder(t, r.All(), []int{5, 6, 7})
}

func assertOrder(t *testing.T, got []Sample, want []int) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i, s := range got {
		if s.WorkerCount != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, s.WorkerCount, want[i])
		}
	}
}
