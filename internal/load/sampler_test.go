package load

import (
	"testing"
	"time"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/protocol"
)

func fixedSources(loadAvg float64, total, used uint64, cores int) Sources {
	return Sources{
		LoadAvg:      func() (float64, error) { return loadAvg, nil },
		SystemMemory: func() (uint64, uint64, error) { return total, used, nil },
		NumCPU:       func() int { return cores },
	}
}

func heap(used, totalBytes uint64) protocol.MemoryUsage {
	return protocol.MemoryUsage{HeapUsedBytes: used, HeapTotalBytes: totalBytes}
}

func TestNewSampler_FillsNilSources(t *testing.T) {
	s := NewSampler(5, Sources{})

	if s.sources.LoadAvg == nil || s.sources.SystemMemory == nil || s.sources.NumCPU == nil {
		t.Error("NewSampler() should fill nil sources with system implementations")
	}
}

func TestSampler_Observe_CPUFromLoadAverage(t *testing.T) {
	s := NewSampler(5, fixedSources(2.0, 1000, 300, 4))

	sample, err := s.Observe(testStart, nil, 0)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if sample.CPULoad != 0.5 {
		t.Errorf("CPULoad = %v, want 0.5 (loadavg 2.0 over 4 cores)", sample.CPULoad)
	}
	if sample.MemoryPressure != 0.3 {
		t.Errorf("MemoryPressure = %v, want 0.3", sample.MemoryPressure)
	}
}

func TestSampler_Observe_CPUFromWorkerHeap(t *testing.T) {
	s := NewSampler(5, fixedSources(0.4, 1000, 0, 4))

	workers := []protocol.MemoryUsage{
		heap(50, 100),
		heap(75, 100),
	}
	sample, err := s.Observe(testStart, workers, 2)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	// Heap average 0.625 dominates loadavg 0.4/4.
	if sample.CPULoad != 0.625 {
		t.Errorf("CPULoad = %v, want heap average 0.625", sample.CPULoad)
	}
}

func TestSampler_Observe_SilentWorkersExcludedFromHeapAverage(t *testing.T) {
	s := NewSampler(5, fixedSources(0, 1000, 0, 1))

	workers := []protocol.MemoryUsage{
		{}, // has not reported yet
		heap(50, 100),
	}
	sample, err := s.Observe(testStart, workers, 2)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if sample.CPULoad != 0.5 {
		t.Errorf("CPULoad = %v, want 0.5 averaged over reporting workers only", sample.CPULoad)
	}
}

func TestSampler_Observe_NoWorkersNoHeapTerm(t *testing.T) {
	s := NewSampler(5, fixedSources(0, 1000, 0, 1))

	sample, err := s.Observe(testStart, nil, 0)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if sample.CPULoad != 0 {
		t.Errorf("CPULoad = %v, want 0 with idle host and no workers", sample.CPULoad)
	}
}

func TestSampler_Observe_MemoryFromWorkerRSS(t *testing.T) {
	s := NewSampler(5, fixedSources(0, 1000, 100, 1))

	workers := []protocol.MemoryUsage{
		{RSSBytes: 300},
		{RSSBytes: 400},
	}
	sample, err := s.Observe(testStart, workers, 2)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	// Worker RSS sum 700/1000 dominates the system fraction 0.1.
	if sample.MemoryPressure != 0.7 {
		t.Errorf("MemoryPressure = %v, want 0.7", sample.MemoryPressure)
	}
}

func TestSampler_Observe_Clamped(t *testing.T) {
	s := NewSampler(5, fixedSources(50, 100, 150, 2))

	sample, err := s.Observe(testStart, nil, 0)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if sample.CPULoad != 1 {
		t.Errorf("CPULoad = %v, want clamped to 1", sample.CPULoad)
	}
	if sample.MemoryPressure != 1 {
		t.Errorf("MemoryPressure = %v, want clamped to 1", sample.MemoryPressure)
	}
}

func TestSampler_Observe_ZeroTotalMemory(t *testing.T) {
	s := NewSampler(5, fixedSources(0, 0, 0, 1))

	sample, err := s.Observe(testStart, []protocol.MemoryUsage{{RSSBytes: 100}}, 1)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if sample.MemoryPressure != 0 {
		t.Errorf("MemoryPressure = %v, want 0 when total memory is unknown", sample.MemoryPressure)
	}
}

func TestSampler_Observe_ZeroCores(t *testing.T) {
	sources := fixedSources(0.5, 1000, 0, 0)
	s := NewSampler(5, sources)

	sample, err := s.Observe(testStart, nil, 0)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if sample.CPULoad != 0.5 {
		t.Errorf("CPULoad = %v, want 0.5 with core count floored to 1", sample.CPULoad)
	}
}

func TestSampler_Observe_SourceErrors(t *testing.T) {
	loadErr := errors.New("loadavg unavailable")
	memErr := errors.New("meminfo unavailable")
	sources := Sources{
		LoadAvg:      func() (float64, error) { return 0, loadErr },
		SystemMemory: func() (uint64, uint64, error) { return 0, 0, memErr },
		NumCPU:       func() int { return 4 },
	}
	s := NewSampler(5, sources)

	workers := []protocol.MemoryUsage{heap(50, 100)}
	sample, err := s.Observe(testStart, workers, 1)
	if err == nil {
		t.Fatal("Observe() should report degraded host inputs")
	}
	if !errors.Is(err, loadErr) || !errors.Is(err, memErr) {
		t.Errorf("Observe() error = %v, want both source failures joined", err)
	}

	// The sample is still produced from what remains.
	if sample.CPULoad != 0.5 {
		t.Errorf("CPULoad = %v, want 0.5 from worker heap despite loadavg failure", sample.CPULoad)
	}
	if sample.MemoryPressure != 0 {
		t.Errorf("MemoryPressure = %v, want 0 when system memory is unknown", sample.MemoryPressure)
	}
	if got := s.History().Len(); got != 1 {
		t.Errorf("History().Len() = %d, want degraded sample recorded", got)
	}
}

func TestSampler_Observe_RecordsHistory(t *testing.T) {
	s := NewSampler(5, fixedSources(0, 1000, 100, 1))

	for i := 0; i < 3; i++ {
		now := testStart.Add(time.Duration(i) * 30 * time.Second)
		if _, err := s.Observe(now, nil, i); err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
	}

	all := s.History().All()
	if len(all) != 3 {
		t.Fatalf("History().All() length = %d, want 3", len(all))
	}
	for i, sample := range all {
		if sample.WorkerCount != i {
			t.Errorf("sample[%d].WorkerCount = %d, want %d", i, sample.WorkerCount, i)
		}
		wantTime := testStart.Add(time.Duration(i) * 30 * time.Second)
		if !sample.Timestamp.Equal(wantTime) {
			t.Errorf("sample[%d].Timestamp = %v, want %v", i, sample.Timestamp, wantTime)
		}
	}
}
