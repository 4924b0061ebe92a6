// Package load observes host and worker resource pressure.
//
// The sampler folds two families of inputs into each observation: host
// figures (1-minute load average, system memory) read through gopsutil,
// and per-worker memory figures taken from heartbeats. Both pressure
// values are normalized to [0, 1] so the scaling policy can compare
// them against plain thresholds. A fixed ring keeps the recent history
// for moving averages and the admin surface.
package load

import (
	"fmt"
	"runtime"
	"time"

	sysload "github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/protocol"
)

// Sources provides the host-level inputs for a sample. Nil fields fall
// back to the system implementations, so tests can override just the
// inputs they care about.
type Sources struct {
	// LoadAvg returns the 1-minute load average.
	LoadAvg func() (float64, error)

	// SystemMemory returns total and used bytes of system memory.
	SystemMemory func() (total, used uint64, err error)

	// NumCPU returns the logical core count used to normalize the load
	// average.
	NumCPU func() int
}

// SystemSources returns Sources backed by gopsutil and the runtime.
func SystemSources() Sources {
	return Sources{
		LoadAvg: func() (float64, error) {
			avg, err := sysload.Avg()
			if err != nil {
				return 0, err
			}
			return avg.Load1, nil
		},
		SystemMemory: func() (uint64, uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, 0, err
			}
			return vm.Total, vm.Used, nil
		},
		NumCPU: runtime.NumCPU,
	}
}

// Sampler produces load samples and keeps their recent history.
type Sampler struct {
	sources Sources
	ring    *Ring
}

// NewSampler creates a sampler with the given history capacity. Nil
// source fields are filled with the system implementations.
func NewSampler(historySize int, sources Sources) *Sampler {
	system := SystemSources()
	if sources.LoadAvg == nil {
		sources.LoadAvg = system.LoadAvg
	}
	if sources.SystemMemory == nil {
		sources.SystemMemory = system.SystemMemory
	}
	if sources.NumCPU == nil {
		sources.NumCPU = system.NumCPU
	}
	return &Sampler{
		sources: sources,
		ring:    NewRing(historySize),
	}
}

// History returns the ring of recorded samples.
func (s *Sampler) History() *Ring {
	return s.ring
}

// Observe takes one sample at the given time and records it in the
// history. workers carries the latest reported memory usage per
// worker; entries that have not reported yet contribute nothing to the
// heap average. The returned error flags degraded host inputs; the
// sample is still recorded and usable, with the failed input read as
// zero.
func (s *Sampler) Observe(now time.Time, workers []protocol.MemoryUsage, workerCount int) (Sample, error) {
	var errs []error

	loadAvg, err := s.sources.LoadAvg()
	if err != nil {
		loadAvg = 0
		errs = append(errs, fmt.Errorf("read load average: %w", err))
	}

	total, used, err := s.sources.SystemMemory()
	if err != nil {
		total, used = 0, 0
		errs = append(errs, fmt.Errorf("read system memory: %w", err))
	}

	cores := s.sources.NumCPU()
	if cores < 1 {
		cores = 1
	}

	sample := Sample{
		Timestamp:      now,
		CPULoad:        cpuLoad(loadAvg, cores, workers),
		MemoryPressure: memoryPressure(total, used, workers),
		WorkerCount:    workerCount,
	}
	s.ring.Append(sample)

	return sample, errors.Join(errs...)
}

// cpuLoad folds the per-core load average and the worker heap picture
// into one compute-pressure figure.
func cpuLoad(loadAvg float64, cores int, workers []protocol.MemoryUsage) float64 {
	normalized := loadAvg / float64(cores)

	var heapSum float64
	var heapCount int
	for _, w := range workers {
		if w.HeapTotalBytes == 0 {
			continue
		}
		heapSum += w.HeapUtilization()
		heapCount++
	}

	var heapAvg float64
	if heapCount > 0 {
		heapAvg = heapSum / float64(heapCount)
	}

	return clamp01(max(normalized, heapAvg))
}

// memoryPressure folds the system used fraction and the workers' RSS
// share of total memory into one memory-pressure figure.
func memoryPressure(total, used uint64, workers []protocol.MemoryUsage) float64 {
	if total == 0 {
		return 0
	}

	sysFrac := float64(used) / float64(total)

	var rssSum uint64
	for _, w := range workers {
		rssSum += w.RSSBytes
	}
	workerFrac := float64(rssSum) / float64(total)

	return clamp01(max(sysFrac, workerFrac))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
