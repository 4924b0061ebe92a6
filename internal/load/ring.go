package load

import (
	"sync"
	"time"
)

// Sample is one periodic observation of host and worker pressure.
type Sample struct {
	// Timestamp is when the observation was taken.
	Timestamp time.Time `json:"timestamp"`

	// CPULoad is the normalized compute pressure in [0, 1]: the larger
	// of the per-core load average and the average worker heap
	// utilization.
	CPULoad float64 `json:"cpu_load"`

	// MemoryPressure is the normalized memory pressure in [0, 1]: the
	// larger of the system used fraction and the worker RSS share of
	// total memory.
	MemoryPressure float64 `json:"memory_pressure"`

	// WorkerCount is how many workers were registered at observation
	// time.
	WorkerCount int `json:"worker_count"`
}

// Ring is a fixed-capacity buffer of the most recent samples. Once the
// capacity is reached every append evicts the oldest sample.
type Ring struct {
	mu      sync.RWMutex
	samples []Sample
	next    int
	full    bool
}

// NewRing creates a ring holding up to capacity samples.
// It panics if capacity is not positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("load: ring capacity must be positive")
	}
	return &Ring{samples: make([]Sample, capacity)}
}

// Append records a sample, evicting the oldest if the ring is full.
func (r *Ring) Append(s Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[r.next] = s
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

func (r *Ring) lenLocked() int {
	if r.full {
		return len(r.samples)
	}
	return r.next
}

// Cap returns the ring's capacity.
func (r *Ring) Cap() int {
	return len(r.samples)
}

// All returns every held sample in chronological order, oldest first.
func (r *Ring) All() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allLocked()
}

func (r *Ring) allLocked() []Sample {
	if !r.full {
		out := make([]Sample, r.next)
		copy(out, r.samples[:r.next])
		return out
	}
	out := make([]Sample, 0, len(r.samples))
	out = append(out, r.samples[r.next:]...)
	out = append(out, r.samples[:r.next]...)
	return out
}

// Last returns up to n of the newest samples in chronological order.
func (r *Ring) Last(n int) []Sample {
	if n <= 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.allLocked()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
