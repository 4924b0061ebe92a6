package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/protocol"
	"github.com/Iron-Ham/maestro/internal/worker"
)

// Record is the registry's entry for one live worker.
type Record struct {
	// ID is the worker identifier.
	ID string

	// Handle is the process handle controlling the worker.
	Handle worker.Handle

	// StartedAt is when the worker process was launched.
	StartedAt time.Time

	// Generation counts how many times this worker slot has been
	// respawned. The first spawn is generation 0.
	Generation int

	// Draining is true once the worker has been deliberately asked to
	// exit. Exits of draining workers bypass the restart path.
	Draining bool
}

// Health is the latest liveness information for one worker, updated
// from its ready and heartbeat messages.
type Health struct {
	// WorkerID is the worker this health entry belongs to.
	WorkerID string

	// PID is the process ID the worker reported, or the handle's PID
	// until the first report arrives.
	PID int

	// Memory is the memory usage from the latest heartbeat.
	Memory protocol.MemoryUsage

	// UptimeSeconds is the worker's self-reported uptime.
	UptimeSeconds float64

	// LastHeartbeatAt is when the supervisor last heard from the
	// worker. The zero value means the worker has been silent since
	// launch.
	LastHeartbeatAt time.Time

	// Ready is true once the worker has sent its first message.
	Ready bool
}

// Registry is the locked table of live workers.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Record // worker ID -> record
	health  map[string]Health // worker ID -> latest liveness
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		workers: make(map[string]Record),
		health:  make(map[string]Health),
	}
}

// Add registers a worker. Returns an error wrapping ErrInvalidInput if
// the record has no ID, or an already-exists error if the ID is taken.
func (r *Registry) Add(rec Record) error {
	if rec.ID == "" {
		return errors.NewValidationError("worker record requires an ID")
	}
	if rec.Handle == nil {
		return errors.NewValidationError("worker record requires a handle")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[rec.ID]; ok {
		return errors.NewAlreadyExistsError("worker", rec.ID)
	}

	r.workers[rec.ID] = rec
	r.health[rec.ID] = Health{
		WorkerID: rec.ID,
		PID:      rec.Handle.PID(),
	}
	return nil
}

// Remove deletes a worker and its health entry, returning the removed
// record. Returns ErrWorkerNotFound if the ID is unknown.
func (r *Registry) Remove(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.workers[id]
	if !ok {
		return Record{}, errors.NewNotFoundError("worker", id)
	}

	delete(r.workers, id)
	delete(r.health, id)
	return rec, nil
}

// Get returns the record for the given worker ID.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.workers[id]
	return rec, ok
}

// Count returns the number of registered workers, draining included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// ActiveCount returns the number of workers not marked draining.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.workers {
		if !rec.Draining {
			n++
		}
	}
	return n
}

// List returns all records sorted by start time, oldest first. Ties
// break on worker ID for deterministic output.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedLocked()
}

// Oldest returns up to n of the oldest workers not already draining.
// This is the selection order for scale-down drains.
func (r *Registry) Oldest(n int) []Record {
	if n <= 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Record
	for _, rec := range r.sortedLocked() {
		if rec.Draining {
			continue
		}
		out = append(out, rec)
		if len(out) == n {
			break
		}
	}
	return out
}

// sortedLocked returns all records ordered by (StartedAt, ID).
// Callers must hold at least the read lock.
func (r *Registry) sortedLocked() []Record {
	out := make([]Record, 0, len(r.workers))
	for _, rec := range r.workers {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// MarkDraining flags a worker as deliberately exiting. Marking an
// already draining worker is a no-op. Returns ErrWorkerNotFound if the
// ID is unknown.
func (r *Registry) MarkDraining(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.workers[id]
	if !ok {
		return errors.NewNotFoundError("worker", id)
	}

	rec.Draining = true
	r.workers[id] = rec
	return nil
}

// IsDraining reports whether the worker is marked draining. Unknown
// IDs report false.
func (r *Registry) IsDraining(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.workers[id]
	return ok && rec.Draining
}

// RecordReady notes the worker's first sign of life. It returns false
// if the worker is unknown.
func (r *Registry) RecordReady(id string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.health[id]
	if !ok {
		return false
	}

	h.Ready = true
	h.LastHeartbeatAt = now
	r.health[id] = h
	return true
}

// RecordHeartbeat updates a worker's health from a heartbeat message.
// Heartbeats for unknown workers are dropped; the return value reports
// whether the update was applied.
func (r *Registry) RecordHeartbeat(id string, hb protocol.Heartbeat, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.health[id]
	if !ok {
		return false
	}

	if hb.PID != 0 {
		h.PID = hb.PID
	}
	h.Memory = hb.Memory
	h.UptimeSeconds = hb.UptimeSeconds
	h.LastHeartbeatAt = now
	h.Ready = true
	r.health[id] = h
	return true
}

// HealthOf returns the latest health entry for the given worker.
func (r *Registry) HealthOf(id string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.health[id]
	return h, ok
}

// HealthSnapshot returns health entries for all workers, sorted by
// worker ID.
func (r *Registry) HealthSnapshot() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Health, 0, len(r.health))
	for _, h := range r.health {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WorkerID < out[j].WorkerID
	})
	return out
}

// StaleWorkers returns workers whose last sign of life is older than
// threshold at the given time. A worker that has never reported is
// measured from its start time. Draining workers are skipped; their
// exit is already being forced by the drain grace timer.
func (r *Registry) StaleWorkers(now time.Time, threshold time.Duration) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []Record
	for _, rec := range r.sortedLocked() {
		if rec.Draining {
			continue
		}
		last := rec.StartedAt
		if h, ok := r.health[rec.ID]; ok && !h.LastHeartbeatAt.IsZero() {
			last = h.LastHeartbeatAt
		}
		if now.Sub(last) > threshold {
			stale = append(stale, rec)
		}
	}
	return stale
}
