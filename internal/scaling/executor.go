package scaling

import (
	"sync"
	"time"

	"github.com/Iron-Ham/maestro/internal/clock"
	"github.com/Iron-Ham/maestro/internal/logging"
	"github.com/Iron-Ham/maestro/internal/registry"
	"github.com/Iron-Ham/maestro/internal/worker"
)

// Executor defaults.
const (
	defaultDrainGrace  = 5 * time.Second
	defaultHistorySize = 50
)

// SpawnFunc launches one new worker. The executor calls it once per worker
// to add and logs failures without retrying; the next evaluation cycle picks
// up any shortfall.
type SpawnFunc func() error

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorClock sets the clock used for drain grace timers.
func WithExecutorClock(c clock.Clock) ExecutorOption {
	return func(e *Executor) { e.clk = c }
}

// WithExecutorLogger sets the logger for spawn and drain outcomes.
func WithExecutorLogger(l *logging.Logger) ExecutorOption {
	return func(e *Executor) { e.log = l }
}

// WithDrainGrace sets how long a draining worker may keep running after a
// graceful stop before it is force killed.
func WithDrainGrace(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.grace = d }
}

// WithHistorySize sets how many executed actions the history retains.
func WithHistorySize(n int) ExecutorOption {
	return func(e *Executor) { e.history = NewHistory(n) }
}

// Executor applies scaling decisions: spawning workers for scale-up and
// draining the oldest workers for scale-down. The supervisor serializes
// calls to Apply; the executor itself only synchronizes its timer table.
type Executor struct {
	policy   *Policy
	registry *registry.Registry
	spawn    SpawnFunc
	clk      clock.Clock
	log      *logging.Logger
	grace    time.Duration
	history  *History

	mu     sync.Mutex
	timers map[string]clock.Timer
}

// NewExecutor creates an Executor that applies decisions against the given
// registry, creating workers through spawn.
func NewExecutor(policy *Policy, reg *registry.Registry, spawn SpawnFunc, opts ...ExecutorOption) *Executor {
	e := &Executor{
		policy:   policy,
		registry: reg,
		spawn:    spawn,
		clk:      clock.System(),
		log:      logging.NopLogger(),
		grace:    defaultDrainGrace,
		history:  NewHistory(defaultHistorySize),
		timers:   make(map[string]clock.Timer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply executes a non-none decision. Scale-up spawns workers one at a time
// up to the target; scale-down drains the oldest active workers and arms a
// force-kill timer per worker for the drain grace period. The executed
// action is appended to the history and starts the policy cooldown.
//
// Decisions with ActionNone are ignored and return applied == false.
func (e *Executor) Apply(d Decision) (entry HistoryEntry, applied bool) {
	if d.Action == ActionNone {
		return HistoryEntry{}, false
	}

	now := e.clk.Now()
	current := e.registry.ActiveCount()
	entry = HistoryEntry{
		Timestamp: now,
		Action:    d.Action,
		Reason:    d.Reason,
		FromCount: current,
		ToCount:   d.TargetWorkers,
	}

	switch d.Action {
	case ActionScaleUp:
		e.spawnWorkers(d.TargetWorkers - current)
	case ActionScaleDown:
		e.drainWorkers(current - d.TargetWorkers)
	}

	e.history.Append(entry)
	e.policy.MarkAction(now)
	return entry, true
}

// History returns the log of executed actions.
func (e *Executor) History() *History {
	return e.history
}

// WorkerExited cancels any pending force kill for the worker. The supervisor
// calls this from its exit handling so a worker that drains promptly is not
// signalled again.
func (e *Executor) WorkerExited(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[id]; ok {
		t.Stop()
		delete(e.timers, id)
	}
}

// CancelAll stops every pending force-kill timer. Used during shutdown when
// the shutdown coordinator takes over worker termination.
func (e *Executor) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
}

func (e *Executor) spawnWorkers(n int) {
	for i := 0; i < n; i++ {
		if err := e.spawn(); err != nil {
			e.log.Warn("scale-up spawn failed", "error", err)
		}
	}
}

func (e *Executor) drainWorkers(n int) {
	for _, rec := range e.registry.Oldest(n) {
		if err := e.registry.MarkDraining(rec.ID); err != nil {
			continue
		}
		e.log.Info("draining worker", "worker_id", rec.ID, "pid", rec.Handle.PID())
		if err := rec.Handle.Stop(worker.StopGraceful); err != nil {
			e.log.Warn("graceful stop failed", "worker_id", rec.ID, "error", err)
		}
		e.scheduleForceKill(rec.ID)
	}
}

func (e *Executor) scheduleForceKill(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.timers[id]; ok {
		return
	}
	e.timers[id] = e.clk.AfterFunc(e.grace, func() {
		e.forceKill(id)
	})
}

// forceKill fires when the drain grace expires and the worker has not
// exited on its own.
func (e *Executor) forceKill(id string) {
	e.mu.Lock()
	delete(e.timers, id)
	e.mu.Unlock()

	rec, ok := e.registry.Get(id)
	if !ok {
		return
	}
	e.log.Warn("drain grace expired, force killing worker", "worker_id", id, "pid", rec.Handle.PID())
	if err := rec.Handle.Stop(worker.StopForced); err != nil {
		e.log.Error("force kill failed", "worker_id", id, "error", err)
	}
}

// History is a bounded, append-only log of executed scaling actions.
// It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	limit   int
	entries []HistoryEntry
}

// NewHistory creates a History retaining at most limit entries.
// It panics if limit is not positive.
func NewHistory(limit int) *History {
	if limit <= 0 {
		panic("scaling: history limit must be positive")
	}
	return &History{limit: limit}
}

// Append records an executed action, evicting the oldest entry when full.
func (h *History) Append(entry HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Recent returns up to n entries in chronological order, newest last.
// It returns nil when n is not positive.
func (h *History) Recent(n int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n <= 0 {
		return nil
	}
	if n > len(h.entries) {
		n = len(h.entries)
	}
	out := make([]HistoryEntry, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}
