package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "worker.spawned", "restart.storm")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Worker Lifecycle Events
// -----------------------------------------------------------------------------

// WorkerSpawnedEvent is emitted when a worker process starts.
type WorkerSpawnedEvent struct {
	baseEvent
	WorkerID   string // Unique identifier for the worker
	PID        int    // OS process ID
	Generation int    // 0 for fresh workers, incremented per crash respawn
}

// NewWorkerSpawnedEvent creates a WorkerSpawnedEvent.
func NewWorkerSpawnedEvent(workerID string, pid, generation int) WorkerSpawnedEvent {
	return WorkerSpawnedEvent{
		baseEvent:  newBaseEvent("worker.spawned"),
		WorkerID:   workerID,
		PID:        pid,
		Generation: generation,
	}
}

// WorkerReadyEvent is emitted when a worker sends its ready message.
type WorkerReadyEvent struct {
	baseEvent
	WorkerID string // Worker that reported ready
	PID      int    // OS process ID
}

// NewWorkerReadyEvent creates a WorkerReadyEvent.
func NewWorkerReadyEvent(workerID string, pid int) WorkerReadyEvent {
	return WorkerReadyEvent{
		baseEvent: newBaseEvent("worker.ready"),
		WorkerID:  workerID,
		PID:       pid,
	}
}

// WorkerExitedEvent is emitted when a worker process terminates.
type WorkerExitedEvent struct {
	baseEvent
	WorkerID    string // Worker that exited
	PID         int    // OS process ID
	Code        int    // Exit code, -1 when killed by a signal
	Signaled    bool   // Whether a signal terminated the process
	Intentional bool   // Whether the supervisor asked the worker to stop
}

// NewWorkerExitedEvent creates a WorkerExitedEvent.
func NewWorkerExitedEvent(workerID string, pid, code int, signaled, intentional bool) WorkerExitedEvent {
	return WorkerExitedEvent{
		baseEvent:   newBaseEvent("worker.exited"),
		WorkerID:    workerID,
		PID:         pid,
		Code:        code,
		Signaled:    signaled,
		Intentional: intentional,
	}
}

// -----------------------------------------------------------------------------
// Health Events
// -----------------------------------------------------------------------------

// WorkerUnresponsiveEvent is emitted when a worker misses heartbeats past
// the staleness threshold and is about to be force killed.
type WorkerUnresponsiveEvent struct {
	baseEvent
	WorkerID       string        // Worker that went silent
	PID            int           // OS process ID
	SinceHeartbeat time.Duration // Time since the last heartbeat (or spawn)
}

// NewWorkerUnresponsiveEvent creates a WorkerUnresponsiveEvent.
func NewWorkerUnresponsiveEvent(workerID string, pid int, sinceHeartbeat time.Duration) WorkerUnresponsiveEvent {
	return WorkerUnresponsiveEvent{
		baseEvent:      newBaseEvent("worker.unresponsive"),
		WorkerID:       workerID,
		PID:            pid,
		SinceHeartbeat: sinceHeartbeat,
	}
}

// WorkerOverMemoryEvent is emitted when a worker's resident set crosses the
// soft memory ceiling. Informational; the worker keeps running.
type WorkerOverMemoryEvent struct {
	baseEvent
	WorkerID   string // Worker above the ceiling
	PID        int    // OS process ID
	RSSBytes   uint64 // Reported resident set size
	LimitBytes uint64 // Configured soft ceiling
}

// NewWorkerOverMemoryEvent creates a WorkerOverMemoryEvent.
func NewWorkerOverMemoryEvent(workerID string, pid int, rssBytes, limitBytes uint64) WorkerOverMemoryEvent {
	return WorkerOverMemoryEvent{
		baseEvent:  newBaseEvent("worker.over_memory"),
		WorkerID:   workerID,
		PID:        pid,
		RSSBytes:   rssBytes,
		LimitBytes: limitBytes,
	}
}

// -----------------------------------------------------------------------------
// Restart Events
// -----------------------------------------------------------------------------

// RestartScheduledEvent is emitted when a crashed worker's replacement has
// been scheduled.
type RestartScheduledEvent struct {
	baseEvent
	WorkerID    string        // Worker being replaced
	After       time.Duration // Delay before the respawn
	WindowCount int           // Crashes inside the rolling restart window
}

// NewRestartScheduledEvent creates a RestartScheduledEvent.
func NewRestartScheduledEvent(workerID string, after time.Duration, windowCount int) RestartScheduledEvent {
	return RestartScheduledEvent{
		baseEvent:   newBaseEvent("restart.scheduled"),
		WorkerID:    workerID,
		After:       after,
		WindowCount: windowCount,
	}
}

// RestartStormEvent is emitted when crashes reach the restart budget and
// the supervisor begins its fatal shutdown.
type RestartStormEvent struct {
	baseEvent
	WorkerID    string        // Worker whose crash tripped the budget
	WindowCount int           // Crashes inside the restart window
	Window      time.Duration // Width of the restart window
}

// NewRestartStormEvent creates a RestartStormEvent.
func NewRestartStormEvent(workerID string, windowCount int, window time.Duration) RestartStormEvent {
	return RestartStormEvent{
		baseEvent:   newBaseEvent("restart.storm"),
		WorkerID:    workerID,
		WindowCount: windowCount,
		Window:      window,
	}
}

// -----------------------------------------------------------------------------
// Scaling Events
// -----------------------------------------------------------------------------

// ScalingDecisionEvent is emitted when the policy recommends a scaling
// action. Only non-none decisions are published.
type ScalingDecisionEvent struct {
	baseEvent
	Action         string // "scale_up" or "scale_down"
	Reason         string // Stable reason string from the policy
	CurrentWorkers int    // Worker count at evaluation time
	TargetWorkers  int    // Worker count the action aims for
}

// NewScalingDecisionEvent creates a ScalingDecisionEvent.
func NewScalingDecisionEvent(action, reason string, currentWorkers, targetWorkers int) ScalingDecisionEvent {
	return ScalingDecisionEvent{
		baseEvent:      newBaseEvent("scaling.decision"),
		Action:         action,
		Reason:         reason,
		CurrentWorkers: currentWorkers,
		TargetWorkers:  targetWorkers,
	}
}

// ScalingExecutedEvent is emitted after the executor applies a decision.
type ScalingExecutedEvent struct {
	baseEvent
	Action    string // Action that was executed
	Reason    string // Reason carried over from the decision
	FromCount int    // Worker count before the action
	ToCount   int    // Worker count the action aimed for
}

// NewScalingExecutedEvent creates a ScalingExecutedEvent.
func NewScalingExecutedEvent(action, reason string, fromCount, toCount int) ScalingExecutedEvent {
	return ScalingExecutedEvent{
		baseEvent: newBaseEvent("scaling.executed"),
		Action:    action,
		Reason:    reason,
		FromCount: fromCount,
		ToCount:   toCount,
	}
}

// -----------------------------------------------------------------------------
// Load Events
// -----------------------------------------------------------------------------

// LoadSampleEvent is emitted each time the sampler observes host and worker
// load.
type LoadSampleEvent struct {
	baseEvent
	CPULoad        float64 // Normalized CPU load, [0, 1]
	MemoryPressure float64 // Memory pressure, [0, 1]
	WorkerCount    int     // Workers alive at sampling time
}

// NewLoadSampleEvent creates a LoadSampleEvent.
func NewLoadSampleEvent(cpuLoad, memoryPressure float64, workerCount int) LoadSampleEvent {
	return LoadSampleEvent{
		baseEvent:      newBaseEvent("load.sampled"),
		CPULoad:        cpuLoad,
		MemoryPressure: memoryPressure,
		WorkerCount:    workerCount,
	}
}

// -----------------------------------------------------------------------------
// Supervisor Events
// -----------------------------------------------------------------------------

// State represents the supervisor lifecycle state.
// Mirrors supervisor.State for decoupling.
type State string

const (
	StateRunning      State = "running"
	StateDraining     State = "draining"
	StateForceKilling State = "force_killing"
	StateExited       State = "exited"
)

// SupervisorStateChangedEvent is emitted when the supervisor transitions
// between lifecycle states.
type SupervisorStateChangedEvent struct {
	baseEvent
	SupervisorID  string // Run ID of the supervisor
	PreviousState State  // State before the transition
	CurrentState  State  // State after the transition
}

// NewSupervisorStateChangedEvent creates a SupervisorStateChangedEvent.
func NewSupervisorStateChangedEvent(supervisorID string, previous, current State) SupervisorStateChangedEvent {
	return SupervisorStateChangedEvent{
		baseEvent:     newBaseEvent("supervisor.state_changed"),
		SupervisorID:  supervisorID,
		PreviousState: previous,
		CurrentState:  current,
	}
}
