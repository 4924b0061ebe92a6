// Package event provides a pub-sub event bus for decoupled inter-component
// communication in Maestro.
//
// The supervisor publishes lifecycle events as it spawns, monitors, restarts
// and scales workers. Consumers such as the log aggregator and the admin
// endpoint subscribe without the supervisor knowing who is listening.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// Worker Lifecycle:
//   - [WorkerSpawnedEvent]: Emitted when a worker process starts
//   - [WorkerReadyEvent]: Emitted when a worker reports ready
//   - [WorkerExitedEvent]: Emitted when a worker process terminates
//
// Health:
//   - [WorkerUnresponsiveEvent]: Emitted when a worker misses heartbeats
//   - [WorkerOverMemoryEvent]: Emitted when a worker crosses the soft memory ceiling
//
// Restarts:
//   - [RestartScheduledEvent]: Emitted when a crashed worker's respawn is scheduled
//   - [RestartStormEvent]: Emitted when crashes reach the restart budget
//
// Scaling and Load:
//   - [ScalingDecisionEvent]: Emitted when the policy recommends an action
//   - [ScalingExecutedEvent]: Emitted after the executor applies a decision
//   - [LoadSampleEvent]: Emitted for every load observation
//
// Supervisor:
//   - [SupervisorStateChangedEvent]: Emitted on lifecycle state transitions
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("worker.exited", func(e event.Event) {
//	    exited := e.(event.WorkerExitedEvent)
//	    log.Printf("worker %s exited with code %d", exited.WorkerID, exited.Code)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewWorkerSpawnedEvent("w-1", 4242, 0))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("restart.storm", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - worker.spawned, worker.ready, worker.exited, worker.unresponsive, worker.over_memory
//   - restart.scheduled, restart.storm
//   - scaling.decision, scaling.executed
//   - load.sampled
//   - supervisor.state_changed
package event
