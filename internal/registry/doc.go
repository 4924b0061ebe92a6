// Package registry tracks the live worker set for the supervisor.
//
// The registry is the only shared mutable state in the supervisor: it
// maps worker IDs to their process handles and liveness information.
// Every mutation goes through the registry's lock, so concurrent
// observers (the admin surface, the health monitor, the load sampler)
// always see a consistent worker set.
//
// # Main Types
//
//   - [Registry]: the locked worker table
//   - [Record]: one worker's identity, handle, and lifecycle marks
//   - [Health]: one worker's latest heartbeat-derived liveness data
//
// # Draining Marks
//
// A worker being deliberately retired (scale-down or shutdown) is
// marked draining before it is signalled. The mark is how the exit
// handler later tells an intentional exit from a crash: exits of
// draining workers are expected, everything else goes through the
// restart path.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Methods return copies, so
// holding a Record or Health after the call does not observe later
// mutations.
package registry
