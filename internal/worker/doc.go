// Package worker provides process handles for supervised worker processes.
//
// A handle owns the lifecycle of exactly one worker: it launches the
// process, decodes the messages the worker writes to its inherited IPC
// pipe, delivers termination signals, and reports the final exit status.
// Handles are single use. Once a worker exits its handle is spent, and
// replacement workers get a fresh handle from a [Factory].
//
// # Main Types
//
//   - [Handle]: lifecycle interface (Start, Stop, Running, PID, Messages, Done)
//   - [Config]: spawn settings for one worker (command, args, env, heartbeat interval)
//   - [ExecHandle]: production implementation backed by os/exec
//   - [Fake]: in-memory implementation for tests
//   - [FakePool]: Factory that hands out Fake handles with sequential PIDs
//
// # Process Contract
//
// ExecHandle starts the worker as a direct child process with an extra
// inherited file descriptor (fd 3) carrying worker-to-supervisor
// messages as newline-delimited JSON. The worker discovers the pipe and
// its identity through MAESTRO_* environment variables defined in the
// protocol package. Control flows the other way as signals: SIGTERM
// requests a graceful drain and SIGKILL forces termination.
//
// # Thread Safety
//
// Handles are safe for concurrent use. Messages and Done are each meant
// for a single consumer, which in practice is the per-worker forwarder
// goroutine the supervisor runs.
package worker
