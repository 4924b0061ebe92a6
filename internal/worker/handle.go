package worker

import (
	"context"
	"time"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/protocol"
)

// StopMode selects how a worker is asked to terminate.
type StopMode int

const (
	// StopGraceful sends SIGTERM and leaves the worker to finish its
	// current work and exit on its own.
	StopGraceful StopMode = iota

	// StopForced sends SIGKILL and terminates the worker immediately.
	StopForced
)

// String returns a human-readable string for the stop mode.
func (m StopMode) String() string {
	switch m {
	case StopGraceful:
		return "graceful"
	case StopForced:
		return "forced"
	default:
		return "unknown"
	}
}

// ExitStatus describes how a worker process ended.
type ExitStatus struct {
	// Code is the process exit code. It is -1 when the process was
	// terminated by a signal or could not be waited on.
	Code int

	// Signaled is true when the process was killed by a signal rather
	// than exiting on its own.
	Signaled bool

	// Err carries a failure that prevented a normal exit status from
	// being collected, such as a wait error. It is nil for ordinary
	// exits, including non-zero ones.
	Err error
}

// Clean reports whether the worker exited voluntarily with code zero.
func (s ExitStatus) Clean() bool {
	return s.Code == 0 && !s.Signaled && s.Err == nil
}

// Config holds the spawn settings for a single worker process.
type Config struct {
	// ID is the worker identifier assigned by the supervisor. It is
	// exported to the worker via the MAESTRO_WORKER_ID environment
	// variable.
	ID string

	// Command is the executable to run.
	Command string

	// Args are the arguments passed to the command.
	Args []string

	// WorkDir is the working directory for the worker. If empty, the
	// worker inherits the supervisor's working directory.
	WorkDir string

	// Env holds extra KEY=VALUE pairs appended to the supervisor's
	// environment. The MAESTRO_ variables are appended after these and
	// take precedence on conflict.
	Env []string

	// HeartbeatInterval is the cadence the worker is asked to report
	// heartbeats at, exported via MAESTRO_HEARTBEAT_INTERVAL.
	HeartbeatInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Second,
	}
}

// Validate checks that the Config has all required fields set.
func (c *Config) Validate() error {
	if c.ID == "" {
		return errors.New("ID is required")
	}
	if c.Command == "" {
		return errors.New("Command is required")
	}
	if c.HeartbeatInterval <= 0 {
		return errors.New("HeartbeatInterval must be positive")
	}
	return nil
}

// Handle defines the interface for managing a single worker process.
//
// Implementations own the full lifecycle of one worker. A handle is
// single use: once the worker exits the handle is spent, and Start
// returns an error ever after.
//
// The typical lifecycle is:
//  1. Create a handle with NewExecHandle(config) or NewFake(id, pid)
//  2. Start the worker with Start(ctx)
//  3. Consume Messages() until the channel closes
//  4. Receive the final ExitStatus from Done()
//
// Stop may be called at any point after Start to request termination;
// the exit is still observed through Done.
type Handle interface {
	// Start launches the worker process.
	//
	// The provided context controls only the startup operation. The
	// worker itself outlives the context; termination is requested with
	// Stop, not by cancelling ctx.
	//
	// Returns ErrWorkerAlreadyRunning if Start was already called.
	// Returns an error wrapping ErrSpawnFailed if the process cannot
	// be launched.
	Start(ctx context.Context) error

	// Stop signals the worker to terminate. StopGraceful requests a
	// clean drain; StopForced terminates immediately. Stop does not
	// wait for the exit. It is safe to call Stop multiple times or on
	// a worker that is not running; those calls return nil.
	Stop(mode StopMode) error

	// Running reports whether the worker process is currently alive.
	// It reflects the actual process state: a worker that exits on its
	// own flips Running to false without any Stop call.
	Running() bool

	// PID returns the operating system process ID. It returns 0 before
	// the worker has started and keeps reporting the last PID after
	// exit.
	PID() int

	// Messages returns the channel of decoded worker messages. The
	// channel is closed after the worker exits and its pipe drains.
	// The consumer must keep draining until the close; deliveries
	// block once the small internal buffer fills.
	Messages() <-chan protocol.Envelope

	// Done returns the channel that delivers the final exit status.
	// The channel is buffered, so the status is delivered exactly once
	// without blocking the handle.
	Done() <-chan ExitStatus
}

// Factory creates a Handle for a worker about to be spawned. The
// supervisor goes through a factory so tests can substitute Fake
// handles for real processes.
type Factory func(config Config) Handle

// ExecFactory is the production Factory. It returns os/exec backed
// handles.
func ExecFactory(config Config) Handle {
	return NewExecHandle(config)
}
