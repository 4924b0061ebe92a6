package worker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/protocol"
)

// messageBuffer is the capacity of the Messages channel. The consumer
// drains continuously, so a small buffer is enough to absorb bursts
// without stalling the pipe reader.
const messageBuffer = 16

// ipcChildFD is the descriptor number the worker inherits for its IPC
// pipe. ExtraFiles entries start at fd 3 in the child.
const ipcChildFD = 3

// maxLineBytes caps the size of a single IPC message line.
const maxLineBytes = 256 * 1024

// ExecHandle implements the Handle interface using os/exec. It launches
// the configured command as a direct child process with an inherited
// pipe for worker-to-supervisor messages.
type ExecHandle struct {
	config Config

	mu      sync.RWMutex
	cmd     *exec.Cmd
	pid     int
	running bool
	started bool

	messages chan protocol.Envelope
	done     chan ExitStatus
}

// NewExecHandle creates a new process-backed worker handle.
func NewExecHandle(config Config) *ExecHandle {
	return &ExecHandle{
		config:   config,
		messages: make(chan protocol.Envelope, messageBuffer),
		done:     make(chan ExitStatus, 1),
	}
}

// ID returns the worker ID this handle was configured with.
func (h *ExecHandle) ID() string {
	return h.config.ID
}

// Start launches the worker process.
func (h *ExecHandle) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return errors.ErrWorkerAlreadyRunning
	}

	if err := h.config.Validate(); err != nil {
		return fmt.Errorf("invalid worker config: %w", err)
	}

	// Check if context is already cancelled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ipcRead, ipcWrite, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("%w: create ipc pipe: %v", errors.ErrSpawnFailed, err)
	}

	cmd := exec.Command(h.config.Command, h.config.Args...)
	cmd.Dir = h.config.WorkDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{ipcWrite}
	cmd.Env = append(os.Environ(), h.config.Env...)
	cmd.Env = append(cmd.Env,
		protocol.EnvWorkerMarker+"=1",
		protocol.EnvWorkerID+"="+h.config.ID,
		fmt.Sprintf("%s=%d", protocol.EnvIPCFD, ipcChildFD),
		protocol.EnvHeartbeatInterval+"="+h.config.HeartbeatInterval.String(),
	)

	if err := cmd.Start(); err != nil {
		_ = ipcRead.Close()
		_ = ipcWrite.Close()
		return fmt.Errorf("%w: %v", errors.ErrSpawnFailed, err)
	}

	// The child holds its own copy of the write end. Closing ours makes
	// the read end report EOF once the worker exits.
	_ = ipcWrite.Close()

	h.cmd = cmd
	h.pid = cmd.Process.Pid
	h.running = true
	h.started = true

	go h.readMessages(ipcRead)
	go h.wait()

	return nil
}

// readMessages decodes newline-delimited JSON from the worker's pipe
// and forwards each message to the messages channel. The channel is
// closed when the pipe reaches EOF, which happens when the worker
// exits.
func (h *ExecHandle) readMessages(r *os.File) {
	defer close(h.messages)
	defer func() { _ = r.Close() }()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		env, err := protocol.DecodeLine(line)
		if err != nil {
			// Malformed lines are dropped.
			continue
		}
		h.messages <- env
	}
}

// wait collects the process exit status and delivers it on the done
// channel. The running flag flips before delivery, so Running reports
// false by the time the status is observed.
func (h *ExecHandle) wait() {
	err := h.cmd.Wait()

	var status ExitStatus
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status.Code = exitErr.ExitCode()
			status.Signaled = !exitErr.Exited()
		} else {
			status.Code = -1
			status.Err = err
		}
	}

	h.mu.Lock()
	h.running = false
	h.mu.Unlock()

	h.done <- status
}

// Stop signals the worker process to terminate. StopGraceful sends
// SIGTERM; StopForced sends SIGKILL. Stop never waits for the exit,
// callers observe it through Done.
func (h *ExecHandle) Stop(mode StopMode) error {
	h.mu.RLock()
	running := h.running
	cmd := h.cmd
	pid := h.pid
	h.mu.RUnlock()

	if !running || cmd == nil || cmd.Process == nil {
		return nil
	}

	sig := syscall.SIGTERM
	if mode == StopForced {
		sig = syscall.SIGKILL
	}

	if err := cmd.Process.Signal(sig); err != nil {
		// The worker may exit between the running check and the signal.
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("signal worker %s (pid %d): %w", h.config.ID, pid, err)
	}
	return nil
}

// Running reports whether the worker process is currently alive.
func (h *ExecHandle) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// PID returns the worker's operating system process ID.
func (h *ExecHandle) PID() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.pid
}

// Messages returns the channel of decoded worker messages.
func (h *ExecHandle) Messages() <-chan protocol.Envelope {
	return h.messages
}

// Done returns the channel that delivers the final exit status.
func (h *ExecHandle) Done() <-chan ExitStatus {
	return h.done
}

// Verify interface implementation at compile time.
var _ Handle = (*ExecHandle)(nil)
