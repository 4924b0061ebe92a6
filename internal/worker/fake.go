package worker

import (
	"context"
	"sync"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/protocol"
)

// Fake is an in-memory Handle for tests. It drives the same message and
// exit channels as ExecHandle without launching OS processes. Test code
// injects protocol traffic and exits explicitly:
//
//	h := worker.NewFake("w1", 4242)
//	_ = h.Start(context.Background())
//	h.InjectReady()
//	h.InjectHeartbeat(hb)
//	h.Exit(0)
//
// Stop calls are recorded rather than acted on; the fake never exits
// until the test says so.
type Fake struct {
	id  string
	pid int

	mu       sync.Mutex
	running  bool
	started  bool
	exited   bool
	stops    []StopMode
	startErr error

	messages chan protocol.Envelope
	done     chan ExitStatus
}

// NewFake creates a fake worker handle with the given ID and PID.
func NewFake(id string, pid int) *Fake {
	return &Fake{
		id:       id,
		pid:      pid,
		messages: make(chan protocol.Envelope, messageBuffer),
		done:     make(chan ExitStatus, 1),
	}
}

// SetStartError makes the next Start call fail with err.
func (f *Fake) SetStartError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

// Start marks the fake worker as running.
func (f *Fake) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return f.startErr
	}
	if f.started {
		return errors.ErrWorkerAlreadyRunning
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f.running = true
	f.started = true
	return nil
}

// Stop records the requested stop mode. The fake does not exit on its
// own; tests drive the exit explicitly with Exit or ExitSignaled.
func (f *Fake) Stop(mode StopMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}
	f.stops = append(f.stops, mode)
	return nil
}

// StopCalls returns the stop modes recorded so far.
func (f *Fake) StopCalls() []StopMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]StopMode, len(f.stops))
	copy(out, f.stops)
	return out
}

// Running reports whether the fake worker is alive.
func (f *Fake) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// PID returns the fake process ID.
func (f *Fake) PID() int {
	return f.pid
}

// ID returns the fake worker ID.
func (f *Fake) ID() string {
	return f.id
}

// Messages returns the channel injected messages are delivered on.
func (f *Fake) Messages() <-chan protocol.Envelope {
	return f.messages
}

// Done returns the channel the fake exit status is delivered on.
func (f *Fake) Done() <-chan ExitStatus {
	return f.done
}

// InjectReady delivers a ready message as if the worker had sent one.
func (f *Fake) InjectReady() {
	f.messages <- protocol.Envelope{Type: protocol.TypeReady}
}

// InjectHeartbeat delivers a heartbeat message. A zero PID in hb is
// filled with the fake's own PID.
func (f *Fake) InjectHeartbeat(hb protocol.Heartbeat) {
	if hb.PID == 0 {
		hb.PID = f.pid
	}
	f.messages <- protocol.Envelope{Type: protocol.TypeHeartbeat, Heartbeat: &hb}
}

// Exit simulates the worker exiting with the given code. The messages
// channel closes and the status is delivered on Done. Calling Exit on
// an already exited fake is a no-op.
func (f *Fake) Exit(code int) {
	f.exit(ExitStatus{Code: code})
}

// ExitSignaled simulates the worker being killed by a signal.
func (f *Fake) ExitSignaled() {
	f.exit(ExitStatus{Code: -1, Signaled: true})
}

func (f *Fake) exit(status ExitStatus) {
	f.mu.Lock()
	if f.exited {
		f.mu.Unlock()
		return
	}
	f.exited = true
	f.running = false
	f.mu.Unlock()

	close(f.messages)
	f.done <- status
}

// FakePool is a Factory implementation for tests. It hands out Fake
// handles with sequential PIDs and remembers every handle it created.
type FakePool struct {
	mu      sync.Mutex
	nextPID int
	fakes   []*Fake
	byID    map[string]*Fake
}

// NewFakePool creates a pool that assigns PIDs starting at basePID.
func NewFakePool(basePID int) *FakePool {
	return &FakePool{
		nextPID: basePID,
		byID:    make(map[string]*Fake),
	}
}

// New creates the next fake handle. Use it as a worker.Factory:
//
//	pool := worker.NewFakePool(1000)
//	sup := supervisor.New(cfg, supervisor.WithHandleFactory(pool.New))
func (p *FakePool) New(config Config) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := NewFake(config.ID, p.nextPID)
	p.nextPID++
	p.fakes = append(p.fakes, f)
	p.byID[config.ID] = f
	return f
}

// Created returns every fake created so far, in creation order.
func (p *FakePool) Created() []*Fake {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Fake, len(p.fakes))
	copy(out, p.fakes)
	return out
}

// Get returns the fake created for the given worker ID.
func (p *FakePool) Get(id string) (*Fake, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.byID[id]
	return f, ok
}

// Verify interface implementation at compile time.
var _ Handle = (*Fake)(nil)
