package worker

import (
	"context"
	"testing"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/protocol"
)

func TestFake_Lifecycle(t *testing.T) {
	h := NewFake("w1", 500)

	if h.Running() {
		t.Error("new fake should not be running")
	}
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if !h.Running() {
		t.Error("fake should be running after Start")
	}
	if got := h.PID(); got != 500 {
		t.Errorf("PID() = %d, want 500", got)
	}
	if got := h.ID(); got != "w1" {
		t.Errorf("ID() = %q, want %q", got, "w1")
	}

	h.InjectReady()
	env := <-h.Messages()
	if env.Type != protocol.TypeReady {
		t.Errorf("message type = %q, want %q", env.Type, protocol.TypeReady)
	}

	h.InjectHeartbeat(protocol.Heartbeat{
		Memory: protocol.MemoryUsage{RSSBytes: 1024, HeapUsedBytes: 10, HeapTotalBytes: 100},
	})
	env = <-h.Messages()
	if env.Type != protocol.TypeHeartbeat {
		t.Fatalf("message type = %q, want %q", env.Type, protocol.TypeHeartbeat)
	}
	if env.Heartbeat.PID != 500 {
		t.Errorf("heartbeat PID = %d, want autofilled 500", env.Heartbeat.PID)
	}

	h.Exit(0)
	if _, ok := <-h.Messages(); ok {
		t.Error("messages channel should be closed after Exit")
	}
	status := <-h.Done()
	if !status.Clean() {
		t.Errorf("exit status = %+v, want clean", status)
	}
	if h.Running() {
		t.Error("fake should not be running after Exit")
	}
}

func TestFake_StartTwice(t *testing.T) {
	h := NewFake("w1", 500)

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	if err := h.Start(context.Background()); !errors.Is(err, errors.ErrWorkerAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrWorkerAlreadyRunning", err)
	}
}

func TestFake_SetStartError(t *testing.T) {
	h := NewFake("w1", 500)
	h.SetStartError(errors.ErrSpawnFailed)

	if err := h.Start(context.Background()); !errors.Is(err, errors.ErrSpawnFailed) {
		t.Errorf("Start() = %v, want ErrSpawnFailed", err)
	}
	if h.Running() {
		t.Error("fake should not be running after failed Start")
	}
}

func TestFake_StopRecording(t *testing.T) {
	h := NewFake("w1", 500)

	// Stops before start are not recorded.
	if err := h.Stop(StopGraceful); err != nil {
		t.Errorf("Stop() before start = %v, want nil", err)
	}
	if got := len(h.StopCalls()); got != 0 {
		t.Errorf("StopCalls() length = %d, want 0 before start", got)
	}

	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	_ = h.Stop(StopGraceful)
	_ = h.Stop(StopForced)

	calls := h.StopCalls()
	if len(calls) != 2 || calls[0] != StopGraceful || calls[1] != StopForced {
		t.Errorf("StopCalls() = %v, want [graceful forced]", calls)
	}
}

func TestFake_ExitIdempotent(t *testing.T) {
	h := NewFake("w1", 500)
	_ = h.Start(context.Background())

	h.Exit(1)
	h.Exit(2)

	status := <-h.Done()
	if status.Code != 1 {
		t.Errorf("exit code = %d, want 1 from the first Exit", status.Code)
	}
	select {
	case extra := <-h.Done():
		t.Errorf("unexpected second exit status %+v", extra)
	default:
	}
}

func TestFake_ExitSignaled(t *testing.T) {
	h := NewFake("w1", 500)
	_ = h.Start(context.Background())

	h.ExitSignaled()

	status := <-h.Done()
	if !status.Signaled {
		t.Error("Signaled should be true after ExitSignaled")
	}
	if status.Code != -1 {
		t.Errorf("exit code = %d, want -1 for a signaled exit", status.Code)
	}
}

func TestFake_InjectHeartbeat_KeepsExplicitPID(t *testing.T) {
	h := NewFake("w1", 500)
	_ = h.Start(context.Background())

	h.InjectHeartbeat(protocol.Heartbeat{PID: 777})

	env := <-h.Messages()
	if env.Heartbeat.PID != 777 {
		t.Errorf("heartbeat PID = %d, want explicit 777", env.Heartbeat.PID)
	}
}

func TestFakePool(t *testing.T) {
	pool := NewFakePool(1000)

	// The pool's New method is usable wherever a Factory is expected.
	var factory Factory = pool.New

	a := factory(Config{ID: "a"})
	b := factory(Config{ID: "b"})

	if a.PID() != 1000 {
		t.Errorf("first PID = %d, want 1000", a.PID())
	}
	if b.PID() != 1001 {
		t.Errorf("second PID = %d, want 1001", b.PID())
	}

	created := pool.Created()
	if len(created) != 2 {
		t.Fatalf("Created() length = %d, want 2", len(created))
	}
	if created[0].ID() != "a" || created[1].ID() != "b" {
		t.Errorf("Created() order = [%s %s], want [a b]", created[0].ID(), created[1].ID())
	}

	if f, ok := pool.Get("a"); !ok || f.ID() != "a" {
		t.Errorf("Get(a) = %v, %v, want the first fake", f, ok)
	}
	if _, ok := pool.Get("missing"); ok {
		t.Error("Get(missing) should report not found")
	}
}
