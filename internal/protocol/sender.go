package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Sender writes envelopes to the supervisor as newline-delimited JSON.
// It is the worker-side half of the contract and is safe for concurrent use.
type Sender struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewSender returns a Sender writing to w, typically the pipe from
// [IPCWriter].
func NewSender(w io.Writer) *Sender {
	return &Sender{enc: json.NewEncoder(w)}
}

// Send writes one envelope.
func (s *Sender) Send(env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(env)
}

// SendReady announces that the worker is serving.
func (s *Sender) SendReady() error {
	return s.Send(Envelope{Type: TypeReady})
}

// SendHeartbeat reports current liveness and memory figures.
func (s *Sender) SendHeartbeat(hb Heartbeat) error {
	return s.Send(Envelope{Type: TypeHeartbeat, Heartbeat: &hb})
}

// IPCWriter opens the pipe inherited from the supervisor, located via the
// MAESTRO_IPC_FD environment variable.
func IPCWriter() (*os.File, error) {
	raw := os.Getenv(EnvIPCFD)
	if raw == "" {
		return nil, fmt.Errorf("%s is not set; not running under a supervisor", EnvIPCFD)
	}
	fd, err := strconv.Atoi(raw)
	if err != nil || fd < 3 {
		return nil, fmt.Errorf("invalid %s value %q", EnvIPCFD, raw)
	}
	return os.NewFile(uintptr(fd), "maestro-ipc"), nil
}

// HeartbeatInterval reads the supervisor-provided heartbeat period, falling
// back to the given default when unset or unparsable.
func HeartbeatInterval(fallback time.Duration) time.Duration {
	raw := os.Getenv(EnvHeartbeatInterval)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// CaptureHeartbeat builds a heartbeat for the calling process. Heap figures
// come from the Go runtime; resident set size comes from the OS and is left
// at zero if unavailable.
func CaptureHeartbeat(startedAt time.Time) Heartbeat {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	hb := Heartbeat{
		PID: os.Getpid(),
		Memory: MemoryUsage{
			HeapUsedBytes:  stats.HeapAlloc,
			HeapTotalBytes: stats.HeapSys,
		},
		UptimeSeconds: time.Since(startedAt).Seconds(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			hb.Memory.RSSBytes = mem.RSS
		}
	}

	return hb
}
