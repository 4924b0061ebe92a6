// Package protocol defines the wire contract between the supervisor and its
// worker processes.
//
// Workers inherit a pipe from the supervisor (the write end is passed as an
// extra file descriptor, named by the MAESTRO_IPC_FD environment variable)
// and emit newline-delimited JSON envelopes on it: one "ready" message
// shortly after start, then periodic "heartbeat" messages. The supervisor
// never writes to the worker; control flows the other way as POSIX signals
// (SIGTERM for graceful disconnect, SIGKILL for forced termination).
package protocol

import (
	"encoding/json"
	"fmt"
)

// Environment variables the supervisor injects into worker processes.
const (
	// EnvWorkerMarker is set to "1" in every worker process, letting a
	// program detect that it is running under supervision.
	EnvWorkerMarker = "MAESTRO_WORKER"

	// EnvWorkerID carries the registry ID assigned to the worker.
	EnvWorkerID = "MAESTRO_WORKER_ID"

	// EnvIPCFD names the file descriptor number of the inherited
	// heartbeat pipe, e.g. "3".
	EnvIPCFD = "MAESTRO_IPC_FD"

	// EnvHeartbeatInterval carries the expected heartbeat period as a
	// Go duration string, e.g. "10s".
	EnvHeartbeatInterval = "MAESTRO_HEARTBEAT_INTERVAL"
)

// MessageType discriminates envelope payloads.
type MessageType string

const (
	// TypeReady is sent once, as soon as the worker is serving.
	TypeReady MessageType = "ready"
	// TypeHeartbeat is sent on a fixed interval for liveness and load
	// reporting.
	TypeHeartbeat MessageType = "heartbeat"
)

// Envelope is one newline-delimited JSON message from a worker.
type Envelope struct {
	Type      MessageType `json:"type"`
	Heartbeat *Heartbeat  `json:"heartbeat,omitempty"`
}

// Heartbeat is a worker's periodic self-report.
type Heartbeat struct {
	PID           int         `json:"pid"`
	Memory        MemoryUsage `json:"memory"`
	UptimeSeconds float64     `json:"uptime_seconds"`
}

// MemoryUsage carries both OS-level and runtime-level memory figures, so the
// supervisor can weigh resident size against heap saturation.
type MemoryUsage struct {
	RSSBytes       uint64 `json:"rss_bytes"`
	HeapUsedBytes  uint64 `json:"heap_used_bytes"`
	HeapTotalBytes uint64 `json:"heap_total_bytes"`
}

// HeapUtilization returns used/total heap as a fraction in [0, 1].
// Returns 0 when the total is unknown.
func (m MemoryUsage) HeapUtilization() float64 {
	if m.HeapTotalBytes == 0 {
		return 0
	}
	util := float64(m.HeapUsedBytes) / float64(m.HeapTotalBytes)
	if util > 1 {
		return 1
	}
	return util
}

// Validate checks that a heartbeat payload is well formed.
func (h *Heartbeat) Validate() error {
	if h == nil {
		return fmt.Errorf("heartbeat payload is missing")
	}
	if h.PID <= 0 {
		return fmt.Errorf("heartbeat pid must be positive, got %d", h.PID)
	}
	if h.UptimeSeconds < 0 {
		return fmt.Errorf("heartbeat uptime must not be negative, got %f", h.UptimeSeconds)
	}
	return nil
}

// Validate checks envelope structure, including per-type payload presence.
func (e *Envelope) Validate() error {
	switch e.Type {
	case TypeReady:
		return nil
	case TypeHeartbeat:
		return e.Heartbeat.Validate()
	default:
		return fmt.Errorf("unknown message type %q", e.Type)
	}
}

// DecodeLine parses one JSON line into a validated envelope.
func DecodeLine(line []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed worker message: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
