package supervisor

import (
	"time"

	"github.com/Iron-Ham/maestro/internal/load"
	"github.com/Iron-Ham/maestro/internal/protocol"
	"github.com/Iron-Ham/maestro/internal/registry"
	"github.com/Iron-Ham/maestro/internal/scaling"
)

// statusRecentEntries caps the history slices in status payloads.
const statusRecentEntries = 10

// MasterInfo describes the supervisor process itself.
type MasterInfo struct {
	PID           int       `json:"pid"`
	SupervisorID  string    `json:"supervisor_id"`
	StartedAt     time.Time `json:"started_at"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	State         string    `json:"state"`
}

// WorkerStats is the status view of one worker.
type WorkerStats struct {
	ID              string               `json:"id"`
	PID             int                  `json:"pid"`
	State           string               `json:"state"`
	Generation      int                  `json:"generation"`
	StartedAt       time.Time            `json:"started_at"`
	UptimeSeconds   float64              `json:"uptime_seconds"`
	LastHeartbeatAt *time.Time           `json:"last_heartbeat_at,omitempty"`
	Memory          protocol.MemoryUsage `json:"memory"`
}

// Status is a point-in-time snapshot of the whole pool.
type Status struct {
	Master        MasterInfo    `json:"master"`
	Workers       []WorkerStats `json:"workers"`
	TotalWorkers  int           `json:"total_workers"`
	TargetWorkers int           `json:"target_workers"`
	RestartCount  int           `json:"restart_count"`
}

// ScalingStatus is the scaling-focused snapshot: pool bounds, recent
// load, cooldown, and the latest scaling actions.
type ScalingStatus struct {
	CurrentWorkers           int                    `json:"current_workers"`
	TargetWorkers            int                    `json:"target_workers"`
	MinWorkers               int                    `json:"min_workers"`
	MaxWorkers               int                    `json:"max_workers"`
	RecentLoadAverages       []load.Sample          `json:"recent_load_averages"`
	CooldownRemainingSeconds float64                `json:"cooldown_remaining_seconds"`
	RecentScalingActions     []scaling.HistoryEntry `json:"recent_scaling_actions"`
}

// Status returns the current pool snapshot. Safe to call from any
// goroutine at any point in the supervisor's life.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	state := s.state
	startedAt := s.startedAt
	target := s.target
	s.mu.Unlock()

	now := s.clk.Now()
	var uptime float64
	if !startedAt.IsZero() {
		uptime = now.Sub(startedAt).Seconds()
	}

	records := s.registry.List()
	workers := make([]WorkerStats, 0, len(records))
	for _, rec := range records {
		workers = append(workers, s.workerStats(rec, now))
	}

	return Status{
		Master: MasterInfo{
			PID:           s.pid,
			SupervisorID:  s.id,
			StartedAt:     startedAt,
			UptimeSeconds: uptime,
			State:         state.String(),
		},
		Workers:       workers,
		TotalWorkers:  len(records),
		TargetWorkers: target,
		RestartCount:  s.governor.TotalRestarts(),
	}
}

// ScalingStatus returns the scaling snapshot served on the admin
// /scaling endpoint.
func (s *Supervisor) ScalingStatus() ScalingStatus {
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()

	return ScalingStatus{
		CurrentWorkers:           s.registry.ActiveCount(),
		TargetWorkers:            target,
		MinWorkers:               s.config.Supervisor.MinWorkers,
		MaxWorkers:               s.config.Supervisor.MaxWorkers,
		RecentLoadAverages:       s.sampler.History().Last(statusRecentEntries),
		CooldownRemainingSeconds: s.policy.CooldownRemaining(s.clk.Now()).Seconds(),
		RecentScalingActions:     s.executor.History().Recent(statusRecentEntries),
	}
}

func (s *Supervisor) workerStats(rec registry.Record, now time.Time) WorkerStats {
	stats := WorkerStats{
		ID:            rec.ID,
		PID:           rec.Handle.PID(),
		State:         workerStateOf(rec),
		Generation:    rec.Generation,
		StartedAt:     rec.StartedAt,
		UptimeSeconds: now.Sub(rec.StartedAt).Seconds(),
	}

	if h, ok := s.registry.HealthOf(rec.ID); ok {
		stats.Memory = h.Memory
		if h.PID != 0 {
			stats.PID = h.PID
		}
		if !h.LastHeartbeatAt.IsZero() {
			t := h.LastHeartbeatAt
			stats.LastHeartbeatAt = &t
		}
		if !h.Ready && !rec.Draining {
			stats.State = "starting"
		}
	}

	return stats
}

func workerStateOf(rec registry.Record) string {
	if rec.Draining {
		return "draining"
	}
	return "active"
}
