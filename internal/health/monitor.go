// Package health sweeps the worker registry for liveness problems.
//
// The monitor keeps no heartbeat table of its own; the registry already
// records when each worker last reported. Check compares those
// timestamps against the staleness threshold and flags workers the
// supervisor should treat as unresponsive, plus workers sitting above
// the soft memory ceiling.
package health

import (
	"sync"
	"time"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/registry"
)

// Config holds the health monitor settings.
type Config struct {
	// CheckInterval is how often the supervisor sweeps worker health.
	CheckInterval time.Duration

	// StalenessThreshold is how long a worker may stay silent before
	// it is considered unresponsive.
	StalenessThreshold time.Duration

	// SoftMemoryLimitMB is the per-worker RSS ceiling in mebibytes.
	// Workers above it are reported for logging only; nothing is
	// killed. Zero disables the check.
	SoftMemoryLimitMB int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:      30 * time.Second,
		StalenessThreshold: 60 * time.Second,
		SoftMemoryLimitMB:  512,
	}
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 {
		return errors.NewValidationError("CheckInterval must be positive").
			WithField("health.check_interval").WithValue(c.CheckInterval)
	}
	if c.StalenessThreshold <= 0 {
		return errors.NewValidationError("StalenessThreshold must be positive").
			WithField("health.staleness_threshold").WithValue(c.StalenessThreshold)
	}
	if c.SoftMemoryLimitMB < 0 {
		return errors.NewValidationError("SoftMemoryLimitMB cannot be negative").
			WithField("health.soft_memory_limit_mb").WithValue(c.SoftMemoryLimitMB)
	}
	return nil
}

// MemoryWarning flags a worker above the soft memory ceiling.
type MemoryWarning struct {
	WorkerID   string
	PID        int
	RSSBytes   uint64
	LimitBytes uint64
}

// Report is the outcome of one health sweep.
type Report struct {
	// Stale lists workers that crossed the staleness threshold since
	// the previous sweep. The supervisor force-kills these.
	Stale []registry.Record

	// OverMemory lists workers that crossed the soft memory ceiling
	// since the previous sweep. These are logged, not killed.
	OverMemory []MemoryWarning
}

// Empty reports whether the sweep found nothing to act on.
func (r Report) Empty() bool {
	return len(r.Stale) == 0 && len(r.OverMemory) == 0
}

// Monitor sweeps the registry for unresponsive and oversized workers.
//
// Findings are edge triggered: a worker is reported on the first sweep
// that finds it over a threshold and not again until it has recovered.
// In practice a stale worker never reports twice, the supervisor kills
// it on the first report.
type Monitor struct {
	config   Config
	registry *registry.Registry

	mu         sync.Mutex
	staleSeen  map[string]bool
	memorySeen map[string]bool
}

// New creates a health monitor over the given registry.
func New(config Config, reg *registry.Registry) (*Monitor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		config:     config,
		registry:   reg,
		staleSeen:  make(map[string]bool),
		memorySeen: make(map[string]bool),
	}, nil
}

// Check performs one health sweep at the given time.
func (m *Monitor) Check(now time.Time) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report Report

	stale := m.registry.StaleWorkers(now, m.config.StalenessThreshold)
	staleSeen := make(map[string]bool, len(stale))
	for _, rec := range stale {
		staleSeen[rec.ID] = true
		if !m.staleSeen[rec.ID] {
			report.Stale = append(report.Stale, rec)
		}
	}
	m.staleSeen = staleSeen

	if m.config.SoftMemoryLimitMB > 0 {
		limit := uint64(m.config.SoftMemoryLimitMB) * 1024 * 1024
		memorySeen := make(map[string]bool)
		for _, h := range m.registry.HealthSnapshot() {
			if h.Memory.RSSBytes <= limit || m.registry.IsDraining(h.WorkerID) {
				continue
			}
			memorySeen[h.WorkerID] = true
			if !m.memorySeen[h.WorkerID] {
				report.OverMemory = append(report.OverMemory, MemoryWarning{
					WorkerID:   h.WorkerID,
					PID:        h.PID,
					RSSBytes:   h.Memory.RSSBytes,
					LimitBytes: limit,
				})
			}
		}
		m.memorySeen = memorySeen
	}

	return report
}
