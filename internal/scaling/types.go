package scaling

import "time"

// Action represents a scaling decision action.
type Action string

const (
	// ActionScaleUp indicates a worker should be added.
	ActionScaleUp Action = "scale_up"

	// ActionScaleDown indicates one or more workers should be removed.
	ActionScaleDown Action = "scale_down"

	// ActionNone indicates no change is needed.
	ActionNone Action = "none"
)

// String returns the string representation of the action.
func (a Action) String() string {
	return string(a)
}

// Decision reasons. Stable strings, surfaced in events and status output.
const (
	// ReasonNoSamples means no load samples have been collected yet.
	ReasonNoSamples = "no_samples"

	// ReasonCriticalMemory means average memory pressure exceeded the
	// critical threshold.
	ReasonCriticalMemory = "critical_memory_pressure"

	// ReasonCooldownActive means a recent action is still damping scaling.
	ReasonCooldownActive = "cooldown_active"

	// ReasonHighLoad means average load exceeded the scale-up threshold.
	ReasonHighLoad = "high_load"

	// ReasonLowLoad means load stayed below the scale-down threshold for
	// long enough to shed a worker.
	ReasonLowLoad = "low_load"

	// ReasonWithinThresholds means load sits between the two thresholds.
	ReasonWithinThresholds = "load_within_thresholds"
)

// Thresholds are the load and memory levels that trigger scaling actions.
// All values are fractions in [0, 1].
type Thresholds struct {
	// ScaleUp is the moving-average load above which a worker is added.
	ScaleUp float64

	// ScaleDown is the moving-average load below which a worker is removed,
	// provided the low load is sustained.
	ScaleDown float64

	// CriticalMemory is the moving-average memory pressure above which
	// workers are shed immediately, ignoring the cooldown.
	CriticalMemory float64
}

// DefaultThresholds returns the thresholds used when no WithThresholds
// option is given.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ScaleUp:        0.8,
		ScaleDown:      0.3,
		CriticalMemory: 0.9,
	}
}

// Decision is the result of evaluating the scaling policy against the load
// history and current worker count.
type Decision struct {
	// Action is the recommended scaling action.
	Action Action

	// TargetWorkers is the worker count the action aims for. Equal to the
	// current count when Action is ActionNone.
	TargetWorkers int

	// Reason explains the decision. One of the Reason constants.
	Reason string
}

// HistoryEntry records one executed scaling action.
type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Reason    string    `json:"reason"`
	FromCount int       `json:"from_count"`
	ToCount   int       `json:"to_count"`
}
