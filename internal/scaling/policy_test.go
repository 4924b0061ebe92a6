package scaling

import (
	"testing"
	"time"

	"github.com/Iron-Ham/maestro/internal/load"
)

var evalTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// cpuSamples builds a history with the given CPU loads and no memory
// pressure.
func cpuSamples(values ...float64) []load.Sample {
	out := make([]load.Sample, len(values))
	for i, v := range values {
		out[i] = load.Sample{CPULoad: v}
	}
	return out
}

// memSamples builds a history with the given memory pressures and no CPU
// load.
func memSamples(values ...float64) []load.Sample {
	out := make([]load.Sample, len(values))
	for i, v := range values {
		out[i] = load.Sample{MemoryPressure: v}
	}
	return out
}

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy()

	if p.minWorkers != 2 {
		t.Errorf("minWorkers = %d, want 2", p.minWorkers)
	}
	if p.maxWorkers != 8 {
		t.Errorf("maxWorkers = %d, want 8", p.maxWorkers)
	}
	if p.thresholds != DefaultThresholds() {
		t.Errorf("thresholds = %+v, want %+v", p.thresholds, DefaultThresholds())
	}
	if p.cooldown != 2*time.Minute {
		t.Errorf("cooldown = %v, want 2m", p.cooldown)
	}
	if p.movingAvgSamples != 10 {
		t.Errorf("movingAvgSamples = %d, want 10", p.movingAvgSamples)
	}
	if p.debounceSamples != 5 {
		t.Errorf("debounceSamples = %d, want 5", p.debounceSamples)
	}
}

func TestNewPolicy_Options(t *testing.T) {
	thresholds := Thresholds{ScaleUp: 0.7, ScaleDown: 0.2, CriticalMemory: 0.85}
	p := NewPolicy(
		WithMinWorkers(1),
		WithMaxWorkers(16),
		WithThresholds(thresholds),
		WithCooldown(30*time.Second),
		WithMovingAvgSamples(4),
		WithDebounceSamples(3),
	)

	if p.minWorkers != 1 {
		t.Errorf("minWorkers = %d, want 1", p.minWorkers)
	}
	if p.maxWorkers != 16 {
		t.Errorf("maxWorkers = %d, want 16", p.maxWorkers)
	}
	if p.thresholds != thresholds {
		t.Errorf("thresholds = %+v, want %+v", p.thresholds, thresholds)
	}
	if p.cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", p.cooldown)
	}
	if p.movingAvgSamples != 4 {
		t.Errorf("movingAvgSamples = %d, want 4", p.movingAvgSamples)
	}
	if p.debounceSamples != 3 {
		t.Errorf("debounceSamples = %d, want 3", p.debounceSamples)
	}
}

func TestPolicy_Evaluate(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		history    []load.Sample
		current    int
		wantAction Action
		wantTarget int
		wantReason string
	}{
		{
			name:       "empty history",
			history:    nil,
			current:    4,
			wantAction: ActionNone,
			wantTarget: 4,
			wantReason: ReasonNoSamples,
		},
		{
			name:       "high load adds one worker",
			history:    cpuSamples(0.9, 0.9, 0.9),
			current:    4,
			wantAction: ActionScaleUp,
			wantTarget: 5,
			wantReason: ReasonHighLoad,
		},
		{
			name:       "high load at max holds",
			history:    cpuSamples(0.9, 0.9, 0.9),
			current:    8,
			wantAction: ActionNone,
			wantTarget: 8,
			wantReason: ReasonWithinThresholds,
		},
		{
			name:       "load exactly at scale-up threshold holds",
			history:    cpuSamples(0.8),
			current:    4,
			wantAction: ActionNone,
			wantTarget: 4,
			wantReason: ReasonWithinThresholds,
		},
		{
			name:       "sustained low load removes one worker",
			history:    cpuSamples(0.1, 0.1, 0.1, 0.1, 0.1),
			current:    4,
			wantAction: ActionScaleDown,
			wantTarget: 3,
			wantReason: ReasonLowLoad,
		},
		{
			name:       "low load without enough samples holds",
			history:    cpuSamples(0.1, 0.1, 0.1, 0.1),
			current:    4,
			wantAction: ActionNone,
			wantTarget: 4,
			wantReason: ReasonWithinThresholds,
		},
		{
			name:       "low average with one recent spike holds",
			history:    cpuSamples(0.1, 0.1, 0.4, 0.1, 0.1),
			current:    4,
			wantAction: ActionNone,
			wantTarget: 4,
			wantReason: ReasonWithinThresholds,
		},
		{
			name:       "low load at min holds",
			history:    cpuSamples(0.1, 0.1, 0.1, 0.1, 0.1),
			current:    2,
			wantAction: ActionNone,
			wantTarget: 2,
			wantReason: ReasonWithinThresholds,
		},
		{
			name:       "load exactly at scale-down threshold holds",
			history:    cpuSamples(0.3, 0.3, 0.3, 0.3, 0.3),
			current:    4,
			wantAction: ActionNone,
			wantTarget: 4,
			wantReason: ReasonWithinThresholds,
		},
		{
			name:       "moderate load holds",
			history:    cpuSamples(0.5, 0.5, 0.5),
			current:    4,
			wantAction: ActionNone,
			wantTarget: 4,
			wantReason: ReasonWithinThresholds,
		},
		{
			name:       "critical memory sheds workers",
			history:    memSamples(0.95, 0.95),
			current:    4,
			wantAction: ActionScaleDown,
			wantTarget: 3,
			wantReason: ReasonCriticalMemory,
		},
		{
			name:       "critical memory sheds thirty percent of larger fleet",
			opts:       []Option{WithMaxWorkers(16)},
			history:    memSamples(0.95, 0.95),
			current:    10,
			wantAction: ActionScaleDown,
			wantTarget: 7,
			wantReason: ReasonCriticalMemory,
		},
		{
			name:       "critical memory clamps at min",
			history:    memSamples(0.95, 0.95),
			current:    3,
			wantAction: ActionScaleDown,
			wantTarget: 2,
			wantReason: ReasonCriticalMemory,
		},
		{
			name:       "critical memory at min holds",
			history:    memSamples(0.95, 0.95),
			current:    2,
			wantAction: ActionNone,
			wantTarget: 2,
			wantReason: ReasonCriticalMemory,
		},
		{
			name:       "memory exactly at critical threshold holds",
			history:    memSamples(0.9),
			current:    4,
			wantAction: ActionNone,
			wantTarget: 4,
			wantReason: ReasonWithinThresholds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.opts...)
			d := p.Evaluate(tt.history, tt.current, evalTime)

			if d.Action != tt.wantAction {
				t.Errorf("Action = %v, want %v", d.Action, tt.wantAction)
			}
			if d.TargetWorkers != tt.wantTarget {
				t.Errorf("TargetWorkers = %d, want %d", d.TargetWorkers, tt.wantTarget)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}

func TestPolicy_Evaluate_MovingAvgWindow(t *testing.T) {
	p := NewPolicy(WithMovingAvgSamples(3), WithDebounceSamples(3))

	// Old samples are high; only the newest three should be averaged.
	history := cpuSamples(0.9, 0.9, 0.9, 0.1, 0.1, 0.1)
	d := p.Evaluate(history, 4, evalTime)

	if d.Action != ActionScaleDown {
		t.Errorf("Action = %v, want %v", d.Action, ActionScaleDown)
	}
	if d.TargetWorkers != 3 {
		t.Errorf("TargetWorkers = %d, want 3", d.TargetWorkers)
	}
}

func TestPolicy_Evaluate_Cooldown(t *testing.T) {
	p := NewPolicy()
	p.MarkAction(evalTime)

	high := cpuSamples(0.9, 0.9, 0.9)

	d := p.Evaluate(high, 4, evalTime.Add(time.Minute))
	if d.Action != ActionNone {
		t.Errorf("Action during cooldown = %v, want %v", d.Action, ActionNone)
	}
	if d.Reason != ReasonCooldownActive {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonCooldownActive)
	}

	// The cooldown window is closed-open: exactly two minutes later scaling
	// is allowed again.
	d = p.Evaluate(high, 4, evalTime.Add(2*time.Minute))
	if d.Action != ActionScaleUp {
		t.Errorf("Action after cooldown = %v, want %v", d.Action, ActionScaleUp)
	}
}

func TestPolicy_Evaluate_CriticalMemoryBypassesCooldown(t *testing.T) {
	p := NewPolicy()
	p.MarkAction(evalTime)

	d := p.Evaluate(memSamples(0.95, 0.95), 4, evalTime.Add(time.Second))

	if d.Action != ActionScaleDown {
		t.Errorf("Action = %v, want %v", d.Action, ActionScaleDown)
	}
	if d.TargetWorkers != 3 {
		t.Errorf("TargetWorkers = %d, want 3", d.TargetWorkers)
	}
	if d.Reason != ReasonCriticalMemory {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonCriticalMemory)
	}
}

func TestPolicy_CooldownRemaining(t *testing.T) {
	p := NewPolicy()

	if got := p.CooldownRemaining(evalTime); got != 0 {
		t.Errorf("CooldownRemaining before any action = %v, want 0", got)
	}

	p.MarkAction(evalTime)

	if got := p.CooldownRemaining(evalTime.Add(30 * time.Second)); got != 90*time.Second {
		t.Errorf("CooldownRemaining = %v, want 90s", got)
	}
	if got := p.CooldownRemaining(evalTime.Add(5 * time.Minute)); got != 0 {
		t.Errorf("CooldownRemaining past expiry = %v, want 0", got)
	}
}

func TestAction_String(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionScaleUp, "scale_up"},
		{ActionScaleDown, "scale_down"},
		{ActionNone, "none"},
	}

	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("Action(%q).String() = %q, want %q", string(tt.action), got, tt.want)
		}
	}
}
