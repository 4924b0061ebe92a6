package scaling

import (
	"sync"
	"time"

	"github.com/Iron-Ham/maestro/internal/load"
)

// Default policy values.
const (
	defaultMinWorkers = 2
	defaultMaxWorkers = 8
	defaultCooldown   = 2 * time.Minute

	// defaultMovingAvgSamples is the number of recent samples averaged when
	// comparing load against the thresholds.
	defaultMovingAvgSamples = 10

	// defaultDebounceSamples is the number of consecutive raw samples that
	// must sit below the scale-down threshold before a worker is removed.
	// Separate from the moving-average window.
	defaultDebounceSamples = 5
)

// Option configures a Policy.
type Option func(*Policy)

// WithMinWorkers sets the minimum number of workers to maintain.
func WithMinWorkers(n int) Option {
	return func(p *Policy) { p.minWorkers = n }
}

// WithMaxWorkers sets the maximum number of workers allowed.
func WithMaxWorkers(n int) Option {
	return func(p *Policy) { p.maxWorkers = n }
}

// WithThresholds sets the load and memory thresholds.
func WithThresholds(t Thresholds) Option {
	return func(p *Policy) { p.thresholds = t }
}

// WithCooldown sets the minimum time between executed scaling actions.
func WithCooldown(d time.Duration) Option {
	return func(p *Policy) { p.cooldown = d }
}

// WithMovingAvgSamples sets how many recent samples are averaged when
// comparing against thresholds.
func WithMovingAvgSamples(n int) Option {
	return func(p *Policy) { p.movingAvgSamples = n }
}

// WithDebounceSamples sets how many consecutive raw samples must be below
// the scale-down threshold before scaling down on low load.
func WithDebounceSamples(n int) Option {
	return func(p *Policy) { p.debounceSamples = n }
}

// Policy defines the rules for adaptive scaling decisions.
// It is safe for concurrent use.
type Policy struct {
	mu               sync.Mutex
	minWorkers       int
	maxWorkers       int
	thresholds       Thresholds
	cooldown         time.Duration
	movingAvgSamples int
	debounceSamples  int
	lastActionAt     time.Time
}

// NewPolicy creates a Policy with the given options.
// Unset options use defaults.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		minWorkers:       defaultMinWorkers,
		maxWorkers:       defaultMaxWorkers,
		thresholds:       DefaultThresholds(),
		cooldown:         defaultCooldown,
		movingAvgSamples: defaultMovingAvgSamples,
		debounceSamples:  defaultDebounceSamples,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Evaluate inspects the load history and current worker count, returning a
// scaling decision. The caller supplies now so evaluation works with any
// clock. Critical memory pressure is evaluated before the cooldown gate and
// can trigger a scale-down while the cooldown is still active.
func (p *Policy) Evaluate(history []load.Sample, current int, now time.Time) Decision {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(history) == 0 {
		return Decision{Action: ActionNone, TargetWorkers: current, Reason: ReasonNoSamples}
	}

	memAvg := movingAvg(history, p.movingAvgSamples, func(s load.Sample) float64 {
		return s.MemoryPressure
	})
	if memAvg > p.thresholds.CriticalMemory {
		if target := p.criticalTargetLocked(current); target < current {
			return Decision{Action: ActionScaleDown, TargetWorkers: target, Reason: ReasonCriticalMemory}
		}
		// Already at the floor. No other rule runs while memory is critical.
		return Decision{Action: ActionNone, TargetWorkers: current, Reason: ReasonCriticalMemory}
	}

	if !p.lastActionAt.IsZero() && now.Sub(p.lastActionAt) < p.cooldown {
		return Decision{Action: ActionNone, TargetWorkers: current, Reason: ReasonCooldownActive}
	}

	loadAvg := movingAvg(history, p.movingAvgSamples, func(s load.Sample) float64 {
		return s.CPULoad
	})

	if loadAvg > p.thresholds.ScaleUp && current < p.maxWorkers {
		return Decision{Action: ActionScaleUp, TargetWorkers: current + 1, Reason: ReasonHighLoad}
	}

	if loadAvg < p.thresholds.ScaleDown && current > p.minWorkers && p.sustainedLowLocked(history) {
		return Decision{Action: ActionScaleDown, TargetWorkers: current - 1, Reason: ReasonLowLoad}
	}

	return Decision{Action: ActionNone, TargetWorkers: current, Reason: ReasonWithinThresholds}
}

// MarkAction records that a scaling action was executed at the given time,
// starting the cooldown window. Call it only for decisions that were applied;
// none decisions never touch the cooldown.
func (p *Policy) MarkAction(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastActionAt = now
}

// CooldownRemaining reports how long until the cooldown expires. Zero means
// scaling is not cooldown-gated right now.
func (p *Policy) CooldownRemaining(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastActionAt.IsZero() {
		return 0
	}
	remaining := p.cooldown - now.Sub(p.lastActionAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// criticalTargetLocked computes the worker count to shed to under critical
// memory pressure: roughly 30% of the fleet, always at least one worker,
// never below the minimum.
func (p *Policy) criticalTargetLocked(current int) int {
	shed := current * 3 / 10
	if shed < 1 {
		shed = 1
	}
	target := current - shed
	if target < p.minWorkers {
		target = p.minWorkers
	}
	return target
}

// sustainedLowLocked reports whether the newest debounceSamples raw samples
// all sit below the scale-down threshold. Fewer samples than the debounce
// window fails the check.
func (p *Policy) sustainedLowLocked(history []load.Sample) bool {
	if len(history) < p.debounceSamples {
		return false
	}
	for _, s := range history[len(history)-p.debounceSamples:] {
		if s.CPULoad >= p.thresholds.ScaleDown {
			return false
		}
	}
	return true
}

// movingAvg averages value over the newest n samples. When n is zero or
// exceeds the history length the whole history is averaged.
func movingAvg(history []load.Sample, n int, value func(load.Sample) float64) float64 {
	if len(history) == 0 {
		return 0
	}
	if n <= 0 || n > len(history) {
		n = len(history)
	}
	sum := 0.0
	for _, s := range history[len(history)-n:] {
		sum += value(s)
	}
	return sum / float64(n)
}
