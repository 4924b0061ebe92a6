// Package clock abstracts time for the supervisor's periodic machinery.
//
// All sampling intervals, health sweeps, scaling evaluations, respawn delays,
// and shutdown grace periods go through a [Clock] rather than the time
// package directly, so tests can drive them deterministically with a [Fake]
// instead of sleeping.
package clock

import "time"

// Clock provides the time operations the supervisor depends on.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// NewTicker returns a Ticker that delivers ticks every d.
	// It panics if d is not positive, matching time.NewTicker.
	NewTicker(d time.Duration) Ticker

	// AfterFunc schedules f to run once after d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker delivers periodic ticks on a channel until stopped.
type Ticker interface {
	// C returns the channel on which ticks are delivered.
	C() <-chan time.Time

	// Stop turns off the ticker. It does not close the channel.
	Stop()
}

// Timer is a handle to a pending AfterFunc call.
type Timer interface {
	// Stop cancels the pending call. It reports whether the call was
	// prevented from running.
	Stop() bool
}

// System returns a Clock backed by the time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return systemTimer{t: time.AfterFunc(d, f)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time {
	return s.t.C
}

func (s *systemTicker) Stop() {
	s.t.Stop()
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool {
	return s.t.Stop()
}
