package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when Advance is called. Timers and
// tickers scheduled on it fire synchronously, in deadline order, during
// Advance. It is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
	seq     int
}

// fakeWaiter is a pending timer or ticker. period is zero for one-shot
// timers. seq breaks ties between waiters sharing a deadline so firing
// order matches scheduling order.
type fakeWaiter struct {
	when    time.Time
	seq     int
	period  time.Duration
	ch      chan time.Time
	fn      func()
	stopped bool
}

// NewFake returns a Fake clock frozen at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker returns a ticker firing every d in fake time.
// It panics if d is not positive, matching time.NewTicker.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("non-positive interval for NewTicker")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w := &fakeWaiter{
		when:   f.now.Add(d),
		seq:    f.nextSeq(),
		period: d,
		ch:     make(chan time.Time, 1),
	}
	f.waiters = append(f.waiters, w)
	return &fakeTicker{fake: f, w: w}
}

// AfterFunc schedules fn to run once d of fake time has passed. The callback
// runs synchronously inside Advance, on the goroutine calling Advance.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := &fakeWaiter{
		when: f.now.Add(d),
		seq:  f.nextSeq(),
		fn:   fn,
	}
	f.waiters = append(f.waiters, w)
	return &fakeTimer{fake: f, w: w}
}

// Advance moves the fake time forward by d, firing every due timer and
// ticker in deadline order. AfterFunc callbacks run inline and may schedule
// further timers; anything they schedule inside the advanced window fires in
// the same call.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)

	for {
		w := f.nextDue(target)
		if w == nil {
			break
		}

		f.now = w.when

		if w.period > 0 {
			w.when = w.when.Add(w.period)
			w.seq = f.nextSeq()
			// Tickers drop ticks when the receiver lags, like
			// time.Ticker.
			select {
			case w.ch <- f.now:
			default:
			}
			continue
		}

		f.removeWaiter(w)
		if w.fn != nil {
			// Run the callback unlocked so it can use the clock.
			f.mu.Unlock()
			w.fn()
			f.mu.Lock()
		}
	}

	f.now = target
	f.mu.Unlock()
}

// nextDue returns the earliest unstopped waiter due at or before target.
// The caller must hold the mutex.
func (f *Fake) nextDue(target time.Time) *fakeWaiter {
	var due *fakeWaiter
	for _, w := range f.waiters {
		if w.stopped || w.when.After(target) {
			continue
		}
		if due == nil || w.when.Before(due.when) || (w.when.Equal(due.when) && w.seq < due.seq) {
			due = w
		}
	}
	return due
}

// removeWaiter drops w from the waiter list. The caller must hold the mutex.
func (f *Fake) removeWaiter(w *fakeWaiter) {
	for i, candidate := range f.waiters {
		if candidate == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// nextSeq returns a fresh scheduling sequence number.
// The caller must hold the mutex.
func (f *Fake) nextSeq() int {
	f.seq++
	return f.seq
}

type fakeTicker struct {
	fake *Fake
	w    *fakeWaiter
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.w.ch
}

func (t *fakeTicker) Stop() {
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()
	t.w.stopped = true
	t.fake.removeWaiter(t.w)
}

type fakeTimer struct {
	fake *Fake
	w    *fakeWaiter
}

func (t *fakeTimer) Stop() bool {
	t.fake.mu.Lock()
	defer t.fake.mu.Unlock()
	if t.w.stopped {
		return false
	}
	t.w.stopped = true

	pending := false
	for _, candidate := range t.fake.waiters {
		if candidate == t.w {
			pending = true
			break
		}
	}
	t.fake.removeWaiter(t.w)
	return pending
}
