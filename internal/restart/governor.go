// Package restart decides whether crashed workers get respawned.
//
// The governor counts unintentional worker exits, starting the count
// over whenever crashes are further apart than the window. While the
// count stays below the budget each crash earns a delayed respawn; the
// crash that reaches the budget is a restart storm and the supervisor
// shuts down instead of thrashing.
package restart

import (
	"sync"
	"time"

	"github.com/Iron-Ham/maestro/internal/errors"
)

// Config holds the restart governor settings.
type Config struct {
	// Window is the interval crashes are counted over. The counter
	// resets when the gap between consecutive crashes exceeds it.
	Window time.Duration

	// MaxRestarts is the crash count inside one window that declares a
	// restart storm. Crashes below it earn respawns.
	MaxRestarts int

	// RespawnDelay is how long to wait before spawning a replacement.
	RespawnDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Window:       60 * time.Second,
		MaxRestarts:  5,
		RespawnDelay: time.Second,
	}
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.Window <= 0 {
		return errors.NewValidationError("Window must be positive").
			WithField("restart.window").WithValue(c.Window)
	}
	if c.MaxRestarts < 1 {
		return errors.NewValidationError("MaxRestarts must be at least 1").
			WithField("restart.max_restarts").WithValue(c.MaxRestarts)
	}
	if c.RespawnDelay < 0 {
		return errors.NewValidationError("RespawnDelay cannot be negative").
			WithField("restart.respawn_delay").WithValue(c.RespawnDelay)
	}
	return nil
}

// Verdict is the governor's decision for one crash.
type Verdict struct {
	// Fatal is true when the crash count reached the restart budget
	// and the supervisor should stop instead of respawning.
	Fatal bool

	// After is the delay before the replacement worker is spawned.
	// Zero when Fatal.
	After time.Duration

	// WindowCount is the number of crashes inside the current window,
	// this one included.
	WindowCount int
}

// Governor tracks crash frequency across all workers.
// It is thread-safe and can be used concurrently.
type Governor struct {
	config Config

	mu          sync.Mutex
	count       int       // crashes in the current window
	lastCrashAt time.Time // previous crash, anchors the gap check
	total       int       // respawns granted since startup
	stormed     bool
}

// New creates a restart governor.
func New(config Config) (*Governor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Governor{config: config}, nil
}

// OnCrash records an unintentional worker exit at the given time and
// decides what happens next. Once a storm has been declared every
// further crash is fatal as well.
func (g *Governor) OnCrash(now time.Time) Verdict {
	g.mu.Lock()
	defer g.mu.Unlock()

	// The window restarts when the gap since the previous crash
	// exceeds it. A gap of exactly the window length stays inside.
	if g.count > 0 && now.Sub(g.lastCrashAt) > g.config.Window {
		g.count = 0
	}
	g.count++
	g.lastCrashAt = now

	if g.stormed || g.count >= g.config.MaxRestarts {
		g.stormed = true
		return Verdict{Fatal: true, WindowCount: g.count}
	}

	g.total++
	return Verdict{After: g.config.RespawnDelay, WindowCount: g.count}
}

// TotalRestarts returns the number of respawns granted since startup.
func (g *Governor) TotalRestarts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

// Stormed reports whether the governor has declared a restart storm.
func (g *Governor) Stormed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stormed
}
