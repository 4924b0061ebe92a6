package supervisor

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/maestro/internal/clock"
	"github.com/Iron-Ham/maestro/internal/config"
	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/event"
	"github.com/Iron-Ham/maestro/internal/health"
	"github.com/Iron-Ham/maestro/internal/load"
	"github.com/Iron-Ham/maestro/internal/logging"
	"github.com/Iron-Ham/maestro/internal/protocol"
	"github.com/Iron-Ham/maestro/internal/registry"
	"github.com/Iron-Ham/maestro/internal/restart"
	"github.com/Iron-Ham/maestro/internal/scaling"
	"github.com/Iron-Ham/maestro/internal/worker"
)

// Channel capacities for the run loop funnels. Buffers absorb bursts
// so worker forwarders and timer callbacks rarely block.
const (
	eventBuffer    = 64
	respawnBuffer  = 16
	deadlineBuffer = 2
)

// workerEventKind discriminates funneled worker notifications.
type workerEventKind int

const (
	eventMessage workerEventKind = iota
	eventExit
)

// workerEvent is one notification from a worker forwarder goroutine.
type workerEvent struct {
	kind     workerEventKind
	workerID string
	envelope protocol.Envelope
	status   worker.ExitStatus
}

// respawnOrder is a governor-approved delayed spawn coming due.
type respawnOrder struct {
	token      int
	generation int
}

// shutdownPhase identifies which shutdown timer expired.
type shutdownPhase int

const (
	phaseGraceExpired shutdownPhase = iota
	phaseForceDelayExpired
)

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithBus sets the event bus decisions and lifecycle changes are
// published on. Defaults to a fresh bus.
func WithBus(bus *event.Bus) Option {
	return func(s *Supervisor) { s.bus = bus }
}

// WithClock sets the clock driving tickers, delays, and timestamps.
// Defaults to the system clock.
func WithClock(clk clock.Clock) Option {
	return func(s *Supervisor) { s.clk = clk }
}

// WithHandleFactory sets the factory used to create worker handles.
// Defaults to worker.ExecFactory, which launches real processes.
func WithHandleFactory(factory worker.Factory) Option {
	return func(s *Supervisor) { s.factory = factory }
}

// WithLoadSources overrides the host-level load inputs. Fields left
// nil keep the system implementations.
func WithLoadSources(sources load.Sources) Option {
	return func(s *Supervisor) { s.sources = sources }
}

// Supervisor owns one worker pool. Create it with New and drive it
// with Run; every other method is a thread-safe view or control.
type Supervisor struct {
	config  *config.Config
	log     *logging.Logger
	bus     *event.Bus
	clk     clock.Clock
	factory worker.Factory
	sources load.Sources

	id  string
	pid int

	registry *registry.Registry
	governor *restart.Governor
	monitor  *health.Monitor
	sampler  *load.Sampler
	policy   *scaling.Policy
	executor *scaling.Executor

	events    chan workerEvent
	respawns  chan respawnOrder
	shutdowns chan struct{}
	deadlines chan shutdownPhase
	done      chan struct{}

	mu        sync.Mutex
	state     State
	runErr    error
	started   bool
	startedAt time.Time
	target    int

	// Owned by the run goroutine; never touched elsewhere.
	runCtx        context.Context
	nextSeq       int
	respawnSeq    int
	respawnTimers map[int]clock.Timer
	graceTimer    clock.Timer
	forceTimer    clock.Timer
}

// New creates a supervisor for the given configuration. A nil cfg uses
// the defaults. The configuration is validated up front so a broken
// one fails here rather than mid-run.
func New(cfg *config.Config, opts ...Option) (*Supervisor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, config.ValidationErrors(errs)
	}

	s := &Supervisor{
		config:  cfg,
		log:     logging.NopLogger(),
		clk:     clock.System(),
		factory: worker.ExecFactory,

		id:  uuid.NewString(),
		pid: os.Getpid(),

		events:    make(chan workerEvent, eventBuffer),
		respawns:  make(chan respawnOrder, respawnBuffer),
		shutdowns: make(chan struct{}, 1),
		deadlines: make(chan shutdownPhase, deadlineBuffer),
		done:      make(chan struct{}),

		state:  StateRunning,
		target: cfg.Supervisor.MinWorkers,

		respawnTimers: make(map[int]clock.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = event.NewBus()
	}

	s.registry = registry.New()

	monitor, err := health.New(health.Config{
		CheckInterval:      cfg.Health.CheckInterval,
		StalenessThreshold: cfg.Health.StalenessThreshold,
		SoftMemoryLimitMB:  cfg.Health.SoftMemoryLimitMB,
	}, s.registry)
	if err != nil {
		return nil, err
	}
	s.monitor = monitor

	governor, err := restart.New(restart.Config{
		Window:       cfg.Restart.Window,
		MaxRestarts:  cfg.Restart.MaxRestarts,
		RespawnDelay: cfg.Restart.RespawnDelay,
	})
	if err != nil {
		return nil, err
	}
	s.governor = governor

	s.sampler = load.NewSampler(cfg.Scaling.HistorySize, s.sources)

	s.policy = scaling.NewPolicy(
		scaling.WithMinWorkers(cfg.Supervisor.MinWorkers),
		scaling.WithMaxWorkers(cfg.Supervisor.MaxWorkers),
		scaling.WithThresholds(scaling.Thresholds{
			ScaleUp:        cfg.Scaling.Thresholds.ScaleUp,
			ScaleDown:      cfg.Scaling.Thresholds.ScaleDown,
			CriticalMemory: cfg.Scaling.Thresholds.CriticalMemory,
		}),
		scaling.WithCooldown(cfg.Scaling.Cooldown),
		scaling.WithMovingAvgSamples(cfg.Scaling.MovingAvgSamples),
		scaling.WithDebounceSamples(cfg.Scaling.DebounceSamples),
	)

	s.executor = scaling.NewExecutor(s.policy, s.registry,
		func() error { return s.spawnWorker(0) },
		scaling.WithExecutorClock(s.clk),
		scaling.WithExecutorLogger(s.log),
		scaling.WithDrainGrace(cfg.Scaling.DrainGracePeriod),
		scaling.WithHistorySize(cfg.Scaling.HistorySize),
	)

	return s, nil
}

// ID returns the unique identifier of this supervisor run.
func (s *Supervisor) ID() string {
	return s.id
}

// Bus returns the event bus the supervisor publishes on.
func (s *Supervisor) Bus() *event.Bus {
	return s.bus
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the terminal error, or nil for a clean shutdown. It is
// meaningful once Done is closed.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runErr
}

// Done returns a channel closed when the supervisor has fully exited.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

// Shutdown requests a graceful shutdown. It never blocks and is safe
// to call from any goroutine, any number of times; calls after the
// first are no-ops.
func (s *Supervisor) Shutdown() {
	select {
	case s.shutdowns <- struct{}{}:
	default:
	}
}

// Registry exposes the worker registry for read-side consumers.
func (s *Supervisor) Registry() *registry.Registry {
	return s.registry
}

func (s *Supervisor) setTarget(n int) {
	s.mu.Lock()
	s.target = n
	s.mu.Unlock()
}

func (s *Supervisor) fatal(msg string, cause error) error {
	return errors.NewSupervisorError(msg, cause).
		WithState(s.State().String()).
		WithSeverity(errors.SeverityCritical)
}
