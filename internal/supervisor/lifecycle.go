package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/maestro/internal/errors"
	"github.com/Iron-Ham/maestro/internal/event"
	"github.com/Iron-Ham/maestro/internal/protocol"
	"github.com/Iron-Ham/maestro/internal/registry"
	"github.com/Iron-Ham/maestro/internal/scaling"
	"github.com/Iron-Ham/maestro/internal/worker"
)

// Run starts the worker pool and blocks until the supervisor exits.
// It spawns the minimum worker count, then serves the coordination
// loop: worker messages and exits, respawn timers, periodic sampling,
// health sweeps, scaling evaluations, and shutdown triggers all land
// here, so no other goroutine ever mutates pool state.
//
// Cancelling ctx is equivalent to calling Shutdown. Run returns nil
// after a clean shutdown and the terminal error otherwise; a restart
// storm surfaces as an error wrapping errors.ErrRestartStorm.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.NewSupervisorError("supervisor can only be started once", nil)
	}
	s.started = true
	s.startedAt = s.clk.Now()
	s.mu.Unlock()

	s.runCtx = ctx

	s.log.Info("supervisor starting",
		"supervisor_id", s.id,
		"pid", s.pid,
		"min_workers", s.config.Supervisor.MinWorkers,
		"max_workers", s.config.Supervisor.MaxWorkers,
		"command", s.config.Worker.Command,
	)

	for range s.config.Supervisor.MinWorkers {
		if err := s.spawnWorker(0); err != nil {
			s.log.Error("initial worker spawn failed", "error", err)
		}
	}

	sampleTicker := s.clk.NewTicker(s.config.Scaling.SampleInterval)
	defer sampleTicker.Stop()
	healthTicker := s.clk.NewTicker(s.config.Health.CheckInterval)
	defer healthTicker.Stop()
	evaluateTicker := s.clk.NewTicker(s.config.Scaling.EvaluateInterval)
	defer evaluateTicker.Stop()

	defer close(s.done)

	ctxDone := ctx.Done()
	for s.State() != StateExited {
		select {
		case <-ctxDone:
			ctxDone = nil
			s.beginShutdown()

		case <-s.shutdowns:
			s.beginShutdown()

		case ev := <-s.events:
			switch ev.kind {
			case eventMessage:
				s.onWorkerMessage(ev.workerID, ev.envelope)
			case eventExit:
				s.onWorkerExit(ev.workerID, ev.status)
			}

		case order := <-s.respawns:
			s.onRespawnDue(order)

		case phase := <-s.deadlines:
			switch phase {
			case phaseGraceExpired:
				s.onGraceExpired()
			case phaseForceDelayExpired:
				s.onForceDelayExpired()
			}

		case <-sampleTicker.C():
			if s.State() == StateRunning {
				s.sampleLoad()
			}

		case <-healthTicker.C():
			if s.State() == StateRunning {
				s.sweepHealth()
			}

		case <-evaluateTicker.C():
			if s.State() == StateRunning {
				s.evaluateScaling()
			}
		}
	}

	if err := s.Err(); err != nil {
		s.log.Error("supervisor stopped", "error", err)
		return err
	}
	s.log.Info("supervisor stopped")
	return nil
}

// ---- Worker lifecycle ----

// spawnWorker launches one worker and registers it. Generation 0 is a
// fresh slot; respawns carry the predecessor's generation plus one.
func (s *Supervisor) spawnWorker(generation int) error {
	s.nextSeq++
	id := fmt.Sprintf("w-%d", s.nextSeq)

	handle := s.factory(worker.Config{
		ID:                id,
		Command:           s.config.Worker.Command,
		Args:              s.config.Worker.Args,
		WorkDir:           s.config.Worker.WorkDir,
		Env:               s.config.Worker.EnvSlice(),
		HeartbeatInterval: s.config.Worker.HeartbeatInterval,
	})

	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := handle.Start(ctx); err != nil {
		return errors.NewWorkerError("spawn failed", err).WithWorkerID(id)
	}

	rec := registry.Record{
		ID:         id,
		Handle:     handle,
		StartedAt:  s.clk.Now(),
		Generation: generation,
	}
	if err := s.registry.Add(rec); err != nil {
		_ = handle.Stop(worker.StopForced)
		return err
	}

	go s.forwardWorker(id, handle)

	s.log.Info("worker spawned", "worker_id", id, "pid", handle.PID(), "generation", generation)
	s.bus.Publish(event.NewWorkerSpawnedEvent(id, handle.PID(), generation))
	return nil
}

// forwardWorker pumps one worker's messages and final exit status into
// the run loop. It ends when the worker is gone or the loop is.
func (s *Supervisor) forwardWorker(id string, handle worker.Handle) {
	for env := range handle.Messages() {
		select {
		case s.events <- workerEvent{kind: eventMessage, workerID: id, envelope: env}:
		case <-s.done:
			return
		}
	}

	status := <-handle.Done()
	select {
	case s.events <- workerEvent{kind: eventExit, workerID: id, status: status}:
	case <-s.done:
	}
}

func (s *Supervisor) onWorkerMessage(id string, env protocol.Envelope) {
	now := s.clk.Now()

	switch env.Type {
	case protocol.TypeReady:
		// Only the first ready message counts.
		if h, ok := s.registry.HealthOf(id); ok && h.Ready {
			return
		}
		if !s.registry.RecordReady(id, now) {
			return
		}
		pid := 0
		if rec, ok := s.registry.Get(id); ok {
			pid = rec.Handle.PID()
		}
		s.log.Info("worker ready", "worker_id", id, "pid", pid)
		s.bus.Publish(event.NewWorkerReadyEvent(id, pid))

	case protocol.TypeHeartbeat:
		if env.Heartbeat == nil {
			return
		}
		s.registry.RecordHeartbeat(id, *env.Heartbeat, now)
	}
}

func (s *Supervisor) onWorkerExit(id string, status worker.ExitStatus) {
	s.executor.WorkerExited(id)

	rec, err := s.registry.Remove(id)
	if err != nil {
		return
	}

	intentional := rec.Draining
	s.bus.Publish(event.NewWorkerExitedEvent(id, rec.Handle.PID(), status.Code, status.Signaled, intentional))

	if intentional {
		s.log.Info("worker exited",
			"worker_id", id,
			"pid", rec.Handle.PID(),
			"code", status.Code,
			"signaled", status.Signaled,
		)
		s.maybeFinishShutdown()
		return
	}

	s.log.Warn("worker crashed",
		"worker_id", id,
		"pid", rec.Handle.PID(),
		"code", status.Code,
		"signaled", status.Signaled,
		"generation", rec.Generation,
	)
	if status.Err != nil {
		s.log.Warn("worker exit status degraded", "worker_id", id, "error", status.Err)
	}

	// Exits landing after shutdown began never respawn.
	if s.State() != StateRunning {
		s.maybeFinishShutdown()
		return
	}

	verdict := s.governor.OnCrash(s.clk.Now())
	if verdict.Fatal {
		s.log.Error("restart storm detected, shutting down",
			"window_count", verdict.WindowCount,
			"window", s.config.Restart.Window,
		)
		s.bus.Publish(event.NewRestartStormEvent(id, verdict.WindowCount, s.config.Restart.Window))
		s.setErr(s.fatal("workers are crash-looping", errors.ErrRestartStorm))
		s.beginShutdown()
		return
	}

	s.log.Info("worker respawn scheduled",
		"worker_id", id,
		"after", verdict.After,
		"window_count", verdict.WindowCount,
	)
	// The timer is armed before the event goes out so a subscriber
	// reacting to it already sees the respawn pending.
	s.scheduleRespawn(rec.Generation+1, verdict.After)
	s.bus.Publish(event.NewRestartScheduledEvent(id, verdict.After, verdict.WindowCount))
}

func (s *Supervisor) scheduleRespawn(generation int, after time.Duration) {
	s.respawnSeq++
	order := respawnOrder{token: s.respawnSeq, generation: generation}
	s.respawnTimers[order.token] = s.clk.AfterFunc(after, func() {
		select {
		case s.respawns <- order:
		case <-s.done:
		}
	})
}

func (s *Supervisor) onRespawnDue(order respawnOrder) {
	delete(s.respawnTimers, order.token)

	if s.State() != StateRunning {
		s.log.Debug("respawn dropped, supervisor not running", "generation", order.generation)
		return
	}
	if s.registry.ActiveCount() >= s.config.Supervisor.MaxWorkers {
		s.log.Debug("respawn dropped, pool already at maximum", "generation", order.generation)
		return
	}

	if err := s.spawnWorker(order.generation); err != nil {
		s.log.Error("respawn failed", "generation", order.generation, "error", err)
	}
}

// ---- Periodic work ----

func (s *Supervisor) sampleLoad() {
	snapshot := s.registry.HealthSnapshot()
	usages := make([]protocol.MemoryUsage, 0, len(snapshot))
	for _, h := range snapshot {
		usages = append(usages, h.Memory)
	}

	sample, err := s.sampler.Observe(s.clk.Now(), usages, s.registry.Count())
	if err != nil {
		s.log.Warn("load sample degraded", "error", err)
	}

	s.log.Debug("load sampled",
		"cpu_load", sample.CPULoad,
		"memory_pressure", sample.MemoryPressure,
		"workers", sample.WorkerCount,
	)
	s.bus.Publish(event.NewLoadSampleEvent(sample.CPULoad, sample.MemoryPressure, sample.WorkerCount))
}

func (s *Supervisor) sweepHealth() {
	now := s.clk.Now()
	report := s.monitor.Check(now)

	for _, warning := range report.OverMemory {
		s.log.Warn("worker above soft memory limit",
			"worker_id", warning.WorkerID,
			"pid", warning.PID,
			"rss_bytes", warning.RSSBytes,
			"limit_bytes", warning.LimitBytes,
		)
		s.bus.Publish(event.NewWorkerOverMemoryEvent(warning.WorkerID, warning.PID, warning.RSSBytes, warning.LimitBytes))
	}

	for _, rec := range report.Stale {
		silence := now.Sub(rec.StartedAt)
		if h, ok := s.registry.HealthOf(rec.ID); ok && !h.LastHeartbeatAt.IsZero() {
			silence = now.Sub(h.LastHeartbeatAt)
		}

		s.log.Warn("worker unresponsive, force killing",
			"worker_id", rec.ID,
			"pid", rec.Handle.PID(),
			"since_heartbeat", silence,
		)
		s.bus.Publish(event.NewWorkerUnresponsiveEvent(rec.ID, rec.Handle.PID(), silence))

		// No draining mark: the exit must take the crash path so the
		// governor counts it and schedules the replacement.
		if err := rec.Handle.Stop(worker.StopForced); err != nil {
			s.log.Error("force kill failed", "worker_id", rec.ID, "error", err)
		}
	}
}

func (s *Supervisor) evaluateScaling() {
	s.ensureMinWorkers()

	now := s.clk.Now()
	history := s.sampler.History().All()
	current := s.registry.ActiveCount()

	decision := s.policy.Evaluate(history, current, now)
	if decision.Action == scaling.ActionNone {
		s.log.Debug("scaling evaluated", "action", "none", "reason", decision.Reason)
		return
	}

	s.log.Info("scaling decision",
		"action", decision.Action,
		"reason", decision.Reason,
		"current_workers", current,
		"target_workers", decision.TargetWorkers,
	)
	s.bus.Publish(event.NewScalingDecisionEvent(string(decision.Action), decision.Reason, current, decision.TargetWorkers))

	entry, applied := s.executor.Apply(decision)
	if !applied {
		return
	}
	s.setTarget(entry.ToCount)
	s.bus.Publish(event.NewScalingExecutedEvent(string(entry.Action), entry.Reason, entry.FromCount, entry.ToCount))
}

// ensureMinWorkers tops the pool back up to the floor. A spawn that
// fails here is retried on the next evaluation cycle.
func (s *Supervisor) ensureMinWorkers() {
	missing := s.config.Supervisor.MinWorkers - s.registry.ActiveCount()
	for range missing {
		if err := s.spawnWorker(0); err != nil {
			s.log.Error("worker floor spawn failed", "error", err)
		}
	}
}

// ---- Shutdown coordinator ----

// beginShutdown moves Running to Draining: scaling and restarts are
// frozen, every worker is asked to exit gracefully, and the grace
// timer is armed. Calls in any other state are no-ops.
func (s *Supervisor) beginShutdown() {
	if s.State() != StateRunning {
		return
	}
	s.transition(StateDraining)

	s.executor.CancelAll()
	for token, timer := range s.respawnTimers {
		timer.Stop()
		delete(s.respawnTimers, token)
	}

	live := s.registry.List()
	if len(live) == 0 {
		s.enterExited()
		return
	}

	// Armed before the stop requests go out: the grace period runs
	// from the start of the drain, not from the last SIGTERM.
	s.graceTimer = s.clk.AfterFunc(s.config.Shutdown.GracePeriod, func() {
		select {
		case s.deadlines <- phaseGraceExpired:
		case <-s.done:
		}
	})

	s.log.Info("draining workers",
		"count", len(live),
		"grace_period", s.config.Shutdown.GracePeriod,
	)
	for _, rec := range live {
		_ = s.registry.MarkDraining(rec.ID)
		if err := rec.Handle.Stop(worker.StopGraceful); err != nil {
			s.log.Error("graceful stop failed", "worker_id", rec.ID, "error", err)
		}
	}
}

// onGraceExpired moves Draining to ForceKilling: anything still alive
// is sent SIGKILL, and the force-kill delay timer is armed.
func (s *Supervisor) onGraceExpired() {
	if s.State() != StateDraining {
		return
	}
	s.transition(StateForceKilling)

	remaining := s.registry.List()
	if len(remaining) == 0 {
		s.enterExited()
		return
	}

	s.forceTimer = s.clk.AfterFunc(s.config.Shutdown.ForceKillDelay, func() {
		select {
		case s.deadlines <- phaseForceDelayExpired:
		case <-s.done:
		}
	})

	s.log.Warn("grace period expired, force killing remaining workers", "count", len(remaining))
	for _, rec := range remaining {
		if err := rec.Handle.Stop(worker.StopForced); err != nil {
			s.log.Error("force kill failed", "worker_id", rec.ID, "error", err)
		}
	}
}

// onForceDelayExpired ends the shutdown whether or not every exit has
// been observed; the sequence is bounded.
func (s *Supervisor) onForceDelayExpired() {
	if s.State() != StateForceKilling {
		return
	}
	if n := s.registry.Count(); n > 0 {
		s.log.Error("workers survived force kill, abandoning", "count", n)
	}
	s.enterExited()
}

// maybeFinishShutdown advances straight to Exited once the last worker
// is gone during a drain or force-kill phase.
func (s *Supervisor) maybeFinishShutdown() {
	st := s.State()
	if st != StateDraining && st != StateForceKilling {
		return
	}
	if s.registry.Count() > 0 {
		return
	}
	s.enterExited()
}

func (s *Supervisor) enterExited() {
	if s.State() == StateExited {
		return
	}
	if s.graceTimer != nil {
		s.graceTimer.Stop()
	}
	if s.forceTimer != nil {
		s.forceTimer.Stop()
	}
	s.transition(StateExited)
}

// transition applies a state change and announces it. State only moves
// forward, so callers check the current state before calling.
func (s *Supervisor) transition(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()

	s.log.Info("supervisor state changed", "previous", prev.String(), "current", next.String())
	s.bus.Publish(event.NewSupervisorStateChangedEvent(s.id, event.State(prev.String()), event.State(next.String())))
}

func (s *Supervisor) setErr(err error) {
	s.mu.Lock()
	if s.runErr == nil {
		s.runErr = err
	}
	s.mu.Unlock()
}
