// Package supervisor runs the worker pool: it spawns and registers
// worker processes, tracks their heartbeats, restarts crashed workers
// within the restart budget, samples host load, and applies scaling
// decisions, finishing with a bounded graceful shutdown.
//
// # Main Types
//
//   - [Supervisor]: the coordinating actor owning all pool state
//   - [State]: the lifecycle state machine (Running through Exited)
//   - [Status]: point-in-time snapshot served to operators
//   - [ScalingStatus]: scaling view with load history and cooldown
//
// # Architecture
//
// A single goroutine inside [Supervisor.Run] owns every coordination
// decision. Worker messages and exits are funneled into it over
// channels by lightweight forwarder goroutines, and all periodic work
// (load sampling, health sweeps, scaling evaluation) arrives as ticker
// ticks on the same select loop. The worker registry is the only
// state shared with other goroutines, and it carries its own lock.
//
// # Usage
//
//	cfg := config.Default()
//	cfg.Worker.Command = "./worker"
//	sup, err := supervisor.New(cfg)
//	if err != nil {
//	    return err
//	}
//	go func() {
//	    sigs := make(chan os.Signal, 1)
//	    signal.Notify(sigs, syscall.SIGTERM)
//	    <-sigs
//	    sup.Shutdown()
//	}()
//	err = sup.Run(ctx)
//
// # Thread Safety
//
// The public API (Shutdown, State, Status, ScalingStatus, Done, Err)
// is safe to call from any goroutine. Run must be called exactly once.
package supervisor
