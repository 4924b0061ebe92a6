// Package scaling decides when the supervisor should add or remove workers,
// and carries those decisions out.
//
// The policy consumes the load history collected by the sampler and compares
// moving averages against configurable thresholds. Decisions are damped two
// ways: a cooldown period after every executed action, and a debounce that
// requires sustained low load before removing a worker. Critical memory
// pressure bypasses the cooldown and sheds workers immediately.
//
// The core types are:
//
//   - [Policy]: evaluates load history against thresholds and produces a [Decision]
//   - [Executor]: applies decisions by spawning new workers or draining old ones
//   - [History]: bounded log of executed actions for status reporting
//
// # Usage
//
//	policy := scaling.NewPolicy(
//	    scaling.WithMinWorkers(2),
//	    scaling.WithMaxWorkers(8),
//	    scaling.WithCooldown(2*time.Minute),
//	)
//
//	executor := scaling.NewExecutor(policy, reg, spawnWorker)
//
//	decision := policy.Evaluate(sampler.History().All(), reg.ActiveCount(), time.Now())
//	if entry, applied := executor.Apply(decision); applied {
//	    log.Info("scaling action executed", "action", entry.Action, "to", entry.ToCount)
//	}
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package scaling
