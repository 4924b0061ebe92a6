// Package logging provides structured logging for the Maestro supervisor.
//
// This package wraps Go's log/slog to produce JSON-formatted logs with
// persistent context attributes, so fleet events can be filtered per worker
// or per component after the fact. A supervisor run typically emits a long,
// append-only stream covering spawns, heartbeats, scaling decisions, and
// shutdown, which makes structure and rotation more useful than free text.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (supervisor run ID, worker ID, component)
//   - Size-based log rotation with optional gzip compression
//   - Reading and filtering of previously written logs
//
// # Basic Usage
//
// Create a logger writing to a file (or stderr when path is empty):
//
//	logger, err := logging.New("/var/log/maestro/maestro.log", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("worker spawned", "worker_id", id, "pid", pid)
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	runLogger := logger.WithSupervisor(runID)
//	workerLogger := runLogger.WithWorker("worker-4fa2")
//	workerLogger.Warn("heartbeat stale", "age_seconds", 72)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"heartbeat stale","supervisor_id":"...","worker_id":"worker-4fa2","age_seconds":72}
//
// # Rotation
//
// Long-running supervisors should rotate:
//
//	cfg := logging.RotationConfig{MaxSizeMB: 10, MaxBackups: 3, Compress: true}
//	logger, err := logging.NewWithRotation(path, "INFO", cfg)
//
// Rotated files are named maestro.log.1, maestro.log.2, and so on, with .1
// the most recent. Compressed backups gain a .gz suffix.
//
// # Testing
//
// Use [NopLogger] to discard output in tests.
package logging
