package config

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/maestro/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "supervisor.min_workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogFormats returns the list of valid log output formats
func ValidLogFormats() []string {
	return logging.ValidFormats()
}

// Validate checks the Config for invalid values and returns all validation
// errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateSupervisor()...)
	errors = append(errors, c.validateWorker()...)
	errors = append(errors, c.validateHealth()...)
	errors = append(errors, c.validateRestart()...)
	errors = append(errors, c.validateScaling()...)
	errors = append(errors, c.validateShutdown()...)
	errors = append(errors, c.validateAdmin()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateSupervisor validates the SupervisorConfig
func (c *Config) validateSupervisor() []ValidationError {
	var errors []ValidationError

	if c.Supervisor.MinWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervisor.min_workers",
			Value:   c.Supervisor.MinWorkers,
			Message: "must be at least 1",
		})
	}
	if c.Supervisor.MaxWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "supervisor.max_workers",
			Value:   c.Supervisor.MaxWorkers,
			Message: "must be at least 1",
		})
	}
	if c.Supervisor.MinWorkers >= 1 && c.Supervisor.MaxWorkers >= 1 &&
		c.Supervisor.MaxWorkers < c.Supervisor.MinWorkers {
		errors = append(errors, ValidationError{
			Field:   "supervisor.max_workers",
			Value:   c.Supervisor.MaxWorkers,
			Message: fmt.Sprintf("must be at least supervisor.min_workers (%d)", c.Supervisor.MinWorkers),
		})
	}

	return errors
}

// validateWorker validates the WorkerConfig. The command itself is checked
// at serve time; an empty command is valid for status-only commands.
func (c *Config) validateWorker() []ValidationError {
	var errors []ValidationError

	if c.Worker.HeartbeatInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "worker.heartbeat_interval",
			Value:   c.Worker.HeartbeatInterval,
			Message: "must be positive",
		})
	}

	return errors
}

// validateHealth validates the HealthConfig
func (c *Config) validateHealth() []ValidationError {
	var errors []ValidationError

	if c.Health.CheckInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "health.check_interval",
			Value:   c.Health.CheckInterval,
			Message: "must be positive",
		})
	}
	if c.Health.StalenessThreshold <= 0 {
		errors = append(errors, ValidationError{
			Field:   "health.staleness_threshold",
			Value:   c.Health.StalenessThreshold,
			Message: "must be positive",
		})
	}
	// A threshold at or below the heartbeat interval would flag every
	// healthy worker as unresponsive.
	if c.Health.StalenessThreshold > 0 && c.Worker.HeartbeatInterval > 0 &&
		c.Health.StalenessThreshold <= c.Worker.HeartbeatInterval {
		errors = append(errors, ValidationError{
			Field:   "health.staleness_threshold",
			Value:   c.Health.StalenessThreshold,
			Message: fmt.Sprintf("must be greater than worker.heartbeat_interval (%v)", c.Worker.HeartbeatInterval),
		})
	}
	if c.Health.SoftMemoryLimitMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "health.soft_memory_limit_mb",
			Value:   c.Health.SoftMemoryLimitMB,
			Message: "must be non-negative (0 disables the check)",
		})
	}

	return errors
}

// validateRestart validates the RestartConfig
func (c *Config) validateRestart() []ValidationError {
	var errors []ValidationError

	if c.Restart.Window <= 0 {
		errors = append(errors, ValidationError{
			Field:   "restart.window",
			Value:   c.Restart.Window,
			Message: "must be positive",
		})
	}
	if c.Restart.MaxRestarts < 1 {
		errors = append(errors, ValidationError{
			Field:   "restart.max_restarts",
			Value:   c.Restart.MaxRestarts,
			Message: "must be at least 1",
		})
	}
	if c.Restart.RespawnDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "restart.respawn_delay",
			Value:   c.Restart.RespawnDelay,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateScaling validates the ScalingConfig
func (c *Config) validateScaling() []ValidationError {
	var errors []ValidationError

	if c.Scaling.SampleInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scaling.sample_interval",
			Value:   c.Scaling.SampleInterval,
			Message: "must be positive",
		})
	}
	if c.Scaling.EvaluateInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scaling.evaluate_interval",
			Value:   c.Scaling.EvaluateInterval,
			Message: "must be positive",
		})
	}
	if c.Scaling.HistorySize < 1 {
		errors = append(errors, ValidationError{
			Field:   "scaling.history_size",
			Value:   c.Scaling.HistorySize,
			Message: "must be at least 1",
		})
	}
	if c.Scaling.MovingAvgSamples < 1 {
		errors = append(errors, ValidationError{
			Field:   "scaling.moving_avg_samples",
			Value:   c.Scaling.MovingAvgSamples,
			Message: "must be at least 1",
		})
	}
	if c.Scaling.DebounceSamples < 1 {
		errors = append(errors, ValidationError{
			Field:   "scaling.debounce_samples",
			Value:   c.Scaling.DebounceSamples,
			Message: "must be at least 1",
		})
	}
	// The debounce can never be satisfied when it needs more samples than
	// the ring retains.
	if c.Scaling.DebounceSamples >= 1 && c.Scaling.HistorySize >= 1 &&
		c.Scaling.DebounceSamples > c.Scaling.HistorySize {
		errors = append(errors, ValidationError{
			Field:   "scaling.debounce_samples",
			Value:   c.Scaling.DebounceSamples,
			Message: fmt.Sprintf("must not exceed scaling.history_size (%d)", c.Scaling.HistorySize),
		})
	}
	if c.Scaling.Cooldown < 0 {
		errors = append(errors, ValidationError{
			Field:   "scaling.cooldown",
			Value:   c.Scaling.Cooldown,
			Message: "must be non-negative",
		})
	}
	if c.Scaling.DrainGracePeriod <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scaling.drain_grace_period",
			Value:   c.Scaling.DrainGracePeriod,
			Message: "must be positive",
		})
	}

	errors = append(errors, c.validateThresholds()...)

	return errors
}

// validateThresholds validates the ThresholdsConfig
func (c *Config) validateThresholds() []ValidationError {
	var errors []ValidationError
	t := c.Scaling.Thresholds

	if t.ScaleUp <= 0 || t.ScaleUp > 1 {
		errors = append(errors, ValidationError{
			Field:   "scaling.thresholds.scale_up",
			Value:   t.ScaleUp,
			Message: "must be in (0, 1]",
		})
	}
	if t.ScaleDown <= 0 || t.ScaleDown > 1 {
		errors = append(errors, ValidationError{
			Field:   "scaling.thresholds.scale_down",
			Value:   t.ScaleDown,
			Message: "must be in (0, 1]",
		})
	}
	if t.ScaleDown > 0 && t.ScaleUp > 0 && t.ScaleDown >= t.ScaleUp {
		errors = append(errors, ValidationError{
			Field:   "scaling.thresholds.scale_down",
			Value:   t.ScaleDown,
			Message: fmt.Sprintf("must be below scaling.thresholds.scale_up (%v)", t.ScaleUp),
		})
	}
	if t.CriticalMemory <= 0 || t.CriticalMemory > 1 {
		errors = append(errors, ValidationError{
			Field:   "scaling.thresholds.critical_memory",
			Value:   t.CriticalMemory,
			Message: "must be in (0, 1]",
		})
	}

	return errors
}

// validateShutdown validates the ShutdownConfig
func (c *Config) validateShutdown() []ValidationError {
	var errors []ValidationError

	if c.Shutdown.GracePeriod <= 0 {
		errors = append(errors, ValidationError{
			Field:   "shutdown.grace_period",
			Value:   c.Shutdown.GracePeriod,
			Message: "must be positive",
		})
	}
	if c.Shutdown.ForceKillDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "shutdown.force_kill_delay",
			Value:   c.Shutdown.ForceKillDelay,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateAdmin validates the AdminConfig
func (c *Config) validateAdmin() []ValidationError {
	var errors []ValidationError

	if c.Admin.Enabled && c.Admin.ListenAddr == "" {
		errors = append(errors, ValidationError{
			Field:   "admin.listen_addr",
			Value:   c.Admin.ListenAddr,
			Message: "must be set when admin.enabled is true",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	validLevel := false
	for _, level := range logging.ValidLevels() {
		if strings.EqualFold(c.Logging.Level, level) {
			validLevel = true
			break
		}
	}
	if !validLevel {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.ToLower(strings.Join(logging.ValidLevels(), ", "))),
		})
	}

	validFormat := false
	for _, format := range ValidLogFormats() {
		if strings.EqualFold(c.Logging.Format, format) {
			validFormat = true
			break
		}
	}
	if !validFormat {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative (0 disables rotation)",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
