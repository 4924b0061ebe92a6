package config

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Maestro configuration
type Config struct {
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Health     HealthConfig     `mapstructure:"health"`
	Restart    RestartConfig    `mapstructure:"restart"`
	Scaling    ScalingConfig    `mapstructure:"scaling"`
	Shutdown   ShutdownConfig   `mapstructure:"shutdown"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// SupervisorConfig controls the worker pool bounds
type SupervisorConfig struct {
	// MinWorkers is the lower bound of the pool; the supervisor never drains
	// below it (default: 2)
	MinWorkers int `mapstructure:"min_workers"`
	// MaxWorkers is the upper bound of the pool (default: number of CPU cores)
	MaxWorkers int `mapstructure:"max_workers"`
}

// WorkerConfig describes the worker process to supervise
type WorkerConfig struct {
	// Command is the worker executable. Required for serve
	Command string `mapstructure:"command"`
	// Args are passed to every worker process
	Args []string `mapstructure:"args"`
	// WorkDir is the working directory for worker processes.
	// Empty means inherit the supervisor's working directory
	WorkDir string `mapstructure:"work_dir"`
	// Env holds extra environment variables for worker processes
	Env map[string]string `mapstructure:"env"`
	// HeartbeatInterval is exported to workers so they know how often to
	// report (default: 10s)
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// EnvSlice returns Env as KEY=VALUE pairs in sorted key order.
func (c *WorkerConfig) EnvSlice() []string {
	if len(c.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+c.Env[k])
	}
	return out
}

// HealthConfig controls heartbeat monitoring
type HealthConfig struct {
	// CheckInterval is how often the health monitor sweeps the pool
	// (default: 30s)
	CheckInterval time.Duration `mapstructure:"check_interval"`
	// StalenessThreshold is the heartbeat age past which a worker is
	// considered unresponsive and force killed (default: 60s)
	StalenessThreshold time.Duration `mapstructure:"staleness_threshold"`
	// SoftMemoryLimitMB warns when a worker's resident set exceeds this
	// many megabytes. 0 disables the check (default: 512)
	SoftMemoryLimitMB int `mapstructure:"soft_memory_limit_mb"`
}

// RestartConfig controls the crash restart budget
type RestartConfig struct {
	// Window is the interval crashes are counted in; the count resets
	// when consecutive crashes are further apart (default: 60s)
	Window time.Duration `mapstructure:"window"`
	// MaxRestarts is the crash count inside the window at which the
	// supervisor declares a restart storm (default: 5)
	MaxRestarts int `mapstructure:"max_restarts"`
	// RespawnDelay is the pause between a crash and its respawn (default: 1s)
	RespawnDelay time.Duration `mapstructure:"respawn_delay"`
}

// ScalingConfig controls adaptive pool sizing
type ScalingConfig struct {
	// SampleInterval is how often host and worker load is observed
	// (default: 30s)
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	// EvaluateInterval is how often the scaling policy runs (default: 30s)
	EvaluateInterval time.Duration `mapstructure:"evaluate_interval"`
	// HistorySize is the load sample ring capacity (default: 20)
	HistorySize int `mapstructure:"history_size"`
	// MovingAvgSamples is how many recent samples are averaged for
	// threshold comparisons (default: 10)
	MovingAvgSamples int `mapstructure:"moving_avg_samples"`
	// DebounceSamples is how many consecutive raw samples must be below the
	// scale-down threshold before a worker is removed (default: 5)
	DebounceSamples int `mapstructure:"debounce_samples"`
	// Cooldown is the minimum gap between executed scaling actions
	// (default: 2m)
	Cooldown time.Duration `mapstructure:"cooldown"`
	// DrainGracePeriod is how long a draining worker may run after a
	// graceful stop before it is force killed (default: 5s)
	DrainGracePeriod time.Duration `mapstructure:"drain_grace_period"`
	// Thresholds are the load levels that trigger scaling
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
}

// ThresholdsConfig holds the scaling trigger levels, all fractions in [0, 1]
type ThresholdsConfig struct {
	// ScaleUp is the average load above which a worker is added
	// (default: 0.8)
	ScaleUp float64 `mapstructure:"scale_up"`
	// ScaleDown is the average load below which a worker is removed
	// (default: 0.3)
	ScaleDown float64 `mapstructure:"scale_down"`
	// CriticalMemory is the average memory pressure that bypasses the
	// cooldown and sheds workers immediately (default: 0.9)
	CriticalMemory float64 `mapstructure:"critical_memory"`
}

// ShutdownConfig controls coordinated shutdown timing
type ShutdownConfig struct {
	// GracePeriod is how long workers get to exit after SIGTERM before
	// being force killed (default: 5s)
	GracePeriod time.Duration `mapstructure:"grace_period"`
	// ForceKillDelay is the pause after SIGKILL before the supervisor
	// declares itself exited (default: 1s)
	ForceKillDelay time.Duration `mapstructure:"force_kill_delay"`
}

// AdminConfig controls the local HTTP status surface
type AdminConfig struct {
	// Enabled serves the admin endpoints when true (default: true)
	Enabled bool `mapstructure:"enabled"`
	// ListenAddr is the address the admin server binds
	// (default: 127.0.0.1:9633)
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig controls structured logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error"
	// (default: "info")
	Level string `mapstructure:"level"`
	// Format is the log encoding: "json" or "text" (default: "json")
	Format string `mapstructure:"format"`
	// File is the log destination. Empty logs to stderr
	File string `mapstructure:"file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation
	// (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: true)
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Supervisor: SupervisorConfig{
			MinWorkers: 2,
			MaxWorkers: runtime.NumCPU(),
		},
		Worker: WorkerConfig{
			Command:           "",
			Args:              []string{},
			WorkDir:           "",
			Env:               map[string]string{},
			HeartbeatInterval: 10 * time.Second,
		},
		Health: HealthConfig{
			CheckInterval:      30 * time.Second,
			StalenessThreshold: 60 * time.Second,
			SoftMemoryLimitMB:  512,
		},
		Restart: RestartConfig{
			Window:       60 * time.Second,
			MaxRestarts:  5,
			RespawnDelay: time.Second,
		},
		Scaling: ScalingConfig{
			SampleInterval:   30 * time.Second,
			EvaluateInterval: 30 * time.Second,
			HistorySize:      20,
			MovingAvgSamples: 10,
			DebounceSamples:  5,
			Cooldown:         2 * time.Minute,
			DrainGracePeriod: 5 * time.Second,
			Thresholds: ThresholdsConfig{
				ScaleUp:        0.8,
				ScaleDown:      0.3,
				CriticalMemory: 0.9,
			},
		},
		Shutdown: ShutdownConfig{
			GracePeriod:    5 * time.Second,
			ForceKillDelay: time.Second,
		},
		Admin: AdminConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:9633",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			File:       "",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Supervisor defaults
	viper.SetDefault("supervisor.min_workers", defaults.Supervisor.MinWorkers)
	viper.SetDefault("supervisor.max_workers", defaults.Supervisor.MaxWorkers)

	// Worker defaults
	viper.SetDefault("worker.command", defaults.Worker.Command)
	viper.SetDefault("worker.args", defaults.Worker.Args)
	viper.SetDefault("worker.work_dir", defaults.Worker.WorkDir)
	viper.SetDefault("worker.env", defaults.Worker.Env)
	viper.SetDefault("worker.heartbeat_interval", defaults.Worker.HeartbeatInterval)

	// Health defaults
	viper.SetDefault("health.check_interval", defaults.Health.CheckInterval)
	viper.SetDefault("health.staleness_threshold", defaults.Health.StalenessThreshold)
	viper.SetDefault("health.soft_memory_limit_mb", defaults.Health.SoftMemoryLimitMB)

	// Restart defaults
	viper.SetDefault("restart.window", defaults.Restart.Window)
	viper.SetDefault("restart.max_restarts", defaults.Restart.MaxRestarts)
	viper.SetDefault("restart.respawn_delay", defaults.Restart.RespawnDelay)

	// Scaling defaults
	viper.SetDefault("scaling.sample_interval", defaults.Scaling.SampleInterval)
	viper.SetDefault("scaling.evaluate_interval", defaults.Scaling.EvaluateInterval)
	viper.SetDefault("scaling.history_size", defaults.Scaling.HistorySize)
	viper.SetDefault("scaling.moving_avg_samples", defaults.Scaling.MovingAvgSamples)
	viper.SetDefault("scaling.debounce_samples", defaults.Scaling.DebounceSamples)
	viper.SetDefault("scaling.cooldown", defaults.Scaling.Cooldown)
	viper.SetDefault("scaling.drain_grace_period", defaults.Scaling.DrainGracePeriod)
	viper.SetDefault("scaling.thresholds.scale_up", defaults.Scaling.Thresholds.ScaleUp)
	viper.SetDefault("scaling.thresholds.scale_down", defaults.Scaling.Thresholds.ScaleDown)
	viper.SetDefault("scaling.thresholds.critical_memory", defaults.Scaling.Thresholds.CriticalMemory)

	// Shutdown defaults
	viper.SetDefault("shutdown.grace_period", defaults.Shutdown.GracePeriod)
	viper.SetDefault("shutdown.force_kill_delay", defaults.Shutdown.ForceKillDelay)

	// Admin defaults
	viper.SetDefault("admin.enabled", defaults.Admin.Enabled)
	viper.SetDefault("admin.listen_addr", defaults.Admin.ListenAddr)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)
	viper.SetDefault("logging.file", defaults.Logging.File)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "maestro")
	}
	// Fall back to ~/.config/maestro
	home, err := os.UserHomeDir()
	if err != nil {
		return ".maestro"
	}
	return filepath.Join(home, ".config", "maestro")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
