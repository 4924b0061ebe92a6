package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iron-Ham/maestro/internal/admin"
	"github.com/Iron-Ham/maestro/internal/config"
	"github.com/Iron-Ham/maestro/internal/event"
	"github.com/Iron-Ham/maestro/internal/logging"
	"github.com/Iron-Ham/maestro/internal/supervisor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor in the foreground",
	Long: `Serve boots the worker pool and supervises it until interrupted.

The supervisor spawns the configured minimum number of workers, restarts
crashes, force-kills workers that stop heartbeating, and adjusts the pool
size as load changes. SIGINT or SIGTERM begins a graceful drain of the
whole pool before the process exits.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("command", "", "worker command to spawn (overrides worker.command)")
	serveCmd.Flags().Int("min-workers", 0, "minimum pool size (overrides supervisor.min_workers)")
	serveCmd.Flags().Int("max-workers", 0, "maximum pool size (overrides supervisor.max_workers)")
	_ = viper.BindPFlag("worker.command", serveCmd.Flags().Lookup("command"))
	_ = viper.BindPFlag("supervisor.min_workers", serveCmd.Flags().Lookup("min-workers"))
	_ = viper.BindPFlag("supervisor.max_workers", serveCmd.Flags().Lookup("max-workers"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Resolve the worker binary up front so a typo fails fast instead of
	// tripping the restart governor.
	if _, err := exec.LookPath(cfg.Worker.Command); err != nil {
		return fmt.Errorf("worker command %q not found: %w", cfg.Worker.Command, err)
	}

	log, err := logging.NewWithOptions(logging.Options{
		Path:   cfg.Logging.File,
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open log output: %w", err)
	}
	defer func() { _ = log.Close() }()

	bus := event.NewBus()
	bus.SubscribeAll(func(e event.Event) {
		log.Debug("event published", "type", e.EventType())
	})

	sup, err := supervisor.New(cfg,
		supervisor.WithLogger(log),
		supervisor.WithBus(bus),
	)
	if err != nil {
		return err
	}

	var adminSrv *admin.Server
	if cfg.Admin.Enabled {
		adminSrv = admin.New(sup, cfg.Admin.ListenAddr, admin.WithLogger(log.WithComponent("admin")))
		if err := adminSrv.Start(); err != nil {
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	// Shutdown is idempotent, so a second signal while draining is a no-op
	// rather than an abrupt exit.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			log.Info("shutdown signal received")
			sup.Shutdown()
		}
	}()

	runErr := sup.Run(context.Background())

	if adminSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = adminSrv.Shutdown(ctx)
	}

	return runErr
}
