package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mac_health/internal/commands"
	"mac_health/internal/config"
	"mac_health/internal/logger"
	"mac_health/internal/scheduler"
	"mac_health/internal/server"
	"mac_health/pkg/profiler"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.NewConfig()

	root := &cobra.Command{
		Use:          "healthd",
		Short:        "macOS host health metrics",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Load(cmd); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return logger.Initialize(logger.Options{
				Level:      cfg.LogLevel,
				File:       cfg.LogFile,
				MaxSizeMB:  cfg.LogMaxSizeMB,
				MaxBackups: cfg.LogMaxBackups,
				MaxAgeDays: cfg.LogMaxAgeDays,
				Compress:   cfg.LogCompress,
			})
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			logger.Cleanup()
		},
	}
	config.AddFlags(root)

	root.AddCommand(
		newServeCmd(cfg),
		newCallCmd(cfg),
		newCommandsCmd(cfg),
	)
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve commands and status updates over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg, logger.Logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	prof := profiler.New(profiler.Config{
		Enable:      cfg.ProfileEnable,
		CPUProfile:  cfg.ProfileCPUFile,
		MemProfile:  cfg.ProfileMemFile,
		ProfileTime: cfg.ProfileTime,
	}, log.Named("profiler"))
	if err := prof.Start(); err != nil {
		return fmt.Errorf("failed to start profiler: %w", err)
	}

	watcher := scheduler.New(a.collector, cfg.StatusSchedule, cfg.CommandTimeout, log.Named("scheduler"))
	srv := server.New(cfg.ListenAddr, cfg.AuthToken, a.dispatcher, watcher, log.Named("server"))
	prof.Mount(srv.Echo())

	if err := watcher.Start(); err != nil {
		return multierr.Append(err, prof.Stop())
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	log.Info("healthd started",
		zap.String("version", version),
		zap.String("listen", cfg.ListenAddr),
		zap.String("status_schedule", cfg.StatusSchedule))

	var runErr error
	select {
	case runErr = <-serverErr:
		if runErr != nil {
			log.Error("HTTP server failed", zap.Error(runErr))
		}
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	runErr = multierr.Append(runErr, srv.Shutdown(shutdownCtx))
	watcher.Stop()
	runErr = multierr.Append(runErr, prof.Stop())

	log.Info("healthd stopped")
	return runErr
}

func newCallCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <command>",
		Short: "Run a single command and print its JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs, err := commandArgs(cmd)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, logger.Logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.dispatcher.Call(cmd.Context(), args[0], callArgs)
			if err != nil {
				return err
			}

			// Фоновое пересканирование должно успеть записать кеш до выхода
			a.cache.Wait()

			if result == nil {
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	flags := cmd.Flags()
	flags.Int("count", 0, "Number of top processes")
	flags.Uint32("pid", 0, "Process ID for force_quit_process")
	flags.String("panel", "", "Settings panel for open_system_settings")
	return cmd
}

// commandArgs переносит только явно заданные флаги в аргументы команды
func commandArgs(cmd *cobra.Command) (commands.Args, error) {
	var args commands.Args
	flags := cmd.Flags()

	if flags.Changed("count") {
		count, err := flags.GetInt("count")
		if err != nil {
			return args, err
		}
		args.Count = &count
	}
	if flags.Changed("pid") {
		pid, err := flags.GetUint32("pid")
		if err != nil {
			return args, err
		}
		args.PID = &pid
	}
	args.Panel, _ = flags.GetString("panel")
	return args, nil
}

func newCommandsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "List available commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cfg, logger.Logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, info := range a.dispatcher.Commands() {
				line := info.Name
				if len(info.Args) > 0 {
					line += " [" + strings.Join(info.Args, ", ") + "]"
				}
				if info.Async {
					line += " (async)"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}
