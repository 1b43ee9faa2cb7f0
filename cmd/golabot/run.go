package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/avramovic/golabot/internal/channels"
	"github.com/avramovic/golabot/internal/config"
	otelx "github.com/avramovic/golabot/internal/otel"
	"github.com/avramovic/golabot/internal/scheduler"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the assistant daemon (Telegram channel + scheduler)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

func runDaemon(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if rt.cfg.Telegram.Token == "" {
		return fmt.Errorf("no telegram token configured (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}

	otelProvider, err := otelx.Init(ctx, rt.cfg.Otel)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	metrics, err := otelx.NewMetrics(otelProvider.Meter)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	b, registry, err := rt.newBrainAndTools(ctx, metrics)
	if err != nil {
		return err
	}

	asm := rt.newAssembler()
	asm.SetModel(b.ModelName())
	processor := channels.NewProcessor(rt.store, asm, b, registry, rt.cfg.FilesDir(), logger)
	processor.SetMetrics(metrics)

	telegram, err := channels.NewTelegram(rt.cfg.Telegram.Token, rt.store, processor, logger)
	if err != nil {
		return err
	}
	notifier := attachNotifier(registry, rt.store, telegram)

	runner := scheduler.NewRunner(scheduler.Config{
		Store:       rt.store,
		Brain:       b,
		Assembler:   asm,
		Registry:    registry,
		Notifier:    notifier,
		Logger:      logger,
		Metrics:     metrics,
		Interval:    time.Duration(rt.cfg.Scheduler.TickSeconds) * time.Second,
		TaskTimeout: time.Duration(rt.cfg.Scheduler.TaskTimeoutMinutes) * time.Minute,
		Workers:     rt.cfg.Scheduler.Workers,
	})
	runner.Start(ctx)
	defer runner.Stop()

	// Hot reload: soul.md edits swap the persona live; config.yaml edits
	// only log a notice, because provider wiring needs a restart.
	watcher := config.NewWatcher(rt.cfg.HomeDir, logger)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else {
		go func() {
			for ev := range watcher.Events() {
				switch filepath.Base(ev.Path) {
				case "soul.md":
					fresh, err := config.LoadFrom(rt.cfg.HomeDir)
					if err != nil {
						logger.Error("soul reload failed", "error", err)
						continue
					}
					asm.SetSoul(fresh.Soul)
					logger.Info("soul reloaded")
				case "config.yaml":
					logger.Info("config.yaml changed; restart to apply provider settings")
				}
			}
		}()
	}

	logger.Info("golabot running", "version", Version, "home", rt.cfg.HomeDir)
	if err := telegram.Run(ctx); err != nil {
		return fmt.Errorf("telegram loop: %w", err)
	}
	logger.Info("golabot shutting down")
	return nil
}
