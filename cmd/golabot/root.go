package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/avramovic/golabot/internal/brain"
	"github.com/avramovic/golabot/internal/channels"
	"github.com/avramovic/golabot/internal/config"
	"github.com/avramovic/golabot/internal/convo"
	otelx "github.com/avramovic/golabot/internal/otel"
	"github.com/avramovic/golabot/internal/store"
	"github.com/avramovic/golabot/internal/telemetry"
	"github.com/avramovic/golabot/internal/tools"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "golabot",
	Short: "Personal assistant bot bridging Telegram, an LLM and local tools",
	Long: `Golabot is a self-hosted personal assistant. It listens on Telegram,
thinks with the configured LLM provider, and acts through tools: shell
commands, HTTP, web search, persistent memories and scheduled tasks.

State lives under ~/.golabot (override with GOLABOT_HOME).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd, dashboardCmd, scheduleCmd, forgetCmd, amnesiaCmd, doctorCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("golabot", Version)
	},
}

// runtime bundles the wired components shared by the daemon commands.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store

	logCloser io.Closer
}

// newRuntime loads config, logging and storage. quiet suppresses
// stdout logging (file only), for commands that own the terminal.
func newRuntime(quiet bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, closer, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, quiet)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, store: st, logCloser: closer}, nil
}

func (r *runtime) Close() {
	r.store.Close()
	r.logCloser.Close()
}

func (r *runtime) newAssembler() *convo.Assembler {
	return convo.NewAssembler(r.store, r.cfg.Soul, r.cfg.LLM.SlidingWindow)
}

// newBrainAndTools wires the LLM and the tool registry. The returned
// notifier is nil until a channel attaches one.
func (r *runtime) newBrainAndTools(ctx context.Context, metrics *otelx.Metrics) (*brain.GenkitBrain, *tools.Registry, error) {
	b, err := brain.New(ctx, r.cfg, r.logger)
	if err != nil {
		return nil, nil, err
	}
	b.SetMetrics(metrics)

	registry := tools.NewRegistry(r.store, r.cfg.APIKeys, r.logger)
	registry.Metrics = metrics
	registry.RegisterAll(b.Genkit())
	return b, registry, nil
}

// attachNotifier points the tool registry's messaging tools at the
// owner's chat on the given dispatcher.
func attachNotifier(registry *tools.Registry, st *store.Store, d channels.Dispatcher) tools.Notifier {
	n := &channels.OwnerNotifier{Store: st, Dispatcher: d}
	registry.Notifier = n
	return n
}
