package main

import (
	"fmt"
	"os"
	"time"

	"github.com/avramovic/golabot/internal/tui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show a live terminal dashboard of tasks and storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			return fmt.Errorf("dashboard needs an interactive terminal")
		}

		rt, err := newRuntime(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		started := time.Now()
		return tui.Run(ctx, func() tui.Snapshot {
			return tui.CollectSnapshot(ctx, rt.store, started)
		})
	},
}
