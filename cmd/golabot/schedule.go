package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	otelx "github.com/avramovic/golabot/internal/otel"
	"github.com/avramovic/golabot/internal/scheduler"
	"github.com/avramovic/golabot/internal/store"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric/noop"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect and run scheduled tasks",
}

var scheduleForce bool

func init() {
	scheduleRunCmd.Flags().BoolVar(&scheduleForce, "force", false, "run even if the task is disabled or exhausted")
	scheduleCmd.AddCommand(scheduleListCmd, scheduleRunCmd, scheduleLogsCmd)
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		tasks, err := rt.store.ListTasks(cmd.Context())
		if err != nil {
			return err
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks scheduled.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSCHEDULE\tTITLE\tREPEAT\tDEST\tENABLED")
		for _, t := range tasks {
			repeat := strconv.FormatInt(int64(t.Repeat), 10)
			if t.Repeat < 0 {
				repeat = "unlimited"
			}
			title := t.Title
			if title == "" {
				title = truncatePrompt(t.Prompt, 40)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%v\n",
				t.ID, t.Schedule, title, repeat, t.Destination, t.Enabled)
		}
		return w.Flush()
	},
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Execute a task immediately",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid task id %q", args[0])
		}

		rt, err := newRuntime(false)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()

		task, err := rt.store.GetTask(ctx, id)
		if err != nil {
			return fmt.Errorf("task %d: %w", id, err)
		}
		if !scheduleForce && (!task.Enabled || task.Repeat == 0) {
			return fmt.Errorf("task %d is disabled or exhausted; use --force to run it anyway", id)
		}

		metrics, err := otelx.NewMetrics(noop.NewMeterProvider().Meter("golabot"))
		if err != nil {
			return err
		}
		b, registry, err := rt.newBrainAndTools(ctx, metrics)
		if err != nil {
			return err
		}

		asm := rt.newAssembler()
		asm.SetModel(b.ModelName())
		runner := scheduler.NewRunner(scheduler.Config{
			Store:     rt.store,
			Brain:     b,
			Assembler: asm,
			Registry:  registry,
			Logger:    rt.logger,
			Metrics:   metrics,
		})
		runner.Execute(ctx, task)

		logs, err := rt.store.ListTaskLogs(ctx, id, 1)
		if err != nil || len(logs) == 0 {
			return fmt.Errorf("task ran but no execution log was recorded")
		}
		log := logs[0]
		fmt.Printf("Task %d finished: %s\n", id, log.Status)
		if log.OutputText != "" {
			fmt.Println(log.OutputText)
		}
		if log.Status == store.TaskStatusFailure {
			os.Exit(1)
		}
		return nil
	},
}

var scheduleLogsCmd = &cobra.Command{
	Use:   "logs [task-id]",
	Short: "Show recent task execution logs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var taskID int64
		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			taskID = id
		}

		rt, err := newRuntime(true)
		if err != nil {
			return err
		}
		defer rt.Close()

		logs, err := rt.store.ListTaskLogs(cmd.Context(), taskID, 20)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No execution logs.")
			return nil
		}
		for _, l := range logs {
			fmt.Printf("[%s] log %d, task %d: %s\n", l.CreatedAt.Format("2006-01-02 15:04:05"), l.ID, l.TaskID, l.Status)
			if l.OutputText != "" {
				fmt.Println("  " + truncatePrompt(l.OutputText, 200))
			}
		}
		return nil
	},
}

func truncatePrompt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
