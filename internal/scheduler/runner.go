// Package scheduler runs cron-scheduled tasks: each tick it sweeps
// exhausted tasks, finds due ones, and executes them as standalone LLM
// sessions with the task toolset.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/avramovic/golabot/internal/brain"
	"github.com/avramovic/golabot/internal/convo"
	otelx "github.com/avramovic/golabot/internal/otel"
	"github.com/avramovic/golabot/internal/store"
	"github.com/avramovic/golabot/internal/tools"
	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// cronParser parses standard 5-field cron expressions.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// IsDue reports whether a cron expression fires in the minute of now.
func IsDue(expr string, now time.Time) (bool, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return false, err
	}
	minute := now.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute), nil
}

// Config holds the dependencies for the Runner.
type Config struct {
	Store     *store.Store
	Brain     brain.Brain
	Assembler *convo.Assembler
	Registry  *tools.Registry
	Notifier  tools.Notifier
	Logger    *slog.Logger
	Metrics   *otelx.Metrics

	Interval    time.Duration // tick interval; defaults to 1 minute
	TaskTimeout time.Duration // per-execution bound; defaults to 20 minutes
	Workers     int           // concurrent executions; defaults to 4
}

// Runner is the periodic task runner.
type Runner struct {
	store     *store.Store
	brain     brain.Brain
	assembler *convo.Assembler
	registry  *tools.Registry
	notifier  tools.Notifier
	logger    *slog.Logger
	metrics   *otelx.Metrics

	interval    time.Duration
	taskTimeout time.Duration
	sem         chan struct{}

	// firedAt prevents double execution when two ticks land in the
	// same cron minute.
	firedMu sync.Mutex
	firedAt map[int64]time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time
}

// NewRunner creates a Runner with the given config.
func NewRunner(cfg Config) *Runner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := cfg.TaskTimeout
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:       cfg.Store,
		brain:       cfg.Brain,
		assembler:   cfg.Assembler,
		registry:    cfg.Registry,
		notifier:    cfg.Notifier,
		logger:      logger,
		metrics:     cfg.Metrics,
		interval:    interval,
		taskTimeout: timeout,
		sem:         make(chan struct{}, workers),
		firedAt:     map[int64]time.Time{},
		now:         time.Now,
	}
}

// Start begins the runner loop in a background goroutine.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop(ctx)
	r.logger.Info("scheduler started", "interval", r.interval, "workers", cap(r.sem))
}

// Stop cancels the loop and waits for in-flight executions.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Info("scheduler stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one scheduler pass: sweep, select, dispatch.
func (r *Runner) Tick(ctx context.Context) {
	now := r.now()

	if n, err := r.store.DisableExhaustedTasks(ctx); err != nil {
		r.logger.Error("sweep failed", "error", err)
	} else if n > 0 {
		r.logger.Info("disabled exhausted tasks", "count", n)
	}

	tasks, err := r.store.ListRunnableTasks(ctx)
	if err != nil {
		r.logger.Error("list runnable tasks failed", "error", err)
		return
	}

	for i := range tasks {
		task := tasks[i]
		due, err := IsDue(task.Schedule, now)
		if err != nil {
			r.logger.Warn("invalid schedule, skipping task", "task_id", task.ID, "schedule", task.Schedule, "error", err)
			continue
		}
		if !due || !r.markFired(task.ID, now) {
			continue
		}

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			select {
			case r.sem <- struct{}{}:
				defer func() { <-r.sem }()
			case <-ctx.Done():
				return
			}
			execCtx, cancel := context.WithTimeout(ctx, r.taskTimeout)
			defer cancel()
			r.Execute(execCtx, &task)
		}()
	}
}

// markFired records that the task fired in now's minute; returns false
// when it already did.
func (r *Runner) markFired(taskID int64, now time.Time) bool {
	minute := now.Truncate(time.Minute)
	r.firedMu.Lock()
	defer r.firedMu.Unlock()
	if last, ok := r.firedAt[taskID]; ok && last.Equal(minute) {
		return false
	}
	r.firedAt[taskID] = minute
	return true
}

// Execute runs one task to completion: a fresh LLM session with the
// task toolset, exactly one execution log row, destination routing,
// and the repeat decrement. Also used by the CLI's forced run.
func (r *Runner) Execute(ctx context.Context, task *store.Task) {
	ctx, span := otel.Tracer("golabot").Start(ctx, "task.execute",
		trace.WithAttributes(attribute.Int64("task.id", task.ID)))
	defer span.End()

	start := r.now()
	r.logger.Info("task execution started", "task_id", task.ID, "title", task.Title)

	sess, err := r.assembler.BuildTaskSession(ctx, task)
	var resp *brain.Response
	if err == nil {
		resp, err = r.brain.Send(ctx, sess, r.registry.TaskTools)
	}

	elapsed := time.Since(start)
	status := store.TaskStatusSuccess
	log := &store.TaskExecutionLog{TaskID: task.ID}
	if err != nil {
		status = store.TaskStatusFailure
		log.OutputText = err.Error()
	} else {
		log.OutputText = resp.Text
		log.ToolCalls = resp.ToolCalls
	}
	log.Status = status

	if insertErr := r.store.InsertTaskLog(ctx, log); insertErr != nil {
		r.logger.Error("failed to record task log", "task_id", task.ID, "error", insertErr)
	}
	if r.metrics != nil {
		r.metrics.TaskExecutions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
		r.metrics.TaskDuration.Record(ctx, elapsed.Seconds())
	}

	if err != nil {
		span.RecordError(err)
		r.logger.Error("task execution failed", "task_id", task.ID, "error", err, "duration", elapsed)
		if task.Destination == store.DestinationUser {
			r.notifyFailure(ctx, task, err)
		}
		return
	}

	r.route(ctx, task, resp)
	r.logger.Info("task execution finished",
		"task_id", task.ID,
		"status", status,
		"tool_calls", len(resp.ToolCalls),
		"duration", elapsed,
	)

	// Only a completed run consumes a repeat; a failed one retries on
	// its next scheduled fire.
	if decErr := r.store.DecrementTaskRepeat(ctx, task.ID); decErr != nil {
		r.logger.Error("failed to decrement repeat", "task_id", task.ID, "error", decErr)
	}
}

// route delivers a successful result per the task's destination.
func (r *Runner) route(ctx context.Context, task *store.Task, resp *brain.Response) {
	switch task.Destination {
	case store.DestinationUser:
		if r.notifier == nil {
			r.logger.Warn("no channel to deliver task result", "task_id", task.ID)
			return
		}
		text := resp.Text
		if text == "" {
			text = fmt.Sprintf("Task %q finished without output.", task.Title)
		}
		if err := r.notifier.NotifyUser(ctx, text); err != nil {
			r.logger.Error("failed to deliver task result", "task_id", task.ID, "error", err)
			return
		}
		r.persistDelivery(ctx, task, text)

	case store.DestinationMemory:
		title := fmt.Sprintf("Task #%d executed at %s", task.ID, r.now().Format("2006-01-02 15:04"))
		if _, err := r.store.CreateMemory(ctx, title, resp.Text, true); err != nil {
			r.logger.Error("failed to save task result as memory", "task_id", task.ID, "error", err)
		}

	case store.DestinationAuto:
		// The model decided delivery itself via notify_user/memory_save.

	default:
		r.logger.Warn("unknown destination", "task_id", task.ID, "destination", task.Destination)
	}
}

// persistDelivery records a delivered task result in the owner's
// transcript so later turns can reference it.
func (r *Runner) persistDelivery(ctx context.Context, task *store.Task, text string) {
	chatID := r.store.Settings().GetInt64(ctx, store.SettingChatID, 0)
	if chatID == 0 {
		return
	}
	msg := &store.Message{
		Role:                  store.RoleAssistant,
		Contents:              text,
		UUID:                  uuid.NewString(),
		ChannelType:           store.ChannelTelegram,
		ChannelConversationID: strconv.FormatInt(chatID, 10),
	}
	if err := r.store.InsertMessage(ctx, msg); err != nil {
		r.logger.Error("failed to persist task delivery", "task_id", task.ID, "error", err)
	}
}

// notifyFailure tells the user a task broke. Best effort.
func (r *Runner) notifyFailure(ctx context.Context, task *store.Task, execErr error) {
	if r.notifier == nil {
		return
	}
	title := task.Title
	if title == "" {
		title = fmt.Sprintf("task %d", task.ID)
	}
	msg := fmt.Sprintf("Scheduled task %q failed: %v", title, execErr)
	if err := r.notifier.NotifyUser(ctx, msg); err != nil {
		r.logger.Warn("failed to notify task failure", "task_id", task.ID, "error", err)
	}
}
