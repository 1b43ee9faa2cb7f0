package tools

import (
	"errors"
	"fmt"

	"github.com/avramovic/golabot/internal/store"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a 5-field cron expression.
func ValidateSchedule(expr string) error {
	_, err := cronParser.Parse(expr)
	return err
}

// SchedulerAddInput is the input for scheduler_add.
type SchedulerAddInput struct {
	Schedule    string `json:"schedule"`
	Title       string `json:"title,omitempty"`
	Prompt      string `json:"prompt"`
	Repeat      int    `json:"repeat,omitempty"`
	Destination string `json:"destination,omitempty"`
}

// SchedulerUpdateInput is the input for scheduler_update.
type SchedulerUpdateInput struct {
	ID          int64  `json:"id"`
	Schedule    string `json:"schedule,omitempty"`
	Title       string `json:"title,omitempty"`
	Prompt      string `json:"prompt,omitempty"`
	Repeat      *int   `json:"repeat,omitempty"`
	Destination string `json:"destination,omitempty"`
	Enabled     any    `json:"enabled,omitempty"`
}

// SchedulerIDInput selects a task by id.
type SchedulerIDInput struct {
	ID int64 `json:"id"`
}

// SchedulerListInput is the (empty) input for scheduler_list.
type SchedulerListInput struct{}

// TaskRef is one task in tool output.
type TaskRef struct {
	ID          int64  `json:"id"`
	Schedule    string `json:"schedule"`
	Title       string `json:"title,omitempty"`
	Prompt      string `json:"prompt"`
	Repeat      int    `json:"repeat"`
	Destination string `json:"destination"`
	Enabled     bool   `json:"enabled"`
}

// SchedulerOutput is the output of the scheduler tools.
type SchedulerOutput struct {
	Task    *TaskRef  `json:"task,omitempty"`
	Tasks   []TaskRef `json:"tasks,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`
}

func registerSchedulerTools(g *genkit.Genkit, reg *Registry) []ai.ToolRef {
	add := genkit.DefineTool(g, "scheduler_add",
		"Schedule a recurring task. schedule is a 5-field cron expression; repeat is how many times to run (-1 or omitted = unlimited); destination is user, memory or auto.",
		func(ctx *ai.ToolContext, input SchedulerAddInput) (SchedulerOutput, error) {
			if input.Prompt == "" {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_add", "prompt is required")}, nil
			}
			if err := ValidateSchedule(input.Schedule); err != nil {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_add", fmt.Sprintf("invalid schedule %q: %v", input.Schedule, err))}, nil
			}
			dest, err := store.ParseDestination(input.Destination)
			if err != nil {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_add", err.Error())}, nil
			}
			repeat := input.Repeat
			if repeat == 0 {
				repeat = -1
			}
			task := &store.Task{
				Schedule:    input.Schedule,
				Title:       input.Title,
				Prompt:      input.Prompt,
				Repeat:      repeat,
				Destination: dest,
			}
			if err := reg.Store.CreateTask(ctx, task); err != nil {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_add", err.Error())}, nil
			}
			return SchedulerOutput{
				Task:    taskRef(task),
				Message: fmt.Sprintf("task %d scheduled (%s)", task.ID, task.Schedule),
			}, nil
		},
	)

	update := genkit.DefineTool(g, "scheduler_update",
		"Update a scheduled task. Only the provided fields change. To re-arm an exhausted task, set a positive repeat together with enabled=true.",
		func(ctx *ai.ToolContext, input SchedulerUpdateInput) (SchedulerOutput, error) {
			task, err := reg.Store.GetTask(ctx, input.ID)
			if errors.Is(err, store.ErrNotFound) {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_update", fmt.Sprintf("task %d not found", input.ID))}, nil
			}
			if err != nil {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_update", err.Error())}, nil
			}

			if input.Schedule != "" {
				if err := ValidateSchedule(input.Schedule); err != nil {
					return SchedulerOutput{Error: reg.fail(ctx, "scheduler_update", fmt.Sprintf("invalid schedule %q: %v", input.Schedule, err))}, nil
				}
				task.Schedule = input.Schedule
			}
			if input.Title != "" {
				task.Title = input.Title
			}
			if input.Prompt != "" {
				task.Prompt = input.Prompt
			}
			if input.Repeat != nil {
				task.Repeat = *input.Repeat
			}
			if input.Destination != "" {
				dest, err := store.ParseDestination(input.Destination)
				if err != nil {
					return SchedulerOutput{Error: reg.fail(ctx, "scheduler_update", err.Error())}, nil
				}
				task.Destination = dest
			}
			if input.Enabled != nil {
				task.Enabled = Truthy(input.Enabled)
			}

			if err := reg.Store.UpdateTask(ctx, task); err != nil {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_update", err.Error())}, nil
			}
			return SchedulerOutput{Task: taskRef(task), Message: fmt.Sprintf("task %d updated", task.ID)}, nil
		},
	)

	del := genkit.DefineTool(g, "scheduler_delete",
		"Delete a scheduled task and its execution logs.",
		func(ctx *ai.ToolContext, input SchedulerIDInput) (SchedulerOutput, error) {
			err := reg.Store.DeleteTask(ctx, input.ID)
			if errors.Is(err, store.ErrNotFound) {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_delete", fmt.Sprintf("task %d not found", input.ID))}, nil
			}
			if err != nil {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_delete", err.Error())}, nil
			}
			return SchedulerOutput{Message: fmt.Sprintf("task %d deleted", input.ID)}, nil
		},
	)

	list := genkit.DefineTool(g, "scheduler_list",
		"List all scheduled tasks with their schedules, repeat counters and destinations.",
		func(ctx *ai.ToolContext, _ SchedulerListInput) (SchedulerOutput, error) {
			tasks, err := reg.Store.ListTasks(ctx)
			if err != nil {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_list", err.Error())}, nil
			}
			out := SchedulerOutput{}
			for i := range tasks {
				out.Tasks = append(out.Tasks, *taskRef(&tasks[i]))
			}
			return out, nil
		},
	)

	get := genkit.DefineTool(g, "scheduler_get",
		"Fetch one scheduled task by id.",
		func(ctx *ai.ToolContext, input SchedulerIDInput) (SchedulerOutput, error) {
			task, err := reg.Store.GetTask(ctx, input.ID)
			if errors.Is(err, store.ErrNotFound) {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_get", fmt.Sprintf("task %d not found", input.ID))}, nil
			}
			if err != nil {
				return SchedulerOutput{Error: reg.fail(ctx, "scheduler_get", err.Error())}, nil
			}
			return SchedulerOutput{Task: taskRef(task)}, nil
		},
	)

	return []ai.ToolRef{add, update, del, list, get}
}

func taskRef(t *store.Task) *TaskRef {
	return &TaskRef{
		ID:          t.ID,
		Schedule:    t.Schedule,
		Title:       t.Title,
		Prompt:      t.Prompt,
		Repeat:      t.Repeat,
		Destination: string(t.Destination),
		Enabled:     t.Enabled,
	}
}
