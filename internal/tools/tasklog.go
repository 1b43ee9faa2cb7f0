package tools

import (
	"errors"
	"fmt"

	"github.com/avramovic/golabot/internal/store"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// TaskLogListInput filters execution logs.
type TaskLogListInput struct {
	TaskID int64 `json:"task_id,omitempty"`
	Limit  int   `json:"limit,omitempty"`
}

// TaskLogIDInput selects one execution log.
type TaskLogIDInput struct {
	ID int64 `json:"id"`
}

// TaskLogRef is one execution log in tool output.
type TaskLogRef struct {
	ID         int64            `json:"id"`
	TaskID     int64            `json:"task_id"`
	Status     string           `json:"status"`
	OutputText string           `json:"output_text,omitempty"`
	ToolCalls  []store.ToolCall `json:"tool_calls,omitempty"`
	CreatedAt  string           `json:"created_at"`
}

// TaskLogOutput is the output of the task_log tools.
type TaskLogOutput struct {
	Log     *TaskLogRef  `json:"log,omitempty"`
	Logs    []TaskLogRef `json:"logs,omitempty"`
	Message string       `json:"message,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func registerTaskLogTools(g *genkit.Genkit, reg *Registry) []ai.ToolRef {
	list := genkit.DefineTool(g, "task_log_list",
		"List recent scheduled task execution logs, newest first. Filter by task_id; limit defaults to 20.",
		func(ctx *ai.ToolContext, input TaskLogListInput) (TaskLogOutput, error) {
			limit := input.Limit
			if limit <= 0 {
				limit = 20
			}
			logs, err := reg.Store.ListTaskLogs(ctx, input.TaskID, limit)
			if err != nil {
				return TaskLogOutput{Error: reg.fail(ctx, "task_log_list", err.Error())}, nil
			}
			out := TaskLogOutput{}
			for i := range logs {
				ref := taskLogRef(&logs[i])
				ref.ToolCalls = nil // summaries only; fetch via task_log_get
				out.Logs = append(out.Logs, *ref)
			}
			return out, nil
		},
	)

	get := genkit.DefineTool(g, "task_log_get",
		"Fetch one task execution log by id, including its tool call trace.",
		func(ctx *ai.ToolContext, input TaskLogIDInput) (TaskLogOutput, error) {
			log, err := reg.Store.GetTaskLog(ctx, input.ID)
			if errors.Is(err, store.ErrNotFound) {
				return TaskLogOutput{Error: reg.fail(ctx, "task_log_get", fmt.Sprintf("log %d not found", input.ID))}, nil
			}
			if err != nil {
				return TaskLogOutput{Error: reg.fail(ctx, "task_log_get", err.Error())}, nil
			}
			return TaskLogOutput{Log: taskLogRef(log)}, nil
		},
	)

	del := genkit.DefineTool(g, "task_log_delete",
		"Delete one task execution log by id.",
		func(ctx *ai.ToolContext, input TaskLogIDInput) (TaskLogOutput, error) {
			err := reg.Store.DeleteTaskLog(ctx, input.ID)
			if errors.Is(err, store.ErrNotFound) {
				return TaskLogOutput{Error: reg.fail(ctx, "task_log_delete", fmt.Sprintf("log %d not found", input.ID))}, nil
			}
			if err != nil {
				return TaskLogOutput{Error: reg.fail(ctx, "task_log_delete", err.Error())}, nil
			}
			return TaskLogOutput{Message: fmt.Sprintf("log %d deleted", input.ID)}, nil
		},
	)

	return []ai.ToolRef{list, get, del}
}

func taskLogRef(l *store.TaskExecutionLog) *TaskLogRef {
	return &TaskLogRef{
		ID:         l.ID,
		TaskID:     l.TaskID,
		Status:     l.Status,
		OutputText: l.OutputText,
		ToolCalls:  l.ToolCalls,
		CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}
