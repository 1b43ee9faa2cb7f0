package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Destination controls where a scheduled task's result goes.
type Destination string

const (
	// DestinationUser delivers the result to the owner's chat.
	DestinationUser Destination = "user"
	// DestinationMemory saves the result as a new memory.
	DestinationMemory Destination = "memory"
	// DestinationAuto lets the model decide per run using its tools.
	DestinationAuto Destination = "auto"
)

// ParseDestination validates a destination string, defaulting empty to user.
func ParseDestination(s string) (Destination, error) {
	switch Destination(s) {
	case DestinationUser, DestinationMemory, DestinationAuto:
		return Destination(s), nil
	case "":
		return DestinationUser, nil
	default:
		return "", fmt.Errorf("invalid destination %q (want user, memory or auto)", s)
	}
}

// Task is a cron-scheduled prompt. Repeat counts remaining runs:
// -1 means unlimited, 0 means exhausted (never runnable), positive
// values decrement after each dispatch.
type Task struct {
	ID          int64
	Schedule    string
	Title       string
	Prompt      string
	Repeat      int
	Destination Destination
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatus values recorded on execution logs.
const (
	TaskStatusSuccess = "success"
	TaskStatusFailure = "failed"
)

// ToolCall records one tool invocation made during a task run.
type ToolCall struct {
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Result string `json:"result"`
}

// TaskExecutionLog records the outcome of one task run.
type TaskExecutionLog struct {
	ID         int64
	TaskID     int64
	OutputText string
	ToolCalls  []ToolCall
	Status     string
	CreatedAt  time.Time
}

// CreateTask inserts a task. Repeat 0 is rejected; a task that can
// never run must not be created.
func (s *Store) CreateTask(ctx context.Context, t *Task) error {
	if t.Repeat == 0 {
		return errors.New("repeat must be -1 or positive")
	}
	if _, err := ParseDestination(string(t.Destination)); err != nil {
		return err
	}
	if t.Destination == "" {
		t.Destination = DestinationUser
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	t.Enabled = true

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (schedule, title, prompt, repeat, destination, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
		t.Schedule, t.Title, t.Prompt, t.Repeat, string(t.Destination), now, now,
	)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	t.ID, _ = res.LastInsertId()
	return nil
}

// GetTask returns the task with the given id, or ErrNotFound.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, schedule, title, prompt, repeat, destination, enabled, created_at, updated_at
		FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// ListTasks returns every task ordered by id.
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	return s.queryTasks(ctx, `
		SELECT id, schedule, title, prompt, repeat, destination, enabled, created_at, updated_at
		FROM tasks ORDER BY id`)
}

// ListRunnableTasks returns enabled tasks with runs remaining.
func (s *Store) ListRunnableTasks(ctx context.Context) ([]Task, error) {
	return s.queryTasks(ctx, `
		SELECT id, schedule, title, prompt, repeat, destination, enabled, created_at, updated_at
		FROM tasks WHERE enabled = 1 AND repeat != 0 ORDER BY id`)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var dest string
	err := row.Scan(&t.ID, &t.Schedule, &t.Title, &t.Prompt, &t.Repeat, &dest, &t.Enabled, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Destination = Destination(dest)
	return &t, nil
}

// UpdateTask rewrites a task's mutable fields. Setting repeat back to a
// nonzero value while enabling allows a previously exhausted task to
// run again; enabling with repeat still 0 is rejected.
func (s *Store) UpdateTask(ctx context.Context, t *Task) error {
	if t.Enabled && t.Repeat == 0 {
		return errors.New("cannot enable a task with no runs remaining")
	}
	if _, err := ParseDestination(string(t.Destination)); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET schedule = ?, title = ?, prompt = ?, repeat = ?, destination = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		t.Schedule, t.Title, t.Prompt, t.Repeat, string(t.Destination), t.Enabled, time.Now().UTC(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task %d: %w", t.ID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTask removes a task and, via cascade, its execution logs.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementTaskRepeat consumes one run from a finitely repeating task.
// Unlimited tasks (repeat -1) are left untouched by the WHERE guard.
func (s *Store) DecrementTaskRepeat(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET repeat = repeat - 1, updated_at = ?
		WHERE id = ? AND repeat > 0`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("decrement task %d: %w", id, err)
	}
	return nil
}

// DisableExhaustedTasks flips enabled off for tasks whose repeat
// counter reached zero. Returns the number of tasks disabled.
func (s *Store) DisableExhaustedTasks(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET enabled = 0, updated_at = ?
		WHERE enabled = 1 AND repeat = 0`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("disable exhausted tasks: %w", err)
	}
	return res.RowsAffected()
}

// InsertTaskLog records one task execution outcome.
func (s *Store) InsertTaskLog(ctx context.Context, l *TaskExecutionLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	calls := l.ToolCalls
	if calls == nil {
		calls = []ToolCall{}
	}
	b, err := json.Marshal(calls)
	if err != nil {
		return fmt.Errorf("encode tool calls: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO task_execution_logs (task_id, output_text, tool_calls, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.TaskID, l.OutputText, string(b), l.Status, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task log: %w", err)
	}
	l.ID, _ = res.LastInsertId()
	return nil
}

// GetTaskLog returns one execution log by id, or ErrNotFound.
func (s *Store) GetTaskLog(ctx context.Context, id int64) (*TaskExecutionLog, error) {
	var l TaskExecutionLog
	var calls string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, output_text, tool_calls, status, created_at
		FROM task_execution_logs WHERE id = ?`, id,
	).Scan(&l.ID, &l.TaskID, &l.OutputText, &calls, &l.Status, &l.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task log %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(calls), &l.ToolCalls); err != nil {
		return nil, fmt.Errorf("decode tool calls: %w", err)
	}
	return &l, nil
}

// ListTaskLogs returns execution logs newest first. taskID 0 means all
// tasks; limit <= 0 means no limit.
func (s *Store) ListTaskLogs(ctx context.Context, taskID int64, limit int) ([]TaskExecutionLog, error) {
	query := `
		SELECT id, task_id, output_text, tool_calls, status, created_at
		FROM task_execution_logs`
	var args []any
	if taskID != 0 {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task logs: %w", err)
	}
	defer rows.Close()

	var out []TaskExecutionLog
	for rows.Next() {
		var l TaskExecutionLog
		var calls string
		if err := rows.Scan(&l.ID, &l.TaskID, &l.OutputText, &calls, &l.Status, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task log: %w", err)
		}
		if err := json.Unmarshal([]byte(calls), &l.ToolCalls); err != nil {
			return nil, fmt.Errorf("decode tool calls: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// DeleteTaskLog removes one execution log by id.
func (s *Store) DeleteTaskLog(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_execution_logs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task log %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
