package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// PreloadLimit is the longest memory content that may be injected into
// every system preamble. Longer memories are stored on-demand only.
const PreloadLimit = 1000

// Memory is a titled note the assistant saves for later recall.
// Preloaded memories appear in the system preamble of every session;
// the rest are fetched by id via the memory tools.
type Memory struct {
	ID        int64
	Title     string
	Contents  string
	Preload   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateMemory inserts a memory. A preload request is demoted to
// on-demand when the contents exceed PreloadLimit characters.
func (s *Store) CreateMemory(ctx context.Context, title, contents string, preload bool) (*Memory, error) {
	if utf8.RuneCountInString(contents) > PreloadLimit {
		preload = false
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (title, contents, preload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		title, contents, preload, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}
	id, _ := res.LastInsertId()
	return &Memory{ID: id, Title: title, Contents: contents, Preload: preload, CreatedAt: now, UpdatedAt: now}, nil
}

// GetMemory returns the memory with the given id, or ErrNotFound.
func (s *Store) GetMemory(ctx context.Context, id int64) (*Memory, error) {
	var m Memory
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, contents, preload, created_at, updated_at
		FROM memories WHERE id = ?`, id,
	).Scan(&m.ID, &m.Title, &m.Contents, &m.Preload, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get memory %d: %w", id, err)
	}
	return &m, nil
}

// ListMemories returns all memories ordered by id. When preloadOnly is
// set, only memories flagged for preloading are returned.
func (s *Store) ListMemories(ctx context.Context, preloadOnly bool) ([]Memory, error) {
	query := `SELECT id, title, contents, preload, created_at, updated_at FROM memories`
	if preloadOnly {
		query += ` WHERE preload = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Title, &m.Contents, &m.Preload, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMemory rewrites a memory's fields. The preload demotion rule
// applies on update as well. Returns ErrNotFound for unknown ids.
func (s *Store) UpdateMemory(ctx context.Context, id int64, title, contents string, preload bool) error {
	if utf8.RuneCountInString(contents) > PreloadLimit {
		preload = false
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE memories SET title = ?, contents = ?, preload = ?, updated_at = ?
		WHERE id = ?`,
		title, contents, preload, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update memory %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMemory removes a memory by id. Returns ErrNotFound for unknown ids.
func (s *Store) DeleteMemory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAllMemories wipes every memory (forget/amnesia).
func (s *Store) DeleteAllMemories(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("delete memories: %w", err)
	}
	return nil
}

// CountMemories returns the number of stored memories.
func (s *Store) CountMemories(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}
