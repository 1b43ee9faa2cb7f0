package tools

import (
	"errors"
	"fmt"

	"github.com/avramovic/golabot/internal/store"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MemorySaveInput is the input for memory_save.
type MemorySaveInput struct {
	Title    string `json:"title"`
	Contents string `json:"contents"`
	// Preload accepts bool or stringly booleans from the model.
	Preload any `json:"preload,omitempty"`
}

// MemoryUpdateInput is the input for memory_update.
type MemoryUpdateInput struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Contents string `json:"contents"`
	Preload  any    `json:"preload,omitempty"`
}

// MemoryIDInput selects a memory by id.
type MemoryIDInput struct {
	ID int64 `json:"id"`
}

// MemoryListInput is the input for memory_list.
type MemoryListInput struct {
	PreloadOnly any `json:"preload_only,omitempty"`
}

// MemoryRef is a single memory in tool output.
type MemoryRef struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Contents string `json:"contents,omitempty"`
	Preload  bool   `json:"preload"`
}

// MemoryOutput is the output of the memory tools.
type MemoryOutput struct {
	Memory   *MemoryRef  `json:"memory,omitempty"`
	Memories []MemoryRef `json:"memories,omitempty"`
	Message  string      `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func registerMemoryTools(g *genkit.Genkit, reg *Registry) []ai.ToolRef {
	save := genkit.DefineTool(g, "memory_save",
		"Save a memory for later recall. Set preload=true for short facts that should always be in context; long memories are stored on-demand regardless.",
		func(ctx *ai.ToolContext, input MemorySaveInput) (MemoryOutput, error) {
			if input.Title == "" || input.Contents == "" {
				return MemoryOutput{Error: reg.fail(ctx, "memory_save", "title and contents are required")}, nil
			}
			m, err := reg.Store.CreateMemory(ctx, input.Title, input.Contents, Truthy(input.Preload))
			if err != nil {
				return MemoryOutput{Error: reg.fail(ctx, "memory_save", err.Error())}, nil
			}
			return MemoryOutput{
				Memory:  memoryRef(m),
				Message: fmt.Sprintf("memory %d saved", m.ID),
			}, nil
		},
	)

	get := genkit.DefineTool(g, "memory_get",
		"Fetch a memory by id, including its full contents.",
		func(ctx *ai.ToolContext, input MemoryIDInput) (MemoryOutput, error) {
			m, err := reg.Store.GetMemory(ctx, input.ID)
			if errors.Is(err, store.ErrNotFound) {
				return MemoryOutput{Error: reg.fail(ctx, "memory_get", fmt.Sprintf("memory %d not found", input.ID))}, nil
			}
			if err != nil {
				return MemoryOutput{Error: reg.fail(ctx, "memory_get", err.Error())}, nil
			}
			return MemoryOutput{Memory: memoryRef(m)}, nil
		},
	)

	list := genkit.DefineTool(g, "memory_list",
		"List saved memories with their ids and titles.",
		func(ctx *ai.ToolContext, input MemoryListInput) (MemoryOutput, error) {
			memories, err := reg.Store.ListMemories(ctx, Truthy(input.PreloadOnly))
			if err != nil {
				return MemoryOutput{Error: reg.fail(ctx, "memory_list", err.Error())}, nil
			}
			out := MemoryOutput{}
			for i := range memories {
				ref := memoryRef(&memories[i])
				ref.Contents = "" // titles only; fetch via memory_get
				out.Memories = append(out.Memories, *ref)
			}
			return out, nil
		},
	)

	update := genkit.DefineTool(g, "memory_update",
		"Rewrite an existing memory's title, contents and preload flag.",
		func(ctx *ai.ToolContext, input MemoryUpdateInput) (MemoryOutput, error) {
			if input.Title == "" || input.Contents == "" {
				return MemoryOutput{Error: reg.fail(ctx, "memory_update", "title and contents are required")}, nil
			}
			err := reg.Store.UpdateMemory(ctx, input.ID, input.Title, input.Contents, Truthy(input.Preload))
			if errors.Is(err, store.ErrNotFound) {
				return MemoryOutput{Error: reg.fail(ctx, "memory_update", fmt.Sprintf("memory %d not found", input.ID))}, nil
			}
			if err != nil {
				return MemoryOutput{Error: reg.fail(ctx, "memory_update", err.Error())}, nil
			}
			return MemoryOutput{Message: fmt.Sprintf("memory %d updated", input.ID)}, nil
		},
	)

	del := genkit.DefineTool(g, "memory_delete",
		"Delete a memory by id. This cannot be undone.",
		func(ctx *ai.ToolContext, input MemoryIDInput) (MemoryOutput, error) {
			err := reg.Store.DeleteMemory(ctx, input.ID)
			if errors.Is(err, store.ErrNotFound) {
				return MemoryOutput{Error: reg.fail(ctx, "memory_delete", fmt.Sprintf("memory %d not found", input.ID))}, nil
			}
			if err != nil {
				return MemoryOutput{Error: reg.fail(ctx, "memory_delete", err.Error())}, nil
			}
			return MemoryOutput{Message: fmt.Sprintf("memory %d deleted", input.ID)}, nil
		},
	)

	return []ai.ToolRef{save, get, list, update, del}
}

func memoryRef(m *store.Memory) *MemoryRef {
	return &MemoryRef{ID: m.ID, Title: m.Title, Contents: m.Contents, Preload: m.Preload}
}
