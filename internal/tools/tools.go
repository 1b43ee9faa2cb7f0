// Package tools defines the Genkit tools the assistant can call:
// shell execution, HTTP, web search, memory CRUD, task scheduling,
// execution log inspection, and user messaging.
package tools

import (
	"context"
	"log/slog"

	otelx "github.com/avramovic/golabot/internal/otel"
	"github.com/avramovic/golabot/internal/store"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Notifier delivers out-of-band messages and files to the owner.
// Implemented by the active channel.
type Notifier interface {
	NotifyUser(ctx context.Context, text string) error
	SendFile(ctx context.Context, path, caption string) error
}

// Registry holds all tool definitions. Chat sessions and scheduled task
// sessions see different tool sets: notify_user only exists in task
// sessions, where the final output may go elsewhere than the chat.
type Registry struct {
	Store    *store.Store
	APIKeys  map[string]string
	Logger   *slog.Logger
	Notifier Notifier
	Metrics  *otelx.Metrics

	ChatTools []ai.ToolRef
	TaskTools []ai.ToolRef
}

// NewRegistry builds an unregistered Registry. Call RegisterAll before
// handing tool sets to the brain.
func NewRegistry(st *store.Store, apiKeys map[string]string, logger *slog.Logger) *Registry {
	return &Registry{
		Store:   st,
		APIKeys: apiKeys,
		Logger:  logger,
	}
}

// RegisterAll defines every tool on the Genkit instance and populates
// the chat and task tool sets.
func (r *Registry) RegisterAll(g *genkit.Genkit) {
	shared := []ai.ToolRef{
		registerShell(g, r),
		registerHTTP(g, r),
	}
	shared = append(shared, registerSearchTools(g, r)...)
	shared = append(shared, registerMemoryTools(g, r)...)
	shared = append(shared, registerSchedulerTools(g, r)...)
	shared = append(shared, registerTaskLogTools(g, r)...)
	shared = append(shared, registerOSInfo(g, r))
	shared = append(shared, registerSendFile(g, r))

	r.ChatTools = shared
	r.TaskTools = append(append([]ai.ToolRef{}, shared...), registerNotifyUser(g, r))

	r.Logger.Info("tools registered", "chat", len(r.ChatTools), "task", len(r.TaskTools))
}

// fail records a recoverable tool error. The error goes back to the
// model inside the output so the conversation continues; returning a Go
// error from a handler would abort the whole generation instead.
func (r *Registry) fail(ctx context.Context, tool, msg string) string {
	r.Logger.Warn("tool error", "tool", tool, "error", msg)
	if r.Metrics != nil {
		r.Metrics.ToolErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
	}
	return msg
}
