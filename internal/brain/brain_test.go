package brain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/avramovic/golabot/internal/config"
	"github.com/avramovic/golabot/internal/convo"
	"github.com/avramovic/golabot/internal/store"
	"github.com/firebase/genkit/go/ai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewFailsFastOnMisconfiguration(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{
			"unknown provider",
			config.Config{LLM: config.LLMConfig{Provider: "tarot"}},
		},
		{
			"anthropic without key",
			config.Config{LLM: config.LLMConfig{
				Provider:  config.ProviderAnthropic,
				Providers: map[string]config.ProviderConfig{},
			}},
		},
		{
			"custom without model",
			config.Config{LLM: config.LLMConfig{
				Provider: config.ProviderCustom,
				Providers: map[string]config.ProviderConfig{
					config.ProviderCustom: {BaseURL: "http://localhost:11434/v1", APIKey: "ollama"},
				},
			}},
		},
		{
			"custom without base url",
			config.Config{LLM: config.LLMConfig{
				Provider: config.ProviderCustom,
				Model:    "llama3",
				Providers: map[string]config.ProviderConfig{
					config.ProviderCustom: {APIKey: "ollama"},
				},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), &tt.cfg, testLogger())
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("New() err = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestQualifiedModelName(t *testing.T) {
	tests := []struct {
		provider, model, want string
	}{
		{config.ProviderAnthropic, "claude-sonnet-4-5", "anthropic/claude-sonnet-4-5"},
		{config.ProviderOpenAI, "gpt-4o", "openai/gpt-4o"},
		{config.ProviderGoogle, "gemini-2.5-flash", "googleai/gemini-2.5-flash"},
		{config.ProviderCustom, "llama3", "custom/llama3"},
	}
	for _, tt := range tests {
		if got := qualifiedModelName(tt.provider, tt.model); got != tt.want {
			t.Errorf("qualifiedModelName(%s, %s) = %s, want %s", tt.provider, tt.model, got, tt.want)
		}
	}
}

func TestExtractResponseStopReasons(t *testing.T) {
	tests := []struct {
		name string
		resp *ai.ModelResponse
		want string
	}{
		{
			"normal stop",
			&ai.ModelResponse{
				FinishReason: ai.FinishReasonStop,
				Request:      &ai.ModelRequest{},
				Message:      &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{ai.NewTextPart("done")}},
			},
			StopNormal,
		},
		{
			"length maps to max_tokens",
			&ai.ModelResponse{
				FinishReason: ai.FinishReasonLength,
				Request:      &ai.ModelRequest{},
				Message:      &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{ai.NewTextPart("trunc")}},
			},
			StopMaxTokens,
		},
		{
			"pending tool request wins",
			&ai.ModelResponse{
				FinishReason: ai.FinishReasonStop,
				Request:      &ai.ModelRequest{},
				Message: &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{
					ai.NewToolRequestPart(&ai.ToolRequest{Name: "exec", Input: map[string]any{"command": "ls"}}),
				}},
			},
			StopToolUse,
		},
		{
			"unknown maps to other",
			&ai.ModelResponse{
				FinishReason: ai.FinishReasonUnknown,
				Request:      &ai.ModelRequest{},
				Message:      &ai.Message{Role: ai.RoleModel},
			},
			StopOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractResponse(tt.resp); got.StopReason != tt.want {
				t.Errorf("StopReason = %s, want %s", got.StopReason, tt.want)
			}
		})
	}
}

func TestExtractResponseToolCalls(t *testing.T) {
	resp := &ai.ModelResponse{
		FinishReason: ai.FinishReasonStop,
		Request: &ai.ModelRequest{Messages: []*ai.Message{
			{Role: ai.RoleModel, Content: []*ai.Part{
				ai.NewToolRequestPart(&ai.ToolRequest{Ref: "c1", Name: "exec", Input: map[string]any{"command": "uptime"}}),
			}},
			{Role: ai.RoleTool, Content: []*ai.Part{
				ai.NewToolResponsePart(&ai.ToolResponse{Ref: "c1", Name: "exec", Output: map[string]any{"stdout": "up 3 days"}}),
			}},
		}},
		Message: &ai.Message{Role: ai.RoleModel, Content: []*ai.Part{ai.NewTextPart("been up 3 days")}},
	}

	out := extractResponse(resp)
	if out.Text != "been up 3 days" {
		t.Errorf("Text = %q", out.Text)
	}
	if len(out.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %d, want 1", len(out.ToolCalls))
	}
	call := out.ToolCalls[0]
	if call.Tool != "exec" {
		t.Errorf("Tool = %q", call.Tool)
	}
	if call.Input != `{"command":"uptime"}` {
		t.Errorf("Input = %q", call.Input)
	}
	if call.Result != `{"stdout":"up 3 days"}` {
		t.Errorf("Result = %q", call.Result)
	}
}

func TestHistoryToMessagesRoleMapping(t *testing.T) {
	history := []store.Message{
		{Role: store.RoleUser, Contents: "hi"},
		{Role: store.RoleAssistant, Contents: "hello"},
		{Role: "weird", Contents: "dropped"},
	}
	msgs := historyToMessages(history)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != ai.RoleUser || msgs[1].Role != ai.RoleModel {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(t.TempDir())
	sess := &convo.Session{
		System:  "preamble",
		Trigger: "hello",
		History: []store.Message{{Role: store.RoleUser, Contents: "[10:00:00] earlier", CreatedAt: time.Now()}},
	}

	key := c.Key("anthropic/claude-sonnet-4-5", sess)
	if _, ok := c.Get(key); ok {
		t.Fatal("cold cache reported a hit")
	}

	want := &Response{Text: "cached reply", StopReason: StopNormal}
	c.Put(key, want)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("cache miss after Put")
	}
	if got.Text != want.Text || got.StopReason != want.StopReason {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// Any change to session content must change the key.
	sess.Trigger = "hello there"
	if c.Key("anthropic/claude-sonnet-4-5", sess) == key {
		t.Error("key unchanged after trigger change")
	}
}
