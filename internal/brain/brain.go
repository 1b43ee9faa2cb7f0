// Package brain is the LLM abstraction. It wraps Genkit with the
// configured provider plugin and turns assembled sessions into model
// responses with tool calls resolved.
package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avramovic/golabot/internal/config"
	"github.com/avramovic/golabot/internal/convo"
	otelx "github.com/avramovic/golabot/internal/otel"
	"github.com/avramovic/golabot/internal/store"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/anthropic"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Stop reasons reported on a Response.
const (
	StopNormal    = "normal"
	StopToolUse   = "tool_use"
	StopMaxTokens = "max_tokens"
	StopOther     = "other"
)

// maxTurns bounds the internal tool-call loop per Send.
const maxTurns = 10

// Response is the outcome of one LLM session.
type Response struct {
	Text       string           `json:"text"`
	StopReason string           `json:"stop_reason"`
	ToolCalls  []store.ToolCall `json:"tool_calls,omitempty"`
}

// Brain generates responses for assembled sessions.
type Brain interface {
	Send(ctx context.Context, sess *convo.Session, tools []ai.ToolRef) (*Response, error)
}

// GenkitBrain is the production Brain backed by a Genkit instance.
type GenkitBrain struct {
	g         *genkit.Genkit
	provider  string
	modelName string
	logger    *slog.Logger
	cache     *Cache
	metrics   *otelx.Metrics
}

// builtin default models per provider, used when neither llm.model nor
// the provider block names one.
var defaultModels = map[string]string{
	config.ProviderAnthropic: "claude-sonnet-4-5",
	config.ProviderOpenAI:    "gpt-4o",
	config.ProviderGoogle:    "gemini-2.5-flash",
}

// New initializes Genkit with the configured provider. Misconfiguration
// (unknown provider, missing key, unresolvable model) fails here, before
// any message is accepted.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*GenkitBrain, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	pc, _ := cfg.Provider(provider)

	model := strings.TrimSpace(cfg.LLM.Model)
	if model == "" {
		model = strings.TrimSpace(pc.Model)
	}
	if model == "" {
		model = defaultModels[provider]
	}

	var g *genkit.Genkit
	switch provider {
	case config.ProviderAnthropic:
		if pc.APIKey == "" {
			return nil, &ConfigurationError{Reason: "anthropic selected but no API key configured"}
		}
		g = genkit.Init(ctx, genkit.WithPlugins(&anthropic.Anthropic{
			APIKey:  pc.APIKey,
			BaseURL: pc.BaseURL,
		}))

	case config.ProviderOpenAI:
		if pc.APIKey == "" {
			return nil, &ConfigurationError{Reason: "openai selected but no API key configured"}
		}
		g = genkit.Init(ctx, genkit.WithPlugins(&compat_oai.OpenAICompatible{
			Provider: "openai",
			APIKey:   pc.APIKey,
			BaseURL:  pc.BaseURL,
		}))

	case config.ProviderGoogle:
		if pc.APIKey == "" {
			return nil, &ConfigurationError{Reason: "google selected but no API key configured"}
		}
		g = genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: pc.APIKey}),
		)

	case config.ProviderCustom:
		if pc.BaseURL == "" {
			return nil, &ConfigurationError{Reason: "custom provider needs a base_url"}
		}
		if model == "" {
			return nil, &ConfigurationError{Reason: "custom provider needs an explicit model"}
		}
		g = genkit.Init(ctx, genkit.WithPlugins(&compat_oai.OpenAICompatible{
			Provider: "custom",
			APIKey:   pc.APIKey,
			BaseURL:  pc.BaseURL,
		}))

	default:
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown provider %q", provider)}
	}

	if model == "" {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("no model resolvable for provider %q", provider)}
	}

	b := &GenkitBrain{
		g:         g,
		provider:  provider,
		modelName: qualifiedModelName(provider, model),
		logger:    logger,
	}
	if cfg.LLM.CachePrompts {
		b.cache = NewCache(cfg.CacheDir())
	}
	logger.Info("brain initialized", "provider", provider, "model", b.modelName)
	return b, nil
}

// Genkit exposes the underlying instance for tool registration.
func (b *GenkitBrain) Genkit() *genkit.Genkit {
	return b.g
}

// ModelName returns the qualified model identifier in use.
func (b *GenkitBrain) ModelName() string {
	return b.modelName
}

// SetMetrics attaches metric instruments. Optional.
func (b *GenkitBrain) SetMetrics(m *otelx.Metrics) {
	b.metrics = m
}

func qualifiedModelName(provider, model string) string {
	switch provider {
	case config.ProviderAnthropic:
		return "anthropic/" + model
	case config.ProviderOpenAI:
		return "openai/" + model
	case config.ProviderGoogle:
		return "googleai/" + model
	default:
		return "custom/" + model
	}
}

// Send runs one session through the model. Tool calls are executed
// inside Genkit's generate loop; the returned Response carries the
// final text, a normalized stop reason, and the resolved tool calls.
func (b *GenkitBrain) Send(ctx context.Context, sess *convo.Session, tools []ai.ToolRef) (*Response, error) {
	if strings.TrimSpace(sess.Trigger) == "" {
		return nil, &ProviderError{Provider: b.provider, Err: fmt.Errorf("empty trigger")}
	}

	// Tool-free sessions may be served from the disk cache.
	var cacheKey string
	if b.cache != nil && len(tools) == 0 {
		cacheKey = b.cache.Key(b.modelName, sess)
		if resp, ok := b.cache.Get(cacheKey); ok {
			b.logger.Debug("prompt cache hit", "key", cacheKey)
			return resp, nil
		}
	}

	// Escape % so ai.WithSystem does not treat the soul as a format string.
	system := strings.ReplaceAll(sess.System, "%", "%%")

	opts := []ai.GenerateOption{
		ai.WithModelName(b.modelName),
		ai.WithSystem(system),
		ai.WithPrompt(sess.Trigger),
	}
	if msgs := historyToMessages(sess.History); len(msgs) > 0 {
		opts = append(opts, ai.WithMessages(msgs...))
	}
	if len(tools) > 0 {
		opts = append(opts, ai.WithTools(tools...), ai.WithMaxTurns(maxTurns))
	}

	ctx, span := otel.Tracer("golabot").Start(ctx, "brain.send",
		trace.WithAttributes(
			attribute.String("llm.provider", b.provider),
			attribute.String("llm.model", b.modelName),
			attribute.Int("llm.tools", len(tools)),
		))
	defer span.End()

	start := time.Now()
	resp, err := genkit.Generate(ctx, b.g, opts...)
	elapsed := time.Since(start)
	if b.metrics != nil {
		b.metrics.LLMCallDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(
				attribute.String("provider", b.provider),
				attribute.Bool("error", err != nil),
			))
	}
	if err != nil {
		span.RecordError(err)
		b.logger.Error("generate failed", "provider", b.provider, "model", b.modelName, "error", err)
		return nil, &ProviderError{Provider: b.provider, Err: err}
	}

	out := extractResponse(resp)
	b.logger.Info("generate done",
		"provider", b.provider,
		"stop_reason", out.StopReason,
		"tool_calls", len(out.ToolCalls),
		"duration_ms", elapsed.Milliseconds(),
	)

	if cacheKey != "" {
		b.cache.Put(cacheKey, out)
	}
	return out, nil
}

// extractResponse normalizes a model response: final text, stop reason,
// and the tool request/response pairs resolved during the generate loop.
func extractResponse(resp *ai.ModelResponse) *Response {
	out := &Response{Text: resp.Text()}

	requests := map[string]*store.ToolCall{}
	var order []string
	for _, msg := range resp.History() {
		for _, part := range msg.Content {
			switch {
			case part.IsToolRequest():
				req := part.ToolRequest
				key := callKey(req.Ref, req.Name)
				requests[key] = &store.ToolCall{
					Tool:  req.Name,
					Input: compactJSON(req.Input),
				}
				order = append(order, key)
			case part.IsToolResponse():
				tr := part.ToolResponse
				if call, ok := requests[callKey(tr.Ref, tr.Name)]; ok {
					call.Result = compactJSON(tr.Output)
				}
			}
		}
	}
	for _, key := range order {
		out.ToolCalls = append(out.ToolCalls, *requests[key])
	}

	finalHasToolRequest := false
	if resp.Message != nil {
		for _, part := range resp.Message.Content {
			if part.IsToolRequest() {
				finalHasToolRequest = true
			}
		}
	}

	switch {
	case finalHasToolRequest:
		out.StopReason = StopToolUse
	case resp.FinishReason == ai.FinishReasonStop:
		out.StopReason = StopNormal
	case resp.FinishReason == ai.FinishReasonLength:
		out.StopReason = StopMaxTokens
	default:
		out.StopReason = StopOther
	}
	return out
}

func callKey(ref, name string) string {
	if ref != "" {
		return ref
	}
	return name
}

func compactJSON(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// historyToMessages converts persisted turns to Genkit messages.
func historyToMessages(items []store.Message) []*ai.Message {
	var msgs []*ai.Message
	for _, item := range items {
		var role ai.Role
		switch item.Role {
		case store.RoleUser:
			role = ai.RoleUser
		case store.RoleAssistant:
			role = ai.RoleModel
		case store.RoleSystem:
			role = ai.RoleSystem
		default:
			continue
		}
		msgs = append(msgs, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(item.Contents)},
		})
	}
	return msgs
}
