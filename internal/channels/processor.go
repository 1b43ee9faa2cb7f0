package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/avramovic/golabot/internal/brain"
	"github.com/avramovic/golabot/internal/convo"
	otelx "github.com/avramovic/golabot/internal/otel"
	"github.com/avramovic/golabot/internal/store"
	"github.com/avramovic/golabot/internal/tools"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Processor handles inbound events: owner claim, authorization, dedup,
// attachment intake, session assembly, the LLM call, delivery, and
// persistence. Every path through Process ends in a terminal outcome,
// after which the transport may advance its cursor.
type Processor struct {
	store     *store.Store
	assembler *convo.Assembler
	brain     brain.Brain
	registry  *tools.Registry
	logger    *slog.Logger
	metrics   *otelx.Metrics
	filesDir  string
}

// NewProcessor wires a Processor.
func NewProcessor(st *store.Store, asm *convo.Assembler, b brain.Brain, reg *tools.Registry, filesDir string, logger *slog.Logger) *Processor {
	return &Processor{
		store:     st,
		assembler: asm,
		brain:     b,
		registry:  reg,
		logger:    logger,
		filesDir:  filesDir,
	}
}

// SetMetrics attaches metric instruments. Optional.
func (p *Processor) SetMetrics(m *otelx.Metrics) {
	p.metrics = m
}

// Process handles one inbound event end to end. The returned error is
// always nil for message-level problems (those become replies); only
// infrastructure faults surface as errors.
func (p *Processor) Process(ctx context.Context, d Dispatcher, ev *InboundEvent) error {
	if p.metrics != nil {
		p.metrics.InboundMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", ChannelTelegram)))
	}
	settings := p.store.Settings()

	// First contact claims ownership. The claiming message is consumed
	// by the welcome, not answered.
	ownerID := settings.GetInt64(ctx, store.SettingOwnerID, 0)
	if ownerID == 0 {
		return p.claimOwner(ctx, d, ev)
	}

	if ev.SenderID != ownerID {
		p.logger.Warn("unauthorized sender", "sender_id", ev.SenderID, "username", ev.Username)
		return d.SendMessage(ctx, ev.ChatID, "Sorry, I only talk to my owner.")
	}

	// The chat can move (owner messages from a group); keep it current.
	if settings.GetInt64(ctx, store.SettingChatID, 0) != ev.ChatID {
		if err := settings.Set(ctx, store.SettingChatID, ev.ChatID); err != nil {
			p.logger.Warn("failed to update chat id", "error", err)
		}
	}

	seen, err := p.store.MessageExists(ctx, ev.UUID)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		p.logger.Debug("duplicate message skipped", "uuid", ev.UUID)
		return nil
	}

	trigger := ev.Text
	if ev.Attachment != nil {
		kind := ev.Attachment.Kind
		if kind == "" {
			kind = "file"
		}
		path, err := d.DownloadAttachment(ctx, ev.Attachment.FileID, p.filesDir)
		if err != nil {
			p.logger.Warn("attachment download failed", "error", err)
			trigger = fmt.Sprintf("%s\n\n(The user attached %s %q but it could not be downloaded: %v)", trigger, kind, ev.Attachment.FileName, err)
		} else {
			trigger = fmt.Sprintf("%s\n\n(The user sent a %s, saved at %s)", trigger, kind, path)
		}
	}
	if trigger == "" {
		return nil
	}

	d.SendTyping(ctx, ev.ChatID)

	sess, err := p.assembler.Build(ctx, ChannelTelegram, strconv.FormatInt(ev.ChatID, 10), trigger)
	if err != nil {
		return fmt.Errorf("assemble session: %w", err)
	}

	resp, err := p.brain.Send(ctx, sess, p.registry.ChatTools)
	if err != nil {
		return p.reportBrainError(ctx, d, ev.ChatID, err)
	}

	reply := resp.Text
	if reply == "" {
		// The model finished without text. Tell the user something
		// happened instead of going silent.
		reply = fmt.Sprintf("I finished processing but produced no reply (stop reason: %s).", resp.StopReason)
	}

	if err := d.SendMessage(ctx, ev.ChatID, FlattenTables(reply)); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	// Persist only after successful delivery so a crash mid-turn
	// replays the message instead of losing the exchange.
	convID := strconv.FormatInt(ev.ChatID, 10)
	userMsg := &store.Message{
		Role: store.RoleUser, Contents: trigger, UUID: ev.UUID,
		ChannelType: ChannelTelegram, ChannelConversationID: convID,
	}
	if err := p.store.InsertMessage(ctx, userMsg); err != nil {
		p.logger.Error("failed to persist user message", "error", err)
	}
	botMsg := &store.Message{
		Role: store.RoleAssistant, Contents: reply, UUID: uuid.NewString(),
		ChannelType: ChannelTelegram, ChannelConversationID: convID,
	}
	if err := p.store.InsertMessage(ctx, botMsg); err != nil {
		p.logger.Error("failed to persist assistant message", "error", err)
	}

	p.logger.Info("message processed", "uuid", ev.UUID, "stop_reason", resp.StopReason, "tool_calls", len(resp.ToolCalls))
	return nil
}

// claimOwner binds the bot to its first sender and greets them.
func (p *Processor) claimOwner(ctx context.Context, d Dispatcher, ev *InboundEvent) error {
	settings := p.store.Settings()
	pairs := map[string]any{
		store.SettingOwnerID:       ev.SenderID,
		store.SettingChatID:        ev.ChatID,
		store.SettingUserFirstName: ev.FirstName,
		store.SettingUserLastName:  ev.LastName,
	}
	for key, value := range pairs {
		if err := settings.Set(ctx, key, value); err != nil {
			return fmt.Errorf("claim owner: %w", err)
		}
	}
	p.logger.Info("owner claimed", "owner_id", ev.SenderID, "username", ev.Username)

	name := ev.FirstName
	if name == "" {
		name = "there"
	}
	welcome := fmt.Sprintf(
		"Hi %s! I'm your personal assistant and you are now my owner. "+
			"Talk to me like you would to a person. I can run commands, search the web, "+
			"remember things and schedule recurring tasks.", name)
	return d.SendMessage(ctx, ev.ChatID, welcome)
}

// reportBrainError turns an LLM failure into a user-visible reply.
func (p *Processor) reportBrainError(ctx context.Context, d Dispatcher, chatID int64, err error) error {
	var cfgErr *brain.ConfigurationError
	if errors.As(err, &cfgErr) {
		p.logger.Error("llm misconfigured", "error", err)
		return d.SendMessage(ctx, chatID, "My LLM backend is misconfigured: "+cfgErr.Reason)
	}
	p.logger.Error("llm call failed", "error", err)
	return d.SendMessage(ctx, chatID, "Sorry, I hit an error talking to my brain. Please try again.")
}
