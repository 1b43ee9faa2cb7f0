package channels

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/avramovic/golabot/internal/store"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// telegramMessageLimit is Telegram's hard cap per message.
	telegramMessageLimit = 4096

	longPollTimeout = 60 * time.Second
	maxBackoff      = 30 * time.Second
)

// Telegram is the Telegram transport: a long-poll loop feeding the
// Processor, plus the Dispatcher implementation for outbound traffic.
type Telegram struct {
	bot       *tgbotapi.BotAPI
	store     *store.Store
	processor *Processor
	logger    *slog.Logger
}

// NewTelegram connects to the Bot API and records the bot's name.
func NewTelegram(token string, st *store.Store, proc *Processor, logger *slog.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	t := &Telegram{bot: bot, store: st, processor: proc, logger: logger}

	settings := st.Settings()
	ctx := context.Background()
	if !settings.Has(ctx, store.SettingBotName) && bot.Self.FirstName != "" {
		if err := settings.Set(ctx, store.SettingBotName, bot.Self.FirstName); err != nil {
			logger.Warn("failed to store bot name", "error", err)
		}
	}
	logger.Info("telegram connected", "bot", bot.Self.UserName)
	return t, nil
}

// Run is the long-poll loop. The update cursor lives in settings and
// advances only after an update reaches a terminal outcome, so a crash
// mid-message replays it on restart.
func (t *Telegram) Run(ctx context.Context) error {
	settings := t.store.Settings()
	backoff := time.Second

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		offset := settings.GetInt64(ctx, store.SettingOffset, 0)
		updates, err := t.bot.GetUpdates(tgbotapi.UpdateConfig{
			Offset:  int(offset),
			Timeout: int(longPollTimeout.Seconds()),
		})
		if err != nil {
			t.logger.Warn("telegram poll failed, backing off", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		for _, update := range updates {
			if ev := t.toEvent(&update); ev != nil {
				if err := t.processor.Process(ctx, t, ev); err != nil {
					t.logger.Error("processing failed, update will be retried", "update_id", update.UpdateID, "error", err)
					// Leave the cursor so the update replays.
					break
				}
			}
			if err := settings.Set(ctx, store.SettingOffset, int64(update.UpdateID)+1); err != nil {
				t.logger.Error("failed to advance update cursor", "error", err)
			}
		}
	}
}

// toEvent converts a Telegram update to a neutral inbound event.
// Non-message updates and empty messages yield nil.
func (t *Telegram) toEvent(update *tgbotapi.Update) *InboundEvent {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}

	ev := &InboundEvent{
		UUID:      strconv.Itoa(msg.MessageID),
		ChatID:    msg.Chat.ID,
		SenderID:  msg.From.ID,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Username:  msg.From.UserName,
		Text:      msg.Text,
	}

	switch {
	case msg.Document != nil:
		ev.Attachment = &Attachment{
			FileID:   msg.Document.FileID,
			FileName: msg.Document.FileName,
			Kind:     ClassifyAttachment(msg.Document.FileName),
		}
		if ev.Text == "" {
			ev.Text = msg.Caption
		}
	case len(msg.Photo) > 0:
		// Telegram sends multiple sizes; take the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		ev.Attachment = &Attachment{FileID: photo.FileID, FileName: photo.FileUniqueID + ".jpg", Kind: "image"}
		if ev.Text == "" {
			ev.Text = msg.Caption
		}
	case msg.Voice != nil:
		ev.Attachment = &Attachment{FileID: msg.Voice.FileID, FileName: msg.Voice.FileUniqueID + ".ogg", Kind: "voice message"}
	}

	if ev.Text == "" && ev.Attachment == nil {
		return nil
	}
	return ev
}

// SendMessage delivers text, split into chunks under Telegram's limit.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, telegramMessageLimit) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := t.bot.Send(msg); err != nil {
			// Markdown parse failures are common with model output;
			// retry as plain text before giving up.
			msg.ParseMode = ""
			if _, err := t.bot.Send(msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
	return nil
}

// SendTyping shows the typing indicator. Best effort.
func (t *Telegram) SendTyping(ctx context.Context, chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := t.bot.Request(action); err != nil {
		t.logger.Debug("typing indicator failed", "error", err)
	}
}

// SendFile uploads a local file as a document.
func (t *Telegram) SendFile(ctx context.Context, chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	return nil
}

// DownloadAttachment fetches a file from Telegram into destDir.
func (t *Telegram) DownloadAttachment(ctx context.Context, fileID, destDir string) (string, error) {
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	url := file.Link(t.bot.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	name := filepath.Base(file.FilePath)
	if name == "." || name == "/" || name == "" {
		name = fileID
	}
	dest := filepath.Join(destDir, name)
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("save file: %w", err)
	}
	return dest, nil
}

// splitMessage breaks text into chunks of at most limit bytes,
// preferring newline boundaries and never cutting inside a rune.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if text[i-1] == '\n' {
				cut = i
				break
			}
		}
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		chunks = append(chunks, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// OwnerNotifier adapts a Dispatcher to the tool-facing Notifier: it
// targets whatever chat the owner last used.
type OwnerNotifier struct {
	Store      *store.Store
	Dispatcher Dispatcher
}

func (n *OwnerNotifier) chatID(ctx context.Context) (int64, error) {
	id := n.Store.Settings().GetInt64(ctx, store.SettingChatID, 0)
	if id == 0 {
		return 0, fmt.Errorf("no owner chat known yet")
	}
	return id, nil
}

func (n *OwnerNotifier) NotifyUser(ctx context.Context, text string) error {
	id, err := n.chatID(ctx)
	if err != nil {
		return err
	}
	return n.Dispatcher.SendMessage(ctx, id, FlattenTables(text))
}

func (n *OwnerNotifier) SendFile(ctx context.Context, path, caption string) error {
	id, err := n.chatID(ctx)
	if err != nil {
		return err
	}
	return n.Dispatcher.SendFile(ctx, id, path, caption)
}
