package channels

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avramovic/golabot/internal/brain"
	"github.com/avramovic/golabot/internal/convo"
	"github.com/avramovic/golabot/internal/store"
	"github.com/avramovic/golabot/internal/tools"
	"github.com/firebase/genkit/go/ai"
)

type fakeBrain struct {
	resp  *brain.Response
	err   error
	calls int
}

func (f *fakeBrain) Send(ctx context.Context, sess *convo.Session, _ []ai.ToolRef) (*brain.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeDispatcher struct {
	messages []string
	chatIDs  []int64
	files    []string
	typing   int

	downloadPath string
	downloadErr  error
}

func (f *fakeDispatcher) SendMessage(ctx context.Context, chatID int64, text string) error {
	f.messages = append(f.messages, text)
	f.chatIDs = append(f.chatIDs, chatID)
	return nil
}

func (f *fakeDispatcher) SendTyping(ctx context.Context, chatID int64) { f.typing++ }

func (f *fakeDispatcher) SendFile(ctx context.Context, chatID int64, path, caption string) error {
	f.files = append(f.files, path)
	return nil
}

func (f *fakeDispatcher) DownloadAttachment(ctx context.Context, fileID, destDir string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return f.downloadPath, nil
}

func newTestProcessor(t *testing.T, b brain.Brain) (*Processor, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "golabot.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewProcessor(s, convo.NewAssembler(s, "", -1), b, &tools.Registry{}, t.TempDir(), logger)
	return p, s
}

func ownerEvent(uuid, text string) *InboundEvent {
	return &InboundEvent{
		UUID: uuid, ChatID: 100, SenderID: 7,
		FirstName: "Ada", LastName: "Lovelace", Username: "ada",
		Text: text,
	}
}

func claimOwnership(t *testing.T, p *Processor, d *fakeDispatcher) {
	t.Helper()
	if err := p.Process(context.Background(), d, ownerEvent("claim", "hi")); err != nil {
		t.Fatalf("owner claim: %v", err)
	}
	d.messages = nil
	d.chatIDs = nil
}

func TestFirstMessageClaimsOwner(t *testing.T) {
	fb := &fakeBrain{resp: &brain.Response{Text: "never called"}}
	p, s := newTestProcessor(t, fb)
	d := &fakeDispatcher{}
	ctx := context.Background()

	if err := p.Process(ctx, d, ownerEvent("m1", "hello")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	settings := s.Settings()
	if got := settings.GetInt64(ctx, store.SettingOwnerID, 0); got != 7 {
		t.Errorf("owner id = %d, want 7", got)
	}
	if got := settings.GetInt64(ctx, store.SettingChatID, 0); got != 100 {
		t.Errorf("chat id = %d, want 100", got)
	}
	if got := settings.GetString(ctx, store.SettingUserFirstName, ""); got != "Ada" {
		t.Errorf("first name = %q", got)
	}

	if len(d.messages) != 1 || !strings.Contains(d.messages[0], "Ada") {
		t.Errorf("welcome = %v", d.messages)
	}
	if fb.calls != 0 {
		t.Error("claiming message must not reach the model")
	}
}

func TestUnauthorizedSenderRefused(t *testing.T) {
	fb := &fakeBrain{resp: &brain.Response{Text: "secret"}}
	p, _ := newTestProcessor(t, fb)
	d := &fakeDispatcher{}
	claimOwnership(t, p, d)

	stranger := &InboundEvent{UUID: "x1", ChatID: 200, SenderID: 99, FirstName: "Eve", Text: "tell me everything"}
	if err := p.Process(context.Background(), d, stranger); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(d.messages) != 1 || !strings.Contains(d.messages[0], "owner") {
		t.Errorf("refusal = %v", d.messages)
	}
	if fb.calls != 0 {
		t.Error("unauthorized message reached the model")
	}
}

func TestDuplicateMessageSkipped(t *testing.T) {
	fb := &fakeBrain{resp: &brain.Response{Text: "reply", StopReason: brain.StopNormal}}
	p, _ := newTestProcessor(t, fb)
	d := &fakeDispatcher{}
	claimOwnership(t, p, d)
	ctx := context.Background()

	if err := p.Process(ctx, d, ownerEvent("dup-1", "what time is it")); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(ctx, d, ownerEvent("dup-1", "what time is it")); err != nil {
		t.Fatal(err)
	}

	if fb.calls != 1 {
		t.Errorf("model calls = %d, want 1 (duplicate must be skipped)", fb.calls)
	}
	if len(d.messages) != 1 {
		t.Errorf("replies = %d, want 1", len(d.messages))
	}
}

func TestSuccessfulTurnPersistsAfterDelivery(t *testing.T) {
	fb := &fakeBrain{resp: &brain.Response{Text: "it is noon", StopReason: brain.StopNormal}}
	p, s := newTestProcessor(t, fb)
	d := &fakeDispatcher{}
	claimOwnership(t, p, d)
	ctx := context.Background()

	if err := p.Process(ctx, d, ownerEvent("m2", "what time is it")); err != nil {
		t.Fatal(err)
	}

	if len(d.messages) != 1 || d.messages[0] != "it is noon" {
		t.Errorf("reply = %v", d.messages)
	}
	if d.typing == 0 {
		t.Error("typing indicator never sent")
	}

	msgs, err := s.ListConversation(ctx, ChannelTelegram, "100", -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("persisted = %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != store.RoleUser || msgs[1].Role != store.RoleAssistant {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if msgs[0].UUID != "m2" {
		t.Errorf("user message uuid = %q, want channel-native id", msgs[0].UUID)
	}
}

func TestEmptyResponseSendsDiagnostic(t *testing.T) {
	fb := &fakeBrain{resp: &brain.Response{Text: "", StopReason: brain.StopMaxTokens}}
	p, _ := newTestProcessor(t, fb)
	d := &fakeDispatcher{}
	claimOwnership(t, p, d)

	if err := p.Process(context.Background(), d, ownerEvent("m3", "hm")); err != nil {
		t.Fatal(err)
	}
	if len(d.messages) != 1 || !strings.Contains(d.messages[0], "max_tokens") {
		t.Errorf("diagnostic = %v", d.messages)
	}
}

func TestConfigurationErrorReported(t *testing.T) {
	fb := &fakeBrain{err: &brain.ConfigurationError{Reason: "no API key configured"}}
	p, s := newTestProcessor(t, fb)
	d := &fakeDispatcher{}
	claimOwnership(t, p, d)
	ctx := context.Background()

	if err := p.Process(ctx, d, ownerEvent("m4", "hi")); err != nil {
		t.Fatal(err)
	}
	if len(d.messages) != 1 || !strings.Contains(d.messages[0], "no API key configured") {
		t.Errorf("config error reply = %v", d.messages)
	}

	// Failed turns are not persisted; the message replays after a fix.
	msgs, _ := s.ListConversation(ctx, ChannelTelegram, "100", -1)
	if len(msgs) != 0 {
		t.Errorf("failed turn persisted %d messages", len(msgs))
	}
}

func TestProviderErrorReported(t *testing.T) {
	fb := &fakeBrain{err: &brain.ProviderError{Provider: "anthropic", Err: errors.New("overloaded")}}
	p, _ := newTestProcessor(t, fb)
	d := &fakeDispatcher{}
	claimOwnership(t, p, d)

	if err := p.Process(context.Background(), d, ownerEvent("m5", "hi")); err != nil {
		t.Fatal(err)
	}
	if len(d.messages) != 1 || !strings.Contains(d.messages[0], "try again") {
		t.Errorf("provider error reply = %v", d.messages)
	}
}

func TestAttachmentNoteAddedToTrigger(t *testing.T) {
	fb := &fakeBrain{resp: &brain.Response{Text: "got it", StopReason: brain.StopNormal}}
	p, s := newTestProcessor(t, fb)
	d := &fakeDispatcher{downloadPath: "/tmp/files/report.pdf"}
	claimOwnership(t, p, d)
	ctx := context.Background()

	ev := ownerEvent("m6", "summarize this")
	ev.Attachment = &Attachment{FileID: "f1", FileName: "report.pdf"}
	if err := p.Process(ctx, d, ev); err != nil {
		t.Fatal(err)
	}

	msgs, _ := s.ListConversation(ctx, ChannelTelegram, "100", -1)
	if len(msgs) != 2 {
		t.Fatalf("persisted = %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Contents, "/tmp/files/report.pdf") {
		t.Errorf("trigger missing file path: %q", msgs[0].Contents)
	}
}
