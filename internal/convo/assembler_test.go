package convo

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avramovic/golabot/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "golabot.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertMsg(t *testing.T, s *store.Store, role, text, uuid string, at time.Time) {
	t.Helper()
	m := &store.Message{
		Role: role, Contents: text, UUID: uuid,
		ChannelType: "telegram", ChannelConversationID: "1",
		CreatedAt: at,
	}
	if err := s.InsertMessage(context.Background(), m); err != nil {
		t.Fatalf("InsertMessage(%s): %v", uuid, err)
	}
}

func TestBuildEmptyHistory(t *testing.T) {
	s := newTestStore(t)
	a := NewAssembler(s, "", -1)

	sess, err := a.Build(context.Background(), "telegram", "1", "hello")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sess.History) != 0 {
		t.Errorf("history = %d messages, want 0", len(sess.History))
	}
	if sess.Trigger != "hello" {
		t.Errorf("trigger = %q", sess.Trigger)
	}
	if !strings.Contains(sess.System, "Golabot") {
		t.Errorf("default preamble missing bot name: %q", sess.System)
	}
}

func TestBuildSlidingWindow(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	for i, text := range []string{"a", "b", "c", "d", "e"} {
		insertMsg(t, s, store.RoleUser, text, text, now.Add(time.Duration(i)*time.Second))
	}

	a := NewAssembler(s, "", 2)
	sess, err := a.Build(context.Background(), "telegram", "1", "next")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(sess.History) != 2 {
		t.Fatalf("history = %d messages, want 2", len(sess.History))
	}
	if !strings.HasSuffix(sess.History[0].Contents, "d") || !strings.HasSuffix(sess.History[1].Contents, "e") {
		t.Errorf("window kept wrong messages: %q, %q", sess.History[0].Contents, sess.History[1].Contents)
	}
}

func TestTimestampPrefixes(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Date(2026, 8, 28, 15, 0, 0, 0, time.Local)

	insertMsg(t, s, store.RoleUser, "today", "m1", fixed.Add(-time.Hour))
	insertMsg(t, s, store.RoleAssistant, "yesterday", "m2", fixed.AddDate(0, 0, -1))

	a := NewAssembler(s, "", -1)
	a.now = func() time.Time { return fixed }

	sess, err := a.Build(context.Background(), "telegram", "1", "x")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var today, older string
	for _, m := range sess.History {
		if strings.HasSuffix(m.Contents, "today") {
			today = m.Contents
		}
		if strings.HasSuffix(m.Contents, "yesterday") {
			older = m.Contents
		}
	}
	if today != "[14:00:00] today" {
		t.Errorf("same-day stamp = %q, want clock only", today)
	}
	if older != "[2026-08-27 15:00:00] yesterday" {
		t.Errorf("older stamp = %q, want full date", older)
	}
}

func TestSoulTemplateRendering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	settings := s.Settings()
	if err := settings.Set(ctx, store.SettingBotName, "Jarvis"); err != nil {
		t.Fatal(err)
	}
	if err := settings.Set(ctx, store.SettingUserFirstName, "Ada"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateMemory(ctx, "likes", "coffee before noon", true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateMemory(ctx, "ondemand", strings.Repeat("x", store.PreloadLimit+1), true); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(s, "Bot {{.BotName}} serving {{.UserFirstName}}.{{range .Memories}} mem:{{.Title}}{{end}}", -1)
	sess, err := a.Build(ctx, "telegram", "1", "x")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(sess.System, "Bot Jarvis serving Ada.") {
		t.Errorf("settings not rendered: %q", sess.System)
	}
	if !strings.Contains(sess.System, "mem:likes") {
		t.Errorf("preloaded memory missing: %q", sess.System)
	}
	if strings.Contains(sess.System, "mem:ondemand") {
		t.Errorf("demoted memory leaked into preamble: %q", sess.System)
	}
}

func TestBuildTaskSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertMsg(t, s, store.RoleUser, "chat noise", "m1", time.Now())
	if _, err := s.CreateMemory(ctx, "secretmem", "contents", true); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(s, "", -1)
	task := &store.Task{Title: "backup check", Prompt: "verify last night's backup"}
	sess, err := a.BuildTaskSession(ctx, task)
	if err != nil {
		t.Fatalf("BuildTaskSession: %v", err)
	}
	if len(sess.History) != 0 {
		t.Error("task session carried chat history")
	}
	if !strings.Contains(sess.System, "automated scheduled task") {
		t.Errorf("operational notice missing: %q", sess.System)
	}
	if strings.Contains(sess.System, "secretmem") {
		t.Errorf("task session preamble included memories: %q", sess.System)
	}
	if !strings.Contains(sess.Trigger, "backup check") || !strings.Contains(sess.Trigger, "verify last night's backup") {
		t.Errorf("trigger = %q", sess.Trigger)
	}
}

func TestChatPreambleListsModelAndTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := &store.Task{Schedule: "0 9 * * *", Title: "morning brief", Prompt: "p", Repeat: -1, Destination: store.DestinationUser, Enabled: true}
	if err := s.CreateTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(s, "", -1)
	a.SetModel("anthropic/claude-sonnet-4-5")
	sess, err := a.Build(ctx, "telegram", "1", "x")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(sess.System, "anthropic/claude-sonnet-4-5") {
		t.Errorf("model missing from preamble: %q", sess.System)
	}
	if !strings.Contains(sess.System, "morning brief") {
		t.Errorf("task list missing from preamble: %q", sess.System)
	}
}

func TestChatPreambleListsOtherMemoryTitles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateMemory(ctx, "wifi password", "hunter2", true); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateMemory(ctx, "trip notes", strings.Repeat("z", 50), false); err != nil {
		t.Fatal(err)
	}

	a := NewAssembler(s, "", -1)
	sess, err := a.Build(ctx, "telegram", "1", "x")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(sess.System, "hunter2") {
		t.Errorf("preloaded memory contents missing: %q", sess.System)
	}
	if !strings.Contains(sess.System, "trip notes") {
		t.Errorf("on-demand memory title missing: %q", sess.System)
	}
	if strings.Contains(sess.System, "zzzzz") {
		t.Errorf("on-demand memory contents leaked into preamble: %q", sess.System)
	}
}

func TestBuildIsPureRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := NewAssembler(s, "", -1)
	if _, err := a.Build(ctx, "telegram", "1", "hello"); err != nil {
		t.Fatal(err)
	}
	n, err := s.CountMessages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Build persisted %d messages, want 0", n)
	}
}
