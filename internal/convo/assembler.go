// Package convo assembles LLM sessions from persisted state: the
// rendered system preamble, the sliding conversation window, and the
// trigger message. Assembly is a pure read; nothing is persisted here.
package convo

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strings"
	"text/template"
	"time"

	"github.com/avramovic/golabot/internal/store"
)

// Session is the fully assembled input for one LLM call.
type Session struct {
	System  string
	History []store.Message
	Trigger string
}

// SoulData is the template context for rendering the soul preamble.
// Memories carries the preloaded set in full; OtherMemories only the
// titles, so the model knows what memory_get can fetch. All three lists
// are empty in task-session mode.
type SoulData struct {
	BotName       string
	UserFirstName string
	UserLastName  string
	OS            string
	Hostname      string
	Username      string
	Now           string
	WorkDir       string
	Model         string
	Memories      []store.Memory
	OtherMemories []store.Memory
	Tasks         []store.Task
}

// DefaultSoul is used when no soul.md exists in the home directory.
const DefaultSoul = `You are {{.BotName}}, a personal assistant reachable over chat.
You run on {{.OS}} (host {{.Hostname}}, user {{.Username}}), working directory {{.WorkDir}}.
Current time: {{.Now}}. Active model: {{.Model}}.
You talk to {{.UserFirstName}} {{.UserLastName}}. Be concise and direct.
You have tools for running shell commands, making HTTP requests, searching
the web, managing memories and scheduling tasks. Use them without asking
for permission first.
{{if .Memories}}
Saved memories:
{{range .Memories}}- [{{.ID}}] {{.Title}}: {{.Contents}}
{{end}}{{end}}{{if .OtherMemories}}
Other stored memories (titles only, fetch with memory_get):
{{range .OtherMemories}}- [{{.ID}}] {{.Title}}
{{end}}{{end}}{{if .Tasks}}
Scheduled tasks:
{{range .Tasks}}- [{{.ID}}] {{.Schedule}} {{if .Title}}{{.Title}}{{else}}{{.Prompt}}{{end}}
{{end}}{{end}}`

// taskNotice is appended to the preamble for scheduled task sessions.
const taskNotice = `

This session is an automated scheduled task execution, not a live chat.
The prompt below was written earlier by the user. There is nobody at the
keyboard; never ask questions or wait for input. Finish the work with
your tools and produce a final result.`

// Assembler builds sessions from the store and the configured soul.
type Assembler struct {
	store    *store.Store
	soul     string
	window   int
	model    string
	timeZone *time.Location

	// now is replaceable in tests.
	now func() time.Time
}

// NewAssembler creates an Assembler. soul may be empty to use the
// built-in default. window follows store.ListConversation semantics.
func NewAssembler(st *store.Store, soul string, window int) *Assembler {
	if strings.TrimSpace(soul) == "" {
		soul = DefaultSoul
	}
	return &Assembler{
		store:    st,
		soul:     soul,
		window:   window,
		timeZone: time.Local,
		now:      time.Now,
	}
}

// SetSoul swaps the soul template, for hot reload.
func (a *Assembler) SetSoul(soul string) {
	if strings.TrimSpace(soul) == "" {
		soul = DefaultSoul
	}
	a.soul = soul
}

// SetModel records the active model identifier for the preamble.
func (a *Assembler) SetModel(model string) {
	a.model = model
}

// Build assembles a chat session: rendered preamble, the sliding window
// of prior turns with timestamp prefixes, and the trigger text. An
// empty history yields just the preamble and trigger.
func (a *Assembler) Build(ctx context.Context, channelType, conversationID, trigger string) (*Session, error) {
	system, err := a.renderSoul(ctx, "", false)
	if err != nil {
		return nil, err
	}

	history, err := a.store.ListConversation(ctx, channelType, conversationID, a.window)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	for i := range history {
		history[i].Contents = a.stampContents(history[i])
	}

	return &Session{System: system, History: history, Trigger: trigger}, nil
}

// BuildTaskSession assembles a session for a scheduled task run. Task
// sessions carry no chat history; the preamble suppresses memory and
// task inclusion, gains an operational notice, and the task prompt
// becomes the trigger.
func (a *Assembler) BuildTaskSession(ctx context.Context, task *store.Task) (*Session, error) {
	system, err := a.renderSoul(ctx, taskNotice, true)
	if err != nil {
		return nil, err
	}
	trigger := task.Prompt
	if task.Title != "" {
		trigger = fmt.Sprintf("Scheduled task %q: %s", task.Title, task.Prompt)
	}
	return &Session{System: system, Trigger: trigger}, nil
}

func (a *Assembler) renderSoul(ctx context.Context, suffix string, taskMode bool) (string, error) {
	tmpl, err := template.New("soul").Parse(a.soul)
	if err != nil {
		return "", fmt.Errorf("parse soul template: %w", err)
	}

	data, err := a.soulData(ctx, taskMode)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render soul: %w", err)
	}
	return strings.TrimSpace(sb.String()) + suffix, nil
}

func (a *Assembler) soulData(ctx context.Context, taskMode bool) (*SoulData, error) {
	settings := a.store.Settings()

	var preloaded, others []store.Memory
	var tasks []store.Task
	if !taskMode {
		memories, err := a.store.ListMemories(ctx, false)
		if err != nil {
			return nil, fmt.Errorf("load memories: %w", err)
		}
		for _, m := range memories {
			if m.Preload {
				preloaded = append(preloaded, m)
			} else {
				others = append(others, m)
			}
		}
		if tasks, err = a.store.ListRunnableTasks(ctx); err != nil {
			return nil, fmt.Errorf("load tasks: %w", err)
		}
	}

	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()
	username := ""
	if u, err := user.Current(); err == nil {
		username = u.Username
	}

	return &SoulData{
		BotName:       settings.GetString(ctx, store.SettingBotName, "Golabot"),
		UserFirstName: settings.GetString(ctx, store.SettingUserFirstName, ""),
		UserLastName:  settings.GetString(ctx, store.SettingUserLastName, ""),
		OS:            runtime.GOOS + "/" + runtime.GOARCH,
		Hostname:      hostname,
		Username:      username,
		Now:           a.now().In(a.timeZone).Format("2006-01-02 15:04:05 (Monday)"),
		WorkDir:       wd,
		Model:         a.model,
		Memories:      preloaded,
		OtherMemories: others,
		Tasks:         tasks,
	}, nil
}

// stampContents prefixes a history message with its send time. Messages
// from today carry only the clock; older ones include the date.
func (a *Assembler) stampContents(m store.Message) string {
	ts := m.CreatedAt.In(a.timeZone)
	now := a.now().In(a.timeZone)

	layout := "2006-01-02 15:04:05"
	if sameDay(ts, now) {
		layout = "15:04:05"
	}
	return fmt.Sprintf("[%s] %s", ts.Format(layout), m.Contents)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
