// Package tui renders the terminal dashboard: scheduled tasks, recent
// executions and storage counters, refreshed live.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/avramovic/golabot/internal/store"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Snapshot is one dashboard refresh worth of state.
type Snapshot struct {
	BotName      string
	OwnerClaimed bool
	Memories     int
	Messages     int
	Tasks        []store.Task
	RecentLogs   []store.TaskExecutionLog
	LastError    string
	Uptime       time.Duration
}

// SnapshotProvider supplies fresh snapshots on each tick.
type SnapshotProvider func() Snapshot

// CollectSnapshot reads a Snapshot from the store.
func CollectSnapshot(ctx context.Context, s *store.Store, started time.Time) Snapshot {
	snap := Snapshot{Uptime: time.Since(started)}

	settings := s.Settings()
	snap.BotName = settings.GetString(ctx, store.SettingBotName, "Golabot")
	snap.OwnerClaimed = settings.GetInt64(ctx, store.SettingOwnerID, 0) != 0

	var err error
	if snap.Memories, err = s.CountMemories(ctx); err != nil {
		snap.LastError = err.Error()
	}
	if snap.Messages, err = s.CountMessages(ctx); err != nil {
		snap.LastError = err.Error()
	}
	if snap.Tasks, err = s.ListTasks(ctx); err != nil {
		snap.LastError = err.Error()
	}
	if snap.RecentLogs, err = s.ListTaskLogs(ctx, 0, 8); err != nil {
		snap.LastError = err.Error()
	}
	return snap
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type model struct {
	provider SnapshotProvider
	snap     Snapshot
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tickMsg:
		m.snap = m.provider()
		return m, tickCmd()
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	owner := errStyle.Render("unclaimed")
	if m.snap.OwnerClaimed {
		owner = okStyle.Render("claimed")
	}
	b.WriteString(titleStyle.Render(m.snap.BotName+" dashboard") + "\n\n")
	b.WriteString(fmt.Sprintf("Owner: %s    Memories: %d    Messages: %d    Uptime: %s\n\n",
		owner, m.snap.Memories, m.snap.Messages, m.snap.Uptime.Truncate(time.Second)))

	b.WriteString(headerStyle.Render("Scheduled tasks") + "\n")
	if len(m.snap.Tasks) == 0 {
		b.WriteString(dimStyle.Render("  (none)") + "\n")
	}
	for _, t := range m.snap.Tasks {
		b.WriteString("  " + renderTaskLine(&t) + "\n")
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Recent executions") + "\n")
	if len(m.snap.RecentLogs) == 0 {
		b.WriteString(dimStyle.Render("  (none)") + "\n")
	}
	for _, l := range m.snap.RecentLogs {
		b.WriteString("  " + renderLogLine(&l) + "\n")
	}

	if m.snap.LastError != "" {
		b.WriteString("\n" + errStyle.Render("error: "+m.snap.LastError) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Press q to quit.") + "\n")
	return b.String()
}

func renderTaskLine(t *store.Task) string {
	state := "on"
	if !t.Enabled {
		state = "off"
	}
	repeat := "∞"
	if t.Repeat >= 0 {
		repeat = fmt.Sprintf("%d left", t.Repeat)
	}
	title := t.Title
	if title == "" {
		title = truncate(t.Prompt, 40)
	}
	return fmt.Sprintf("#%d [%s] %s  %s  (%s, → %s)", t.ID, state, title, t.Schedule, repeat, t.Destination)
}

func renderLogLine(l *store.TaskExecutionLog) string {
	mark := okStyle.Render("ok")
	if l.Status != store.TaskStatusSuccess {
		mark = errStyle.Render("fail")
	}
	return fmt.Sprintf("%s task %d %s  %s",
		l.CreatedAt.Format("01-02 15:04"), l.TaskID, mark, truncate(l.OutputText, 60))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// Run starts the dashboard and blocks until quit or ctx cancellation.
func Run(ctx context.Context, provider SnapshotProvider) error {
	defer bestEffortResetTTY()

	m := model{provider: provider, snap: provider()}
	p := tea.NewProgram(m)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run()
		done <- err
	}()

	select {
	case <-ctx.Done():
		p.Quit()
		return ctx.Err()
	case err := <-done:
		return err
	}
}
