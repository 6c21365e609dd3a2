package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/foundry/internal/logtail"
)

// Level filters for the activity view, in cycle order.
var activityLevels = []string{"", "INFO", "WARN", "ERROR"}

type activityState struct {
	entries  []logtail.Entry
	err      error
	follow   bool
	minLevel string
	viewport viewport.Model
}

type activityMsg struct {
	entries []logtail.Entry
	err     error
}

func newActivityState() activityState {
	return activityState{follow: true, viewport: viewport.New(0, 0)}
}

func readActivityCmd(path string) tea.Cmd {
	return func() tea.Msg {
		if path == "" {
			return activityMsg{}
		}
		entries, err := logtail.Entries(path, ActivityTailLines)
		if err != nil {
			return activityMsg{err: err}
		}
		return activityMsg{entries: entries}
	}
}

func (m *Model) handleActivity(msg activityMsg) {
	m.activity.err = msg.err
	if msg.err == nil {
		m.activity.entries = msg.entries
	}
	m.refreshActivityViewport()
}

func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.activity.follow = !m.activity.follow
		if m.activity.follow {
			m.activity.viewport.GotoBottom()
			return m, readActivityCmd(m.logPath)
		}
		return m, nil
	case key.Matches(msg, m.keys.CycleLevel):
		m.activity.minLevel = nextLevel(m.activity.minLevel)
		m.refreshActivityViewport()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.activity.follow = true
		m.activity.viewport.GotoBottom()
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.activity.follow = false
		m.activity.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, readActivityCmd(m.logPath)
	}

	// Scrolling away from the end pauses follow mode.
	var cmd tea.Cmd
	m.activity.viewport, cmd = m.activity.viewport.Update(msg)
	if !m.activity.viewport.AtBottom() {
		m.activity.follow = false
	}
	return m, cmd
}

func nextLevel(current string) string {
	for i, l := range activityLevels {
		if l == current {
			return activityLevels[(i+1)%len(activityLevels)]
		}
	}
	return ""
}

// refreshActivityViewport re-renders the filtered entries into the viewport.
func (m *Model) refreshActivityViewport() {
	var lines []string
	for _, e := range m.activity.entries {
		if m.activity.minLevel != "" && !logtail.AtLeast(e.Level, m.activity.minLevel) {
			continue
		}
		lines = append(lines, m.renderEntry(e))
	}
	m.activity.viewport.SetContent(strings.Join(lines, "\n"))
	if m.activity.follow {
		m.activity.viewport.GotoBottom()
	}
}

func (m Model) renderEntry(e logtail.Entry) string {
	styles := m.theme.Styles()
	if e.Level == "" && e.Time.IsZero() {
		return styles.MutedText.Render(e.Raw)
	}

	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(styles.FaintText.Render(e.Time.Local().Format("15:04:05")))
		b.WriteString(" ")
	}
	levelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.LevelColor(e.Level))).Bold(true)
	b.WriteString(levelStyle.Render(padRight(e.Level, 5)))
	b.WriteString(" ")
	b.WriteString(styles.Text.Render(e.Message))
	for _, a := range e.Attrs {
		b.WriteString(" ")
		b.WriteString(styles.AccentText.Render(a.Key + "="))
		b.WriteString(styles.MutedText.Render(a.Value))
	}
	return b.String()
}

func (m Model) renderActivity() string {
	title := "Activity"
	if m.activity.minLevel != "" {
		title += " · " + m.activity.minLevel + "+"
	}
	if m.activity.follow {
		title += " · following"
	} else {
		title += " · paused"
	}

	styles := m.theme.Styles()
	var content string
	switch {
	case m.logPath == "":
		content = styles.MutedText.Render("Logging to a file is disabled.")
	case m.activity.err != nil:
		content = styles.DangerText.Render(fmt.Sprintf("Could not read %s: %v", m.logPath, m.activity.err))
	case len(m.activity.entries) == 0:
		content = styles.MutedText.Render("No activity yet in " + m.logPath)
	default:
		content = m.activity.viewport.View()
	}
	return m.renderTitledBox(title, content, m.width, m.contentHeight(), true)
}
