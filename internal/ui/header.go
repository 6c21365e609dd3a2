package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/foundry/internal/chatdev"
)

// renderHeader renders the status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("foundry", styles.Logo)}

	switch {
	case m.snapshot.IsOffline():
		parts = append(parts, bg.Render("● "+classifyConnectionError(m.snapshot.LastError), styles.DangerText))
	case !m.snapshot.HasList && m.snapshot.LastError == nil:
		parts = append(parts, bg.Render("Connecting...", styles.WarningText.Bold(true)))
	case m.snapshot.LastError != nil:
		parts = append(parts, bg.Render("● RETRYING", styles.WarningText.Bold(true)))
	default:
		parts = append(parts, bg.Render("● ONLINE", styles.SuccessText))
	}

	maxURL := 40
	if compact {
		maxURL = 24
	}
	parts = append(parts, bg.Render(truncateMiddle(m.clientBaseURL(), maxURL), styles.MutedText))

	if m.snapshot.HasList {
		parts = append(parts,
			bg.Render("Tasks:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", m.snapshot.Total), styles.Text))
	}
	if active := m.activeCount(); active > 0 {
		color := lipgloss.Color(m.theme.StatusColor(string(chatdev.StatusRunning)))
		parts = append(parts,
			bg.Render("Active:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", active), lipgloss.NewStyle().Foreground(color)))
	}
	if n := m.watchCount(); n > 0 {
		parts = append(parts,
			bg.Render("Watching:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", n), styles.InfoText))
	}
	if m.busy > 0 {
		parts = append(parts, bg.Render(m.spinner.View(), styles.AccentText))
	}
	if ts := m.formatTimestamp(); ts != "" {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	if err := m.snapshot.LastError; err != nil && !compact {
		parts = append(parts,
			bg.Render("ERROR", styles.DangerText.Bold(true))+bg.Space()+
				bg.Render(truncate(describeError(err), 60), styles.DangerText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// activeCount returns the number of listed tasks still pending or running.
func (m Model) activeCount() int {
	n := 0
	for _, t := range m.snapshot.Tasks {
		if t.Status.Cancellable() {
			n++
		}
	}
	return n
}

// formatTimestamp formats the last update time with relative indicator.
func (m Model) formatTimestamp() string {
	updated := m.snapshot.LastUpdated
	if updated.IsZero() {
		return ""
	}

	since := time.Since(updated)
	text := updated.Format("15:04:05")
	switch {
	case since < time.Minute:
		text += " (now)"
	case since < time.Hour:
		text += fmt.Sprintf(" (%dm ago)", int(since.Minutes()))
	case since < 24*time.Hour:
		text += fmt.Sprintf(" (%dh ago)", int(since.Hours()))
	}
	return text
}

// classifyConnectionError returns a short description of the connection error.
func classifyConnectionError(err error) string {
	if err == nil {
		return "OFFLINE"
	}
	switch chatdev.KindOf(err) {
	case chatdev.KindAuthentication:
		return "UNAUTHORIZED"
	case chatdev.KindUnexpectedStatus:
		return "SERVER ERROR"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	default:
		return "OFFLINE"
	}
}

// renderCommandBar renders the command hints bar for the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewGenerate:
		if m.generate.editing() {
			commands = []cmd{{"tab", "Next"}, {"ctrl+s", "Submit"}, {"esc", "Done"}}
		} else {
			commands = []cmd{{"enter", "Edit"}, {"ctrl+s", "Submit"}, {"q", "Tasks"}, {"?", "More"}}
		}
	case ViewSettings:
		if m.settings.form.editing() {
			commands = []cmd{{"tab", "Next"}, {"ctrl+s", "Save"}, {"ctrl+r", "Health"}, {"esc", "Done"}}
		} else {
			commands = []cmd{{"enter", "Edit"}, {"ctrl+s", "Save"}, {"H", "Health"}, {"q", "Tasks"}, {"?", "More"}}
		}
	case ViewActivity:
		followLabel := "Pause"
		if !m.activity.follow {
			followLabel = "Follow"
		}
		level := "All"
		if m.activity.minLevel != "" {
			level = m.activity.minLevel + "+"
		}
		commands = []cmd{{"Space", followLabel}, {"v", level}, {"r", "Reload"}, {"q", "Tasks"}, {"?", "More"}}
	default:
		filter := "All"
		if s := m.snapshot.Query.Status; s != "" {
			filter = string(s)
		}
		commands = []cmd{
			{"f", filter},
			{"[/]", "Page"},
			{"n", "New"},
			{"c", "Cancel"},
			{"b", "Build"},
			{"w", "Watch"},
			{"x", "Delete"},
			{"s", "Settings"},
			{"l", "Activity"},
			{"?", "More"},
		}
	}

	colon := bg.Sep(":")
	segments := make([]string, 0, len(commands)+2)
	segments = append(segments, bg.Render("["+m.currentView.String()+"]", styles.Text.Bold(true)))
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}
	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.Spaces(2)))
}
