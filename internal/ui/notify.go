package ui

import (
	"fmt"
	"time"
)

type noticeLevel int

const (
	noticeInfo noticeLevel = iota
	noticeSuccess
	noticeWarning
	noticeError
)

// notice is a transient message shown on the bottom line.
type notice struct {
	level noticeLevel
	text  string
	at    time.Time
}

// notify pushes a notice, dropping the oldest past MaxNotices.
func (m *Model) notify(level noticeLevel, format string, args ...any) {
	n := notice{level: level, text: fmt.Sprintf(format, args...), at: time.Now()}
	m.notices = append(m.notices, n)
	if len(m.notices) > MaxNotices {
		m.notices = append([]notice(nil), m.notices[len(m.notices)-MaxNotices:]...)
	}
}

func (m *Model) notifyErr(action string, err error) {
	m.logger.Warn("action failed", "action", action, "error", err)
	m.notify(noticeError, "%s: %s", action, describeError(err))
}

// renderNotices renders the newest notice with a count of older ones.
func (m Model) renderNotices() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	line := styles.Footer.Width(m.width)

	if len(m.notices) == 0 {
		return line.Render(bg.Render("Ready", styles.FaintText))
	}

	n := m.notices[len(m.notices)-1]
	style := styles.InfoText
	icon := "•"
	switch n.level {
	case noticeSuccess:
		style, icon = styles.SuccessText, "✓"
	case noticeWarning:
		style, icon = styles.WarningText, "!"
	case noticeError:
		style, icon = styles.DangerText, "✗"
	}

	text := truncate(n.text, max(m.width-30, 10))
	parts := []string{
		bg.Render(icon, style),
		bg.Render(text, style),
		bg.Render(n.at.Format("15:04:05"), styles.FaintText),
	}
	if older := len(m.notices) - 1; older > 0 {
		parts = append(parts, bg.Render(fmt.Sprintf("+%d", older), styles.MutedText))
	}
	parts = append(parts, bg.Render("esc dismiss", styles.FaintText))
	return line.Render(bg.Join(parts, "  "))
}
