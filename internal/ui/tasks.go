package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/foundry/internal/chatdev"
	"github.com/five82/foundry/internal/poller"
	"github.com/five82/foundry/internal/state"
)

// taskDetail is the latest single-task fetch requested from the list.
type taskDetail struct {
	task chatdev.Task
	at   time.Time
}

// handleTasksKey handles keys specific to the task list.
func (m Model) handleTasksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.snapshot.Tasks)

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < count-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = max(count-1, 0)
	case key.Matches(msg, m.keys.CycleFilter):
		return m.setQuery(m.snapshot.Query.CycleStatus())
	case key.Matches(msg, m.keys.NextPage):
		if q, ok := m.snapshot.Query.Next(m.snapshot.Total); ok {
			return m.setQuery(q)
		}
	case key.Matches(msg, m.keys.PrevPage):
		if q, ok := m.snapshot.Query.Prev(); ok {
			return m.setQuery(q)
		}
	case key.Matches(msg, m.keys.Refresh):
		m.requestRefresh()
	case key.Matches(msg, m.keys.Details):
		if task, ok := m.selectedTask(); ok && m.client != nil {
			m.busy++
			return m, taskStatusCmd(m.ctx, m.client, task.TaskID)
		}
	case key.Matches(msg, m.keys.CancelTask):
		return m.cancelSelected()
	case key.Matches(msg, m.keys.DeleteTask):
		return m.confirmDeleteSelected()
	case key.Matches(msg, m.keys.BuildAPK):
		return m.buildSelected()
	case key.Matches(msg, m.keys.Watch):
		return m.toggleWatchSelected()
	}
	return m, nil
}

// setQuery replaces the list query and asks for a refresh.
func (m Model) setQuery(q state.Query) (tea.Model, tea.Cmd) {
	if m.store != nil {
		q = m.store.SetQuery(q)
	}
	m.snapshot.Query = q
	m.selectedRow = 0
	m.requestRefresh()
	return m, nil
}

func (m Model) selectedTask() (chatdev.Task, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.snapshot.Tasks) {
		return chatdev.Task{}, false
	}
	return m.snapshot.Tasks[m.selectedRow], true
}

func (m *Model) clampSelection() {
	if n := len(m.snapshot.Tasks); m.selectedRow >= n {
		m.selectedRow = max(n-1, 0)
	}
}

// detailFor returns the freshest known view of a task: a watch result or an
// explicit fetch, whichever is newer, else the listed row.
func (m Model) detailFor(task chatdev.Task) (chatdev.Task, time.Time) {
	best, at := task, m.snapshot.LastUpdated
	if d, ok := m.details[task.TaskID]; ok && d.at.After(at) {
		best, at = d.task, d.at
	}
	if w, ok := m.snapshot.Watch(task.TaskID); ok && w.Task != nil && w.UpdatedAt.After(at) {
		best, at = *w.Task, w.UpdatedAt
	}
	return best, at
}

func (m Model) watching(taskID int64) bool {
	return m.watcher != nil && m.watcher.State(taskID) == poller.Polling
}

func (m Model) watchCount() int {
	n := 0
	for _, w := range m.snapshot.Watches {
		if w.Polling {
			n++
		}
	}
	return n
}

// renderTasks renders the task list and the detail pane.
func (m Model) renderTasks() string {
	height := m.contentHeight()
	if m.width < LayoutCompactWidth {
		listHeight := max(height/2, 5)
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderTaskList(m.width, listHeight),
			m.renderTaskDetail(m.width, height-listHeight),
		)
	}

	listWidth := m.width * 55 / 100
	if m.width >= LayoutExtraWideWidth {
		listWidth = m.width * 45 / 100
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		m.renderTaskList(listWidth, height),
		m.renderTaskDetail(m.width-listWidth, height),
	)
}

func (m Model) renderTaskList(width, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)
	query := m.snapshot.Query

	title := fmt.Sprintf("Tasks (%d)", m.snapshot.Total)
	if query.Status != "" {
		title += " · " + string(query.Status)
	}
	title += fmt.Sprintf(" · page %d/%d", query.Page(), pageCount(m.snapshot.Total, query.Normalize().Limit))

	rows := height - 2
	if !m.snapshot.HasList {
		msg := "Waiting for the first refresh..."
		if m.snapshot.LastError != nil {
			msg = "Could not load tasks: " + describeError(m.snapshot.LastError)
		}
		return m.renderTitledBox(title, bg.Render(msg, styles.MutedText), width, height, true)
	}
	if len(m.snapshot.Tasks) == 0 {
		msg := "No tasks yet. Press n to generate a project."
		if query.Status != "" {
			msg = "No " + strings.ToLower(string(query.Status)) + " tasks. Press f to change the filter."
		}
		return m.renderTitledBox(title, bg.Render(msg, styles.MutedText), width, height, true)
	}

	inner := width - 2
	header := bg.Render(padRight("ID", 7)+padRight("STATUS", 12)+padRight("APK", 9)+"PROJECT", styles.FaintText)
	lines := []string{header}

	visible := max(rows-1, 1)
	start := 0
	if m.selectedRow >= visible {
		start = m.selectedRow - visible + 1
	}
	now := time.Now()
	for i := start; i < len(m.snapshot.Tasks) && i < start+visible; i++ {
		task := m.snapshot.Tasks[i]
		lines = append(lines, m.renderTaskRow(task, i == m.selectedRow, inner, now, styles))
	}
	return m.renderTitledBox(title, strings.Join(lines, "\n"), width, height, true)
}

func (m Model) renderTaskRow(task chatdev.Task, selected bool, width int, now time.Time, styles Styles) string {
	project := "-"
	if ref, ok := task.Project(); ok {
		project = ref.Name
	}
	marker := " "
	if m.watching(task.TaskID) {
		marker = "●"
	}
	age := ""
	if t := task.ParsedUpdatedAt(); !t.IsZero() {
		age = humanizeDuration(now.Sub(t))
	}
	apk := string(task.APKBuildStatus)
	if apk == "" {
		apk = "-"
	}

	id := padRight(fmt.Sprintf("%s%d", marker, task.TaskID), 7)
	status := padRight(string(task.Status), 12)
	apkCol := padRight(strings.ToLower(apk), 9)
	rest := max(width-28-len(age)-1, 8)
	name := padRight(truncate(project, rest), rest)

	if selected {
		return styles.Selected.Width(width).Render(id + status + apkCol + name + " " + age)
	}
	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor(string(task.Status))))
	apkStyle := styles.MutedText
	if task.APKBuildStatus != "" {
		apkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor(string(task.APKBuildStatus))))
	}
	bg := NewBgStyle(m.theme.FocusBg)
	return bg.Render(id, styles.Text) + bg.Render(status, statusStyle) + bg.Render(apkCol, apkStyle) +
		bg.Render(name, styles.Text) + bg.Space() + bg.Render(age, styles.FaintText)
}

func (m Model) renderTaskDetail(width, height int) string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	bg := NewBgStyle(m.theme.SurfaceAlt)

	task, ok := m.selectedTask()
	if !ok {
		return m.renderTitledBox("Details", bg.Render("Select a task", styles.MutedText), width, height, false)
	}
	task, seen := m.detailFor(task)
	inner := width - 4
	now := time.Now()

	row := func(label, value string, style lipgloss.Style) string {
		if value == "" {
			value = "-"
		}
		return bg.Render(padRight(label, 12), styles.MutedText) + bg.Render(truncateMiddle(value, max(inner-12, 8)), style)
	}

	badge := func(label, status string) string {
		if status == "" {
			return row(label, "", styles.MutedText)
		}
		return bg.Render(padRight(label, 12), styles.MutedText) + styles.StatusStyle(status).Render(status)
	}

	lines := []string{
		badge("Status", string(task.Status)),
		row("Created", formatTimestamp(task.ParsedCreatedAt(), now), styles.Text),
		row("Updated", formatTimestamp(task.ParsedUpdatedAt(), now), styles.Text),
	}
	if ref, ok := task.Project(); ok {
		lines = append(lines,
			row("Project", ref.Name, styles.AccentText),
			row("Org", ref.Organization, styles.Text),
			row("Timestamp", ref.Timestamp, styles.Text),
		)
	}
	lines = append(lines, row("Result", task.ResultPath, styles.Text))

	lines = append(lines, badge("APK build", string(task.APKBuildStatus)))
	if task.APKPath != "" {
		lines = append(lines, row("APK path", task.APKPath, styles.SuccessText))
	}
	if task.ErrorMessage != "" {
		lines = append(lines, "", bg.Render("Error", styles.DangerText))
		for _, l := range wrapText(task.ErrorMessage, inner) {
			lines = append(lines, bg.Render(l, styles.DangerText))
		}
	}

	lines = append(lines, "")
	if w, ok := m.snapshot.Watch(task.TaskID); ok {
		mode := "stopped"
		if w.Polling {
			mode = "watching"
		}
		text := fmt.Sprintf("%s · %d polls", mode, w.Attempts)
		if w.Err != nil {
			text += " · " + describeError(w.Err)
		}
		lines = append(lines, row("Watch", text, styles.InfoText))
	}
	if !seen.IsZero() {
		lines = append(lines, row("Seen", humanizeDuration(now.Sub(seen)), styles.FaintText))
	}

	var actions []string
	if task.Status.Cancellable() {
		actions = append(actions, "c cancel")
	}
	if task.CanBuildAPK() {
		actions = append(actions, "b build APK")
	}
	actions = append(actions, "w watch", "x delete", "enter fetch")
	lines = append(lines, "", bg.Render(strings.Join(actions, "  "), styles.FaintText))

	return m.renderTitledBox(fmt.Sprintf("Task #%d", task.TaskID), strings.Join(lines, "\n"), width, height, false)
}

func pageCount(total, limit int) int {
	if limit <= 0 || total <= 0 {
		return 1
	}
	return (total + limit - 1) / limit
}

// wrapText breaks s into lines of at most width runes on word boundaries.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		var cur []rune
		for _, w := range words {
			wr := []rune(w)
			switch {
			case len(cur) == 0:
				cur = wr
			case len(cur)+1+len(wr) <= width:
				cur = append(append(cur, ' '), wr...)
			default:
				lines = append(lines, string(cur))
				cur = wr
			}
			for len(cur) > width {
				lines = append(lines, string(cur[:width]))
				cur = cur[width:]
			}
		}
		lines = append(lines, string(cur))
	}
	return lines
}
