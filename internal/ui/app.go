package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/foundry/internal/chatdev"
	"github.com/five82/foundry/internal/poller"
	"github.com/five82/foundry/internal/prefs"
	"github.com/five82/foundry/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewTasks View = iota
	ViewGenerate
	ViewSettings
	ViewActivity
)

var viewOrder = []View{ViewTasks, ViewGenerate, ViewSettings, ViewActivity}

func (v View) String() string {
	switch v {
	case ViewTasks:
		return "Tasks"
	case ViewGenerate:
		return "Generate"
	case ViewSettings:
		return "Settings"
	case ViewActivity:
		return "Activity"
	default:
		return "Unknown"
	}
}

// TaskWatcher starts and stops per-task status polls. *poller.Manager
// implements it.
type TaskWatcher interface {
	Start(taskID int64, handler poller.Handler)
	Cancel(taskID int64) bool
	State(taskID int64) poller.State
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Client    chatdev.API
	Store     *state.Store
	Watcher   TaskWatcher
	Refresh   func() // asks the list refresher for an immediate fetch
	UITick    time.Duration
	Prefs     prefs.Prefs
	PrefsPath string
	LogPath   string
	Logger    *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	client    chatdev.API
	store     *state.Store
	watcher   TaskWatcher
	refresh   func()
	logger    *slog.Logger
	prefs     prefs.Prefs
	prefsPath string
	logPath   string
	uiTick    time.Duration

	// Poll observations arrive here from poller goroutines.
	events chan tea.Msg

	// UI state
	keys        keyMap
	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool
	showHelp    bool
	modal       Modal
	spinner     spinner.Model
	busy        int
	notices     []notice

	// Data state
	snapshot    state.Snapshot
	lastUpdated time.Time

	// Tasks view
	selectedRow int
	details     map[int64]taskDetail

	// Forms
	generate form
	settings settingsState

	// Activity view
	activity activityState
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	uiTick := opts.UITick
	if uiTick <= 0 {
		uiTick = DefaultUIInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := opts.Prefs
	if p == (prefs.Prefs{}) {
		p = prefs.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	m := Model{
		ctx:         ctx,
		client:      opts.Client,
		store:       opts.Store,
		watcher:     opts.Watcher,
		refresh:     opts.Refresh,
		logger:      logger,
		prefs:       p,
		prefsPath:   opts.PrefsPath,
		logPath:     opts.LogPath,
		uiTick:      uiTick,
		events:      make(chan tea.Msg, 64),
		keys:        DefaultKeyMap(),
		theme:       GetTheme(p.Theme),
		currentView: ViewTasks,
		spinner:     sp,
		details:     make(map[int64]taskDetail),
		generate:    newGenerateForm(),
		activity:    newActivityState(),
	}
	m.settings = newSettingsState(p, m.clientBaseURL())
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(m.uiTick),
		waitForEvent(m.events),
		m.spinner.Tick,
	}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		m.clampSelection()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case observationMsg:
		return m.handleObservation(msg)

	case cancelResultMsg:
		return m.handleCancelResult(msg)
	case deleteConfirmedMsg:
		return m.handleDeleteConfirmed(msg)
	case deleteResultMsg:
		return m.handleDeleteResult(msg)
	case buildResultMsg:
		return m.handleBuildResult(msg)
	case statusResultMsg:
		return m.handleStatusResult(msg)
	case generateResultMsg:
		return m.handleGenerateResult(msg)
	case healthResultMsg:
		return m.handleHealthResult(msg)
	case activityMsg:
		m.handleActivity(msg)
		return m, nil
	}

	// Cursor blink and similar messages belong to the focused input.
	if f := m.activeForm(); f != nil {
		cmd := f.update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		modal, cmd, closed := m.modal.Update(msg, m.keys)
		if closed {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	// A focused form field takes every key except its own navigation.
	switch m.currentView {
	case ViewGenerate:
		if m.generate.editing() {
			return m.handleFormKey(msg, Model.submitGenerate)
		}
	case ViewSettings:
		if m.settings.form.editing() {
			if key.Matches(msg, m.keys.HealthCheck) && msg.String() != "H" {
				return m.startHealthCheck()
			}
			return m.handleFormKey(msg, Model.saveSettings)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		return m.cycleTheme(), nil
	case key.Matches(msg, m.keys.Escape):
		if len(m.notices) > 0 {
			m.notices = m.notices[:len(m.notices)-1]
			return m, nil
		}
		m.currentView = ViewTasks
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		return m.switchView(nextView(m.currentView))
	case key.Matches(msg, m.keys.ViewTasks):
		return m.switchView(ViewTasks)
	case key.Matches(msg, m.keys.ViewGenerate):
		return m.switchView(ViewGenerate)
	case key.Matches(msg, m.keys.ViewSettings):
		return m.switchView(ViewSettings)
	case key.Matches(msg, m.keys.ViewActivity):
		return m.switchView(ViewActivity)
	}

	switch m.currentView {
	case ViewTasks:
		return m.handleTasksKey(msg)
	case ViewGenerate:
		return m.handleBrowseFormKey(msg, Model.submitGenerate)
	case ViewSettings:
		if key.Matches(msg, m.keys.HealthCheck) {
			return m.startHealthCheck()
		}
		return m.handleBrowseFormKey(msg, Model.saveSettings)
	case ViewActivity:
		return m.handleActivityKey(msg)
	}
	return m, nil
}

// activeForm returns the form of the current view, or nil.
func (m *Model) activeForm() *form {
	switch m.currentView {
	case ViewGenerate:
		return &m.generate
	case ViewSettings:
		return &m.settings.form
	}
	return nil
}

// handleFormKey routes keys while a form field has focus.
func (m Model) handleFormKey(msg tea.KeyMsg, submit func(Model) (Model, tea.Cmd)) (tea.Model, tea.Cmd) {
	f := m.activeForm()
	switch {
	case key.Matches(msg, m.keys.Escape):
		f.blur()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		f.blur()
		return submit(m)
	case key.Matches(msg, m.keys.NextField):
		cmd := f.next()
		return m, cmd
	case key.Matches(msg, m.keys.PrevField):
		cmd := f.prev()
		return m, cmd
	case msg.String() == "enter" && f.enterAdvances():
		cmd := f.next()
		return m, cmd
	}
	cmd := f.update(msg)
	return m, cmd
}

// handleBrowseFormKey handles form views when no field has focus.
func (m Model) handleBrowseFormKey(msg tea.KeyMsg, submit func(Model) (Model, tea.Cmd)) (tea.Model, tea.Cmd) {
	f := m.activeForm()
	switch {
	case key.Matches(msg, m.keys.Submit):
		return submit(m)
	case msg.String() == "enter", key.Matches(msg, m.keys.Down):
		cmd := f.focusField(0)
		return m, cmd
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.PrevField):
		cmd := f.prev()
		return m, cmd
	}
	return m, nil
}

// switchView changes the active view. Forms focus their first field on entry.
func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	if m.currentView == v {
		return m, nil
	}
	m.currentView = v
	switch v {
	case ViewGenerate:
		cmd := m.generate.focusField(0)
		return m, cmd
	case ViewSettings:
		m.settings.reset(m.prefs, m.clientBaseURL())
		cmd := m.settings.form.focusField(0)
		return m, cmd
	case ViewActivity:
		return m, readActivityCmd(m.logPath)
	}
	return m, nil
}

func nextView(v View) View {
	for i, candidate := range viewOrder {
		if candidate == v {
			return viewOrder[(i+1)%len(viewOrder)]
		}
	}
	return ViewTasks
}

// cycleTheme switches to the next theme and remembers the choice.
func (m Model) cycleTheme() Model {
	name := NextTheme(m.theme.Name)
	m.theme = GetTheme(name)
	m.prefs.Theme = name
	m.settings.form.fields[settingsTheme].setValue(name)
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save theme preference", "error", err)
	}
	return m
}

// handleTick processes the UI refresh tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{tickCmd(m.uiTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.currentView == ViewActivity && m.activity.follow {
		cmds = append(cmds, readActivityCmd(m.logPath))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) resize() {
	width := m.formWidth()
	m.generate.setWidth(width)
	m.settings.form.setWidth(width)
	m.activity.viewport.Width = max(m.width-2, 0)
	m.activity.viewport.Height = max(m.contentHeight()-2, 1)
	m.refreshActivityViewport()
}

func (m Model) contentHeight() int {
	return max(m.height-chromeHeight, 3)
}

func (m Model) formWidth() int {
	return max(min(m.width-24, 90), 20)
}

func (m Model) clientBaseURL() string {
	if m.client == nil {
		return m.prefs.BaseURL
	}
	return m.client.BaseURL()
}

func (m Model) requestRefresh() {
	if m.refresh != nil {
		m.refresh()
	}
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderNotices())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewTasks:
		return m.renderTasks()
	case ViewGenerate:
		return m.renderGenerate()
	case ViewSettings:
		return m.renderSettings()
	case ViewActivity:
		return m.renderActivity()
	default:
		return ""
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type observationMsg poller.Observation

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// Run starts the Bubble Tea program and blocks until it exits. A cancelled
// context ends the program without an error.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
