package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/five82/foundry/internal/chatdev"
	"github.com/five82/foundry/internal/prefs"
)

// Settings form field indexes.
const (
	settingsBaseURL = iota
	settingsAPIKey
	settingsTheme
)

// healthProbe is the outcome of one health endpoint.
type healthProbe struct {
	name   string
	health chatdev.Health
	err    error
}

type healthResultMsg struct {
	probes []healthProbe
	at     time.Time
}

type settingsState struct {
	form   form
	health *healthResultMsg
}

func newSettingsState(p prefs.Prefs, baseURL string) settingsState {
	s := settingsState{form: form{
		focus: -1,
		fields: []formField{
			newTextField("API URL", chatdev.DefaultBaseURL),
			newSecretField("API key", "leave empty when the server has no key"),
			newChoiceField("Theme", ThemeNames(), p.Theme),
		},
	}}
	s.reset(p, baseURL)
	return s
}

// reset loads the fields from the current preferences.
func (s *settingsState) reset(p prefs.Prefs, baseURL string) {
	s.form.fields[settingsBaseURL].setValue(firstNonEmpty(p.BaseURL, baseURL))
	s.form.fields[settingsAPIKey].setValue(p.APIKey)
	s.form.fields[settingsTheme].setValue(p.Theme)
}

// saveSettings applies the form to the client and persists it.
func (m Model) saveSettings() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.settings.form.value(settingsBaseURL))
	if raw == "" {
		raw = chatdev.DefaultBaseURL
	}
	apiKey := strings.TrimSpace(m.settings.form.value(settingsAPIKey))
	theme := m.settings.form.value(settingsTheme)

	if m.client != nil {
		if err := m.client.SetBaseURL(raw); err != nil {
			m.notifyErr("Invalid API URL", err)
			return m, nil
		}
		m.client.SetAPIKey(apiKey)
	}

	m.theme = GetTheme(theme)
	m.prefs = prefs.Prefs{BaseURL: raw, APIKey: apiKey, Theme: theme}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Error("save preferences", "error", err)
		m.notify(noticeWarning, "Settings applied but not saved: %v", err)
	} else {
		m.logger.Info("preferences saved", "base_url", m.clientBaseURL(), "theme", theme)
		m.notify(noticeSuccess, "Settings saved")
	}
	m.requestRefresh()
	return m, nil
}

func (m Model) startHealthCheck() (tea.Model, tea.Cmd) {
	if m.client == nil {
		return m, nil
	}
	m.busy++
	return m, healthCheckCmd(m.ctx, m.client)
}

// healthCheckCmd queries both health endpoints concurrently.
func healthCheckCmd(ctx context.Context, client chatdev.API) tea.Cmd {
	return func() tea.Msg {
		probes := []healthProbe{{name: "api/v1/health"}, {name: "health"}}
		var g errgroup.Group
		g.Go(func() error {
			probes[0].health, probes[0].err = client.HealthCheck(ctx)
			return nil
		})
		g.Go(func() error {
			probes[1].health, probes[1].err = client.SimpleHealthCheck(ctx)
			return nil
		})
		_ = g.Wait()
		return healthResultMsg{probes: probes, at: time.Now()}
	}
}

func (m Model) handleHealthResult(msg healthResultMsg) (tea.Model, tea.Cmd) {
	m.busy = max(m.busy-1, 0)
	m.settings.health = &msg
	healthy := 0
	for _, p := range msg.probes {
		if p.err == nil {
			healthy++
		}
	}
	switch healthy {
	case len(msg.probes):
		m.notify(noticeSuccess, "API healthy")
	case 0:
		m.notifyErr("Health check", msg.probes[0].err)
	default:
		m.notify(noticeWarning, "API partially reachable")
	}
	return m, nil
}

func (m Model) renderSettings() string {
	styles := m.theme.Styles()
	var b strings.Builder

	b.WriteString(m.settings.form.render(m.theme, m.width-4))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(styles.MutedText.Render(padRight(label, 14)))
		b.WriteString(styles.Text.Render(truncateMiddle(value, max(m.width-20, 10))))
		b.WriteString("\n")
	}
	row("Effective URL", m.clientBaseURL())
	row("Prefs file", firstNonEmpty(m.prefsPath, prefs.DefaultPath()))
	row("Log file", firstNonEmpty(m.logPath, "-"))

	if h := m.settings.health; h != nil {
		b.WriteString("\n")
		b.WriteString(styles.AccentText.Bold(true).Render("Health · " + h.at.Format("15:04:05")))
		b.WriteString("\n")
		for _, p := range h.probes {
			if p.err != nil {
				b.WriteString(styles.DangerText.Render("✗ "))
				b.WriteString(styles.Text.Render(padRight(p.name, 16) + describeError(p.err)))
			} else {
				b.WriteString(styles.SuccessText.Render("✓ "))
				b.WriteString(styles.Text.Render(padRight(p.name, 16) + fmt.Sprintf("%s · version %s", p.health.Status, firstNonEmpty(p.health.Version, "?"))))
			}
			b.WriteString("\n")
		}
	}

	hint := "tab next field · ctrl+s save · ctrl+r health check · esc done editing"
	if !m.settings.form.editing() {
		hint = "enter edit · ctrl+s save · H health check · esc back to tasks"
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(hint))

	return m.renderTitledBox("Settings", b.String(), m.width, m.contentHeight(), true)
}
