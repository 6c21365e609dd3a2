package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/foundry/internal/chatdev"
)

// Generate form field indexes.
const (
	genDescription = iota
	genName
	genOrg
	genConfig
	genModel
	genBuildAPK
	genPath
	genProviderURL
)

func newGenerateForm() form {
	return form{
		focus: -1,
		fields: []formField{
			newAreaField("Description", "Describe the app to build...", chatdev.MaxTaskLength),
			newTextField("Name", "project name, e.g. Gomoku"),
			newTextField("Organization", chatdev.DefaultOrg),
			newChoiceField("Config", chatdev.Configs(), chatdev.DefaultConfig),
			newChoiceField("Model", chatdev.Models(), chatdev.DefaultModel),
			newToggleField("Build APK", false),
			newTextField("Path", "optional: existing project to extend"),
			newTextField("Provider URL", "optional: model provider base URL"),
		},
	}
}

// generateRequest builds the request from the form values.
func generateRequest(f form) chatdev.GenerateRequest {
	return chatdev.GenerateRequest{
		Task:     strings.TrimSpace(f.value(genDescription)),
		Name:     strings.TrimSpace(f.value(genName)),
		Org:      strings.TrimSpace(f.value(genOrg)),
		Config:   f.value(genConfig),
		Model:    f.value(genModel),
		BuildAPK: f.fields[genBuildAPK].on,
		Path:     strings.TrimSpace(f.value(genPath)),
		BaseURL:  strings.TrimSpace(f.value(genProviderURL)),
	}
}

// submitGenerate sends the form. Validation happens in the client, which
// rejects bad input without a request.
func (m Model) submitGenerate() (Model, tea.Cmd) {
	if m.client == nil {
		return m, nil
	}
	req := generateRequest(m.generate)
	m.busy++
	m.notify(noticeInfo, "Submitting %s...", firstNonEmpty(req.Name, "project"))
	return m, generateCmd(m.ctx, m.client, req)
}

func (m Model) renderGenerate() string {
	styles := m.theme.Styles()
	hint := "tab next field · ctrl+s submit · esc done editing"
	if !m.generate.editing() {
		hint = "enter edit · ctrl+s submit · esc back to tasks"
	}
	content := m.generate.render(m.theme, m.width-4) + "\n\n" + styles.FaintText.Render(hint)
	return m.renderTitledBox("New project", content, m.width, m.contentHeight(), true)
}
