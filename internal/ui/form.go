package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type fieldKind int

const (
	fieldText fieldKind = iota
	fieldArea
	fieldChoice
	fieldToggle
)

// formField is one labelled input of a form.
type formField struct {
	label   string
	kind    fieldKind
	input   textinput.Model
	area    textarea.Model
	choices []string
	choice  int
	on      bool
	counter int // when positive, render a n/counter character count
}

func newTextField(label, placeholder string) formField {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = placeholder
	in.CharLimit = 512
	return formField{label: label, kind: fieldText, input: in}
}

func newSecretField(label, placeholder string) formField {
	f := newTextField(label, placeholder)
	f.input.EchoMode = textinput.EchoPassword
	f.input.EchoCharacter = '•'
	return f
}

func newAreaField(label, placeholder string, limit int) formField {
	ta := textarea.New()
	ta.Placeholder = placeholder
	ta.ShowLineNumbers = false
	ta.CharLimit = limit
	ta.SetHeight(5)
	return formField{label: label, kind: fieldArea, area: ta, counter: limit}
}

func newChoiceField(label string, choices []string, selected string) formField {
	f := formField{label: label, kind: fieldChoice, choices: choices}
	f.setValue(selected)
	return f
}

func newToggleField(label string, on bool) formField {
	return formField{label: label, kind: fieldToggle, on: on}
}

func (f formField) value() string {
	switch f.kind {
	case fieldText:
		return f.input.Value()
	case fieldArea:
		return f.area.Value()
	case fieldChoice:
		if len(f.choices) == 0 {
			return ""
		}
		return f.choices[f.choice]
	case fieldToggle:
		if f.on {
			return "yes"
		}
		return "no"
	}
	return ""
}

func (f *formField) setValue(v string) {
	switch f.kind {
	case fieldText:
		f.input.SetValue(v)
	case fieldArea:
		f.area.SetValue(v)
	case fieldChoice:
		for i, c := range f.choices {
			if c == v {
				f.choice = i
			}
		}
	case fieldToggle:
		f.on = v == "yes"
	}
}

func (f *formField) focus() tea.Cmd {
	switch f.kind {
	case fieldText:
		return f.input.Focus()
	case fieldArea:
		return f.area.Focus()
	}
	return nil
}

func (f *formField) blur() {
	switch f.kind {
	case fieldText:
		f.input.Blur()
	case fieldArea:
		f.area.Blur()
	}
}

func (f *formField) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.kind {
	case fieldText:
		f.input, cmd = f.input.Update(msg)
	case fieldArea:
		f.area, cmd = f.area.Update(msg)
	case fieldChoice:
		if k, ok := msg.(tea.KeyMsg); ok && len(f.choices) > 0 {
			switch k.String() {
			case "right", "l", " ":
				f.choice = (f.choice + 1) % len(f.choices)
			case "left", "h":
				f.choice = (f.choice - 1 + len(f.choices)) % len(f.choices)
			}
		}
	case fieldToggle:
		if k, ok := msg.(tea.KeyMsg); ok && (k.String() == " " || k.String() == "enter") {
			f.on = !f.on
		}
	}
	return cmd
}

func (f *formField) setWidth(w int) {
	w = max(w, 10)
	switch f.kind {
	case fieldText:
		f.input.Width = w
	case fieldArea:
		// Only area fields carry an initialised textarea.
		f.area.SetWidth(w)
	}
}

// form is an ordered set of fields with at most one focused.
type form struct {
	fields []formField
	focus  int // -1 when no field is focused
}

func (f form) editing() bool {
	return f.focus >= 0 && f.focus < len(f.fields)
}

func (f *form) focusField(i int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	f.blur()
	f.focus = ((i % len(f.fields)) + len(f.fields)) % len(f.fields)
	return f.fields[f.focus].focus()
}

func (f *form) blur() {
	if f.editing() {
		f.fields[f.focus].blur()
	}
	f.focus = -1
}

func (f *form) next() tea.Cmd {
	return f.focusField(f.focus + 1)
}

func (f *form) prev() tea.Cmd {
	if !f.editing() {
		return f.focusField(len(f.fields) - 1)
	}
	return f.focusField(f.focus - 1)
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	if !f.editing() {
		return nil
	}
	return f.fields[f.focus].update(msg)
}

// enterAdvances reports whether enter on the focused field moves to the next
// field rather than being consumed by the input.
func (f form) enterAdvances() bool {
	return f.editing() && f.fields[f.focus].kind == fieldText
}

func (f *form) setWidth(w int) {
	for i := range f.fields {
		f.fields[i].setWidth(w)
	}
}

func (f form) value(i int) string {
	if i < 0 || i >= len(f.fields) {
		return ""
	}
	return f.fields[i].value()
}

// render draws the fields one under another with the focused label highlighted.
func (f form) render(theme Theme, width int) string {
	styles := theme.Styles()
	labelWidth := 14
	for _, field := range f.fields {
		labelWidth = max(labelWidth, utf8.RuneCountInString(field.label)+2)
	}
	labelStyle := lipgloss.NewStyle().Width(labelWidth)

	var b strings.Builder
	for i, field := range f.fields {
		focused := i == f.focus
		label := styles.MutedText.Render(field.label)
		if focused {
			label = styles.AccentText.Bold(true).Render("▸ " + field.label)
		}

		var body string
		switch field.kind {
		case fieldText:
			body = field.input.View()
		case fieldArea:
			body = field.area.View()
			if field.counter > 0 {
				n := utf8.RuneCountInString(field.area.Value())
				countStyle := styles.FaintText
				if n >= field.counter {
					countStyle = styles.WarningText
				}
				body += "\n" + countStyle.Render(fmt.Sprintf("%d/%d", n, field.counter))
			}
		case fieldChoice:
			body = renderChoice(field, focused, styles)
		case fieldToggle:
			mark := "[ ]"
			if field.on {
				mark = "[x]"
			}
			style := styles.Text
			if focused {
				style = styles.AccentText
			}
			body = style.Render(mark)
		}

		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), lipgloss.NewStyle().MaxWidth(max(width-labelWidth, 10)).Render(body)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderChoice(field formField, focused bool, styles Styles) string {
	value := field.value()
	if !focused {
		return styles.Text.Render(value)
	}
	return styles.FaintText.Render("‹ ") + styles.AccentText.Render(value) + styles.FaintText.Render(" ›")
}
