package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Fixed rows around the viewport.
const (
	headerHeight = 3
	statusHeight = 1
	inputHeight  = 3
	footerHeight = 1
)

func (m Model) choicesHeight() int {
	if len(m.choices) == 0 {
		return 0
	}
	return len(m.choices) + 1
}

func (m Model) renderEntries() string {
	var sb strings.Builder
	for _, e := range m.entries {
		switch e.kind {
		case entryUser:
			sb.WriteString(m.styles.You.Render("You") + "\n")
			sb.WriteString(m.styles.UserText.Render(e.text))
			sb.WriteString("\n")
		case entryNotice:
			sb.WriteString(m.styles.Notice.Render(strings.TrimRight(e.text, "\n")))
			sb.WriteString("\n")
		default:
			sb.WriteString(m.styles.Assistant.Render("pagebrain") + "\n")
			sb.WriteString(m.safeRenderMarkdown(e.text))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// safeRenderMarkdown renders markdown, falling back to the plain text.
func (m Model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	parts := []string{m.renderHeader(), m.viewport.View(), m.renderStatus()}
	if len(m.choices) > 0 {
		parts = append(parts, m.renderChoices())
	}
	parts = append(parts, m.styles.Input.Width(max(m.width-2, 10)).Render(m.input.View()), m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	p := m.session.Page()
	title := p.Title
	if title == "" {
		title = "pagebrain"
	}
	url := p.URL
	if url == "" {
		url = m.url
	}
	line := m.styles.Title.Render(title) + "  " + m.styles.URL.Render(url)
	if model := m.session.Config().LLM; model != "" {
		line += "  " + m.styles.URL.Render("["+model+"]")
	}
	return m.styles.Header.Width(max(m.width, 10)).Render(line)
}

func (m Model) renderStatus() string {
	if !m.busy {
		return ""
	}
	status := m.status
	if status == "" {
		status = "Working..."
	}
	return m.spinner.View() + " " + m.styles.Status.Render(status)
}

func (m Model) renderChoices() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Status.Render("Type a number or a model name:"))
	for i, c := range m.choices {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Choice.Render(fmt.Sprintf("%d. %s", i+1, c)))
	}
	return sb.String()
}

func (m Model) renderFooter() string {
	keys := []string{"enter send", "ctrl+o overview", "ctrl+r reload", "pgup/pgdn scroll", "esc quit"}
	footer := m.styles.Footer.Render(strings.Join(keys, " · "))
	if m.trigger {
		footer = m.styles.Trigger.Render(" ctrl+a analyze for research ") + footer
	}
	return footer
}
