package chat

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#8BC34A"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#8BC34A", Dark: "#2196F3"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
	colorWarning = lipgloss.Color("#FFC107")
	colorBorder  = lipgloss.AdaptiveColor{Light: "#dce0e5", Dark: "#2a3850"}
)

// Styles holds the lipgloss styles of the chat view.
type Styles struct {
	Header    lipgloss.Style
	Title     lipgloss.Style
	URL       lipgloss.Style
	You       lipgloss.Style
	Assistant lipgloss.Style
	UserText  lipgloss.Style
	Notice    lipgloss.Style
	Status    lipgloss.Style
	Choice    lipgloss.Style
	Trigger   lipgloss.Style
	Input     lipgloss.Style
	Footer    lipgloss.Style
}

// DefaultStyles returns the styles used by New.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Padding(0, 1).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).BorderForeground(colorBorder),
		Title:     lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		URL:       lipgloss.NewStyle().Foreground(colorMuted),
		You:       lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginTop(1),
		Assistant: lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginTop(1),
		UserText:  lipgloss.NewStyle().PaddingLeft(2),
		Notice:    lipgloss.NewStyle().Foreground(colorWarning).PaddingLeft(2),
		Status:    lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
		Choice:    lipgloss.NewStyle().Foreground(colorAccent).PaddingLeft(2),
		Trigger:   lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		Input:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorAccent).Padding(0, 1),
		Footer:    lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1),
	}
}
