package tui

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the console.
type Theme struct {
	Spawned lipgloss.Style
	OK      lipgloss.Style
	Failed  lipgloss.Style
	Stopped lipgloss.Style

	Border lipgloss.Style
	Title  lipgloss.Style
	Prompt lipgloss.Style
	Echo   lipgloss.Style
	Dim    lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		Spawned: lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		OK:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Failed:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Stopped: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Prompt: lipgloss.NewStyle().Foreground(purple).Bold(true),
		Echo:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
	}
}
