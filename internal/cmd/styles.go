package cmd

import "github.com/charmbracelet/lipgloss"

// Shared terminal styles for command output.
var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// statusStyle picks a style for a workflow or step status string.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return okStyle
	case "failed":
		return failStyle
	case "paused", "running":
		return warnStyle
	default:
		return dimStyle
	}
}
