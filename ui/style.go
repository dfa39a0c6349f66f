package ui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	enabledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	disabledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Status renders a mod's enabled state as a colored label. Pending wins
// over the local value because the registry has not confirmed it yet.
func Status(enabled, pending bool) string {
	if pending {
		return pendingStyle.Render("pending")
	}
	if enabled {
		return enabledStyle.Render("enabled")
	}
	return disabledStyle.Render("disabled")
}

// Error renders an error message in the error color.
func Error(text string) string {
	return errorStyle.Render(text)
}

// Success renders a confirmation message in the success color.
func Success(text string) string {
	return enabledStyle.Render(text)
}
