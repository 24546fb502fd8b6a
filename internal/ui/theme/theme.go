package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines semantic color roles for the status views.
type Theme struct {
	Primary lipgloss.Color // titles, selection marker
	Muted   lipgloss.Color // help text, unknown state
	Text    lipgloss.Color
	Passing lipgloss.Color
	Failing lipgloss.Color
	Warning lipgloss.Color // surfaced check errors
	Link    lipgloss.Color
}

// Latte returns the Catppuccin Latte (light) theme.
func Latte() Theme {
	return Theme{
		Primary: lipgloss.Color("#8839ef"), // Mauve
		Muted:   lipgloss.Color("#7c7f93"), // Overlay2
		Text:    lipgloss.Color("#4c4f69"),
		Passing: lipgloss.Color("#40a02b"), // Green
		Failing: lipgloss.Color("#d20f39"), // Red
		Warning: lipgloss.Color("#df8e1d"), // Yellow
		Link:    lipgloss.Color("#1e66f5"), // Blue
	}
}

// Macchiato returns the Catppuccin Macchiato (dark) theme.
func Macchiato() Theme {
	return Theme{
		Primary: lipgloss.Color("#c6a0f6"),
		Muted:   lipgloss.Color("#939ab7"),
		Text:    lipgloss.Color("#cad3f5"),
		Passing: lipgloss.Color("#a6da95"),
		Failing: lipgloss.Color("#ed8796"),
		Warning: lipgloss.Color("#eed49f"),
		Link:    lipgloss.Color("#8aadf4"),
	}
}
