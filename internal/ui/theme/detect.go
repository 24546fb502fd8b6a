// Package theme picks status colors that suit the terminal background.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// EnvTheme forces a theme: "latte"/"light" or "macchiato"/"dark".
const EnvTheme = "ACTIONSTATUS_THEME"

// Detect returns a theme from EnvTheme, falling back to the terminal background.
func Detect() Theme {
	if t, ok := Named(os.Getenv(EnvTheme)); ok {
		return t
	}

	if lipgloss.HasDarkBackground() {
		return Macchiato()
	}

	return Latte()
}

// Named resolves a theme name.
func Named(name string) (Theme, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "latte", "light":
		return Latte(), true
	case "macchiato", "dark":
		return Macchiato(), true
	default:
		return Theme{}, false
	}
}
