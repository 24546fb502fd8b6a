// Package ui holds the terminal styles shared by the status views.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kyleking/gh-actionstatus/internal/bridge"
	"github.com/kyleking/gh-actionstatus/internal/ui/theme"
)

// Styles renders status items for one theme.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Selected lipgloss.Style
	Normal   lipgloss.Style
	Help     lipgloss.Style
	Warning  lipgloss.Style
	Link     lipgloss.Style
	Border   lipgloss.Style

	passing lipgloss.Style
	failing lipgloss.Style
	unknown lipgloss.Style
}

// NewStyles builds the styles for t.
func NewStyles(t theme.Theme) Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Subtitle: lipgloss.NewStyle().Foreground(t.Muted),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Normal:   lipgloss.NewStyle().Foreground(t.Text),
		Help:     lipgloss.NewStyle().Foreground(t.Muted),
		Warning:  lipgloss.NewStyle().Foreground(t.Warning),
		Link:     lipgloss.NewStyle().Underline(true).Foreground(t.Link),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		passing: lipgloss.NewStyle().Foreground(t.Passing),
		failing: lipgloss.NewStyle().Bold(true).Foreground(t.Failing),
		unknown: lipgloss.NewStyle().Foreground(t.Muted),
	}
}

// Glyph is the marker drawn next to an item.
func Glyph(s bridge.ItemStatus) string {
	switch s {
	case bridge.StatusSucceeded:
		return "✓"
	case bridge.StatusFailed:
		return "✗"
	default:
		return "?"
	}
}

// Status renders the glyph for s in its color.
func (s Styles) Status(status bridge.ItemStatus) string {
	switch status {
	case bridge.StatusSucceeded:
		return s.passing.Render(Glyph(status))
	case bridge.StatusFailed:
		return s.failing.Render(Glyph(status))
	default:
		return s.unknown.Render(Glyph(status))
	}
}

// Overall renders the aggregate indicator for the whole collection.
func (s Styles) Overall(passing bool) string {
	if passing {
		return s.passing.Render("● passing")
	}

	return s.failing.Render("● failing")
}
