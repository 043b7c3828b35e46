// Package ui renders status reports and live generation progress for
// the terminal.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette, 256-color codes.
const (
	ColorGreen  = "42"  // healthy, success
	ColorYellow = "220" // empty, warnings
	ColorRed    = "196" // stale, errors
	ColorCyan   = "45"  // headers, accents
	ColorGray   = "245" // labels, secondary text
)

// Styles holds the render styles for status and progress output.
type Styles struct {
	Header  lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Healthy lipgloss.Style
	Warn    lipgloss.Style
	Bad     lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorCyan)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Value:   lipgloss.NewStyle(),
		Healthy: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGreen)),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Bad:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
	}
}

// PlainStyles returns unstyled components for pipes and dumb terminals.
func PlainStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle(),
		Label:   lipgloss.NewStyle(),
		Value:   lipgloss.NewStyle(),
		Healthy: lipgloss.NewStyle(),
		Warn:    lipgloss.NewStyle(),
		Bad:     lipgloss.NewStyle(),
	}
}

// GetStyles picks styles for the output terminal. noColor forces plain.
func GetStyles(noColor bool) Styles {
	if noColor || !StdoutIsTTY() {
		return PlainStyles()
	}
	return DefaultStyles()
}

// StdoutIsTTY reports whether stdout is an interactive terminal.
func StdoutIsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
