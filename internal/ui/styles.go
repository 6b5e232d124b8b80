// Package ui renders terminal output for the sheetsync commands.
package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1a5fb4", Dark: "#62a0ea"}).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#26a269", Dark: "#8ff0a4"})
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#c64600", Dark: "#f8e45c"})
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#c01c28", Dark: "#f66151"}).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	labelStyle  = lipgloss.NewStyle().Bold(true)
)

// Configure disables styling when out is not a terminal or NO_COLOR is set.
func Configure(out *os.File) {
	if os.Getenv("NO_COLOR") != "" || !IsTerminal(out) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// RenderAccent renders headings and progress markers.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass renders success markers.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders warnings.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders errors.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted renders secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// Field is one line of a KeyValues block.
type Field struct {
	Key   string
	Value string
}

// KeyValues renders fields as an aligned two-column block.
func KeyValues(fields []Field) string {
	width := 0
	for _, f := range fields {
		if w := lipgloss.Width(f.Key); w > width {
			width = w
		}
	}

	var b strings.Builder
	for _, f := range fields {
		key := labelStyle.Width(width + 1).Render(f.Key + ":")
		fmt.Fprintf(&b, "  %s %s\n", key, f.Value)
	}
	return b.String()
}

// Count renders n, styled as a warning when it is above zero.
func Count(n int) string {
	if n > 0 {
		return RenderWarn(fmt.Sprint(n))
	}
	return RenderPass(fmt.Sprint(n))
}
