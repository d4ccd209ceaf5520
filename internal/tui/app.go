package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Run launches the interactive TUI mode (inline).
func Run(version, profile string) error {
	// Detect the background before Bubble Tea owns the terminal.
	style := "light"
	if lipgloss.HasDarkBackground() {
		style = "dark"
	}

	m := initialModel(version, profile, style)

	p := tea.NewProgram(m)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
