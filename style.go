package main

import "github.com/charmbracelet/lipgloss"

var (
	keyword   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Render
	paragraph = lipgloss.NewStyle().Width(78).Padding(0, 0, 0, 2).Render
	faint     = lipgloss.NewStyle().Faint(true).Render
	warning   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Render
	heading   = lipgloss.NewStyle().Bold(true).Render
)

// characterStyle colours text with a tutor's colour.
func characterStyle(hex string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Bold(true)
}
