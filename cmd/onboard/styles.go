package main

import "github.com/charmbracelet/lipgloss"

var (
	colorSuccess = lipgloss.Color("#00D787")
	colorError   = lipgloss.Color("#FF5F87")
	colorInfo    = lipgloss.Color("#5FAFFF")
	colorMuted   = lipgloss.Color("#888888")
	colorAccent  = lipgloss.Color("#AF87FF")
)

var (
	styleAssistant = lipgloss.NewStyle().Foreground(colorInfo)
	styleSuccess   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError     = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleMuted     = lipgloss.NewStyle().Foreground(colorMuted)
	stylePrompt    = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
)

// replyBox frames an assistant reply.
func replyBox() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(colorInfo).
		Padding(0, 1)
}
