package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#D97706")
	dim    = lipgloss.Color("#6B7280")

	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	dimStyle      = lipgloss.NewStyle().Foreground(dim)
	separatorLine = dimStyle.Render(strings.Repeat("─", 56))
)
