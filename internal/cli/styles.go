// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func init() {
	// Piped output stays free of escape codes.
	lipgloss.SetColorProfile(colorProfile(os.Stdout))
}

// =============================================================================
// STYLES
// =============================================================================

var (
	// TitleStyle is used for headers and the welcome banner
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("141")) // Purple

	// PromptStyle renders the input prompt
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")) // Cyan

	// GroupStyle labels age buckets in listings
	GroupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75")) // Blue

	// ActiveStyle marks the active conversation
	ActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")) // Bright green

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")) // Red

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// LabelStyle aligns key/value output
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(16)
)

// RenderSeparator renders a horizontal rule of width cells.
func RenderSeparator(width int) string {
	if width <= 0 || width > 70 {
		width = 70
	}
	return DimStyle.Render(strings.Repeat("-", width))
}

// RenderStatus renders an ok/fail marker.
func RenderStatus(ok bool) string {
	if ok {
		return SuccessStyle.Render("[OK]")
	}
	return ErrorStyle.Render("[FAIL]")
}
