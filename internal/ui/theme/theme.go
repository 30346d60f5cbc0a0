package theme

import (
	"charm.land/lipgloss/v2"
)

// Palette
var (
	Brand   = lipgloss.Color("#E11D48") // crimson
	Ink     = lipgloss.Color("#F1F5F9")
	Muted   = lipgloss.Color("#8A94A6")
	Surface = lipgloss.Color("#18181B")
	Edge    = lipgloss.Color("#3F3F46")
	Warm    = lipgloss.Color("#F59E0B") // amber
	Good    = lipgloss.Color("#10B981")
	Bad     = lipgloss.Color("#EF4444")
)

var (
	// Question is the prompt being asked.
	Question = lipgloss.NewStyle().Foreground(Ink).Bold(true)

	Hint = lipgloss.NewStyle().Foreground(Muted).Italic(true)

	Selected   = lipgloss.NewStyle().Foreground(Brand).Bold(true)
	Unselected = lipgloss.NewStyle().Foreground(Ink)

	// Guess highlights the machine's guess and end-of-game notices.
	Guess = lipgloss.NewStyle().Foreground(Warm).Bold(true)

	Incorrect = lipgloss.NewStyle().Foreground(Bad).Bold(true)

	MeterFull  = lipgloss.NewStyle().Foreground(Good)
	MeterEmpty = lipgloss.NewStyle().Foreground(Edge)
)
