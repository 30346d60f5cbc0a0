package layout

import (
	"fmt"
	"math"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/predinator/internal/ui/theme"
)

// KeyHint is one key binding listed in the footer.
type KeyHint struct {
	Key         string
	Description string
}

// RenderHeader renders the brand on the left, title in the middle and
// status on the right, over a bottom rule.
func RenderHeader(title, status string, width int) string {
	brand := lipgloss.NewStyle().Foreground(theme.Brand).Bold(true).Render("Predinator")
	mid := lipgloss.NewStyle().Foreground(theme.Ink).Render(title)
	right := lipgloss.NewStyle().Foreground(theme.Muted).Render(status)

	inner := max(width-2, 0)
	used := lipgloss.Width(brand) + lipgloss.Width(mid) + lipgloss.Width(right)
	gap := max(inner-used, 2)
	leftGap := gap / 2
	line := brand + strings.Repeat(" ", leftGap) + mid + strings.Repeat(" ", gap-leftGap) + right

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		Background(theme.Surface).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(theme.Edge).
		Render(line)
}

// RenderFooter renders the key hints on one dim line.
func RenderFooter(hints []KeyHint, width int) string {
	key := lipgloss.NewStyle().Foreground(theme.Ink).Bold(true)
	desc := lipgloss.NewStyle().Foreground(theme.Muted)
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, key.Render(h.Key)+" "+desc.Render(h.Description))
	}
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(theme.Edge).
		Render(strings.Join(parts, "  ·  "))
}

// RenderFrame stacks header, content and footer, giving the content all
// remaining height.
func RenderFrame(header, content, footer string, width, height int) string {
	h := max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	body := lipgloss.NewStyle().Width(width).Height(h).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// RenderConfidence draws a width-cell meter for a confidence in [0, 1]
// followed by the percentage.
func RenderConfidence(confidence float64, width int) string {
	if math.IsNaN(confidence) {
		confidence = 0
	}
	confidence = min(max(confidence, 0), 1)
	width = max(width, 1)
	full := int(math.Round(confidence * float64(width)))
	return theme.MeterFull.Render(strings.Repeat("█", full)) +
		theme.MeterEmpty.Render(strings.Repeat("░", width-full)) +
		fmt.Sprintf(" %3.0f%%", confidence*100)
}
