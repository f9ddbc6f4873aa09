package ui

import (
	"fmt"

	"mod-catalog/db"

	"github.com/charmbracelet/lipgloss"
)

// statusColors maps each moderation status to an RGB color.
var statusColors = map[db.Status]int{
	db.StatusPrivate:    0x8a8a8a,
	db.StatusPending:    0xf5c242,
	db.StatusUnverified: 0x42a5f5,
	db.StatusVerified:   0x4caf50,
	db.StatusRemoved:    0xe53935,
}

// Colorize applies the given color to the text using lipgloss.
// color is an RGB integer, e.g. 0x4caf50.
func Colorize(text string, color int) string {
	hexColor := fmt.Sprintf("#%06x", color)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor))
	return style.Render(text)
}

// Status renders a status in its color.
func Status(s db.Status) string {
	color, ok := statusColors[s]
	if !ok {
		return string(s)
	}
	return Colorize(string(s), color)
}

// Bold renders a heading.
func Bold(text string) string {
	return lipgloss.NewStyle().Bold(true).Render(text)
}
