// Package widgets renders the building blocks of the terminal UI
package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-metronome/theme"
)

// RenderBeats renders one glyph per beat of the bar, current marks the beat
// now sounding (-1 when stopped)
func RenderBeats(th *theme.Theme, beats, current int) string {
	strong := lipgloss.NewStyle().Foreground(th.Success())
	weak := lipgloss.NewStyle().Foreground(th.Active())
	idle := lipgloss.NewStyle().Foreground(th.Muted())

	var out strings.Builder
	for b := 0; b < beats; b++ {
		if b > 0 {
			out.WriteString(" ")
		}
		switch {
		case b == current && b == 0:
			out.WriteString(strong.Render(string(th.Symbols.BeatStrong)))
		case b == current:
			out.WriteString(weak.Render(string(th.Symbols.BeatWeak)))
		default:
			out.WriteString(idle.Render(string(th.Symbols.BeatIdle)))
		}
	}
	return out.String()
}

// RenderMeter renders "label ████░░░░ value" for value in lo..hi
func RenderMeter(th *theme.Theme, label string, value, lo, hi, width int) string {
	if hi <= lo {
		hi = lo + 1
	}
	filled := (value - lo) * width / (hi - lo)
	filled = max(0, min(filled, width))

	bar := lipgloss.NewStyle().Foreground(th.Accent()).Render(strings.Repeat(string(th.Symbols.MeterFull), filled)) +
		lipgloss.NewStyle().Foreground(th.Muted()).Render(strings.Repeat(string(th.Symbols.MeterEmpty), width-filled))
	return fmt.Sprintf("%-8s %s %3d", label, bar, value)
}
