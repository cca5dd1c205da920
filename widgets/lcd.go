package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// three columns, five rows per glyph
var digits = map[rune][5]string{
	'0': {"███", "█ █", "█ █", "█ █", "███"},
	'1': {" ██", "  █", "  █", "  █", "  █"},
	'2': {"███", "  █", "███", "█  ", "███"},
	'3': {"███", "  █", "███", "  █", "███"},
	'4': {"█ █", "█ █", "███", "  █", "  █"},
	'5': {"███", "█  ", "███", "  █", "███"},
	'6': {"███", "█  ", "███", "█ █", "███"},
	'7': {"███", "  █", "  █", "  █", "  █"},
	'8': {"███", "█ █", "███", "█ █", "███"},
	'9': {"███", "█ █", "███", "  █", "███"},
	':': {"   ", " █ ", "   ", " █ ", "   "},
	'-': {"   ", "   ", "███", "   ", "   "},
	' ': {"   ", "   ", "   ", "   ", "   "},
}

// RenderLCD draws text (digits, ':' and '-') as a five-line seven-segment
// style display. Unknown characters render blank.
func RenderLCD(text string, color lipgloss.Color) string {
	var lines [5]strings.Builder
	for i, r := range text {
		g, ok := digits[r]
		if !ok {
			g = digits[' ']
		}
		for row := range lines {
			if i > 0 {
				lines[row].WriteString(" ")
			}
			lines[row].WriteString(g[row])
		}
	}
	out := make([]string, len(lines))
	for i := range lines {
		out[i] = lines[i].String()
	}
	return lipgloss.NewStyle().Foreground(color).Render(strings.Join(out, "\n"))
}
