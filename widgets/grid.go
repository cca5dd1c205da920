package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-metronome/sequencer"
	"go-metronome/theme"
)

// GridView is what RenderGrid draws. Playhead is the sounding column or -1.
// A negative CursorRow hides the cursor.
type GridView struct {
	Grid      *sequencer.Grid
	CursorRow int
	CursorCol int
	Playhead  int
	Config    sequencer.Config
}

const nameWidth = 18

// RenderGrid draws one line per row: key name, then a glyph per column.
// Cells are colored by the velocity they play.
func RenderGrid(th *theme.Theme, v GridView) string {
	g := v.Grid
	if g == nil || len(g.Rows) == 0 {
		return lipgloss.NewStyle().Foreground(th.Muted()).Render("(empty pattern)")
	}

	dim := lipgloss.NewStyle().Foreground(th.Muted())
	cursor := lipgloss.NewStyle().Background(th.Cursor()).Foreground(th.BG())
	mapper := sequencer.VelocityMapper{}

	var lines []string
	lines = append(lines, dim.Render(strings.Repeat(" ", nameWidth+4)+columnRuler(g.Figure)))
	for r, row := range g.Rows {
		var line strings.Builder
		name := row.Name
		if name == "" {
			name = fmt.Sprintf("Note %d", row.Key)
		}
		fmt.Fprintf(&line, "%3d %-*s", row.Key, nameWidth, truncate(name, nameWidth))

		for col := 0; col < g.Figure; col++ {
			cell := g.Cell(r, col)
			glyph := cellGlyph(th, cell)
			style := lipgloss.NewStyle()
			if s, ok := mapper.Resolve(row, cell, v.Config); ok {
				style = style.Foreground(th.Velocity(s.Velocity))
				if s.Accent {
					style = style.Bold(true)
				}
			} else {
				style = dim
			}
			if col == v.Playhead {
				style = style.Reverse(true)
				if cell.Empty() {
					glyph = string(th.Symbols.CellPlayhead)
				}
			}
			if r == v.CursorRow && col == v.CursorCol {
				style = cursor
				if cell.Empty() {
					glyph = string(th.Symbols.CellCursor)
				}
			}
			line.WriteString(style.Render(glyph))
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

func cellGlyph(th *theme.Theme, c sequencer.Cell) string {
	if c.Empty() {
		return string(th.Symbols.CellEmpty)
	}
	return string(c)
}

// columnRuler numbers every fourth column
func columnRuler(figure int) string {
	var b strings.Builder
	for col := 0; col < figure; {
		if col%4 == 0 {
			n := fmt.Sprint(col + 1)
			if col+len(n) <= figure {
				b.WriteString(n)
				col += len(n)
				continue
			}
		}
		b.WriteByte(' ')
		col++
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
