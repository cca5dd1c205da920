// Package theme maps a palette to the colors and glyphs of the terminal UI
package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Beat indicator
	BeatStrong rune // ● downbeat
	BeatWeak   rune // ○ other beats
	BeatIdle   rune // · beats not reached yet

	// Pattern grid cells
	CellEmpty    rune // ·
	CellPlayhead rune // ▶ column now playing
	CellCursor   rune // □ cursor on an empty cell

	// Meters
	MeterFull  rune // █
	MeterEmpty rune // ░
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			BeatStrong: '●',
			BeatWeak:   '○',
			BeatIdle:   '·',

			CellEmpty:    '·',
			CellPlayhead: '▶',
			CellCursor:   '□',

			MeterFull:  '█',
			MeterEmpty: '░',
		},
	}
}

// Default uses the embedded default palette
func Default() *Theme {
	p, err := Builtin(DefaultPalette)
	if err != nil {
		panic(fmt.Sprintf("embedded palette: %v", err))
	}
	return New(p)
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.2
	RoleFG      = 0.4
	RoleAccent  = 0.5
	RoleCursor  = 0.6
	RoleActive  = 0.7
	RoleWarning = 0.8
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) Surface() lipgloss.Color { return t.Color(RoleSurface) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Cursor() lipgloss.Color  { return t.Color(RoleCursor) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// Velocity colors a MIDI velocity, quiet notes dim and loud notes bright
func (t *Theme) Velocity(v uint8) lipgloss.Color {
	return t.Color(RoleMuted + (RoleSuccess-RoleMuted)*float64(v)/127)
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
