// Package patterns stores and edits the drum patterns played in pattern mode.
package patterns

import (
	"errors"
	"fmt"
	"strings"

	"go-metronome/sequencer"
)

var (
	// ErrNotFound is returned when no pattern has the requested name
	ErrNotFound = errors.New("pattern not found")

	// ErrInvalid is returned for malformed patterns and edits
	ErrInvalid = errors.New("invalid pattern")
)

// Column limits of the grid editor
const (
	MinFigure     = 1
	MaxFigure     = 64
	DefaultFigure = 16
)

// Row is one sound of a pattern
type Row struct {
	Key   uint8
	Cells []sequencer.Cell
}

// Pattern is a named grid of cells, one row per sound
type Pattern struct {
	Name string
	Rows []Row
}

// New returns an empty pattern with the given number of columns and a row
// per key
func New(name string, figure int, keys ...uint8) Pattern {
	figure = clampFigure(figure)
	p := Pattern{Name: name}
	for _, k := range keys {
		p.Rows = append(p.Rows, Row{Key: k, Cells: make([]sequencer.Cell, figure)})
	}
	return p
}

// Figure is the number of columns per bar, the longest row
func (p Pattern) Figure() int {
	n := 0
	for _, r := range p.Rows {
		n = max(n, len(r.Cells))
	}
	return n
}

// Validate checks the name, the keys and every cell
func (p Pattern) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.ContainsAny(p.Name, "[]\n") {
		return fmt.Errorf("%w: name %q contains a reserved character", ErrInvalid, p.Name)
	}
	if len(p.Rows) == 0 {
		return fmt.Errorf("%w: %q has no rows", ErrInvalid, p.Name)
	}
	if f := p.Figure(); f < MinFigure || f > MaxFigure {
		return fmt.Errorf("%w: %q has %d columns", ErrInvalid, p.Name, f)
	}
	seen := make(map[uint8]bool, len(p.Rows))
	for _, r := range p.Rows {
		if r.Key > 127 {
			return fmt.Errorf("%w: key %d out of range", ErrInvalid, r.Key)
		}
		if seen[r.Key] {
			return fmt.Errorf("%w: %q has key %d twice", ErrInvalid, p.Name, r.Key)
		}
		seen[r.Key] = true
		for _, c := range r.Cells {
			if _, ok := ParseCell(string(c)); !ok {
				return fmt.Errorf("%w: cell %q in row %d", ErrInvalid, c, r.Key)
			}
		}
	}
	return nil
}

// ParseCell maps an editor key to a cell. "f", "p" and "1".."9" set the
// cell; "0", "del" and "" clear it.
func ParseCell(s string) (sequencer.Cell, bool) {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "0", "del", "delete", "backspace":
		return "", true
	case "f", "p":
		return sequencer.Cell(s), true
	}
	if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		return sequencer.Cell(s), true
	}
	return "", false
}

// SetCell writes an editor key into the cell at row, col
func (p *Pattern) SetCell(row, col int, key string) error {
	if row < 0 || row >= len(p.Rows) {
		return fmt.Errorf("%w: row %d", ErrInvalid, row)
	}
	if col < 0 || col >= p.Figure() {
		return fmt.Errorf("%w: column %d", ErrInvalid, col)
	}
	cell, ok := ParseCell(key)
	if !ok {
		return fmt.Errorf("%w: cell value %q", ErrInvalid, key)
	}
	r := &p.Rows[row]
	for len(r.Cells) <= col {
		r.Cells = append(r.Cells, "")
	}
	r.Cells[col] = cell
	return nil
}

// SetFigure resizes every row to n columns, keeping existing cells
func (p *Pattern) SetFigure(n int) error {
	if n < MinFigure || n > MaxFigure {
		return fmt.Errorf("%w: %d columns", ErrInvalid, n)
	}
	for i := range p.Rows {
		cells := make([]sequencer.Cell, n)
		copy(cells, p.Rows[i].Cells)
		p.Rows[i].Cells = cells
	}
	return nil
}

// AddRow appends an empty row for key
func (p *Pattern) AddRow(key uint8) error {
	if key > 127 {
		return fmt.Errorf("%w: key %d out of range", ErrInvalid, key)
	}
	for _, r := range p.Rows {
		if r.Key == key {
			return fmt.Errorf("%w: key %d already has a row", ErrInvalid, key)
		}
	}
	figure := p.Figure()
	if figure == 0 {
		figure = DefaultFigure
	}
	p.Rows = append(p.Rows, Row{Key: key, Cells: make([]sequencer.Cell, figure)})
	return nil
}

// RemoveRow deletes the row at index i
func (p *Pattern) RemoveRow(i int) error {
	if i < 0 || i >= len(p.Rows) {
		return fmt.Errorf("%w: row %d", ErrInvalid, i)
	}
	p.Rows = append(p.Rows[:i], p.Rows[i+1:]...)
	return nil
}

// Clear empties every cell
func (p *Pattern) Clear() {
	for i := range p.Rows {
		for j := range p.Rows[i].Cells {
			p.Rows[i].Cells[j] = ""
		}
	}
}

// Grid converts the pattern into what the engine plays. names labels rows
// and may be nil.
func (p Pattern) Grid(names func(key uint8) string) *sequencer.Grid {
	g := &sequencer.Grid{Name: p.Name, Figure: p.Figure(), Rows: make([]sequencer.Row, len(p.Rows))}
	for i, r := range p.Rows {
		row := sequencer.Row{Key: r.Key, Cells: append([]sequencer.Cell(nil), r.Cells...)}
		if names != nil {
			row.Name = names(r.Key)
		}
		g.Rows[i] = row
	}
	return g
}

func clampFigure(n int) int {
	if n < MinFigure {
		return DefaultFigure
	}
	return min(n, MaxFigure)
}
