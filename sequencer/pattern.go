package sequencer

import "strconv"

// Cell is an opaque strike descriptor. The empty cell never sounds.
type Cell string

// Empty reports whether the cell is silent
func (c Cell) Empty() bool {
	return c == ""
}

// Row is one sound of a pattern: a MIDI key and its cells, one per column
type Row struct {
	Key   uint8
	Name  string
	Cells []Cell
}

// Grid is the pattern the engine plays in pattern mode. Figure is the
// number of columns per bar.
type Grid struct {
	Name   string
	Figure int
	Rows   []Row
}

// Clone returns a deep copy so the engine never shares cells with the store
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	c := &Grid{Name: g.Name, Figure: g.Figure, Rows: make([]Row, len(g.Rows))}
	for i, r := range g.Rows {
		c.Rows[i] = Row{Key: r.Key, Name: r.Name, Cells: append([]Cell(nil), r.Cells...)}
	}
	return c
}

// Cell returns the cell of row r at column col, empty when out of range
func (g *Grid) Cell(r, col int) Cell {
	if r < 0 || r >= len(g.Rows) {
		return ""
	}
	cells := g.Rows[r].Cells
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col]
}

// Strike is a resolved cell: what to play and how loud
type Strike struct {
	Key      uint8
	Velocity uint8
	Accent   bool
}

// StrikeMapper turns a cell into a note. Returning false keeps the cell silent.
type StrikeMapper interface {
	Resolve(row Row, cell Cell, cfg Config) (Strike, bool)
}

// StrikeMapperFunc adapts a function to StrikeMapper
type StrikeMapperFunc func(row Row, cell Cell, cfg Config) (Strike, bool)

func (f StrikeMapperFunc) Resolve(row Row, cell Cell, cfg Config) (Strike, bool) {
	return f(row, cell, cfg)
}

// VelocityMapper is the default mapping of the grid editor keys:
// "f" plays the strong velocity as an accent, "p" the weak velocity, and
// "1".."9" are velocity tiers of 127/9 each.
type VelocityMapper struct{}

func (VelocityMapper) Resolve(row Row, cell Cell, cfg Config) (Strike, bool) {
	switch cell {
	case "":
		return Strike{}, false
	case "f":
		return Strike{Key: row.Key, Velocity: uint8(clamp7(cfg.StrongVelocity)), Accent: true}, true
	case "p":
		return Strike{Key: row.Key, Velocity: uint8(clamp7(cfg.WeakVelocity))}, true
	}
	n, err := strconv.Atoi(string(cell))
	if err != nil || n < 1 || n > 9 {
		return Strike{}, false
	}
	return Strike{Key: row.Key, Velocity: uint8(n * 127 / 9), Accent: n == 9}, true
}
