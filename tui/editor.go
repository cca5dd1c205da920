package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-metronome/patterns"
	"go-metronome/widgets"
)

// keys offered when adding a row, the common drum sounds first
var rowKeys = []uint8{36, 38, 42, 46, 49, 51, 45, 48, 50, 37, 39, 56, 75, 76, 77}

type editor struct {
	pattern  patterns.Pattern
	row, col int
	playhead int
	dirty    bool
}

// openEditor loads the selected pattern, or starts a new one
func (m *Model) openEditor() {
	if m.store == nil {
		m.status = "no pattern store"
		return
	}
	var p patterns.Pattern
	if m.selected != "" {
		got, err := m.store.Get(context.Background(), m.selected)
		if err != nil {
			m.report(err)
			return
		}
		p = got
	} else {
		p = patterns.New(m.newName(), patterns.DefaultFigure, 36, 38, 42)
	}
	m.editor = &editor{pattern: p, playhead: -1, dirty: m.selected == ""}
}

func (m *Model) newName() string {
	for i := 1; ; i++ {
		name := fmt.Sprintf("Pattern %d", i)
		taken := false
		for _, n := range m.names {
			if strings.EqualFold(n, name) {
				taken = true
				break
			}
		}
		if !taken {
			return name
		}
	}
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ed := m.editor
	k := m.editorKeys
	p := &ed.pattern
	m.status = ""

	switch {
	case key.Matches(msg, k.Back):
		if ed.dirty && !m.saveEditor() {
			return m, nil
		}
		m.editor = nil

	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, k.Play):
		m.togglePlay()

	case key.Matches(msg, k.Up):
		ed.row = max(ed.row-1, 0)
	case key.Matches(msg, k.Down):
		ed.row = min(ed.row+1, len(p.Rows)-1)
	case key.Matches(msg, k.Left):
		ed.col = max(ed.col-1, 0)
	case key.Matches(msg, k.Right):
		ed.col = min(ed.col+1, p.Figure()-1)

	case key.Matches(msg, k.Set), key.Matches(msg, k.Clear):
		if err := p.SetCell(ed.row, ed.col, msg.String()); err != nil {
			m.report(err)
			break
		}
		ed.dirty = true
		ed.col = min(ed.col+1, p.Figure()-1)

	case key.Matches(msg, k.Wider):
		m.resize(p.Figure() + 1)
	case key.Matches(msg, k.Narrow):
		m.resize(p.Figure() - 1)

	case key.Matches(msg, k.AddRow):
		for _, rk := range rowKeys {
			if err := p.AddRow(rk); err == nil {
				ed.row = len(p.Rows) - 1
				ed.dirty = true
				break
			}
		}
	case key.Matches(msg, k.DelRow):
		if len(p.Rows) <= 1 {
			m.status = "a pattern needs at least one row"
			break
		}
		if err := p.RemoveRow(ed.row); err != nil {
			m.report(err)
			break
		}
		ed.row = min(ed.row, len(p.Rows)-1)
		ed.dirty = true

	case key.Matches(msg, k.Save):
		m.saveEditor()
	}
	return m, nil
}

func (m *Model) resize(n int) {
	ed := m.editor
	if err := ed.pattern.SetFigure(n); err != nil {
		m.report(err)
		return
	}
	ed.col = min(ed.col, n-1)
	ed.dirty = true
}

// saveEditor stores the pattern and, when it is the selected one, hands the
// new grid to the engine
func (m *Model) saveEditor() bool {
	ed := m.editor
	if err := m.store.Put(context.Background(), ed.pattern); err != nil {
		m.report(err)
		return false
	}
	ed.dirty = false
	m.reloadNames()
	if m.selected == "" || strings.EqualFold(m.selected, ed.pattern.Name) {
		m.selectPattern(ed.pattern.Name)
	}
	m.status = "saved " + ed.pattern.Name
	return true
}

func (m Model) viewEditor() string {
	ed := m.editor
	th := m.theme
	cfg := m.engine.Config()

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())

	title := ed.pattern.Name
	if ed.dirty {
		title += " *"
	}
	playhead := -1
	if m.engine.State().Playing() && strings.EqualFold(m.selected, ed.pattern.Name) {
		playhead = ed.playhead
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf("PATTERN  %s  %d columns", title, ed.pattern.Figure())))
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderGrid(th, widgets.GridView{
		Grid:      ed.pattern.Grid(m.keyName),
		CursorRow: ed.row,
		CursorCol: ed.col,
		Playhead:  playhead,
		Config:    cfg,
	}))
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render("f accent  p soft  1-9 velocity  0 clear"))
	out.WriteString("\n")
	if m.status != "" {
		out.WriteString(warnStyle.Render(m.status))
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(m.help.View(m.editorKeys))
	return out.String()
}
