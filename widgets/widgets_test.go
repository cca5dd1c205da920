package widgets

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"go-metronome/sequencer"
	"go-metronome/theme"
)

func TestRenderLCD(t *testing.T) {
	out := RenderLCD("1:2", lipgloss.Color("#ffffff"))
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	if w := lipgloss.Width(lines[0]); w != 11 {
		t.Errorf("width = %d, want 11", w)
	}
}

func TestRenderBeats(t *testing.T) {
	th := theme.Default()
	out := RenderBeats(th, 4, 0)
	if strings.Count(out, string(th.Symbols.BeatStrong)) != 1 || strings.Count(out, string(th.Symbols.BeatIdle)) != 3 {
		t.Errorf("downbeat render = %q", out)
	}
	out = RenderBeats(th, 3, 2)
	if !strings.Contains(out, string(th.Symbols.BeatWeak)) || strings.Contains(out, string(th.Symbols.BeatStrong)) {
		t.Errorf("weak beat render = %q", out)
	}
}

func TestRenderMeter(t *testing.T) {
	th := theme.Default()
	out := RenderMeter(th, "Volume", 64, 0, 127, 10)
	if !strings.HasPrefix(out, "Volume") || !strings.HasSuffix(out, " 64") {
		t.Errorf("meter = %q", out)
	}
	if strings.Count(out, string(th.Symbols.MeterFull)) != 5 {
		t.Errorf("filled cells in %q", out)
	}
}

func TestRenderGrid(t *testing.T) {
	th := theme.Default()
	g := &sequencer.Grid{Name: "t", Figure: 8, Rows: []sequencer.Row{
		{Key: 36, Name: "Bass Drum 1", Cells: []sequencer.Cell{"f", "", "", "", "p"}},
		{Key: 42, Cells: []sequencer.Cell{"5", "5", "5", "5", "5", "5", "5", "9"}},
	}}
	out := RenderGrid(th, GridView{Grid: g, CursorRow: -1, Playhead: -1, Config: sequencer.DefaultConfig()})
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want ruler plus 2 rows", len(lines))
	}
	if !strings.Contains(lines[1], "Bass Drum 1") || !strings.Contains(lines[2], "Note 42") {
		t.Errorf("row labels: %q", lines[1:])
	}
	if !strings.Contains(lines[0], "1") || !strings.Contains(lines[0], "5") {
		t.Errorf("ruler = %q", lines[0])
	}

	empty := RenderGrid(th, GridView{})
	if !strings.Contains(empty, "empty") {
		t.Errorf("nil grid = %q", empty)
	}
}

func TestColumnRuler(t *testing.T) {
	if got := columnRuler(12); got != "1   5   9   " {
		t.Errorf("ruler(12) = %q", got)
	}
	if got := columnRuler(10); got != "1   5   9 " {
		t.Errorf("ruler(10) = %q", got)
	}
}
