package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Play        key.Binding
	Cont        key.Binding
	TempoUp     key.Binding
	TempoDown   key.Binding
	TempoUp10   key.Binding
	TempoDown10 key.Binding
	Marking     key.Binding
	Numerator   key.Binding
	NumeratorDn key.Binding
	Denominator key.Binding
	Resolution  key.Binding
	ResolutionD key.Binding
	WeakUp      key.Binding
	WeakDown    key.Binding
	StrongUp    key.Binding
	StrongDown  key.Binding
	VolumeUp    key.Binding
	VolumeDown  key.Binding
	BalanceR    key.Binding
	BalanceL    key.Binding
	PatternMode key.Binding
	NextPattern key.Binding
	PrevPattern key.Binding
	Edit        key.Binding
	Output      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Play:        key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/stop")),
		Cont:        key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "continue")),
		TempoUp:     key.NewBinding(key.WithKeys("+", "=", "up"), key.WithHelp("+/-", "tempo")),
		TempoDown:   key.NewBinding(key.WithKeys("-", "_", "down")),
		TempoUp10:   key.NewBinding(key.WithKeys("]", "pgup"), key.WithHelp("[/]", "tempo ±10")),
		TempoDown10: key.NewBinding(key.WithKeys("[", "pgdown")),
		Marking:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "next tempo marking")),
		Numerator:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n/N", "beats per bar")),
		NumeratorDn: key.NewBinding(key.WithKeys("N")),
		Denominator: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "beat length")),
		Resolution:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r/R", "ticks per beat")),
		ResolutionD: key.NewBinding(key.WithKeys("R")),
		WeakUp:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w/W", "weak velocity")),
		WeakDown:    key.NewBinding(key.WithKeys("W")),
		StrongUp:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s/S", "strong velocity")),
		StrongDown:  key.NewBinding(key.WithKeys("S")),
		VolumeUp:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v/V", "volume")),
		VolumeDown:  key.NewBinding(key.WithKeys("V")),
		BalanceR:    key.NewBinding(key.WithKeys("b"), key.WithHelp("b/B", "balance")),
		BalanceL:    key.NewBinding(key.WithKeys("B")),
		PatternMode: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "pattern mode")),
		NextPattern: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next pattern")),
		PrevPattern: key.NewBinding(key.WithKeys("shift+tab")),
		Edit:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit pattern")),
		Output:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "next output")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.TempoUp, k.PatternMode, k.Edit, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Cont, k.TempoUp, k.TempoUp10, k.Marking},
		{k.Numerator, k.Denominator, k.Resolution, k.PatternMode, k.NextPattern},
		{k.WeakUp, k.StrongUp, k.VolumeUp, k.BalanceR},
		{k.Edit, k.Output, k.Help, k.Quit},
	}
}

type editorKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Set    key.Binding
	Clear  key.Binding
	Wider  key.Binding
	Narrow key.Binding
	AddRow key.Binding
	DelRow key.Binding
	Save   key.Binding
	Play   key.Binding
	Back   key.Binding
	Help   key.Binding
}

func defaultEditorKeys() editorKeyMap {
	return editorKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "row up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "row down")),
		Left:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column left")),
		Right:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column right")),
		Set:    key.NewBinding(key.WithKeys("f", "p", "1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("f p 1-9", "set cell")),
		Clear:  key.NewBinding(key.WithKeys("0", "delete", "backspace"), key.WithHelp("0/del", "clear cell")),
		Wider:  key.NewBinding(key.WithKeys("]"), key.WithHelp("[/]", "columns")),
		Narrow: key.NewBinding(key.WithKeys("[")),
		AddRow: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add row")),
		DelRow: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove row")),
		Save:   key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Play:   key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/stop")),
		Back:   key.NewBinding(key.WithKeys("esc", "q"), key.WithHelp("esc", "save and close")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

func (k editorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Set, k.Clear, k.Wider, k.AddRow, k.Save, k.Back}
}

func (k editorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Set, k.Clear, k.Wider, k.AddRow, k.DelRow},
		{k.Save, k.Play, k.Back, k.Help},
	}
}
