// Package tui is the terminal front end of the metronome
package tui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-metronome/debug"
	"go-metronome/midi"
	"go-metronome/patterns"
	"go-metronome/sequencer"
	"go-metronome/theme"
	"go-metronome/widgets"
)

// PatternStore is the part of the pattern store the UI needs
type PatternStore interface {
	Names(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) (patterns.Pattern, error)
	Put(ctx context.Context, p patterns.Pattern) error
}

// Options wires the model to the rest of the program
type Options struct {
	Store       PatternStore
	Instruments *sequencer.InstrumentIndex
	Instrument  string
	Theme       *theme.Theme
	Events      <-chan sequencer.Notification // engine notifications, usually a Fanout subscription
	Ports       <-chan midi.PortEvent         // hot-plug events, may be nil
	Selected    string                        // initially selected pattern
}

const velocityStep = 8

type Model struct {
	engine      *sequencer.Engine
	store       PatternStore
	instruments *sequencer.InstrumentIndex
	instrument  string
	theme       *theme.Theme
	events      <-chan sequencer.Notification
	ports       <-chan midi.PortEvent

	keys       keyMap
	editorKeys editorKeyMap
	help       help.Model

	bar, beat int
	names     []string
	selected  string
	editor    *editor
	status    string
	quitting  bool
}

type notificationMsg sequencer.Notification

type portEventMsg midi.PortEvent

type eventsClosedMsg struct{}

func NewModel(engine *sequencer.Engine, opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = theme.Default()
	}
	if opts.Instruments == nil {
		opts.Instruments = sequencer.DefaultInstruments()
	}
	m := Model{
		engine:      engine,
		store:       opts.Store,
		instruments: opts.Instruments,
		instrument:  opts.Instrument,
		theme:       opts.Theme,
		events:      opts.Events,
		ports:       opts.Ports,
		keys:        defaultKeys(),
		editorKeys:  defaultEditorKeys(),
		help:        help.New(),
		selected:    opts.Selected,
		bar:         1,
	}
	m.reloadNames()
	if m.selected != "" {
		m.selectPattern(m.selected)
	}
	return m
}

func listenEvents(ch <-chan sequencer.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return notificationMsg(n)
	}
}

func listenPorts(ch <-chan midi.PortEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return portEventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenEvents(m.events), listenPorts(m.ports))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		if m.editor != nil {
			return m.updateEditor(msg)
		}
		return m.updateKeys(msg)

	case notificationMsg:
		m.handleNotification(sequencer.Notification(msg))
		return m, listenEvents(m.events)

	case eventsClosedMsg:
		m.events = nil

	case portEventMsg:
		ev := midi.PortEvent(msg)
		if ev.Type == midi.PortAppeared {
			m.status = "port appeared: " + ev.Address
			if ev.Direction == midi.DirOutput && !m.engine.State().Connected {
				m.engine.AutoConnect()
			}
		} else {
			m.status = "port vanished: " + ev.Address
		}
		return m, listenPorts(m.ports)
	}
	return m, nil
}

func (m *Model) handleNotification(n sequencer.Notification) {
	switch n.Kind {
	case sequencer.PositionUpdate:
		m.bar, m.beat = n.Bar, n.Beat
		if m.editor != nil {
			m.editor.playhead = n.Beat
		}
	case sequencer.DeviceLost:
		m.status = fmt.Sprintf("output lost: %v", n.Err)
	default:
		if err := m.engine.Apply(n); err != nil {
			m.status = err.Error()
		}
		if n.Kind == sequencer.TimeSignatureAnnounced {
			m.status = fmt.Sprintf("time signature %d/%d", n.Numerator, n.Denominator)
		}
	}
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.engine
	cfg := e.Config()
	m.status = ""

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		e.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Play):
		m.togglePlay()

	case key.Matches(msg, m.keys.Cont):
		m.report(e.Continue())

	case key.Matches(msg, m.keys.TempoUp):
		e.SetTempo(cfg.Tempo + 1)
	case key.Matches(msg, m.keys.TempoDown):
		e.SetTempo(cfg.Tempo - 1)
	case key.Matches(msg, m.keys.TempoUp10):
		e.SetTempo(cfg.Tempo + 10)
	case key.Matches(msg, m.keys.TempoDown10):
		e.SetTempo(cfg.Tempo - 10)
	case key.Matches(msg, m.keys.Marking):
		e.SetTempo(nextMarking(cfg.Tempo))

	case key.Matches(msg, m.keys.Numerator):
		m.report(e.SetTimeSignature(cfg.Numerator%sequencer.MaxNumerator+1, cfg.Denominator))
	case key.Matches(msg, m.keys.NumeratorDn):
		num := cfg.Numerator - 1
		if num < 1 {
			num = sequencer.MaxNumerator
		}
		m.report(e.SetTimeSignature(num, cfg.Denominator))
	case key.Matches(msg, m.keys.Denominator):
		m.report(e.SetTimeSignature(cfg.Numerator, nextDenominator(cfg.Denominator)))

	case key.Matches(msg, m.keys.Resolution):
		e.SetResolution(cfg.Resolution + 1)
	case key.Matches(msg, m.keys.ResolutionD):
		e.SetResolution(cfg.Resolution - 1)

	case key.Matches(msg, m.keys.WeakUp):
		e.SetWeakVelocity(cfg.WeakVelocity + velocityStep)
	case key.Matches(msg, m.keys.WeakDown):
		e.SetWeakVelocity(cfg.WeakVelocity - velocityStep)
	case key.Matches(msg, m.keys.StrongUp):
		e.SetStrongVelocity(cfg.StrongVelocity + velocityStep)
	case key.Matches(msg, m.keys.StrongDown):
		e.SetStrongVelocity(cfg.StrongVelocity - velocityStep)

	case key.Matches(msg, m.keys.VolumeUp):
		m.setVolume(cfg.Volume + velocityStep)
	case key.Matches(msg, m.keys.VolumeDown):
		m.setVolume(cfg.Volume - velocityStep)
	case key.Matches(msg, m.keys.BalanceR):
		m.setBalance(cfg.Balance + velocityStep)
	case key.Matches(msg, m.keys.BalanceL):
		m.setBalance(cfg.Balance - velocityStep)

	case key.Matches(msg, m.keys.PatternMode):
		on := !e.State().PatternMode
		if err := e.SetPatternMode(on); err != nil {
			m.report(err)
			break
		}
		if on && m.selected == "" && len(m.names) > 0 {
			m.selectPattern(m.names[0])
		}
	case key.Matches(msg, m.keys.NextPattern):
		m.cyclePattern(1)
	case key.Matches(msg, m.keys.PrevPattern):
		m.cyclePattern(-1)

	case key.Matches(msg, m.keys.Edit):
		m.openEditor()

	case key.Matches(msg, m.keys.Output):
		m.nextOutput()
	}
	return m, nil
}

func (m *Model) togglePlay() {
	if m.engine.State().Playing() {
		m.engine.Stop()
		return
	}
	if err := m.engine.Start(); err != nil {
		m.report(err)
		return
	}
	m.bar, m.beat = 1, 0
}

func (m *Model) setVolume(v int) {
	m.engine.SetVolume(v)
	m.sendController(int(midi.VolumeCC), m.engine.Config().Volume)
}

func (m *Model) setBalance(v int) {
	m.engine.SetBalance(v)
	m.sendController(int(midi.PanCC), m.engine.Config().Balance)
}

// sendController applies a mixer change right away when an output is open
func (m *Model) sendController(cc, value int) {
	err := m.engine.SendControlChange(cc, value)
	if err != nil && !errors.Is(err, sequencer.ErrDeviceUnavailable) {
		m.report(err)
	}
}

func (m *Model) nextOutput() {
	outs, err := m.engine.OutputConnections()
	if err != nil || len(outs) == 0 {
		m.status = "no MIDI outputs"
		return
	}
	current := m.engine.Config().OutputConn
	next := outs[0]
	if i := slices.Index(outs, current); i >= 0 {
		next = outs[(i+1)%len(outs)]
	}
	m.engine.SetOutputConn(next)
	if err := m.engine.ConnectOutput(); err != nil {
		m.report(err)
		return
	}
	m.status = "output: " + next
}

func (m *Model) reloadNames() {
	if m.store == nil {
		return
	}
	names, err := m.store.Names(context.Background())
	if err != nil {
		m.report(err)
		return
	}
	m.names = names
}

func (m *Model) cyclePattern(step int) {
	if len(m.names) == 0 {
		m.status = "no patterns"
		return
	}
	i := slices.IndexFunc(m.names, func(n string) bool { return strings.EqualFold(n, m.selected) })
	if i < 0 {
		i = 0
	} else {
		i = (i + step + len(m.names)) % len(m.names)
	}
	m.selectPattern(m.names[i])
}

// selectPattern loads name from the store and hands it to the engine. A
// running session keeps its grid until the next start.
func (m *Model) selectPattern(name string) {
	if m.store == nil {
		return
	}
	p, err := m.store.Get(context.Background(), name)
	if err != nil {
		m.report(err)
		return
	}
	if err := m.engine.SetPattern(p.Grid(m.keyName)); err != nil {
		m.report(err)
		return
	}
	m.selected = p.Name
	debug.Log("tui", "selected pattern %q", p.Name)
}

func (m *Model) keyName(key uint8) string {
	return m.instruments.KeyName(m.instrument, key)
}

func (m *Model) report(err error) {
	if err != nil {
		m.status = err.Error()
	}
}

// Selected is the name of the pattern handed to the engine
func (m Model) Selected() string {
	return m.selected
}

func nextMarking(bpm int) int {
	for _, mk := range sequencer.TempoMarkings {
		if mk.BPM > bpm {
			return mk.BPM
		}
	}
	return sequencer.TempoMarkings[0].BPM
}

var denominators = []int{1, 2, 4, 8, 16, 32, 64}

func nextDenominator(den int) int {
	i := slices.Index(denominators, den)
	return denominators[(i+1)%len(denominators)]
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.editor != nil {
		return m.viewEditor()
	}

	cfg := m.engine.Config()
	st := m.engine.State()
	th := m.theme

	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	warnStyle := lipgloss.NewStyle().Foreground(th.Warning())

	playState := "STOP"
	if st.Playing() {
		playState = "PLAY"
	}
	output := cfg.OutputConn
	if !st.Connected {
		output = "not connected"
	}
	header := headerStyle.Render(fmt.Sprintf("go-metronome  %s  %3d bpm %-11s  %d/%d  res %d",
		playState, cfg.Tempo, sequencer.TempoName(cfg.Tempo), cfg.Numerator, cfg.Denominator, cfg.Resolution))
	sub := dimStyle.Render("out: " + output)

	beats := cfg.Numerator
	beat := m.beat / max(cfg.Resolution, 1)
	if st.PatternMode {
		beat = m.beat
	}
	lcd := widgets.RenderLCD(fmt.Sprintf("%3d:%02d", m.bar, beat+1), th.Success())

	current := -1
	if st.Playing() && !st.PatternMode {
		current = beat
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(sub)
	out.WriteString("\n\n")
	out.WriteString(lcd)
	out.WriteString("\n\n")
	if !st.PatternMode {
		out.WriteString(widgets.RenderBeats(th, beats, current))
		out.WriteString("\n\n")
	}

	out.WriteString(widgets.RenderMeter(th, "Weak", cfg.WeakVelocity, 0, 127, 24) + "\n")
	out.WriteString(widgets.RenderMeter(th, "Strong", cfg.StrongVelocity, 0, 127, 24) + "\n")
	out.WriteString(widgets.RenderMeter(th, "Volume", cfg.Volume, 0, 127, 24) + "\n")
	out.WriteString(widgets.RenderMeter(th, "Balance", cfg.Balance, 0, 127, 24) + "\n")

	out.WriteString("\n")
	mode := "clicks"
	if st.PatternMode {
		mode = "pattern"
	}
	selected := m.selected
	if selected == "" {
		selected = "(none)"
	}
	out.WriteString(dimStyle.Render(fmt.Sprintf("mode: %s  pattern: %s", mode, selected)))
	out.WriteString("\n")

	if m.status != "" {
		out.WriteString(warnStyle.Render(m.status))
		out.WriteString("\n")
	}
	out.WriteString("\n")
	out.WriteString(m.help.View(m.keys))
	return out.String()
}
