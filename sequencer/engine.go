package sequencer

import (
	"fmt"
	"sync"
	"time"

	"go-metronome/debug"
	"go-metronome/midi"
)

// Engine is the metronome transport. It owns the timing goroutine, the
// output and input endpoints and the bar/beat counter. All methods are safe
// for concurrent use; setters write the pending configuration and the
// timing loop reads a snapshot at the start of every tick.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	transport   TransportState
	pos         position // next tick to play
	started     bool
	patternMode bool
	grid        *Grid
	mapper      StrikeMapper

	ports     midi.Ports
	out       midi.Output
	stopInput func()

	run   *session // nil while stopped
	notes *telemetry
	now   func() time.Time
}

// session is one Start/Continue..Stop run of the timing loop
type session struct {
	em        *emitter
	sched     schedule
	stop      chan struct{}
	retune    chan struct{} // tempo or resolution changed
	done      chan struct{}
	cancelled bool // guarded by Engine.mu
}

// New creates a stopped engine. Nothing is opened until Start or a Connect call.
func New(cfg Config, ports midi.Ports) *Engine {
	return &Engine{
		cfg:    cfg.Normalize(),
		pos:    startPosition(),
		mapper: VelocityMapper{},
		ports:  ports,
		notes:  newTelemetry(NotificationBuffer),
		now:    time.Now,
	}
}

// Notifications is the telemetry stream. It is never closed.
func (e *Engine) Notifications() <-chan Notification {
	return e.notes.ch
}

// State returns the transport state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{
		Transport:   e.transport,
		Bar:         e.pos.bar,
		Beat:        e.pos.beat,
		Started:     e.started,
		PatternMode: e.patternMode,
		Connected:   e.out != nil,
		Dropped:     e.notes.dropped.Load(),
	}
	if e.patternMode && e.grid != nil {
		st.Pattern = e.grid.Name
	}
	return st
}

// Config returns a copy of the pending configuration
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// TicksPerBar is the bar length the next run will use
func (e *Engine) TicksPerBar() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.patternMode && e.grid != nil {
		return max(e.grid.Figure, 1)
	}
	return e.cfg.Numerator * e.cfg.Resolution
}

// Start plays from bar 1, beat 0. It fails with ErrDeviceUnavailable when no
// output can be opened. Starting while playing does nothing.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport == Playing {
		return nil
	}
	if err := e.readyLocked(); err != nil {
		return err
	}
	e.pos = startPosition()
	e.started = true
	e.launchLocked()
	debug.Log("transport", "start tempo=%d sig=%d/%d res=%d pattern=%v",
		e.cfg.Tempo, e.cfg.Numerator, e.cfg.Denominator, e.cfg.Resolution, e.patternMode)
	return nil
}

// Continue resumes from the position where Stop froze the counter. It does
// nothing while playing or when the engine was never started.
func (e *Engine) Continue() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport == Playing || !e.started {
		return nil
	}
	if err := e.readyLocked(); err != nil {
		return err
	}
	e.launchLocked()
	debug.Log("transport", "continue at %d:%d", e.pos.bar, e.pos.beat)
	return nil
}

// Stop cancels the armed tick, releases sounding notes and freezes the
// position. When Stop returns no further tick will fire. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	s := e.run
	if s == nil {
		e.mu.Unlock()
		return
	}
	s.cancelled = true
	e.run = nil
	e.transport = Stopped
	close(s.stop)
	e.mu.Unlock()

	<-s.done

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sendLocked(s.em.flush()); err != nil {
		debug.Warn("transport", "note-off flush: %v", err)
	}
	debug.Log("transport", "stop at %d:%d", e.pos.bar, e.pos.beat)
}

// Close stops playback and releases both endpoints
func (e *Engine) Close() error {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeInputLocked()
	return e.closeOutputLocked()
}

// readyLocked checks that a run can begin, opening the configured output
// when none is connected
func (e *Engine) readyLocked() error {
	if e.patternMode && e.grid == nil {
		return fmt.Errorf("%w: pattern mode without a pattern", ErrInvalidConfiguration)
	}
	if e.out != nil {
		return nil
	}
	if e.cfg.OutputConn == "" {
		return fmt.Errorf("%w: no output connection configured", ErrDeviceUnavailable)
	}
	if err := e.openOutputLocked(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return nil
}

func (e *Engine) launchLocked() {
	var grid *Grid
	if e.patternMode {
		grid = e.grid
	}
	s := &session{
		em:     newEmitter(grid, e.mapper),
		stop:   make(chan struct{}),
		retune: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.sched.arm(e.now())
	e.run = s
	e.transport = Playing
	go e.loop(s)
}

// loop is the timing goroutine. It blocks only on its timer, the stop
// channel and the retune signal.
func (e *Engine) loop(s *session) {
	defer close(s.done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.retune:
			wait, ok := e.retime(s)
			if !ok {
				return
			}
			timer.Reset(wait)
		case <-timer.C:
			wait, ok := e.tick(s)
			if !ok {
				return
			}
			timer.Reset(wait)
		}
	}
}

// tick plays the armed tick and arms the next one
func (e *Engine) tick(s *session) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.cancelled {
		return 0, false
	}

	cfg := e.cfg
	perBar := s.em.ticksPerBar(cfg)
	pos := e.pos.normalize(perBar)

	if err := e.sendLocked(s.em.emit(cfg, pos.beat)); err != nil {
		e.deviceLostLocked(s, err)
		return 0, false
	}
	e.notes.publish(Notification{Kind: PositionUpdate, Bar: pos.bar, Beat: pos.beat})

	e.pos = pos.next(perBar)
	s.sched.fired(Interval(cfg.Tempo, cfg.Resolution))
	return s.sched.wait(e.now()), true
}

// retime re-arms the pending tick with the current tempo
func (e *Engine) retime(s *session) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s.cancelled {
		return 0, false
	}
	s.sched.retune(Interval(e.cfg.Tempo, e.cfg.Resolution))
	return s.sched.wait(e.now()), true
}

// deviceLostLocked ends the session after the output failed mid-run
func (e *Engine) deviceLostLocked(s *session, cause error) {
	s.cancelled = true
	e.run = nil
	e.transport = Stopped
	if err := e.closeOutputLocked(); err != nil {
		debug.Warn("transport", "close failed output: %v", err)
	}
	err := fmt.Errorf("%w: %w", ErrDeviceUnavailable, cause)
	debug.Warn("transport", "output lost: %v", err)
	e.notes.publish(Notification{Kind: DeviceLost, Err: err})
}

func (e *Engine) sendLocked(events []midi.Event) error {
	if len(events) == 0 {
		return nil
	}
	if e.out == nil {
		return ErrDeviceUnavailable
	}
	for _, ev := range events {
		if err := e.out.Send(ev.Message()); err != nil {
			return err
		}
		debug.LogEvery(64, "send", "type=%#x ch=%d note=%d vel=%d", ev.Type, ev.Channel, ev.Note, ev.Velocity)
	}
	return nil
}

// signalRetuneLocked wakes the timing loop after a tempo or resolution change
func (e *Engine) signalRetuneLocked() {
	if e.run == nil {
		return
	}
	select {
	case e.run.retune <- struct{}{}:
	default:
	}
}

// Setters. Out-of-range values are clamped; none of them stops the transport.

// SetTempo changes the tempo, also while playing. Ticks already fired stay put.
func (e *Engine) SetTempo(bpm int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Tempo = clamp(bpm, TempoMin, TempoMax)
	e.signalRetuneLocked()
}

// SetTimeSignature applies from the next Start. It is rejected while playing.
func (e *Engine) SetTimeSignature(numerator, denominator int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transport == Playing {
		return ErrInvalidWhilePlaying
	}
	if !ValidTimeSignature(numerator, denominator) {
		return fmt.Errorf("%w: time signature %d/%d", ErrInvalidConfiguration, numerator, denominator)
	}
	e.cfg.Numerator = numerator
	e.cfg.Denominator = denominator
	return nil
}

func (e *Engine) SetResolution(ticksPerBeat int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Resolution = clamp(ticksPerBeat, 1, MaxResolution)
	e.signalRetuneLocked()
}

func (e *Engine) SetChannel(channel int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Channel = clamp(channel, 0, 15)
}

func (e *Engine) SetWeakNote(note int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.WeakNote = clamp7(note)
}

func (e *Engine) SetStrongNote(note int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.StrongNote = clamp7(note)
}

func (e *Engine) SetWeakVelocity(velocity int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.WeakVelocity = clamp7(velocity)
}

func (e *Engine) SetStrongVelocity(velocity int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.StrongVelocity = clamp7(velocity)
}

// SetVolume stores the master volume. Use SendControlChange to push it.
func (e *Engine) SetVolume(volume int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Volume = clamp7(volume)
}

// SetBalance stores the stereo balance (64 = centre)
func (e *Engine) SetBalance(balance int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.Balance = clamp7(balance)
}

// SetNoteDuration sets how many ticks a note sounds before its note-off
func (e *Engine) SetNoteDuration(ticks int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.NoteDuration = max(ticks, 0)
}

func (e *Engine) SetSendNoteOff(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.SendNoteOff = on
}

func (e *Engine) SetBank(bank int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bank < -1 || bank > 0x3FFF {
		bank = -1
	}
	e.cfg.Bank = bank
}

func (e *Engine) SetProgram(program int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if program < -1 || program > 127 {
		program = -1
	}
	e.cfg.Program = program
}

func (e *Engine) SetBankSelMethod(m BankSelMethod) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m < BankSelNormal || m > BankSelPatch {
		m = BankSelNormal
	}
	e.cfg.BankSelMethod = m
}

// ApplyPatch sets bank, program and bank select method in one step
func (e *Engine) ApplyPatch(p Patch) {
	e.SetBankSelMethod(p.Method)
	e.SetBank(p.Bank)
	e.SetProgram(p.Program)
}

// SetPatternMode switches between automatic clicks and the selected
// pattern. The mode of a running session is fixed.
func (e *Engine) SetPatternMode(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transport == Playing {
		return ErrInvalidWhilePlaying
	}
	e.patternMode = on
	return nil
}

// SetPattern selects the grid used in pattern mode. The engine keeps its own
// copy; a running session keeps playing the grid it started with.
func (e *Engine) SetPattern(g *Grid) error {
	if g != nil && g.Figure < 1 {
		return fmt.Errorf("%w: pattern %q has no columns", ErrInvalidConfiguration, g.Name)
	}
	c := g.Clone()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.grid = c
	return nil
}

// SetStrikeMapper replaces how pattern cells become notes, from the next run
func (e *Engine) SetStrikeMapper(m StrikeMapper) {
	if m == nil {
		m = VelocityMapper{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mapper = m
}
