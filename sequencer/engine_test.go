package sequencer

import (
	"errors"
	"testing"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-metronome/midi"
	"go-metronome/midi/fake"
)

const waitTimeout = 2 * time.Second

// newTestEngine returns an engine on fake ports, ticking every 2.5ms
func newTestEngine(t *testing.T) (*Engine, *fake.Ports) {
	t.Helper()
	ports := fake.New([]string{"Synth:Port 0"}, []string{"Keys:Port 0"})
	cfg := DefaultConfig()
	cfg.OutputConn = "synth"
	cfg.InputConn = "keys"
	cfg.Tempo = TempoMax
	cfg.Resolution = MaxResolution
	e := New(cfg, ports)
	t.Cleanup(func() { e.Close() })
	return e, ports
}

// nextOf waits for the next notification of kind
func nextOf(t *testing.T, e *Engine, kind NotificationKind) Notification {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case n := <-e.Notifications():
			if n.Kind == kind {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

// positions collects the next n position updates
func positions(t *testing.T, e *Engine, n int) []Notification {
	t.Helper()
	out := make([]Notification, 0, n)
	for len(out) < n {
		out = append(out, nextOf(t, e, PositionUpdate))
	}
	return out
}

func drain(e *Engine) {
	for {
		select {
		case <-e.Notifications():
		default:
			return
		}
	}
}

func TestStartWithoutOutput(t *testing.T) {
	e := New(DefaultConfig(), fake.New(nil, nil))
	err := e.Start()
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if e.State().Playing() {
		t.Error("engine playing after failed start")
	}
}

func TestStartUnknownOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputConn = "nothing here"
	e := New(cfg, fake.New([]string{"Synth"}, nil))
	if err := e.Start(); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestStartResetsPosition(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	got := positions(t, e, 40)
	if got[0].Bar != 1 || got[0].Beat != 0 {
		t.Fatalf("first position = %d:%d, want 1:0", got[0].Bar, got[0].Beat)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Beat != got[i-1].Beat+1 || got[i].Bar != got[i-1].Bar {
			t.Fatalf("position %d:%d followed %d:%d", got[i].Bar, got[i].Beat, got[i-1].Bar, got[i-1].Beat)
		}
	}

	e.Stop()
	drain(e)
	if err := e.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	first := nextOf(t, e, PositionUpdate)
	if first.Bar != 1 || first.Beat != 0 {
		t.Errorf("restart position = %d:%d, want 1:0", first.Bar, first.Beat)
	}
}

func TestContinuePreservesPosition(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	positions(t, e, 30)
	e.Stop()
	drain(e)

	frozen := e.State()
	if frozen.Playing() {
		t.Fatal("still playing after stop")
	}
	time.Sleep(20 * time.Millisecond)
	if again := e.State(); again.Bar != frozen.Bar || again.Beat != frozen.Beat {
		t.Fatalf("position moved while stopped: %d:%d -> %d:%d", frozen.Bar, frozen.Beat, again.Bar, again.Beat)
	}

	if err := e.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	resumed := nextOf(t, e, PositionUpdate)
	if resumed.Bar != frozen.Bar || resumed.Beat != frozen.Beat {
		t.Errorf("continue played %d:%d, want %d:%d", resumed.Bar, resumed.Beat, frozen.Bar, frozen.Beat)
	}
}

func TestContinueNeverStarted(t *testing.T) {
	e, ports := newTestEngine(t)
	if err := e.Continue(); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if e.State().Playing() {
		t.Error("continue started a never-started engine")
	}
	if len(ports.Sent()) != 0 {
		t.Error("messages sent by a no-op continue")
	}
}

func TestPositionsStayInBar(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetResolution(8)
	if err := e.SetTimeSignature(3, 8); err != nil {
		t.Fatalf("time signature: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	got := positions(t, e, 30)
	const perBar = 3 * 8
	for i, p := range got {
		if p.Beat < 0 || p.Beat >= perBar {
			t.Fatalf("beat %d out of [0,%d)", p.Beat, perBar)
		}
		if i > 0 && p.Beat == 0 && p.Bar != got[i-1].Bar+1 {
			t.Fatalf("bar %d after %d on wrap", p.Bar, got[i-1].Bar)
		}
	}
}

func TestSetTimeSignatureWhilePlaying(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	positions(t, e, 2)

	if err := e.SetTimeSignature(7, 8); !errors.Is(err, ErrInvalidWhilePlaying) {
		t.Fatalf("expected ErrInvalidWhilePlaying, got %v", err)
	}
	cfg := e.Config()
	if cfg.Numerator != 4 || cfg.Denominator != 4 {
		t.Errorf("signature changed to %d/%d", cfg.Numerator, cfg.Denominator)
	}

	e.Stop()
	for {
		select {
		case n := <-e.Notifications():
			if n.Kind != PositionUpdate {
				t.Errorf("unexpected notification %s", n.Kind)
			}
			continue
		default:
		}
		break
	}
}

func TestSetTimeSignatureValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	tests := []struct {
		num, den int
		ok       bool
	}{
		{3, 4, true},
		{32, 64, true},
		{1, 1, true},
		{0, 4, false},
		{33, 4, false},
		{4, 3, false},
		{4, 128, false},
	}
	for _, tt := range tests {
		err := e.SetTimeSignature(tt.num, tt.den)
		if (err == nil) != tt.ok {
			t.Errorf("SetTimeSignature(%d, %d) = %v", tt.num, tt.den, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidConfiguration) {
			t.Errorf("SetTimeSignature(%d, %d) error %v is not ErrInvalidConfiguration", tt.num, tt.den, err)
		}
	}
}

func TestPatternModeSwitch(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.SetPatternMode(true); err != nil {
		t.Fatalf("pattern mode: %v", err)
	}
	if err := e.Start(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("start without a pattern: %v", err)
	}
	if err := e.SetPattern(testGrid()); err != nil {
		t.Fatalf("set pattern: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.SetPatternMode(false); !errors.Is(err, ErrInvalidWhilePlaying) {
		t.Fatalf("expected ErrInvalidWhilePlaying, got %v", err)
	}
	if st := e.State(); !st.PatternMode || st.Pattern != "test" {
		t.Errorf("state = %+v", st)
	}

	got := positions(t, e, 10)
	for _, p := range got {
		if p.Beat >= 4 {
			t.Fatalf("pattern beat %d beyond figure 4", p.Beat)
		}
	}
}

func TestSetPatternRejectsEmptyFigure(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.SetPattern(&Grid{Name: "broken"}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestPatternSnapshot(t *testing.T) {
	e, ports := newTestEngine(t)
	e.SetSendNoteOff(false)
	grid := &Grid{Name: "one", Figure: 1, Rows: []Row{{Key: 40, Cells: []Cell{"5"}}}}
	if err := e.SetPattern(grid); err != nil {
		t.Fatalf("set pattern: %v", err)
	}
	grid.Rows[0].Key = 99
	grid.Rows[0].Cells[0] = ""

	if err := e.SetPatternMode(true); err != nil {
		t.Fatalf("pattern mode: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	positions(t, e, 3)
	e.Stop()

	var ch, key, vel uint8
	sent := ports.Sent()
	if len(sent) == 0 || !sent[0].GetNoteOn(&ch, &key, &vel) || key != 40 {
		t.Fatalf("expected note-on 40 from the stored copy, got %v", sent)
	}
}

func TestAutomaticClicksOnTheWire(t *testing.T) {
	e, ports := newTestEngine(t)
	e.SetResolution(1)
	e.SetSendNoteOff(false)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	positions(t, e, 8)
	e.Stop()

	var keys []uint8
	for _, msg := range ports.Sent() {
		var ch, key, vel uint8
		if msg.GetNoteOn(&ch, &key, &vel) {
			if ch != DefaultChannel {
				t.Fatalf("note on channel %d", ch)
			}
			keys = append(keys, key)
		}
	}
	want := []uint8{34, 33, 33, 33, 34, 33, 33, 33}
	if len(keys) < len(want) {
		t.Fatalf("got %d clicks, want at least %d", len(keys), len(want))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("click %d = %d, want %d", i, keys[i], want[i])
		}
	}
}

func TestStopLeavesNothingSounding(t *testing.T) {
	e, ports := newTestEngine(t)
	e.SetNoteDuration(64)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	positions(t, e, 100)
	e.Stop()

	after := len(ports.Sent())
	time.Sleep(30 * time.Millisecond)
	sent := ports.Sent()
	if len(sent) != after {
		t.Fatalf("%d messages sent after stop", len(sent)-after)
	}

	held := map[uint8]int{}
	for _, msg := range sent {
		var ch, key, vel uint8
		switch {
		case msg.GetNoteOn(&ch, &key, &vel):
			held[key]++
		case msg.GetNoteOff(&ch, &key, &vel):
			held[key]--
		}
	}
	for key, n := range held {
		if n != 0 {
			t.Errorf("key %d left with %d unmatched note-ons", key, n)
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	e.Stop()
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.Stop()
	e.Stop()
	if e.State().Playing() {
		t.Error("playing after stop")
	}
}

func TestRestartIgnoresStoppedChanges(t *testing.T) {
	e, ports := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	positions(t, e, 5)
	e.Stop()
	drain(e)

	e.SetTempo(TempoMin)
	e.SetTempo(TempoMax)
	e.SetResolution(2)
	e.SetResolution(MaxResolution)
	ports.Reset()

	if err := e.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	first := nextOf(t, e, PositionUpdate)
	if first.Bar != 1 || first.Beat != 0 {
		t.Fatalf("restart at %d:%d", first.Bar, first.Beat)
	}
	e.Stop()

	var ch, key, vel uint8
	sent := ports.Sent()
	if len(sent) == 0 || !sent[0].GetNoteOn(&ch, &key, &vel) || key != DefaultStrongNote {
		t.Errorf("first message after restart = %v, want strong click", sent)
	}
}

func TestTempoChangeWhilePlaying(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetResolution(24)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	positions(t, e, 3)

	e.SetTempo(TempoMax - 10)
	e.SetTempo(TempoMax)
	got := positions(t, e, 10)
	for i := 1; i < len(got); i++ {
		if got[i].Beat != (got[i-1].Beat+1)%(4*24) {
			t.Fatalf("tick skipped after retune: %d -> %d", got[i-1].Beat, got[i].Beat)
		}
	}
	if !e.State().Playing() {
		t.Error("tempo change stopped the transport")
	}
	if e.Config().Tempo != TempoMax {
		t.Errorf("tempo = %d", e.Config().Tempo)
	}
}

func TestDeviceLostMidSession(t *testing.T) {
	e, ports := newTestEngine(t)
	ports.FailAfter(5)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	n := nextOf(t, e, DeviceLost)
	if !errors.Is(n.Err, ErrDeviceUnavailable) {
		t.Errorf("device lost error = %v", n.Err)
	}
	st := e.State()
	if st.Playing() || st.Connected {
		t.Errorf("state after device loss = %+v", st)
	}
	if _, closed := ports.Opened(); closed != 1 {
		t.Errorf("failed output closed %d times, want 1", closed)
	}

	select {
	case n := <-e.Notifications():
		if n.Kind == DeviceLost {
			t.Error("device loss reported twice")
		}
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSettersClamp(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetTempo(5)
	e.SetChannel(20)
	e.SetWeakVelocity(-4)
	e.SetStrongVelocity(300)
	e.SetVolume(128)
	e.SetBalance(-1)
	e.SetResolution(0)
	e.SetNoteDuration(-3)
	e.SetProgram(200)

	cfg := e.Config()
	if cfg.Tempo != TempoMin || cfg.Channel != 15 || cfg.WeakVelocity != 0 || cfg.StrongVelocity != 127 {
		t.Errorf("clamped config = %+v", cfg)
	}
	if cfg.Volume != 127 || cfg.Balance != 0 || cfg.Resolution != 1 || cfg.NoteDuration != 0 || cfg.Program != -1 {
		t.Errorf("clamped config = %+v", cfg)
	}
}

func TestConnectOutputSendsInitialControls(t *testing.T) {
	e, ports := newTestEngine(t)
	e.ApplyPatch(Patch{Bank: 127 << 7, Program: 25, Method: BankSelNormal})
	e.SetVolume(90)
	e.SetBalance(32)

	if err := e.ConnectOutput(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	want := []gomidi.Message{
		gomidi.ControlChange(DefaultChannel, midi.BankSelectMSB, 127),
		gomidi.ControlChange(DefaultChannel, midi.BankSelectLSB, 0),
		gomidi.ProgramChange(DefaultChannel, 25),
		gomidi.ControlChange(DefaultChannel, midi.VolumeCC, 90),
		gomidi.ControlChange(DefaultChannel, midi.PanCC, 32),
	}
	sent := ports.Sent()
	if len(sent) != len(want) {
		t.Fatalf("sent %v, want %v", sent, want)
	}
	for i := range want {
		if string(sent[i]) != string(want[i]) {
			t.Errorf("message %d = %v, want %v", i, sent[i], want[i])
		}
	}
}

func TestInitialControlsBankMethods(t *testing.T) {
	tests := []struct {
		method BankSelMethod
		want   int // messages before volume and pan
	}{
		{BankSelNormal, 3},
		{BankSelMSB, 2},
		{BankSelLSB, 2},
		{BankSelPatch, 1},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Bank, cfg.Program, cfg.BankSelMethod = 8, 16, tt.method
		if got := len(initialControls(cfg)) - 2; got != tt.want {
			t.Errorf("method %d: %d bank/program messages, want %d", tt.method, got, tt.want)
		}
	}

	if got := len(initialControls(DefaultConfig())); got != 2 {
		t.Errorf("unset program: %d messages, want volume and pan only", got)
	}
}

func TestConnectOutputWhilePlayingStops(t *testing.T) {
	e, ports := newTestEngine(t)
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	positions(t, e, 3)

	if err := e.ConnectOutput(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if e.State().Playing() {
		t.Error("transport still playing after reconnect")
	}
	if opened, closed := ports.Opened(); opened != 2 || closed != 1 {
		t.Errorf("opened %d closed %d, want 2 and 1", opened, closed)
	}
}

func TestConnectUnknownAddress(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetOutputConn("missing")
	if err := e.ConnectOutput(); !errors.Is(err, ErrConnection) {
		t.Errorf("output: expected ErrConnection, got %v", err)
	}
	e.SetInputConn("missing")
	if err := e.ConnectInput(); !errors.Is(err, ErrConnection) {
		t.Errorf("input: expected ErrConnection, got %v", err)
	}
}

func TestAutoConnect(t *testing.T) {
	e, ports := newTestEngine(t)
	e.AutoConnect()
	if opened, _ := ports.Opened(); opened != 0 {
		t.Fatal("auto-connect ran while disabled")
	}

	e.SetAutoConnect(true)
	e.AutoConnect()
	if !e.State().Connected {
		t.Error("auto-connect did not open the output")
	}

	e.SetOutputConn("gone")
	e.DisconnectOutput()
	e.AutoConnect()
	if e.State().Connected {
		t.Error("connected to a missing output")
	}
}

func TestInputTransportRequests(t *testing.T) {
	e, ports := newTestEngine(t)
	if err := e.ConnectInput(); err != nil {
		t.Fatalf("connect input: %v", err)
	}

	ports.Inject("keys", gomidi.Start())
	ports.Inject("keys", midi.TimeSignature(6, 8))
	ports.Inject("keys", gomidi.NoteOn(0, 60, 100))
	ports.Inject("keys", gomidi.Stop())
	ports.Inject("keys", gomidi.Continue())

	wantKinds := []NotificationKind{PlayRequested, TimeSignatureAnnounced, StopRequested, ContinueRequested}
	for _, kind := range wantKinds {
		select {
		case n := <-e.Notifications():
			if n.Kind != kind {
				t.Fatalf("got %s, want %s", n.Kind, kind)
			}
			if kind == TimeSignatureAnnounced && (n.Numerator != 6 || n.Denominator != 8) {
				t.Errorf("announced %d/%d, want 6/8", n.Numerator, n.Denominator)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}

	e.DisconnectInput()
	ports.Inject("keys", gomidi.Start())
	select {
	case n := <-e.Notifications():
		t.Errorf("notification %s after disconnect", n.Kind)
	default:
	}
}

func TestTelemetryDropsWhenFull(t *testing.T) {
	tm := newTelemetry(2)
	tm.publish(Notification{Kind: PositionUpdate, Beat: 0})
	tm.publish(Notification{Kind: PositionUpdate, Beat: 1})
	tm.publish(Notification{Kind: PositionUpdate, Beat: 2})

	if got := tm.dropped.Load(); got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	for want := 0; want < 2; want++ {
		if n := <-tm.ch; n.Beat != want {
			t.Errorf("beat %d out of order, want %d", n.Beat, want)
		}
	}
}

func TestInstrumentIndex(t *testing.T) {
	idx := DefaultInstruments()

	p, ok := idx.Resolve("yamaha xg", "Drum Kits", "Jazz Kit")
	if !ok {
		t.Fatal("XG jazz kit not found")
	}
	if p.Bank != 127<<7 || p.Program != 32 || p.Method != BankSelNormal {
		t.Errorf("patch = %+v", p)
	}

	if _, ok := idx.Resolve("Roland GS", "Drum Sets", "Nope"); ok {
		t.Error("unknown program resolved")
	}
	if _, ok := idx.Resolve("Behringer RD-8", "", ""); ok {
		t.Error("instrument without banks resolved")
	}

	if got := idx.KeyName("Behringer RD-8", 40); got != "Snare Drum" {
		t.Errorf("RD-8 key 40 = %q", got)
	}
	if got := idx.KeyName("Behringer RD-8", 33); got != "Metronome Click" {
		t.Errorf("fallback key 33 = %q", got)
	}
	if got := idx.KeyName("", 100); got != "Note 100" {
		t.Errorf("unknown key = %q", got)
	}

	progs := idx.Programs("Roland GS", "drum sets")
	if len(progs) != 9 || progs[0] != "Standard" || progs[8] != "SFX" {
		t.Errorf("GS programs = %v", progs)
	}

	if _, err := NewInstrumentIndex(Instrument{Name: "A"}, Instrument{Name: "a"}); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("duplicate instruments: %v", err)
	}
}

func TestApplyRequests(t *testing.T) {
	e, _ := newTestEngine(t)

	if err := e.Apply(Notification{Kind: TimeSignatureAnnounced, Numerator: 6, Denominator: 8}); err != nil {
		t.Fatalf("apply signature: %v", err)
	}
	if cfg := e.Config(); cfg.Numerator != 6 || cfg.Denominator != 8 {
		t.Errorf("signature = %d/%d, want 6/8", cfg.Numerator, cfg.Denominator)
	}

	if err := e.Apply(Notification{Kind: PlayRequested}); err != nil {
		t.Fatalf("apply play: %v", err)
	}
	if !e.State().Playing() {
		t.Fatal("not playing after PlayRequested")
	}
	if err := e.Apply(Notification{Kind: TimeSignatureAnnounced, Numerator: 3, Denominator: 4}); err != nil {
		t.Errorf("signature while playing should be dropped silently, got %v", err)
	}
	if cfg := e.Config(); cfg.Numerator != 6 {
		t.Errorf("signature changed while playing: %d", cfg.Numerator)
	}

	e.Apply(Notification{Kind: StopRequested})
	if e.State().Playing() {
		t.Fatal("still playing after StopRequested")
	}
	e.Apply(Notification{Kind: ContinueRequested})
	if !e.State().Playing() {
		t.Error("not playing after ContinueRequested")
	}
	e.Apply(Notification{Kind: PositionUpdate})
	e.Stop()

	err := e.Apply(Notification{Kind: TimeSignatureAnnounced, Numerator: 3, Denominator: 5})
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("invalid announced signature: %v", err)
	}
}
