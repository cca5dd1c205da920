package sequencer

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-metronome/debug"
	"go-metronome/midi"
)

// SetOutputConn stores the output address used by ConnectOutput and Start
func (e *Engine) SetOutputConn(address string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.OutputConn = address
}

// SetInputConn stores the input address used by ConnectInput
func (e *Engine) SetInputConn(address string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.InputConn = address
}

func (e *Engine) SetAutoConnect(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg.AutoConnect = on
}

// OutputConnections lists the output addresses available right now
func (e *Engine) OutputConnections() ([]string, error) {
	names, err := e.ports.Outputs()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return names, nil
}

// InputConnections lists the input addresses available right now
func (e *Engine) InputConnections() ([]string, error) {
	names, err := e.ports.Inputs()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return names, nil
}

// ConnectOutput (re)opens the configured output and pushes the initial
// controls. A playing transport is stopped first.
func (e *Engine) ConnectOutput() error {
	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.openOutputLocked(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	if err := e.sendInitialControlsLocked(); err != nil {
		debug.Warn("connect", "initial controls: %v", err)
	}
	return nil
}

// ConnectInput listens on the configured input for transport messages
func (e *Engine) ConnectInput() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closeInputLocked()
	if e.cfg.InputConn == "" {
		return fmt.Errorf("%w: no input connection configured", ErrConnection)
	}
	stop, err := e.ports.Listen(e.cfg.InputConn, e.handleInput)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	e.stopInput = stop
	debug.Log("connect", "input %q", e.cfg.InputConn)
	return nil
}

// DisconnectOutput stops the transport and closes the output
func (e *Engine) DisconnectOutput() error {
	e.Stop()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeOutputLocked()
}

func (e *Engine) DisconnectInput() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeInputLocked()
}

// AutoConnect connects the persisted addresses when the auto-connect flag
// is set. Failures are logged and otherwise ignored.
func (e *Engine) AutoConnect() {
	e.mu.Lock()
	on, out, in := e.cfg.AutoConnect, e.cfg.OutputConn, e.cfg.InputConn
	e.mu.Unlock()

	if !on {
		return
	}
	if out != "" {
		if err := e.ConnectOutput(); err != nil {
			debug.Log("connect", "auto-connect output skipped: %v", err)
		}
	}
	if in != "" {
		if err := e.ConnectInput(); err != nil {
			debug.Log("connect", "auto-connect input skipped: %v", err)
		}
	}
}

// SendInitialControls pushes bank, program, volume and balance so a device
// reflects the current settings without a play cycle
func (e *Engine) SendInitialControls() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sendInitialControlsLocked()
}

// SendControlChange sends one controller on the output channel
func (e *Engine) SendControlChange(controller, value int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out == nil {
		return ErrDeviceUnavailable
	}
	msg := gomidi.ControlChange(uint8(e.cfg.Channel), uint8(clamp7(controller)), uint8(clamp7(value)))
	return e.out.Send(msg)
}

func (e *Engine) sendInitialControlsLocked() error {
	if e.out == nil {
		return ErrDeviceUnavailable
	}
	for _, msg := range initialControls(e.cfg) {
		if err := e.out.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

// initialControls builds the bank select, program change, volume and pan
// messages for cfg
func initialControls(cfg Config) []gomidi.Message {
	ch := uint8(cfg.Channel)
	var msgs []gomidi.Message

	if cfg.Program >= 0 {
		if cfg.Bank >= 0 {
			msb := uint8(cfg.Bank>>7) & 0x7F
			lsb := uint8(cfg.Bank) & 0x7F
			switch cfg.BankSelMethod {
			case BankSelNormal:
				msgs = append(msgs,
					gomidi.ControlChange(ch, midi.BankSelectMSB, msb),
					gomidi.ControlChange(ch, midi.BankSelectLSB, lsb))
			case BankSelMSB:
				msgs = append(msgs, gomidi.ControlChange(ch, midi.BankSelectMSB, uint8(cfg.Bank)&0x7F))
			case BankSelLSB:
				msgs = append(msgs, gomidi.ControlChange(ch, midi.BankSelectLSB, uint8(cfg.Bank)&0x7F))
			}
		}
		msgs = append(msgs, gomidi.ProgramChange(ch, uint8(cfg.Program)))
	}

	msgs = append(msgs,
		gomidi.ControlChange(ch, midi.VolumeCC, uint8(cfg.Volume)),
		gomidi.ControlChange(ch, midi.PanCC, uint8(cfg.Balance)))
	return msgs
}

// handleInput runs on the driver's goroutine
func (e *Engine) handleInput(msg gomidi.Message) {
	ev := midi.DecodeInput(msg)
	switch ev.Kind {
	case midi.InputStart:
		e.notes.publish(Notification{Kind: PlayRequested})
	case midi.InputStop:
		e.notes.publish(Notification{Kind: StopRequested})
	case midi.InputContinue:
		e.notes.publish(Notification{Kind: ContinueRequested})
	case midi.InputTimeSignature:
		e.notes.publish(Notification{Kind: TimeSignatureAnnounced, Numerator: ev.Numerator, Denominator: ev.Denominator})
	}
}

func (e *Engine) openOutputLocked() error {
	if err := e.closeOutputLocked(); err != nil {
		debug.Warn("connect", "close previous output: %v", err)
	}
	if e.cfg.OutputConn == "" {
		return fmt.Errorf("%w: empty address", midi.ErrPortNotFound)
	}
	out, err := e.ports.OpenOutput(e.cfg.OutputConn)
	if err != nil {
		return err
	}
	e.out = out
	debug.Log("connect", "output %q -> %s", e.cfg.OutputConn, out)
	return nil
}

func (e *Engine) closeOutputLocked() error {
	if e.out == nil {
		return nil
	}
	err := e.out.Close()
	e.out = nil
	return err
}

func (e *Engine) closeInputLocked() {
	if e.stopInput != nil {
		e.stopInput()
		e.stopInput = nil
	}
}
