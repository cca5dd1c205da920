package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
	Program uint8 = 0xC0
)

// Controller numbers pushed on (re)connect
const (
	BankSelectMSB uint8 = 0
	VolumeCC      uint8 = 7
	PanCC         uint8 = 10
	BankSelectLSB uint8 = 32
)

// Event represents one channel message emitted by the engine
type Event struct {
	Type     uint8 // NoteOn, NoteOff, CC, Program
	Channel  uint8 // 0-15
	Note     uint8 // key, controller number or program
	Velocity uint8 // velocity or controller value
	Accent   bool  // strong beat or accented pattern cell
}

// Message converts the event into a wire message
func (e Event) Message() gomidi.Message {
	switch e.Type {
	case NoteOn:
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	case NoteOff:
		return gomidi.NoteOff(e.Channel, e.Note)
	case CC:
		return gomidi.ControlChange(e.Channel, e.Note, e.Velocity)
	case Program:
		return gomidi.ProgramChange(e.Channel, e.Note)
	}
	return nil
}
