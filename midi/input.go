package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// InputKind identifies what an incoming message asks the transport to do
type InputKind int

const (
	InputNone InputKind = iota
	InputStart
	InputStop
	InputContinue
	InputTimeSignature
)

// InputEvent is a decoded transport or notation message from the input port
type InputEvent struct {
	Kind        InputKind
	Numerator   int
	Denominator int
}

// Universal real-time SysEx: F0 7F <dev> 03 <02|42> <len> nn dd cc bb ... F7
const (
	sysExRealTime    = 0x7F
	sysExNotation    = 0x03
	sysExTimeSigNow  = 0x02
	sysExTimeSigNext = 0x42
)

// DecodeInput maps an incoming message to a transport event.
// Anything that is not transport or notation returns InputNone.
func DecodeInput(msg gomidi.Message) InputEvent {
	switch {
	case msg.Is(gomidi.StartMsg):
		return InputEvent{Kind: InputStart}
	case msg.Is(gomidi.StopMsg):
		return InputEvent{Kind: InputStop}
	case msg.Is(gomidi.ContinueMsg):
		return InputEvent{Kind: InputContinue}
	}

	var data []byte
	if msg.GetSysEx(&data) {
		if num, den, ok := ParseTimeSignature(data); ok {
			return InputEvent{Kind: InputTimeSignature, Numerator: num, Denominator: den}
		}
	}
	return InputEvent{Kind: InputNone}
}

// ParseTimeSignature decodes a MIDI time signature SysEx body. The leading
// F0 and trailing F7 are optional.
func ParseTimeSignature(data []byte) (numerator, denominator int, ok bool) {
	if len(data) > 0 && data[0] == 0xF0 {
		data = data[1:]
	}
	if len(data) > 0 && data[len(data)-1] == 0xF7 {
		data = data[:len(data)-1]
	}
	// 7F dev 03 02 len nn dd
	if len(data) < 7 {
		return 0, 0, false
	}
	if data[0] != sysExRealTime || data[2] != sysExNotation {
		return 0, 0, false
	}
	if data[3] != sysExTimeSigNow && data[3] != sysExTimeSigNext {
		return 0, 0, false
	}
	if data[4] < 2 {
		return 0, 0, false
	}
	nn, dd := data[5], data[6]
	if nn == 0 || dd > 6 {
		return 0, 0, false
	}
	return int(nn), 1 << dd, true
}

// TimeSignature builds the SysEx that ParseTimeSignature understands
func TimeSignature(numerator, denominator int) gomidi.Message {
	dd := 0
	for x := denominator; x > 1; x /= 2 {
		dd++
	}
	return gomidi.SysEx([]byte{sysExRealTime, 0x7F, sysExNotation, sysExTimeSigNow, 0x04,
		byte(numerator), byte(dd), 24, 8})
}
