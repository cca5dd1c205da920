package sequencer

import "errors"

// Apply carries out a transport request received from the MIDI input.
// Position and device notifications are ignored. A time signature that
// arrives while playing is dropped.
func (e *Engine) Apply(n Notification) error {
	switch n.Kind {
	case PlayRequested:
		return e.Start()
	case StopRequested:
		e.Stop()
	case ContinueRequested:
		return e.Continue()
	case TimeSignatureAnnounced:
		err := e.SetTimeSignature(n.Numerator, n.Denominator)
		if errors.Is(err, ErrInvalidWhilePlaying) {
			return nil
		}
		return err
	}
	return nil
}
