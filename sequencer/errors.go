package sequencer

import "errors"

var (
	// ErrDeviceUnavailable means no output endpoint could be opened
	ErrDeviceUnavailable = errors.New("midi output device unavailable")

	// ErrConnection means an address did not resolve to a live endpoint
	ErrConnection = errors.New("midi connection failed")

	// ErrInvalidConfiguration means a value was out of range and ignored
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidWhilePlaying means the change is only allowed while stopped
	ErrInvalidWhilePlaying = errors.New("not allowed while playing")
)
