package sequencer

import (
	"fmt"
	"sync/atomic"

	"go-metronome/debug"
)

// NotificationKind identifies a telemetry message
type NotificationKind int

const (
	PositionUpdate NotificationKind = iota
	PlayRequested
	StopRequested
	ContinueRequested
	TimeSignatureAnnounced
	DeviceLost
)

func (k NotificationKind) String() string {
	switch k {
	case PositionUpdate:
		return "position"
	case PlayRequested:
		return "play"
	case StopRequested:
		return "stop"
	case ContinueRequested:
		return "continue"
	case TimeSignatureAnnounced:
		return "timesig"
	case DeviceLost:
		return "device-lost"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Notification is one message from the engine to the UI
type Notification struct {
	Kind        NotificationKind
	Bar         int
	Beat        int
	Numerator   int
	Denominator int
	Err         error
}

// NotificationBuffer is the capacity of the telemetry channel
const NotificationBuffer = 1024

// telemetry is the bounded channel from the timing loop to the UI. publish
// never blocks; when the consumer falls a full buffer behind, the message is
// dropped and counted.
type telemetry struct {
	ch      chan Notification
	dropped atomic.Uint64
}

func newTelemetry(size int) *telemetry {
	return &telemetry{ch: make(chan Notification, size)}
}

func (t *telemetry) publish(n Notification) {
	select {
	case t.ch <- n:
	default:
		t.dropped.Add(1)
		debug.LogEvery(100, "telemetry", "consumer behind, dropped %s", n.Kind)
	}
}
