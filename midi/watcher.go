package midi

import (
	"context"
	"sort"
	"sync"
	"time"
)

// PortEvent is emitted when ports appear or disappear
type PortEvent struct {
	Type      PortEventType
	Direction Direction
	Address   string
}

type PortEventType int

const (
	PortAppeared PortEventType = iota
	PortVanished
)

// Direction tells inputs from outputs
type Direction int

const (
	DirOutput Direction = iota
	DirInput
)

// PortWatcher polls the driver for hot-plugged ports
type PortWatcher struct {
	ports    Ports
	mu       sync.RWMutex
	outputs  map[string]bool
	inputs   map[string]bool
	events   chan PortEvent
	pollRate time.Duration
}

// NewPortWatcher creates a watcher over ports
func NewPortWatcher(ports Ports) *PortWatcher {
	return &PortWatcher{
		ports:    ports,
		outputs:  make(map[string]bool),
		inputs:   make(map[string]bool),
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
	}
}

// Events returns a channel of port appear/vanish events
func (w *PortWatcher) Events() <-chan PortEvent {
	return w.events
}

// Snapshot returns the sorted port names seen on the last scan
func (w *PortWatcher) Snapshot() (outputs, inputs []string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return sortedKeys(w.outputs), sortedKeys(w.inputs)
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *PortWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()

	// Initial scan
	w.scan()

	for {
		select {
		case <-ctx.Done():
			close(w.events)
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *PortWatcher) scan() {
	outs, err := w.ports.Outputs()
	if err != nil {
		// driver hung - skip this scan
		return
	}
	ins, err := w.ports.Inputs()
	if err != nil {
		return
	}

	var pending []PortEvent
	w.mu.Lock()
	pending = append(pending, diff(w.outputs, outs, DirOutput)...)
	pending = append(pending, diff(w.inputs, ins, DirInput)...)
	w.mu.Unlock()

	for _, ev := range pending {
		select {
		case w.events <- ev:
		default:
		}
	}
}

// diff updates known in place and returns what changed
func diff(known map[string]bool, now []string, dir Direction) []PortEvent {
	var events []PortEvent
	seen := make(map[string]bool, len(now))
	for _, name := range now {
		seen[name] = true
		if !known[name] {
			known[name] = true
			events = append(events, PortEvent{Type: PortAppeared, Direction: dir, Address: name})
		}
	}
	for _, name := range sortedKeys(known) {
		if !seen[name] {
			delete(known, name)
			events = append(events, PortEvent{Type: PortVanished, Direction: dir, Address: name})
		}
	}
	return events
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
