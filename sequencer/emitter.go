package sequencer

import (
	"sort"

	"go-metronome/midi"
)

// pendingOff is a note-off waiting for its tick
type pendingOff struct {
	from    int64 // tick of the note-on
	due     int64
	channel uint8
	key     uint8
}

// emitter decides what a tick sounds like. It belongs to one play session
// and is only touched by the timing loop.
type emitter struct {
	grid   *Grid // nil in automatic mode
	mapper StrikeMapper
	offs   []pendingOff
	tick   int64 // ticks emitted in this session
}

func newEmitter(grid *Grid, mapper StrikeMapper) *emitter {
	if mapper == nil {
		mapper = VelocityMapper{}
	}
	return &emitter{grid: grid, mapper: mapper}
}

// ticksPerBar is numerator*resolution in automatic mode and the pattern
// figure in pattern mode
func (em *emitter) ticksPerBar(cfg Config) int {
	if em.grid != nil {
		return max(em.grid.Figure, 1)
	}
	return max(cfg.Numerator, 1) * max(cfg.Resolution, 1)
}

// emit returns the events for the tick at beat, in send order: note-offs
// that are due, then note-ons (accents first), then immediate note-offs.
func (em *emitter) emit(cfg Config, beat int) []midi.Event {
	channel := uint8(cfg.Channel)
	events := em.dueOffs()

	var strikes []Strike
	if em.grid == nil {
		strikes = em.clicks(cfg, beat)
	} else {
		strikes = em.cells(cfg, beat)
	}

	var immediate []midi.Event
	for _, s := range strikes {
		// a key still held from an earlier tick is released before it retriggers
		events = append(events, em.release(channel, s.Key)...)
		events = append(events, midi.Event{
			Type:     midi.NoteOn,
			Channel:  channel,
			Note:     s.Key,
			Velocity: s.Velocity,
			Accent:   s.Accent,
		})
		if !cfg.SendNoteOff {
			continue
		}
		if cfg.NoteDuration == 0 {
			immediate = append(immediate, midi.Event{Type: midi.NoteOff, Channel: channel, Note: s.Key})
			continue
		}
		em.offs = append(em.offs, pendingOff{from: em.tick, due: em.tick + int64(cfg.NoteDuration), channel: channel, key: s.Key})
	}

	em.tick++
	return append(events, immediate...)
}

// clicks is automatic mode: strong on the first beat, weak on the others,
// silent on sub-beat ticks
func (em *emitter) clicks(cfg Config, beat int) []Strike {
	if beat%max(cfg.Resolution, 1) != 0 {
		return nil
	}
	if beat == 0 {
		return []Strike{{Key: uint8(cfg.StrongNote), Velocity: uint8(cfg.StrongVelocity), Accent: true}}
	}
	return []Strike{{Key: uint8(cfg.WeakNote), Velocity: uint8(cfg.WeakVelocity)}}
}

// cells is pattern mode: every non-empty cell of the column
func (em *emitter) cells(cfg Config, col int) []Strike {
	var strikes []Strike
	for r, row := range em.grid.Rows {
		cell := em.grid.Cell(r, col)
		if cell.Empty() {
			continue
		}
		if s, ok := em.mapper.Resolve(row, cell, cfg); ok {
			strikes = append(strikes, s)
		}
	}
	sort.SliceStable(strikes, func(i, j int) bool {
		return strikes[i].Accent && !strikes[j].Accent
	})
	return strikes
}

func (em *emitter) dueOffs() []midi.Event {
	var events []midi.Event
	kept := em.offs[:0]
	for _, off := range em.offs {
		if off.due <= em.tick {
			events = append(events, midi.Event{Type: midi.NoteOff, Channel: off.channel, Note: off.key})
			continue
		}
		kept = append(kept, off)
	}
	em.offs = kept
	return events
}

func (em *emitter) release(channel, key uint8) []midi.Event {
	var events []midi.Event
	kept := em.offs[:0]
	for _, off := range em.offs {
		if off.from < em.tick && off.channel == channel && off.key == key {
			events = append(events, midi.Event{Type: midi.NoteOff, Channel: off.channel, Note: off.key})
			continue
		}
		kept = append(kept, off)
	}
	em.offs = kept
	return events
}

// flush releases every sounding note, used on stop
func (em *emitter) flush() []midi.Event {
	events := make([]midi.Event, 0, len(em.offs))
	for _, off := range em.offs {
		events = append(events, midi.Event{Type: midi.NoteOff, Channel: off.channel, Note: off.key})
	}
	em.offs = nil
	return events
}
