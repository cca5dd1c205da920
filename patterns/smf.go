package patterns

import (
	"fmt"
	"io"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-metronome/sequencer"
)

const ticksPerQuarter = 960

// WriteSMF renders bars of the grid as a type 1 Standard MIDI File: a
// tempo/meter track and one note track. A column lasts one tick of the
// engine clock, 1/resolution of a beat.
func WriteSMF(w io.Writer, g *sequencer.Grid, cfg sequencer.Config, bars int) error {
	if g == nil || g.Figure < 1 {
		return fmt.Errorf("%w: nothing to export", ErrInvalid)
	}
	if bars < 1 {
		bars = 1
	}
	cfg = cfg.Normalize()

	beat := uint32(ticksPerQuarter * 4 / cfg.Denominator)
	column := beat / uint32(cfg.Resolution)
	if column == 0 {
		column = 1
	}
	gate := max(column-1, 1)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var meta smf.Track
	meta.Add(0, smf.MetaTrackSequenceName(g.Name))
	meta.Add(0, smf.MetaMeter(uint8(cfg.Numerator), uint8(cfg.Denominator)))
	meta.Add(0, smf.MetaTempo(float64(cfg.Tempo)))
	meta.Close(0)
	if err := s.Add(meta); err != nil {
		return fmt.Errorf("add tempo track: %w", err)
	}

	mapper := sequencer.VelocityMapper{}
	ch := uint8(cfg.Channel)

	// note-ons at the column start, note-offs just before the next column
	var notes smf.Track
	var pending uint32
	for bar := 0; bar < bars; bar++ {
		for col := 0; col < g.Figure; col++ {
			var keys []uint8
			for r, row := range g.Rows {
				strike, ok := mapper.Resolve(row, g.Cell(r, col), cfg)
				if !ok {
					continue
				}
				notes.Add(pending, gomidi.NoteOn(ch, strike.Key, max(strike.Velocity, 1)))
				pending = 0
				keys = append(keys, strike.Key)
			}
			if len(keys) == 0 {
				pending += column
				continue
			}
			for i, k := range keys {
				delta := uint32(0)
				if i == 0 {
					delta = gate
				}
				notes.Add(delta, gomidi.NoteOff(ch, k))
			}
			pending = column - gate
		}
	}
	notes.Close(pending)
	if err := s.Add(notes); err != nil {
		return fmt.Errorf("add note track: %w", err)
	}

	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write smf: %w", err)
	}
	return nil
}
