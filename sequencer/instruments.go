package sequencer

import (
	"fmt"
	"sort"
	"strings"
)

// Patch is a resolved bank/program pair plus how to select the bank
type Patch struct {
	Bank    int
	Program int
	Method  BankSelMethod
}

// Bank is a named bank of programs
type Bank struct {
	ID       int
	Name     string
	Programs map[int]string
}

// Instrument describes a sound module: its banks of drum kits and the
// names of its percussion keys
type Instrument struct {
	Name   string
	Method BankSelMethod
	Banks  []Bank
	Keys   map[uint8]string
}

// InstrumentIndex resolves instrument, bank and program names directly.
// It is built once and read-only afterwards.
type InstrumentIndex struct {
	instruments map[string]*indexedInstrument
	names       []string
}

type indexedInstrument struct {
	Instrument
	banks map[string]*indexedBank
}

type indexedBank struct {
	id       int
	programs map[string]int
}

// NewInstrumentIndex indexes instruments by name. Names compare
// case-insensitively; a duplicate name is an error.
func NewInstrumentIndex(instruments ...Instrument) (*InstrumentIndex, error) {
	idx := &InstrumentIndex{instruments: make(map[string]*indexedInstrument)}
	for _, ins := range instruments {
		key := nameKey(ins.Name)
		if key == "" {
			return nil, fmt.Errorf("%w: instrument without a name", ErrInvalidConfiguration)
		}
		if _, dup := idx.instruments[key]; dup {
			return nil, fmt.Errorf("%w: duplicate instrument %q", ErrInvalidConfiguration, ins.Name)
		}
		ii := &indexedInstrument{Instrument: ins, banks: make(map[string]*indexedBank)}
		for _, b := range ins.Banks {
			ib := &indexedBank{id: b.ID, programs: make(map[string]int, len(b.Programs))}
			for prog, name := range b.Programs {
				ib.programs[nameKey(name)] = prog
			}
			ii.banks[nameKey(b.Name)] = ib
		}
		idx.instruments[key] = ii
		idx.names = append(idx.names, ins.Name)
	}
	return idx, nil
}

// Resolve finds the patch for instrument, bank and program names
func (idx *InstrumentIndex) Resolve(instrument, bank, program string) (Patch, bool) {
	ins, ok := idx.instruments[nameKey(instrument)]
	if !ok {
		return Patch{}, false
	}
	b, ok := ins.banks[nameKey(bank)]
	if !ok {
		return Patch{}, false
	}
	prog, ok := b.programs[nameKey(program)]
	if !ok {
		return Patch{}, false
	}
	return Patch{Bank: b.id, Program: prog, Method: ins.Method}, true
}

// Instrument returns the instrument called name
func (idx *InstrumentIndex) Instrument(name string) (Instrument, bool) {
	ins, ok := idx.instruments[nameKey(name)]
	if !ok {
		return Instrument{}, false
	}
	return ins.Instrument, true
}

// Names lists instruments in registration order
func (idx *InstrumentIndex) Names() []string {
	return append([]string(nil), idx.names...)
}

// Programs lists the program names of a bank, ordered by program number
func (idx *InstrumentIndex) Programs(instrument, bank string) []string {
	ins, ok := idx.instruments[nameKey(instrument)]
	if !ok {
		return nil
	}
	for _, b := range ins.Banks {
		if nameKey(b.Name) != nameKey(bank) {
			continue
		}
		nums := make([]int, 0, len(b.Programs))
		for n := range b.Programs {
			nums = append(nums, n)
		}
		sort.Ints(nums)
		names := make([]string, len(nums))
		for i, n := range nums {
			names[i] = b.Programs[n]
		}
		return names
	}
	return nil
}

// KeyName is the instrument's name for a key, falling back to the GM
// percussion name and then to the note number
func (idx *InstrumentIndex) KeyName(instrument string, key uint8) string {
	if ins, ok := idx.instruments[nameKey(instrument)]; ok {
		if name, ok := ins.Keys[key]; ok {
			return name
		}
	}
	if name, ok := gmPercussion[key]; ok {
		return name
	}
	return fmt.Sprintf("Note %d", key)
}

func nameKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultInstrument is selected when the configuration names none
const DefaultInstrument = "General MIDI"

// DefaultInstruments is the built-in index: GM, GS and XG drum banks plus
// the key maps of common drum machines
func DefaultInstruments() *InstrumentIndex {
	idx, err := NewInstrumentIndex(builtinInstruments()...)
	if err != nil {
		panic(err)
	}
	return idx
}

func builtinInstruments() []Instrument {
	return []Instrument{
		{
			Name:   "General MIDI",
			Method: BankSelPatch,
			Banks:  []Bank{{ID: 0, Name: "Drums", Programs: map[int]string{0: "Standard"}}},
			Keys:   gmPercussion,
		},
		{
			Name:   "Roland GS",
			Method: BankSelNormal,
			Banks: []Bank{{ID: 0, Name: "Drum Sets", Programs: map[int]string{
				0: "Standard", 8: "Room", 16: "Power", 24: "Electronic",
				25: "TR-808", 32: "Jazz", 40: "Brush", 48: "Orchestra", 56: "SFX",
			}}},
			Keys: gmPercussion,
		},
		{
			Name:   "Yamaha XG",
			Method: BankSelNormal,
			Banks: []Bank{
				{ID: 127 << 7, Name: "Drum Kits", Programs: map[int]string{
					0: "Standard Kit", 1: "Standard2 Kit", 8: "Room Kit", 16: "Rock Kit",
					24: "Electro Kit", 25: "Analog Kit", 32: "Jazz Kit", 40: "Brush Kit",
					48: "Classic Kit",
				}},
				{ID: 126 << 7, Name: "SFX Kits", Programs: map[int]string{0: "SFX 1", 1: "SFX 2"}},
			},
			Keys: gmPercussion,
		},
		{
			Name: "Behringer RD-8",
			Keys: map[uint8]string{
				36: "Bass Drum", 40: "Snare Drum", 42: "Closed Hi-Hat", 46: "Open Hi-Hat",
				45: "Low Tom", 48: "Mid Tom", 50: "High Tom", 49: "Cymbal", 51: "Ride",
				39: "Hand Clap", 37: "Rim Shot", 56: "Cowbell", 75: "Claves",
				70: "Maracas", 64: "Low Conga", 63: "High Conga",
			},
		},
		{
			Name: "Roland TR-8S",
			Keys: map[uint8]string{
				36: "Bass Drum", 38: "Snare Drum", 42: "Closed Hat", 46: "Open Hat",
				41: "Low Tom", 43: "Mid Tom", 45: "High Tom", 49: "Crash", 51: "Ride",
				39: "Hand Clap", 37: "Rim Shot",
			},
		},
		{
			Name: "Korg ER-1",
			Keys: map[uint8]string{
				36: "Perc Synth 1", 38: "Perc Synth 2", 40: "Perc Synth 3", 41: "Perc Synth 4",
				42: "Closed Hat", 46: "Open Hat", 49: "Crash", 39: "Hand Clap",
				43: "Audio In 1", 45: "Audio In 2",
			},
		},
	}
}

// gmPercussion is the General MIDI percussion key map (channel 10)
var gmPercussion = map[uint8]string{
	27: "High Q", 28: "Slap", 29: "Scratch Push", 30: "Scratch Pull",
	31: "Sticks", 32: "Square Click", 33: "Metronome Click", 34: "Metronome Bell",
	35: "Acoustic Bass Drum", 36: "Bass Drum 1", 37: "Side Stick", 38: "Acoustic Snare",
	39: "Hand Clap", 40: "Electric Snare", 41: "Low Floor Tom", 42: "Closed Hi-Hat",
	43: "High Floor Tom", 44: "Pedal Hi-Hat", 45: "Low Tom", 46: "Open Hi-Hat",
	47: "Low-Mid Tom", 48: "Hi-Mid Tom", 49: "Crash Cymbal 1", 50: "High Tom",
	51: "Ride Cymbal 1", 52: "Chinese Cymbal", 53: "Ride Bell", 54: "Tambourine",
	55: "Splash Cymbal", 56: "Cowbell", 57: "Crash Cymbal 2", 58: "Vibraslap",
	59: "Ride Cymbal 2", 60: "Hi Bongo", 61: "Low Bongo", 62: "Mute Hi Conga",
	63: "Open Hi Conga", 64: "Low Conga", 65: "High Timbale", 66: "Low Timbale",
	67: "High Agogo", 68: "Low Agogo", 69: "Cabasa", 70: "Maracas",
	71: "Short Whistle", 72: "Long Whistle", 73: "Short Guiro", 74: "Long Guiro",
	75: "Claves", 76: "Hi Wood Block", 77: "Low Wood Block", 78: "Mute Cuica",
	79: "Open Cuica", 80: "Mute Triangle", 81: "Open Triangle",
}
