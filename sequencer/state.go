package sequencer

// TransportState is the play state of the engine
type TransportState int

const (
	Stopped TransportState = iota
	Playing
)

func (s TransportState) String() string {
	if s == Playing {
		return "playing"
	}
	return "stopped"
}

// State is a read-only view of the transport, returned by Engine.State
type State struct {
	Transport   TransportState
	Bar         int // 1-based, next bar to play
	Beat        int // 0-based tick within the bar, next to play
	Started     bool
	PatternMode bool
	Pattern     string // name of the selected pattern, "" in automatic mode
	Connected   bool   // output endpoint open
	Dropped     uint64 // notifications dropped on a full channel
}

// Playing reports whether the timing loop is running
func (s State) Playing() bool {
	return s.Transport == Playing
}

// position is the bar/beat counter driven by the timing loop
type position struct {
	bar  int
	beat int
}

func startPosition() position {
	return position{bar: 1, beat: 0}
}

// normalize wraps a beat left out of range by a bar-length change
func (p position) normalize(ticksPerBar int) position {
	if p.beat >= ticksPerBar {
		p.beat = 0
		p.bar++
	}
	return p
}

// next advances one tick
func (p position) next(ticksPerBar int) position {
	p.beat++
	if p.beat >= ticksPerBar {
		p.beat = 0
		p.bar++
	}
	return p
}
