package sequencer

// Tempo bounds in beats per minute
const (
	TempoMin     = 25
	TempoMax     = 250
	TempoDefault = 100
)

// Defaults for a fresh configuration
const (
	DefaultChannel    = 9 // GM percussion (channel 10)
	DefaultWeakNote   = 33
	DefaultStrongNote = 34
	DefaultVelocity   = 100
	DefaultVolume     = 100
	DefaultBalance    = 64
	DefaultResolution = 4
	DefaultDuration   = 1
	MaxResolution     = 96
	MaxNumerator      = 32
)

// BankSelMethod is how a bank number is sent before a program change
type BankSelMethod int

const (
	BankSelNormal  BankSelMethod = iota // CC0 MSB + CC32 LSB
	BankSelMSB                          // CC0 only
	BankSelLSB                          // CC32 only
	BankSelPatch                        // program change only
)

// Config is the transport configuration. Setters on Engine write a pending
// copy; every tick reads a snapshot.
type Config struct {
	Tempo          int
	Numerator      int
	Denominator    int
	Channel        int
	WeakNote       int
	StrongNote     int
	WeakVelocity   int
	StrongVelocity int
	Volume         int
	Balance        int
	NoteDuration   int // in ticks; 0 sends the note-off right after the note-on
	SendNoteOff    bool
	Resolution     int // ticks per beat
	AutoConnect    bool
	OutputConn     string
	InputConn      string
	Bank           int // -1 when unset
	Program        int // -1 when unset
	BankSelMethod  BankSelMethod
}

// DefaultConfig returns a 4/4 click at the default tempo on GM percussion
func DefaultConfig() Config {
	return Config{
		Tempo:          TempoDefault,
		Numerator:      4,
		Denominator:    4,
		Channel:        DefaultChannel,
		WeakNote:       DefaultWeakNote,
		StrongNote:     DefaultStrongNote,
		WeakVelocity:   DefaultVelocity,
		StrongVelocity: DefaultVelocity,
		Volume:         DefaultVolume,
		Balance:        DefaultBalance,
		NoteDuration:   DefaultDuration,
		SendNoteOff:    true,
		Resolution:     DefaultResolution,
		Bank:           -1,
		Program:        -1,
	}
}

// Normalize clamps every numeric field into range. Invalid time signatures
// fall back to 4/4.
func (c Config) Normalize() Config {
	c.Tempo = clamp(c.Tempo, TempoMin, TempoMax)
	if !ValidTimeSignature(c.Numerator, c.Denominator) {
		c.Numerator, c.Denominator = 4, 4
	}
	c.Channel = clamp(c.Channel, 0, 15)
	c.WeakNote = clamp7(c.WeakNote)
	c.StrongNote = clamp7(c.StrongNote)
	c.WeakVelocity = clamp7(c.WeakVelocity)
	c.StrongVelocity = clamp7(c.StrongVelocity)
	c.Volume = clamp7(c.Volume)
	c.Balance = clamp7(c.Balance)
	c.NoteDuration = max(c.NoteDuration, 0)
	c.Resolution = clamp(c.Resolution, 1, MaxResolution)
	if c.Bank < -1 || c.Bank > 0x3FFF {
		c.Bank = -1
	}
	if c.Program < -1 || c.Program > 127 {
		c.Program = -1
	}
	if c.BankSelMethod < BankSelNormal || c.BankSelMethod > BankSelPatch {
		c.BankSelMethod = BankSelNormal
	}
	return c
}

var validDenominators = [...]int{1, 2, 4, 8, 16, 32, 64}

// ValidTimeSignature reports whether num/den is accepted by the engine
func ValidTimeSignature(num, den int) bool {
	if num < 1 || num > MaxNumerator {
		return false
	}
	for _, d := range validDenominators {
		if den == d {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp7(v int) int {
	return clamp(v, 0, 127)
}
