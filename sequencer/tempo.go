package sequencer

// TempoMarking is an Italian tempo term and its reference BPM
type TempoMarking struct {
	Name string
	BPM  int
}

// TempoMarkings is ordered by BPM
var TempoMarkings = []TempoMarking{
	{"Larghissimo", 20},
	{"Largo", 40},
	{"Larghetto", 60},
	{"Adagio", 70},
	{"Andante", 90},
	{"Moderato", 110},
	{"Allegro", 120},
	{"Vivace", 160},
	{"Presto", 170},
	{"Prestissimo", 200},
}

// TempoName returns the fastest marking not above bpm
func TempoName(bpm int) string {
	name := TempoMarkings[0].Name
	for _, m := range TempoMarkings {
		if m.BPM > bpm {
			break
		}
		name = m.Name
	}
	return name
}
