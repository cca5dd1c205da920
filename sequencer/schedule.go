package sequencer

import "time"

// Interval is the time between two ticks: 60000 / (tempo * resolution) ms
func Interval(tempo, resolution int) time.Duration {
	tempo = clamp(tempo, TempoMin, TempoMax)
	resolution = clamp(resolution, 1, MaxResolution)
	return time.Minute / time.Duration(tempo*resolution)
}

// schedule keeps absolute tick deadlines. Each deadline is derived from the
// previous deadline, never from the wake-up time, so timer latency does not
// accumulate.
type schedule struct {
	last time.Time // deadline of the tick that fired last
	next time.Time // deadline of the armed tick
}

// arm schedules the first tick at now
func (s *schedule) arm(now time.Time) {
	s.last = now
	s.next = now
}

// fired records that the armed tick ran and arms the following one
func (s *schedule) fired(interval time.Duration) time.Time {
	s.last = s.next
	s.next = s.last.Add(interval)
	return s.next
}

// retune moves the armed tick after a tempo change. The tick that fired
// last stays where it was.
func (s *schedule) retune(interval time.Duration) time.Time {
	if s.next.Equal(s.last) {
		// first tick of the session, still due immediately
		return s.next
	}
	s.next = s.last.Add(interval)
	return s.next
}

// wait returns how long until the armed tick, never negative
func (s *schedule) wait(now time.Time) time.Duration {
	d := s.next.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
