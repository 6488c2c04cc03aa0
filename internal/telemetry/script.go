package telemetry

import "time"

// Script is a test double that replays fixed readings.
type Script struct {
	// Readings are returned in order; the last one repeats.
	Readings []Reading

	// ReadError, if set, will be returned by Read.
	ReadError error

	// Resets records every Reset call.
	Resets []time.Time

	index int
}

// NewScript creates a Script with the given readings.
func NewScript(readings []Reading) *Script {
	return &Script{Readings: readings}
}

// Reset records the shot start. It does not rewind the script.
func (s *Script) Reset(start time.Time) {
	s.Resets = append(s.Resets, start)
}

// Read returns the next scripted reading.
func (s *Script) Read(now time.Time) (Reading, error) {
	if s.ReadError != nil {
		return Reading{}, s.ReadError
	}
	if len(s.Readings) == 0 {
		return Reading{}, ErrNoData
	}
	r := s.Readings[s.index]
	if s.index < len(s.Readings)-1 {
		s.index++
	}
	return r, nil
}
