package logic

import "time"

// Session tracks the paddle and runs one Machine per shot.
type Session struct {
	config          Configuration
	smoothingWindow int
	startTime       time.Time
	lastHeartbeat   time.Time
	counts          ShotCounts

	// Current shot; machine is nil between shots.
	machine     *Machine
	shot        int
	shotStart   time.Time
	latest      *State
	autoStopped bool
	seen        map[WarningKind]bool
}

// NewSession creates a session for the given brew configuration.
// The startTime is used for calculating uptime in heartbeat events.
// It panics under the same conditions as NewMachine.
func NewSession(config Configuration, smoothingWindow int, startTime time.Time) *Session {
	// Fail at startup rather than on the first paddle pull.
	NewMachine(config, smoothingWindow)

	return &Session{
		config:          config,
		smoothingWindow: smoothingWindow,
		startTime:       startTime,
		lastHeartbeat:   startTime,
		counts:          ShotCounts{Warnings: make(map[WarningKind]int)},
	}
}

// Process takes a new input sample and returns any events that should be emitted.
// Closing the paddle starts a shot, opening it ends the shot. Inputs while the
// paddle stays open are ignored.
func (s *Session) Process(input Input) []Event {
	if s.machine == nil {
		if !input.PaddleClosed {
			return nil
		}
		s.begin(input.Time)
		events := []Event{{Timestamp: input.Time, Type: EventShotStart, Shot: s.shot}}
		if input.NoReading {
			return events
		}
		return append(events, s.evaluate(input)...)
	}

	if !input.PaddleClosed {
		return []Event{s.end(input.Time)}
	}

	if input.NoReading {
		return nil
	}
	return s.evaluate(input)
}

func (s *Session) begin(now time.Time) {
	s.machine = NewMachine(s.config, s.smoothingWindow)
	s.shot++
	s.counts.Shots++
	s.shotStart = now
	s.latest = nil
	s.autoStopped = false
	s.seen = make(map[WarningKind]bool)
}

func (s *Session) end(now time.Time) Event {
	event := Event{Timestamp: now, Type: EventShotEnd, Shot: s.shot}
	event.State = State{Config: s.config, Phase: PhaseIdle}
	if s.latest != nil {
		event.State = *s.latest
		if s.latest.Phase == PhaseCompleted {
			s.counts.Completed++
		}
	}
	s.machine = nil
	return event
}

func (s *Session) evaluate(input Input) []Event {
	sample := Sample{
		Elapsed: input.Time.Sub(s.shotStart).Seconds(),
		Weight:  input.Weight,
		Flow:    input.Flow,
	}
	state := s.machine.Evaluate(sample)
	prev := s.latest
	s.latest = &state

	var events []Event

	if prev != nil && prev.Phase != state.Phase {
		events = append(events, Event{
			Timestamp: input.Time,
			Type:      EventPhase,
			Shot:      s.shot,
			From:      prev.Phase,
			State:     state,
		})
	}

	// One AUTO_STOP per shot, even if non-monotonic input flips the flag.
	if state.AutoStop && !s.autoStopped {
		s.autoStopped = true
		s.counts.AutoStops++
		events = append(events, Event{
			Timestamp: input.Time,
			Type:      EventAutoStop,
			Shot:      s.shot,
			State:     state,
		})
	}

	for _, w := range state.Warnings {
		if !s.seen[w.Kind] {
			s.seen[w.Kind] = true
			s.counts.Warnings[w.Kind]++
		}
	}

	return events
}

// Active reports whether a shot is in progress.
func (s *Session) Active() bool {
	return s.machine != nil
}

// Shot returns the number of the current (or last) shot; 0 before the first.
func (s *Session) Shot() int {
	return s.shot
}

// Latest returns the most recently evaluated state of the current or last shot.
func (s *Session) Latest() (State, bool) {
	if s.latest == nil {
		return State{}, false
	}
	return *s.latest, true
}

// Config returns the brew configuration applied to every shot.
func (s *Session) Config() Configuration {
	return s.config
}

// CountsSnapshot returns a copy of the shot counters.
func (s *Session) CountsSnapshot() ShotCounts {
	c := s.counts
	c.Warnings = make(map[WarningKind]int, len(s.counts.Warnings))
	for k, v := range s.counts.Warnings {
		c.Warnings[k] = v
	}
	return c
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (s *Session) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(s.lastHeartbeat) < interval {
		return nil
	}

	s.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(s.startTime),
		Counts:    s.CountsSnapshot(),
	}
}
