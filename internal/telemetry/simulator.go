package telemetry

import (
	"math"
	"math/rand"
	"time"
)

// Simulator produces a plausible extraction curve: flow ramps up over the
// first seconds, then decays as the cup approaches the target weight.
// Pump pressure follows the same curve and the boiler temperatures drift.
type Simulator struct {
	TargetWeight float64
	PeakFlow     float64 // g/s
	RampTime     time.Duration
	Noise        float64 // uniform +/- g/s added to each reading

	rng        *rand.Rand
	active     bool
	start      time.Time
	last       time.Time
	weight     float64
	flow       float64
	pressure   float64
	boilerTemp float64
	groupTemp  float64
}

// NewSimulator returns a simulator aiming at targetWeight grams.
// A nil rng seeds one from the clock.
func NewSimulator(targetWeight float64, rng *rand.Rand) *Simulator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Simulator{
		TargetWeight: targetWeight,
		PeakFlow:     2.6,
		RampTime:     4 * time.Second,
		Noise:        0.1,
		rng:          rng,
		boilerTemp:   94,
		groupTemp:    93,
	}
}

// Reset starts a new simulated shot at start.
func (s *Simulator) Reset(start time.Time) {
	s.active = true
	s.start = start
	s.last = start
	s.weight = 0
	s.flow = 0
	s.pressure = 0
}

// Read advances the simulation to now and returns the reading.
// Before the first Reset the cup is empty and nothing flows.
func (s *Simulator) Read(now time.Time) (Reading, error) {
	s.boilerTemp += s.jitter(0.02)
	s.groupTemp += s.jitter(0.015)

	if !s.active {
		s.pressure *= 0.8
		return s.reading(), nil
	}

	dt := math.Max(0.001, now.Sub(s.last).Seconds())
	s.last = now

	elapsed := now.Sub(s.start).Seconds()
	ramp := math.Min(1, elapsed/s.RampTime.Seconds())
	decay := math.Max(0.2, 1-s.weight/math.Max(1, s.TargetWeight*1.1))

	flow := s.PeakFlow * ramp * decay
	if s.Noise > 0 {
		flow += s.jitter(s.Noise)
	}
	s.flow = math.Max(0, flow)
	s.weight += s.flow * dt
	s.pressure = 2 + 8*ramp*decay
	if s.Noise > 0 {
		s.pressure += s.jitter(3 * s.Noise)
	}

	return s.reading(), nil
}

func (s *Simulator) reading() Reading {
	return Reading{
		Weight:     math.Round(s.weight*10) / 10,
		Flow:       math.Round(s.flow*100) / 100,
		Pressure:   math.Max(0, math.Round(s.pressure*100)/100),
		BoilerTemp: math.Round(s.boilerTemp*10) / 10,
		GroupTemp:  math.Round(s.groupTemp*10) / 10,
	}
}

// jitter returns a uniform value in [-amp, amp).
func (s *Simulator) jitter(amp float64) float64 {
	return (s.rng.Float64()*2 - 1) * amp
}
