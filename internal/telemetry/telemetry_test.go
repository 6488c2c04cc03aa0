package telemetry

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

func TestSimulatorIdleBeforeReset(t *testing.T) {
	s := NewSimulator(36, rand.New(rand.NewSource(1)))
	r, err := s.Read(t0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Weight != 0 || r.Flow != 0 || r.Pressure != 0 {
		t.Errorf("expected empty cup before reset, got %+v", r)
	}
	if r.BoilerTemp < 93.9 || r.BoilerTemp > 94.1 {
		t.Errorf("expected boiler near 94°C, got %g", r.BoilerTemp)
	}
	if r.GroupTemp < 92.9 || r.GroupTemp > 93.1 {
		t.Errorf("expected group near 93°C, got %g", r.GroupTemp)
	}
}

func TestSimulatorPressureFollowsShot(t *testing.T) {
	s := NewSimulator(36, rand.New(rand.NewSource(7)))
	s.Noise = 0
	s.Reset(t0)

	r, _ := s.Read(t0.Add(4 * time.Second))
	if r.Pressure < 9 || r.Pressure > 10 {
		t.Errorf("expected ~10 bar at full ramp, got %g", r.Pressure)
	}
	for i := 5; i <= 30; i++ {
		r, _ = s.Read(t0.Add(time.Duration(i) * time.Second))
	}
	if r.Pressure < 2 || r.Pressure >= 9 {
		t.Errorf("expected pressure to decay with the cup filling, got %g", r.Pressure)
	}
	if r.BoilerTemp < 93 || r.BoilerTemp > 95 {
		t.Errorf("boiler temperature drifted too far: %g", r.BoilerTemp)
	}
}

func TestSimulatorShotCurve(t *testing.T) {
	s := NewSimulator(36, rand.New(rand.NewSource(1)))
	s.Noise = 0
	s.Reset(t0)

	var prev Reading
	var peak float64
	for i := 1; i <= 300; i++ {
		r, err := s.Read(t0.Add(time.Duration(i) * 100 * time.Millisecond))
		if err != nil {
			t.Fatalf("tick %d: unexpected error: %v", i, err)
		}
		if r.Weight < prev.Weight {
			t.Fatalf("tick %d: weight decreased from %g to %g", i, prev.Weight, r.Weight)
		}
		if r.Flow < 0 {
			t.Fatalf("tick %d: negative flow %g", i, r.Flow)
		}
		if r.Flow > peak {
			peak = r.Flow
		}
		prev = r
	}

	if peak > 2.6 {
		t.Errorf("flow exceeded peak: %g", peak)
	}
	if prev.Weight < 30 {
		t.Errorf("expected the cup to approach the 36g target after 30s, got %g", prev.Weight)
	}
}

func TestSimulatorRampsUp(t *testing.T) {
	s := NewSimulator(36, nil)
	s.Noise = 0
	s.Reset(t0)

	early, _ := s.Read(t0.Add(time.Second))
	s.Read(t0.Add(2 * time.Second))
	s.Read(t0.Add(3 * time.Second))
	late, _ := s.Read(t0.Add(4 * time.Second))

	if early.Flow >= late.Flow {
		t.Errorf("expected flow to ramp up: 1s=%g 4s=%g", early.Flow, late.Flow)
	}
}

func TestSimulatorResetEmptiesCup(t *testing.T) {
	s := NewSimulator(36, nil)
	s.Noise = 0
	s.Reset(t0)
	for i := 1; i <= 50; i++ {
		s.Read(t0.Add(time.Duration(i) * 200 * time.Millisecond))
	}

	start := t0.Add(time.Minute)
	s.Reset(start)
	r, _ := s.Read(start)
	if r.Weight != 0 {
		t.Errorf("expected tared weight after reset, got %g", r.Weight)
	}
}

func TestScriptReplay(t *testing.T) {
	s := NewScript([]Reading{{Weight: 1, Flow: 1}, {Weight: 2, Flow: 1.5}})

	want := []Reading{{Weight: 1, Flow: 1}, {Weight: 2, Flow: 1.5}, {Weight: 2, Flow: 1.5}}
	for i, w := range want {
		got, err := s.Read(t0)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if got != w {
			t.Errorf("read %d: expected %+v, got %+v", i, w, got)
		}
	}

	s.Reset(t0)
	if len(s.Resets) != 1 || !s.Resets[0].Equal(t0) {
		t.Errorf("expected reset to be recorded, got %v", s.Resets)
	}
}

func TestScriptErrors(t *testing.T) {
	if _, err := NewScript(nil).Read(t0); !errors.Is(err, ErrNoData) {
		t.Errorf("expected ErrNoData, got %v", err)
	}

	s := NewScript([]Reading{{Weight: 1}})
	s.ReadError = errors.New("scale offline")
	if _, err := s.Read(t0); err == nil || err.Error() != "scale offline" {
		t.Errorf("expected scripted error, got %v", err)
	}
}
