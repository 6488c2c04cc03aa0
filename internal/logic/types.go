// Package logic contains pure business logic for brew-by-weight shot monitoring.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Phase is the derived stage of an extraction.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhasePreinfusion Phase = "PREINFUSION"
	PhaseExtraction  Phase = "EXTRACTION"
	PhaseFinishing   Phase = "FINISHING"
	PhaseCompleted   Phase = "COMPLETED"
)

// Phases lists every phase in brew order.
var Phases = []Phase{PhaseIdle, PhasePreinfusion, PhaseExtraction, PhaseFinishing, PhaseCompleted}

// Index returns the position of p in brew order, or -1 if p is not a known phase.
func (p Phase) Index() int {
	for i, q := range Phases {
		if q == p {
			return i
		}
	}
	return -1
}

// Sample is a single telemetry reading from the scale.
type Sample struct {
	Elapsed float64 // seconds since shot start
	Weight  float64 // cumulative beverage weight, grams
	Flow    float64 // instantaneous flow, g/s (may be negative noise)
}

// WarningKind identifies a warning variant.
type WarningKind string

const (
	WarningFlowTooLow      WarningKind = "FLOW_TOO_LOW"
	WarningFlowTooHigh     WarningKind = "FLOW_TOO_HIGH"
	WarningRatioOffTarget  WarningKind = "RATIO_OFF_TARGET"
	WarningShotRunningLong WarningKind = "SHOT_RUNNING_LONG"
)

// WarningKinds lists every warning variant.
var WarningKinds = []WarningKind{WarningFlowTooLow, WarningFlowTooHigh, WarningRatioOffTarget, WarningShotRunningLong}

// Warning is an advisory annotation on a State.
// Value carries the average flow for flow warnings and the current ratio for
// RATIO_OFF_TARGET. It is zero for SHOT_RUNNING_LONG.
type Warning struct {
	Kind  WarningKind
	Value float64
}

// FlowTooLow builds a FLOW_TOO_LOW warning for the given average flow.
func FlowTooLow(current float64) Warning { return Warning{Kind: WarningFlowTooLow, Value: current} }

// FlowTooHigh builds a FLOW_TOO_HIGH warning for the given average flow.
func FlowTooHigh(current float64) Warning { return Warning{Kind: WarningFlowTooHigh, Value: current} }

// RatioOffTarget builds a RATIO_OFF_TARGET warning for the given ratio.
func RatioOffTarget(actual float64) Warning {
	return Warning{Kind: WarningRatioOffTarget, Value: actual}
}

// ShotRunningLong builds a SHOT_RUNNING_LONG warning.
func ShotRunningLong() Warning { return Warning{Kind: WarningShotRunningLong} }

// String renders the warning for log lines and banners.
func (w Warning) String() string {
	switch w.Kind {
	case WarningFlowTooLow:
		return fmt.Sprintf("flow too low (%.2f g/s)", w.Value)
	case WarningFlowTooHigh:
		return fmt.Sprintf("flow too high (%.2f g/s)", w.Value)
	case WarningRatioOffTarget:
		return fmt.Sprintf("ratio off target (1:%.2f)", w.Value)
	case WarningShotRunningLong:
		return "shot running long"
	}
	return string(w.Kind)
}

// State is the snapshot produced by Machine.Evaluate.
// Callers must treat it as read-only.
type State struct {
	Config      Configuration
	Sample      Sample
	Phase       Phase
	Progress    float64 // [0, 1]
	AutoStop    bool    // stopping is recommended
	AverageFlow float64 // window mean of clamped flow, g/s
	Ratio       float64 // current beverage weight / dose
	Warnings    []Warning
}

// HasWarning reports whether the state carries a warning of the given kind.
func (s State) HasWarning(kind WarningKind) bool {
	for _, w := range s.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

// EventType represents a shot lifecycle event.
type EventType string

const (
	EventShotStart EventType = "SHOT_START"
	EventPhase     EventType = "PHASE"
	EventAutoStop  EventType = "AUTO_STOP"
	EventShotEnd   EventType = "SHOT_END"
)

// Event is a shot lifecycle event to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Shot      int   // 1-based shot number since startup
	From      Phase // PHASE only
	State     State // latest evaluated state (zero for SHOT_START)
}

// Input represents one tick of the monitor loop.
type Input struct {
	PaddleClosed bool // true = brewing requested
	Weight       float64
	Flow         float64
	Time         time.Time

	// NoReading marks a tick without scale data. It still starts and ends
	// shots but is not evaluated, so it never enters the smoothing window.
	NoReading bool
}

// ShotCounts tracks shot and warning totals since startup.
type ShotCounts struct {
	Shots     int
	AutoStops int
	Completed int // shots that ended in COMPLETED
	Warnings  map[WarningKind]int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    ShotCounts
}
