package logic

import "fmt"

// DefaultSmoothingWindow is the number of samples averaged for flow.
const DefaultSmoothingWindow = 5

// idleThreshold is the elapsed time (seconds) at or below which a shot is idle.
const idleThreshold = 0.1

// Flow and ratio tolerance bands around the configured targets.
const (
	flowLowerFactor  = 0.7
	flowUpperFactor  = 1.3
	ratioLowerFactor = 0.9
	ratioUpperFactor = 1.1
	longShotFactor   = 1.2
)

// Machine turns a stream of samples for one shot into brew states.
// A Machine owns its window for the lifetime of one shot; start a new shot
// with a new Machine. Not safe for concurrent use.
type Machine struct {
	config Configuration
	window *sampleWindow
}

// NewMachine creates a state machine for one shot.
// It panics if config is invalid or smoothingWindow is not positive; validate
// configuration with Configuration.Validate before reaching this point.
func NewMachine(config Configuration, smoothingWindow int) *Machine {
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("logic: invalid brew configuration: %v", err))
	}
	if smoothingWindow <= 0 {
		panic(fmt.Sprintf("logic: smoothing window must be > 0, got %d", smoothingWindow))
	}
	return &Machine{
		config: config,
		window: newSampleWindow(smoothingWindow),
	}
}

// Config returns the configuration the machine was built with.
func (m *Machine) Config() Configuration {
	return m.config
}

// Evaluate records sample and derives the full brew state from it.
func (m *Machine) Evaluate(sample Sample) State {
	m.window.push(sample)

	cfg := m.config
	avg := m.window.averageFlow()
	ratio := currentRatio(sample, cfg)
	phase := DerivePhase(sample, cfg)

	return State{
		Config:      cfg,
		Sample:      sample,
		Phase:       phase,
		Progress:    progress(sample, cfg),
		AutoStop:    autoStopRecommended(sample, cfg),
		AverageFlow: avg,
		Ratio:       ratio,
		Warnings:    deriveWarnings(sample, cfg, phase, avg, ratio),
	}
}

// DerivePhase maps the latest sample to a phase. Elapsed time is checked
// before weight, so weight only matters once preinfusion is over.
func DerivePhase(sample Sample, cfg Configuration) Phase {
	switch {
	case sample.Elapsed <= idleThreshold:
		return PhaseIdle
	case sample.Elapsed < cfg.PreinfusionTime:
		return PhasePreinfusion
	case sample.Weight < cfg.stopWeight():
		return PhaseExtraction
	case sample.Weight < cfg.TargetWeight:
		return PhaseFinishing
	default:
		return PhaseCompleted
	}
}

func currentRatio(sample Sample, cfg Configuration) float64 {
	if cfg.Dose <= 0 {
		return 0
	}
	return sample.Weight / cfg.Dose
}

func progress(sample Sample, cfg Configuration) float64 {
	p := sample.Weight / max(cfg.TargetWeight, 0.1)
	return min(max(p, 0), 1)
}

func autoStopRecommended(sample Sample, cfg Configuration) bool {
	return sample.Elapsed >= cfg.MinimumShotTime && sample.Weight >= cfg.stopWeight()
}

func deriveWarnings(sample Sample, cfg Configuration, phase Phase, avgFlow, ratio float64) []Warning {
	var warnings []Warning

	// Zero average flow means no data yet, not low flow.
	if phase == PhaseExtraction {
		lower := cfg.TargetFlowRate * flowLowerFactor
		upper := cfg.TargetFlowRate * flowUpperFactor
		if avgFlow > 0 && avgFlow < lower {
			warnings = append(warnings, FlowTooLow(avgFlow))
		} else if avgFlow > upper {
			warnings = append(warnings, FlowTooHigh(avgFlow))
		}
	}

	target := cfg.BrewRatio()
	if ratio > 0 && (ratio < target*ratioLowerFactor || ratio > target*ratioUpperFactor) {
		warnings = append(warnings, RatioOffTarget(ratio))
	}

	if phase != PhaseCompleted && sample.Elapsed > cfg.ExpectedCompletionTime()*longShotFactor {
		warnings = append(warnings, ShotRunningLong())
	}

	return warnings
}
