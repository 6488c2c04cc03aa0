package logic

import "fmt"

// Configuration holds the targets for a single shot.
// Weights are grams, times are seconds, flow is grams per second.
type Configuration struct {
	TargetWeight    float64
	Dose            float64
	PreinfusionTime float64
	TargetFlowRate  float64
	AutoStopMargin  float64 // tolerance below target at which stopping is acceptable
	MinimumShotTime float64 // auto-stop never triggers before this
}

// BrewRatio returns the configured target ratio (target weight / dose).
func (c Configuration) BrewRatio() float64 {
	if c.Dose <= 0 {
		return 0
	}
	return c.TargetWeight / c.Dose
}

// IsValid reports whether every numeric constraint holds.
func (c Configuration) IsValid() bool {
	return c.Validate() == nil
}

// Validate returns an error naming the first violated constraint.
func (c Configuration) Validate() error {
	switch {
	case !(c.TargetWeight > 0):
		return fmt.Errorf("target weight must be > 0, got %g", c.TargetWeight)
	case !(c.Dose > 0):
		return fmt.Errorf("dose must be > 0, got %g", c.Dose)
	case !(c.PreinfusionTime >= 0):
		return fmt.Errorf("preinfusion time must be >= 0, got %g", c.PreinfusionTime)
	case !(c.TargetFlowRate > 0):
		return fmt.Errorf("target flow rate must be > 0, got %g", c.TargetFlowRate)
	case !(c.AutoStopMargin >= 0):
		return fmt.Errorf("auto-stop margin must be >= 0, got %g", c.AutoStopMargin)
	case !(c.MinimumShotTime >= 0):
		return fmt.Errorf("minimum shot time must be >= 0, got %g", c.MinimumShotTime)
	}
	return nil
}

// stopWeight is the weight at which the shot is close enough to finish.
func (c Configuration) stopWeight() float64 {
	return c.TargetWeight - c.AutoStopMargin
}

// ExpectedCompletionTime is the time by which a shot on target should be done.
func (c Configuration) ExpectedCompletionTime() float64 {
	return max(c.MinimumShotTime, c.PreinfusionTime+c.TargetWeight/max(c.TargetFlowRate, 0.1))
}
